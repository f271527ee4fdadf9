package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/conduit-lang/locallibrary/internal/accounts"
	"github.com/conduit-lang/locallibrary/internal/orm/database"
	"github.com/conduit-lang/locallibrary/internal/orm/migrate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allMigrations() []*migrate.Migration {
	return append(accounts.Migrations(), Migrations(accounts.InitialMigration)...)
}

// setupRepository migrates a fresh SQLite file and returns a repository on it
func setupRepository(t *testing.T) (*Repository, *database.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Driver: "sqlite3",
		URL:    "file:" + filepath.Join(t.TempDir(), "catalog.db") + "?_foreign_keys=on&_busy_timeout=5000",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrate.NewApplier(db.DB, db.Dialect).ApplyPending(ctx, allMigrations())
	require.NoError(t, err)
	return NewRepository(db), db
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type fixture struct {
	author   *Author
	language *Language
	genre    *Genre
	book     *Book
}

func seed(t *testing.T, repo *Repository) fixture {
	t.Helper()
	ctx := context.Background()

	author := &Author{FirstName: "Ursula", LastName: "Le Guin", DateOfBirth: date(1929, 10, 21), DateOfDeath: date(2018, 1, 22)}
	require.NoError(t, repo.CreateAuthor(ctx, author))
	lang, err := repo.CreateLanguage(ctx, "English")
	require.NoError(t, err)
	genre, err := repo.CreateGenre(ctx, "Science Fiction")
	require.NoError(t, err)
	fantasy, err := repo.CreateGenre(ctx, "Fantasy")
	require.NoError(t, err)

	book := &Book{Title: "The Dispossessed", AuthorID: &author.ID, Summary: "Anarres and Urras.", ISBN: "9780061054884", LanguageID: &lang.ID}
	require.NoError(t, repo.CreateBook(ctx, book, genre.ID, fantasy.ID))

	return fixture{author: author, language: lang, genre: genre, book: book}
}

func TestRepository_Counts(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)

	f := seed(t, repo)
	require.NoError(t, repo.CreateInstance(ctx, &BookInstance{BookID: &f.book.ID, Imprint: "Harper, 1974", Status: StatusAvailable}))
	require.NoError(t, repo.CreateInstance(ctx, &BookInstance{BookID: &f.book.ID, Imprint: "Harper, 1994"}))

	counts, err = repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Books: 1, Instances: 2, InstancesAvailable: 1, Authors: 1, Genres: 2}, counts)
}

func TestRepository_GetBook(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	f := seed(t, repo)

	due := date(2026, 11, 1)
	inst := &BookInstance{BookID: &f.book.ID, Imprint: "Harper, 1974", DueBack: due, Status: StatusOnLoan}
	require.NoError(t, repo.CreateInstance(ctx, inst))
	assert.NotEqual(t, uuid.Nil, inst.ID)

	book, err := repo.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Dispossessed", book.Title)
	require.NotNil(t, book.Author)
	assert.Equal(t, "Le Guin, Ursula", book.Author.Name())
	require.NotNil(t, book.Language)
	assert.Equal(t, "English", book.Language.Name)
	assert.Equal(t, "Fantasy, Science Fiction", book.GenreNames())

	require.Len(t, book.Instances, 1)
	got := book.Instances[0]
	assert.Equal(t, inst.ID, got.ID)
	assert.Equal(t, StatusOnLoan, got.Status)
	require.NotNil(t, got.DueBack)
	assert.True(t, got.DueBack.Equal(*due))

	_, err = repo.GetBook(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ListBooks_Pagination(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	page, err := repo.ListBooks(ctx, 1, PerPage)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.NumPages())

	for i := 0; i < 12; i++ {
		b := &Book{Title: string(rune('A' + i)), ISBN: "isbn-" + string(rune('a'+i))}
		require.NoError(t, repo.CreateBook(ctx, b))
	}

	page, err = repo.ListBooks(ctx, 1, PerPage)
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, "A", page.Items[0].Title)
	assert.Nil(t, page.Items[0].Author)
	assert.True(t, page.HasNext())
	assert.False(t, page.HasPrevious())

	page, err = repo.ListBooks(ctx, 2, PerPage)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.NumPages())
	assert.False(t, page.HasNext())

	_, err = repo.ListBooks(ctx, 3, PerPage)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.ListBooks(ctx, 0, PerPage)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Authors(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	f := seed(t, repo)

	other := &Author{FirstName: "Iain", LastName: "Banks"}
	require.NoError(t, repo.CreateAuthor(ctx, other))

	page, err := repo.ListAuthors(ctx, 1, PerPage)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Banks", page.Items[0].LastName)
	assert.Nil(t, page.Items[0].DateOfBirth)

	author, books, err := repo.GetAuthor(ctx, f.author.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oct 21, 1929 - Jan 22, 2018", author.Lifespan())
	require.Len(t, books, 1)
	assert.Equal(t, f.book.ID, books[0].ID)

	_, _, err = repo.GetAuthor(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Validation(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	assert.ErrorIs(t, repo.CreateAuthor(ctx, &Author{FirstName: "Only"}), ErrInvalid)
	assert.ErrorIs(t, repo.CreateAuthor(ctx, &Author{
		FirstName: "Back", LastName: "Wards", DateOfBirth: date(2000, 1, 1), DateOfDeath: date(1990, 1, 1),
	}), ErrInvalid)
	_, err := repo.CreateGenre(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, repo.CreateBook(ctx, &Book{Title: "No ISBN"}), ErrInvalid)
	assert.ErrorIs(t, repo.CreateInstance(ctx, &BookInstance{Status: "x"}), ErrInvalid)
}

func TestRepository_UniqueConflicts(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	f := seed(t, repo)

	_, err := repo.CreateGenre(ctx, "Science Fiction")
	assert.ErrorIs(t, err, ErrConflict)

	err = repo.CreateBook(ctx, &Book{Title: "Copy", ISBN: f.book.ISBN})
	assert.ErrorIs(t, err, ErrConflict)

	// A failed genre link rolls back the book insert
	err = repo.CreateBook(ctx, &Book{Title: "Orphan", ISBN: "000"}, 999)
	assert.ErrorIs(t, err, ErrConflict)
	page, err := repo.ListBooks(ctx, 1, PerPage)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestRepository_DeleteLanguage_SetsNull(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	f := seed(t, repo)

	require.NoError(t, repo.DeleteLanguage(ctx, f.language.ID))

	book, err := repo.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Nil(t, book.LanguageID)
	assert.Nil(t, book.Language)

	assert.ErrorIs(t, repo.DeleteLanguage(ctx, f.language.ID), ErrNotFound)
}

func TestRepository_DeleteAuthor_SetsNull(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	f := seed(t, repo)

	require.NoError(t, repo.DeleteAuthor(ctx, f.author.ID))

	book, err := repo.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Nil(t, book.AuthorID)
	assert.Nil(t, book.Author)
}

func TestRepository_DeleteBook(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	f := seed(t, repo)

	inst := &BookInstance{BookID: &f.book.ID, Imprint: "Harper"}
	require.NoError(t, repo.CreateInstance(ctx, inst))

	// Copies restrict deleting their book
	assert.ErrorIs(t, repo.DeleteBook(ctx, f.book.ID), ErrConflict)

	_, err := db.ExecContext(ctx, `DELETE FROM book_instance WHERE id = ?`, inst.ID.String())
	require.NoError(t, err)
	require.NoError(t, repo.DeleteBook(ctx, f.book.ID))

	// Genre links cascade
	var links int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM book_genre`).Scan(&links))
	assert.Equal(t, 0, links)
}
