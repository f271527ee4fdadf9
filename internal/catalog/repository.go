package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/locallibrary/internal/orm/database"
	"github.com/google/uuid"
)

// Repository reads and writes catalog records
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository over db
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) q(query string) string {
	return r.db.Rebind(query)
}

// Counts returns the home page figures in a single round trip
func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, r.q(`SELECT
		(SELECT COUNT(*) FROM book),
		(SELECT COUNT(*) FROM book_instance),
		(SELECT COUNT(*) FROM book_instance WHERE status = ?),
		(SELECT COUNT(*) FROM author),
		(SELECT COUNT(*) FROM genre)`), string(StatusAvailable)).
		Scan(&c.Books, &c.Instances, &c.InstancesAvailable, &c.Authors, &c.Genres)
	return c, convertError("count records", err)
}

// checkPage validates a 1-based page number against total; page 1 of an
// empty list exists
func checkPage(number, perPage, total int) (offset int, err error) {
	if number < 1 || perPage < 1 {
		return 0, fmt.Errorf("page %d: %w", number, ErrNotFound)
	}
	offset = (number - 1) * perPage
	if number > 1 && offset >= total {
		return 0, fmt.Errorf("page %d: %w", number, ErrNotFound)
	}
	return offset, nil
}

const bookColumns = `b.id, b.title, b.author_id, b.summary, b.isbn, b.language_id,
	a.first_name, a.last_name`

// scanBook scans bookColumns; the joined author is attached when present
func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	var (
		b                   Book
		authorID, langID    sql.NullInt64
		firstName, lastName sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Title, &authorID, &b.Summary, &b.ISBN, &langID, &firstName, &lastName); err != nil {
		return nil, err
	}
	b.AuthorID = int64Ptr(authorID)
	b.LanguageID = int64Ptr(langID)
	if authorID.Valid {
		b.Author = &Author{ID: authorID.Int64, FirstName: firstName.String, LastName: lastName.String}
	}
	return &b, nil
}

// ListBooks returns one page of books ordered by title
func (r *Repository) ListBooks(ctx context.Context, number, perPage int) (*Page[Book], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM book`).Scan(&total); err != nil {
		return nil, convertError("count books", err)
	}
	offset, err := checkPage(number, perPage, total)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+bookColumns+`
		FROM book b LEFT JOIN author a ON a.id = b.author_id
		ORDER BY b.title, b.id LIMIT ? OFFSET ?`), perPage, offset)
	if err != nil {
		return nil, convertError("list books", err)
	}
	defer rows.Close()

	page := &Page[Book]{Number: number, PerPage: perPage, Total: total}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, convertError("scan book", err)
		}
		page.Items = append(page.Items, *b)
	}
	return page, convertError("list books", rows.Err())
}

// GetBook returns a book with its author, language, genres and copies
func (r *Repository) GetBook(ctx context.Context, id int64) (*Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, r.q(`SELECT `+bookColumns+`
		FROM book b LEFT JOIN author a ON a.id = b.author_id WHERE b.id = ?`), id))
	if err != nil {
		return nil, convertError(fmt.Sprintf("get book %d", id), err)
	}

	if b.LanguageID != nil {
		lang := &Language{}
		err := r.db.QueryRowContext(ctx, r.q(`SELECT id, name FROM language WHERE id = ?`), *b.LanguageID).Scan(&lang.ID, &lang.Name)
		if err != nil {
			return nil, convertError("get book language", err)
		}
		b.Language = lang
	}

	if b.Genres, err = r.bookGenres(ctx, id); err != nil {
		return nil, err
	}
	if b.Instances, err = r.bookInstances(ctx, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repository) bookGenres(ctx context.Context, bookID int64) ([]Genre, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT g.id, g.name FROM genre g
		JOIN book_genre bg ON bg.genre_id = g.id
		WHERE bg.book_id = ? ORDER BY g.name`), bookID)
	if err != nil {
		return nil, convertError("list book genres", err)
	}
	defer rows.Close()

	var genres []Genre
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, convertError("scan genre", err)
		}
		genres = append(genres, g)
	}
	return genres, convertError("list book genres", rows.Err())
}

func (r *Repository) bookInstances(ctx context.Context, bookID int64) ([]BookInstance, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, book_id, imprint, due_back, status, borrower_id
		FROM book_instance WHERE book_id = ? ORDER BY due_back, id`), bookID)
	if err != nil {
		return nil, convertError("list copies", err)
	}
	defer rows.Close()

	var copies []BookInstance
	for rows.Next() {
		var (
			bi             BookInstance
			book, borrower sql.NullInt64
			dueBack        sql.NullTime
			status         string
		)
		if err := rows.Scan(&bi.ID, &book, &bi.Imprint, &dueBack, &status, &borrower); err != nil {
			return nil, convertError("scan copy", err)
		}
		bi.BookID = int64Ptr(book)
		bi.BorrowerID = int64Ptr(borrower)
		bi.DueBack = timePtr(dueBack)
		bi.Status = LoanStatus(status)
		copies = append(copies, bi)
	}
	return copies, convertError("list copies", rows.Err())
}

const authorColumns = `id, first_name, last_name, date_of_birth, date_of_death`

func scanAuthor(row interface{ Scan(...any) error }) (*Author, error) {
	var (
		a          Author
		born, died sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &born, &died); err != nil {
		return nil, err
	}
	a.DateOfBirth = timePtr(born)
	a.DateOfDeath = timePtr(died)
	return &a, nil
}

// ListAuthors returns one page of authors ordered by last then first name
func (r *Repository) ListAuthors(ctx context.Context, number, perPage int) (*Page[Author], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM author`).Scan(&total); err != nil {
		return nil, convertError("count authors", err)
	}
	offset, err := checkPage(number, perPage, total)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+authorColumns+` FROM author
		ORDER BY last_name, first_name, id LIMIT ? OFFSET ?`), perPage, offset)
	if err != nil {
		return nil, convertError("list authors", err)
	}
	defer rows.Close()

	page := &Page[Author]{Number: number, PerPage: perPage, Total: total}
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, convertError("scan author", err)
		}
		page.Items = append(page.Items, *a)
	}
	return page, convertError("list authors", rows.Err())
}

// GetAuthor returns an author and their books
func (r *Repository) GetAuthor(ctx context.Context, id int64) (*Author, []Book, error) {
	a, err := scanAuthor(r.db.QueryRowContext(ctx, r.q(`SELECT `+authorColumns+` FROM author WHERE id = ?`), id))
	if err != nil {
		return nil, nil, convertError(fmt.Sprintf("get author %d", id), err)
	}

	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+bookColumns+`
		FROM book b LEFT JOIN author a ON a.id = b.author_id
		WHERE b.author_id = ? ORDER BY b.title, b.id`), id)
	if err != nil {
		return nil, nil, convertError("list author books", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, nil, convertError("scan book", err)
		}
		books = append(books, *b)
	}
	return a, books, convertError("list author books", rows.Err())
}

// CreateAuthor inserts a and sets its ID
func (r *Repository) CreateAuthor(ctx context.Context, a *Author) error {
	if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
		return fmt.Errorf("%w: author needs a first and last name", ErrInvalid)
	}
	if a.DateOfBirth != nil && a.DateOfDeath != nil && a.DateOfDeath.Before(*a.DateOfBirth) {
		return fmt.Errorf("%w: author died before being born", ErrInvalid)
	}
	err := r.db.QueryRowContext(ctx, r.q(`INSERT INTO author (first_name, last_name, date_of_birth, date_of_death)
		VALUES (?, ?, ?, ?) RETURNING id`), a.FirstName, a.LastName, nullTime(a.DateOfBirth), nullTime(a.DateOfDeath)).Scan(&a.ID)
	return convertError("create author", err)
}

// CreateGenre inserts a genre
func (r *Repository) CreateGenre(ctx context.Context, name string) (*Genre, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: genre needs a name", ErrInvalid)
	}
	g := &Genre{Name: name}
	err := r.db.QueryRowContext(ctx, r.q(`INSERT INTO genre (name) VALUES (?) RETURNING id`), name).Scan(&g.ID)
	if err != nil {
		return nil, convertError("create genre", err)
	}
	return g, nil
}

// CreateLanguage inserts a language
func (r *Repository) CreateLanguage(ctx context.Context, name string) (*Language, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: language needs a name", ErrInvalid)
	}
	l := &Language{Name: name}
	err := r.db.QueryRowContext(ctx, r.q(`INSERT INTO language (name) VALUES (?) RETURNING id`), name).Scan(&l.ID)
	if err != nil {
		return nil, convertError("create language", err)
	}
	return l, nil
}

// CreateBook inserts b and its genre links in one transaction and sets b.ID
func (r *Repository) CreateBook(ctx context.Context, b *Book, genreIDs ...int64) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: book needs a title", ErrInvalid)
	}
	if n := len(b.ISBN); n == 0 || n > 13 {
		return fmt.Errorf("%w: ISBN must be 1 to 13 characters", ErrInvalid)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, r.q(`INSERT INTO book (title, author_id, summary, isbn, language_id)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
			b.Title, nullInt64(b.AuthorID), b.Summary, b.ISBN, nullInt64(b.LanguageID)).Scan(&b.ID)
		if err != nil {
			return convertError("create book", err)
		}
		for _, gid := range genreIDs {
			if _, err := tx.ExecContext(ctx, r.q(`INSERT INTO book_genre (book_id, genre_id) VALUES (?, ?)`), b.ID, gid); err != nil {
				return convertError("link book genre", err)
			}
		}
		return nil
	})
}

// CreateInstance inserts a copy. A nil ID is generated, an empty status
// defaults to maintenance.
func (r *Repository) CreateInstance(ctx context.Context, bi *BookInstance) error {
	if bi.ID == uuid.Nil {
		bi.ID = uuid.New()
	}
	if bi.Status == "" {
		bi.Status = StatusMaintenance
	}
	if !bi.Status.Valid() {
		return fmt.Errorf("%w: unknown loan status %q", ErrInvalid, bi.Status)
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO book_instance (id, book_id, imprint, due_back, status, borrower_id)
		VALUES (?, ?, ?, ?, ?, ?)`),
		bi.ID.String(), nullInt64(bi.BookID), bi.Imprint, nullTime(bi.DueBack), string(bi.Status), nullInt64(bi.BorrowerID))
	return convertError("create copy", err)
}

// DeleteLanguage removes a language; books in it keep existing with no language
func (r *Repository) DeleteLanguage(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "language", id)
}

// DeleteAuthor removes an author; their books keep existing with no author
func (r *Repository) DeleteAuthor(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "author", id)
}

// DeleteBook removes a book. It fails with ErrConflict while copies exist.
func (r *Repository) DeleteBook(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "book", id)
}

func (r *Repository) deleteByID(ctx context.Context, table string, id int64) error {
	result, err := r.db.ExecContext(ctx, r.q(`DELETE FROM `+r.db.Dialect.Quote(table)+` WHERE id = ?`), id)
	if err != nil {
		return convertError("delete "+table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return convertError("delete "+table, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
