package accounts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/conduit-lang/locallibrary/internal/orm/database"
	"github.com/conduit-lang/locallibrary/internal/orm/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fastHash keeps bcrypt cheap in tests
func fastHash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(h), err
}

func setupUsers(t *testing.T) *Users {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Driver: "sqlite3",
		URL:    "file:" + filepath.Join(t.TempDir(), "accounts.db") + "?_foreign_keys=on&_busy_timeout=5000",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrate.NewApplier(db.DB, db.Dialect).ApplyPending(ctx, Migrations())
	require.NoError(t, err)

	users := NewUsers(db)
	users.hash = fastHash
	return users
}

func TestUsers_CreateAndAuthenticate(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	u, err := users.Create(ctx, "librarian", "correct horse", true)
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, err := users.Authenticate(ctx, "librarian", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.IsStaff)
	assert.False(t, got.DateJoined.IsZero())

	_, err = users.Authenticate(ctx, "librarian", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = users.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUsers_CreateValidation(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	_, err := users.Create(ctx, "has space", "long enough", false)
	assert.ErrorContains(t, err, "invalid username")

	_, err = users.Create(ctx, "reader", "short", false)
	assert.Error(t, err)

	_, err = users.Create(ctx, "reader", "long enough", false)
	require.NoError(t, err)
	_, err = users.Create(ctx, "reader", "long enough", false)
	assert.ErrorIs(t, err, ErrUserExists)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUsers_InactiveCannotAuthenticate(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	u, err := users.Create(ctx, "former", "long enough", false)
	require.NoError(t, err)
	_, err = users.db.ExecContext(ctx, `UPDATE auth_user SET is_active = FALSE WHERE id = ?`, u.ID)
	require.NoError(t, err)

	_, err = users.Authenticate(ctx, "former", "long enough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	p, err := users.LoadUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.IsActive)
}

func TestUsers_LoadUser(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	u, err := users.Create(ctx, "member", "long enough", false)
	require.NoError(t, err)

	p, err := users.LoadUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "member", p.Username)
	assert.False(t, p.IsStaff)

	p, err = users.LoadUser(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUsers_SetPassword(t *testing.T) {
	users := setupUsers(t)
	ctx := context.Background()

	u, err := users.Create(ctx, "member", "first password", false)
	require.NoError(t, err)

	require.NoError(t, users.SetPassword(ctx, u.ID, "second password"))
	_, err = users.Authenticate(ctx, "member", "first password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate(ctx, "member", "second password")
	assert.NoError(t, err)

	assert.ErrorIs(t, users.SetPassword(ctx, 999, "third password"), ErrUserNotFound)
	assert.Error(t, users.SetPassword(ctx, u.ID, "short"))
}

func TestMigrations(t *testing.T) {
	records := Migrations()
	require.Len(t, records, 1)
	assert.Equal(t, InitialMigration, records[0].ID())
	assert.Empty(t, records[0].Dependencies)
}
