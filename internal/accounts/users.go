package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/conduit-lang/locallibrary/internal/orm/database"
	"github.com/conduit-lang/locallibrary/internal/web/auth"
)

var (
	// ErrInvalidCredentials is returned for a wrong username or password
	ErrInvalidCredentials = errors.New("please enter a correct username and password")

	// ErrUserExists is returned when the username is taken
	ErrUserExists = errors.New("a user with that username already exists")

	// ErrUserNotFound is returned when no user has the given id or name
	ErrUserNotFound = errors.New("user not found")
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

// dummyHash is compared against when the username is unknown so that both
// failure paths cost one bcrypt comparison
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("unknown-user-password")
	return h
})

// User is a row of auth_user
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
	DateJoined   time.Time
}

// Principal converts the row to the request principal
func (u *User) Principal() *auth.User {
	return &auth.User{ID: u.ID, Username: u.Username, IsStaff: u.IsStaff, IsActive: u.IsActive}
}

// Users reads and writes auth_user
type Users struct {
	db   *database.DB
	hash func(string) (string, error)
}

// NewUsers creates the user repository
func NewUsers(db *database.DB) *Users {
	return &Users{db: db, hash: auth.HashPassword}
}

// Create adds an active user with a hashed password
func (s *Users) Create(ctx context.Context, username, password string, staff bool) (*User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("invalid username %q: use at most 150 letters, digits and @/./+/-/_", username)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	u := &User{Username: username, PasswordHash: hash, IsStaff: staff, IsActive: true, DateJoined: time.Now().UTC()}
	err = s.db.QueryRowContext(ctx, s.db.Rebind(`INSERT INTO auth_user (username, password, is_staff, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?) RETURNING id`), u.Username, u.PasswordHash, u.IsStaff, u.IsActive, u.DateJoined).Scan(&u.ID)
	if err != nil {
		err = database.ConvertError(err)
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

const userColumns = `id, username, password, is_staff, is_active, date_joined`

func (s *Users) get(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+userColumns+` FROM auth_user WHERE `+where), arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsStaff, &u.IsActive, &u.DateJoined)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", database.ConvertError(err))
	}
	return &u, nil
}

// GetByID returns the user with id
func (s *Users) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.get(ctx, "id = ?", id)
}

// GetByUsername returns the user named username
func (s *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.get(ctx, "username = ?", username)
}

// LoadUser implements auth.UserLoader. Unknown ids load as nil.
func (s *Users) LoadUser(ctx context.Context, id int64) (*auth.User, error) {
	u, err := s.GetByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.Principal(), nil
}

// Authenticate checks a username and password. Inactive users cannot log in.
func (s *Users) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		auth.CheckPassword(password, dummyHash())
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) || !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetPassword replaces the password of user id
func (s *Users) SetPassword(ctx context.Context, id int64, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE auth_user SET password = ? WHERE id = ?`), hash, id)
	if err != nil {
		return fmt.Errorf("set password: %w", database.ConvertError(err))
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the number of users
func (s *Users) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auth_user`).Scan(&n)
	return n, database.ConvertError(err)
}
