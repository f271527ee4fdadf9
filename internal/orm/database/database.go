// Package database opens the relational store and maps driver errors onto
// the domain errors repositories return.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/conduit-lang/locallibrary/internal/orm/migrate"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Config holds connection settings
type Config struct {
	// Driver is a database/sql driver name: "pgx" or "sqlite3"
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is a connection pool together with the dialect its SQL is written in
type DB struct {
	*sql.DB
	Dialect migrate.Dialect
}

// Open connects and pings the database
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := migrate.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.URL
	_, sqlite := dialect.(migrate.SQLite)
	if sqlite {
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlite {
		var enabled int
		if err := db.QueryRowContext(pingCtx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to check foreign key enforcement: %w", err)
		}
		if enabled != 1 {
			db.Close()
			return nil, fmt.Errorf("sqlite foreign key enforcement is off")
		}
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// sqliteDSN forces foreign key enforcement on every pooled connection.
// ON DELETE rules depend on it, so a DSN that turns it off is overridden.
func sqliteDSN(dsn string) (string, error) {
	base, rawQuery, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid sqlite DSN query: %w", err)
	}
	params.Del("_fk")
	params.Set("_foreign_keys", "on")
	return base + "?" + params.Encode(), nil
}

// Rebind rewrites '?' placeholders for the dialect
func (db *DB) Rebind(query string) string {
	return db.Dialect.Rebind(query)
}

// WithTx runs fn in a transaction, committing on success and rolling back on
// error or panic
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
