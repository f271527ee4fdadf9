package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LedgerTable is the table recording applied migrations
const LedgerTable = "schema_migrations"

// AppliedRecord is one row of the ledger
type AppliedRecord struct {
	ID        string
	App       string
	Name      string
	AppliedAt time.Time
}

// Ledger manages migration history in the database
type Ledger struct {
	db      *sql.DB
	dialect Dialect
}

// NewLedger creates a new ledger
func NewLedger(db *sql.DB, dialect Dialect) *Ledger {
	return &Ledger{db: db, dialect: dialect}
}

// Initialize ensures the ledger table exists
func (l *Ledger) Initialize(ctx context.Context) error {
	tsType, err := l.dialect.ColumnType(Timestamp("applied_at"))
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(255) PRIMARY KEY,
	app VARCHAR(100) NOT NULL,
	name VARCHAR(255) NOT NULL,
	applied_at %s NOT NULL
)`, l.dialect.Quote(LedgerTable), tsType)

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

// Applied returns all ledger rows ordered by application time
func (l *Ledger) Applied(ctx context.Context) ([]AppliedRecord, error) {
	query := fmt.Sprintf("SELECT id, app, name, applied_at FROM %s ORDER BY applied_at ASC, id ASC", l.dialect.Quote(LedgerTable))
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []AppliedRecord
	for rows.Next() {
		var r AppliedRecord
		if err := rows.Scan(&r.ID, &r.App, &r.Name, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	return records, nil
}

// AppliedSet returns the applied IDs with their application time
func (l *Ledger) AppliedSet(ctx context.Context) (map[string]time.Time, error) {
	records, err := l.Applied(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]time.Time, len(records))
	for _, r := range records {
		set[r.ID] = r.AppliedAt
	}
	return set, nil
}

// IsApplied checks if a migration has been applied
func (l *Ledger) IsApplied(ctx context.Context, id string) (bool, error) {
	query := l.dialect.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", l.dialect.Quote(LedgerTable)))
	var count int
	if err := l.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return count > 0, nil
}

// Record marks a migration as applied inside tx
func (l *Ledger) Record(ctx context.Context, tx *sql.Tx, m *Migration) error {
	query := l.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (id, app, name, applied_at) VALUES (?, ?, ?, ?)", l.dialect.Quote(LedgerTable)))
	if _, err := tx.ExecContext(ctx, query, m.ID(), m.App, m.Name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// Remove deletes a ledger row inside tx
func (l *Ledger) Remove(ctx context.Context, tx *sql.Tx, id string) error {
	query := l.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", l.dialect.Quote(LedgerTable)))
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to remove migration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotApplied, id)
	}
	return nil
}

// Count returns the number of applied migrations
func (l *Ledger) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", l.dialect.Quote(LedgerTable))
	var count int
	if err := l.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get migration count: %w", err)
	}
	return count, nil
}
