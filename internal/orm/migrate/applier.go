package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Applier brings a database up to date with a declared set of migrations.
// Every pass runs under an exclusive lock so that two deploying processes
// never apply the same record twice.
type Applier struct {
	db      *sql.DB
	dialect Dialect
	ledger  *Ledger
	locker  Locker
	lockKey string
	logger  *zap.Logger
}

// Option configures an Applier
type Option func(*Applier)

// WithLocker overrides the default lock for the dialect
func WithLocker(l Locker) Option {
	return func(a *Applier) { a.locker = l }
}

// WithLockKey sets the key of the migration lock
func WithLockKey(key string) Option {
	return func(a *Applier) { a.lockKey = key }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// NewApplier creates an applier. PostgreSQL defaults to an advisory lock,
// other engines to a coordination-row lock.
func NewApplier(db *sql.DB, dialect Dialect, opts ...Option) *Applier {
	a := &Applier{
		db:      db,
		dialect: dialect,
		ledger:  NewLedger(db, dialect),
		lockKey: DefaultLockKey,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.locker == nil {
		if _, ok := dialect.(Postgres); ok {
			a.locker = NewAdvisoryLocker(db)
		} else {
			a.locker = NewTableLocker(db, dialect, 0)
		}
	}
	return a
}

// Ledger returns the ledger used by the applier
func (a *Applier) Ledger() *Ledger {
	return a.ledger
}

// Result summarizes a pass
type Result struct {
	Applied    []string // IDs applied by this pass, in order
	RolledBack []string // IDs reverted by this pass, in order
	Skipped    int      // Records that were already applied
}

// ApplyPending applies every record not yet in the ledger, in dependency
// order. A dependency cycle fails before the lock is taken. The first failing
// record stops the pass; it is rolled back and not recorded.
func (a *Applier) ApplyPending(ctx context.Context, records []*Migration) (*Result, error) {
	plan, err := Plan(records)
	if err != nil {
		return nil, err
	}

	release, err := a.locker.Acquire(ctx, a.lockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer release()

	if err := a.ledger.Initialize(ctx); err != nil {
		return nil, err
	}

	applied, err := a.ledger.AppliedSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	if err := checkConsistency(plan, applied); err != nil {
		return nil, err
	}

	pending, err := a.validate(plan, applied)
	if err != nil {
		return nil, err
	}

	result := &Result{Skipped: len(plan) - len(pending)}
	if len(pending) == 0 {
		a.logger.Info("no pending migrations", zap.Int("applied", result.Skipped))
		return result, nil
	}

	a.logger.Info("applying migrations", zap.Int("pending", len(pending)))
	if !a.dialect.TransactionalDDL() {
		a.logger.Warn("dialect does not roll back DDL; a failing record may be partially applied",
			zap.String("dialect", a.dialect.Name()))
	}
	for _, m := range pending {
		if err := a.applyMigration(ctx, m); err != nil {
			a.logger.Error("migration failed", zap.String("id", m.ID()), zap.Error(err))
			return result, fmt.Errorf("migration %s failed: %w", m.ID(), err)
		}
		result.Applied = append(result.Applied, m.ID())
	}

	a.logger.Info("migrations applied", zap.Int("count", len(result.Applied)))
	return result, nil
}

// validate replays every planned operation into a fresh schema state and
// renders the forward SQL of pending records, so that reference errors
// surface before the store is touched. It returns the pending records.
func (a *Applier) validate(plan []*Migration, applied map[string]time.Time) ([]*Migration, error) {
	state := NewState()
	var pending []*Migration

	for _, m := range plan {
		_, isApplied := applied[m.ID()]
		for i, op := range m.Operations {
			if err := op.Mutate(state); err != nil {
				return nil, &OperationError{Migration: m.ID(), Index: i, Operation: op.Describe(), Err: err}
			}
			if isApplied {
				continue
			}
			if _, err := op.Forward(a.dialect); err != nil {
				return nil, &OperationError{Migration: m.ID(), Index: i, Operation: op.Describe(), Err: err}
			}
		}
		if !isApplied {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// applyMigration applies a single record and its ledger row in one transaction
func (a *Applier) applyMigration(ctx context.Context, m *Migration) error {
	start := time.Now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			a.logger.Warn("failed to rollback transaction", zap.String("id", m.ID()), zap.Error(err))
		}
	}()

	for i, op := range m.Operations {
		stmts, err := op.Forward(a.dialect)
		if err != nil {
			return &OperationError{Migration: m.ID(), Index: i, Operation: op.Describe(), Err: err}
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return &OperationError{Migration: m.ID(), Index: i, Operation: op.Describe(), Err: err}
			}
		}
	}

	if err := a.ledger.Record(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.logger.Info("applied migration",
		zap.String("id", m.ID()),
		zap.Int("operations", len(m.Operations)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Rollback reverts the applied record id together with every applied record
// that depends on it, most dependent first. All backward SQL is rendered
// before anything runs, so an irreversible operation aborts the whole pass.
func (a *Applier) Rollback(ctx context.Context, records []*Migration, id string) (*Result, error) {
	g, err := newGraph(records)
	if err != nil {
		return nil, err
	}
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s is not declared", ErrUnknownDependency, id)
	}
	plan, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}

	release, err := a.locker.Acquire(ctx, a.lockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer release()

	if err := a.ledger.Initialize(ctx); err != nil {
		return nil, err
	}

	applied, err := a.ledger.AppliedSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	if _, ok := applied[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotApplied, id)
	}

	affected := g.dependents(id)
	var targets []*Migration
	for i := len(plan) - 1; i >= 0; i-- {
		m := plan[i]
		if _, isApplied := applied[m.ID()]; isApplied && affected[m.ID()] {
			targets = append(targets, m)
		}
	}

	backward := make(map[string][][]string, len(targets))
	for _, m := range targets {
		steps := make([][]string, len(m.Operations))
		for i := len(m.Operations) - 1; i >= 0; i-- {
			op := m.Operations[i]
			stmts, err := op.Backward(a.dialect)
			if err != nil {
				return nil, &OperationError{Migration: m.ID(), Index: i, Operation: op.Describe(), Err: err}
			}
			steps[i] = stmts
		}
		backward[m.ID()] = steps
	}

	result := &Result{}
	for _, m := range targets {
		if err := a.rollbackMigration(ctx, m, backward[m.ID()]); err != nil {
			a.logger.Error("rollback failed", zap.String("id", m.ID()), zap.Error(err))
			return result, fmt.Errorf("rollback of %s failed: %w", m.ID(), err)
		}
		result.RolledBack = append(result.RolledBack, m.ID())
	}

	return result, nil
}

// rollbackMigration runs the backward steps of m in reverse operation order
func (a *Applier) rollbackMigration(ctx context.Context, m *Migration, steps [][]string) error {
	start := time.Now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			a.logger.Warn("failed to rollback transaction", zap.String("id", m.ID()), zap.Error(err))
		}
	}()

	for i := len(steps) - 1; i >= 0; i-- {
		for _, stmt := range steps[i] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return &OperationError{Migration: m.ID(), Index: i, Operation: m.Operations[i].Describe(), Err: err}
			}
		}
	}

	if err := a.ledger.Remove(ctx, tx, m.ID()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	a.logger.Info("rolled back migration", zap.String("id", m.ID()), zap.Duration("took", time.Since(start)))
	return nil
}

// Status reports which records are applied and which are pending. The
// returned migrations are copies; the declared records are not modified.
func (a *Applier) Status(ctx context.Context, records []*Migration) (*MigrationStatus, error) {
	plan, err := Plan(records)
	if err != nil {
		return nil, err
	}

	if err := a.ledger.Initialize(ctx); err != nil {
		return nil, err
	}

	applied, err := a.ledger.AppliedSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	status := &MigrationStatus{Total: len(plan)}
	declared := make(map[string]bool, len(plan))
	for _, m := range plan {
		declared[m.ID()] = true
		c := *m
		if at, ok := applied[m.ID()]; ok {
			c.Applied = true
			c.AppliedAt = at
			status.Applied = append(status.Applied, &c)
		} else {
			status.Pending = append(status.Pending, &c)
		}
	}
	for id := range applied {
		if !declared[id] {
			status.Unknown = append(status.Unknown, id)
		}
	}

	return status, nil
}

// MigrationStatus represents the current state of migrations
type MigrationStatus struct {
	Total   int
	Applied []*Migration
	Pending []*Migration
	Unknown []string // Ledger rows with no declared record
}

// Summary returns a human-readable summary
func (s *MigrationStatus) Summary() string {
	return fmt.Sprintf("Total: %d migrations (%d applied, %d pending)",
		s.Total,
		len(s.Applied),
		len(s.Pending))
}

// checkConsistency rejects ledgers where a record is applied but one of its
// dependencies is not
func checkConsistency(plan []*Migration, applied map[string]time.Time) error {
	for _, m := range plan {
		if _, ok := applied[m.ID()]; !ok {
			continue
		}
		for _, dep := range m.Dependencies {
			if _, ok := applied[dep]; !ok {
				return fmt.Errorf("%w: %s is applied before its dependency %s", ErrInconsistentHistory, m.ID(), dep)
			}
		}
	}
	return nil
}
