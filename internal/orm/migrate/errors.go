package migrate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDependencyCycle is returned when migration dependencies form a cycle
	ErrDependencyCycle = errors.New("migration dependency cycle")

	// ErrUnknownDependency is returned when a migration depends on an undeclared record
	ErrUnknownDependency = errors.New("unknown migration dependency")

	// ErrDuplicateMigration is returned when two records share an ID
	ErrDuplicateMigration = errors.New("duplicate migration")

	// ErrInconsistentHistory is returned when an applied record has an unapplied dependency
	ErrInconsistentHistory = errors.New("inconsistent migration history")

	// ErrIrreversible is returned when an operation has no backward form
	ErrIrreversible = errors.New("irreversible operation")

	// ErrInvalidOperation is returned when an operation conflicts with the schema state
	ErrInvalidOperation = errors.New("invalid schema operation")

	// ErrNotApplied is returned when rolling back a record that is not in the ledger
	ErrNotApplied = errors.New("migration not applied")
)

// CycleError reports the records that form a dependency cycle
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrDependencyCycle.Error()
	}
	return fmt.Sprintf("%s: %s -> %s", ErrDependencyCycle, strings.Join(e.Cycle, " -> "), e.Cycle[0])
}

func (e *CycleError) Unwrap() error { return ErrDependencyCycle }

// OperationError reports which operation of which migration failed
type OperationError struct {
	Migration string
	Index     int
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("migration %s: operation %d (%s): %v", e.Migration, e.Index+1, e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
