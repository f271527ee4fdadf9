package catalog

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/locallibrary/internal/orm/database"
)

var (
	// ErrNotFound is returned when a catalog record does not exist
	ErrNotFound = errors.New("catalog record not found")

	// ErrConflict is returned when a write violates a unique or foreign key constraint
	ErrConflict = errors.New("catalog record conflicts with existing data")

	// ErrInvalid is returned for records that fail validation before any SQL runs
	ErrInvalid = errors.New("invalid catalog record")
)

// convertError maps database errors onto catalog errors, keeping the cause
func convertError(op string, err error) error {
	if err == nil {
		return nil
	}
	err = database.ConvertError(err)
	switch {
	case database.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case database.IsUniqueViolation(err), database.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
