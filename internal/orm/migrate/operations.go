package migrate

import (
	"fmt"
	"strings"
)

// Operation is one schema change inside a migration record
type Operation interface {
	// Describe returns a short human-readable summary
	Describe() string

	// Mutate applies the operation to the projected schema, validating references
	Mutate(s *State) error

	// Forward returns the statements that apply the operation
	Forward(d Dialect) ([]string, error)

	// Backward returns the statements that revert the operation
	Backward(d Dialect) ([]string, error)
}

// CreateTable creates a table with the given columns
type CreateTable struct {
	Name    string
	Columns []Column
}

func (op CreateTable) Describe() string { return "Create table " + op.Name }

func (op CreateTable) Mutate(s *State) error { return s.addTable(op.Name, op.Columns) }

func (op CreateTable) Forward(d Dialect) ([]string, error) {
	defs := make([]string, 0, len(op.Columns))
	for _, c := range op.Columns {
		def, err := columnDefinition(d, c)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", d.Quote(op.Name), strings.Join(defs, ",\n\t"))
	return []string{stmt}, nil
}

func (op CreateTable) Backward(d Dialect) ([]string, error) {
	return []string{"DROP TABLE " + d.Quote(op.Name)}, nil
}

// DropTable removes a table
type DropTable struct {
	Name string
}

func (op DropTable) Describe() string { return "Drop table " + op.Name }

func (op DropTable) Mutate(s *State) error { return s.dropTable(op.Name) }

func (op DropTable) Forward(d Dialect) ([]string, error) {
	return []string{"DROP TABLE " + d.Quote(op.Name)}, nil
}

func (op DropTable) Backward(Dialect) ([]string, error) {
	return nil, fmt.Errorf("%w: drop table %s", ErrIrreversible, op.Name)
}

// AddColumn adds a column to an existing table
type AddColumn struct {
	Table  string
	Column Column
}

func (op AddColumn) Describe() string {
	return fmt.Sprintf("Add column %s to %s", op.Column.Name, op.Table)
}

func (op AddColumn) Mutate(s *State) error { return s.addColumn(op.Table, op.Column) }

func (op AddColumn) Forward(d Dialect) ([]string, error) {
	// SQLite's ALTER TABLE ADD COLUMN rejects UNIQUE and PRIMARY KEY columns
	if _, ok := d.(SQLite); ok && (op.Column.Unique || op.Column.PrimaryKey) {
		return nil, fmt.Errorf("%w: sqlite cannot add unique or primary key column %s.%s", ErrInvalidOperation, op.Table, op.Column.Name)
	}
	def, err := columnDefinition(d, op.Column)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(op.Table), def)}, nil
}

func (op AddColumn) Backward(d Dialect) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(op.Table), d.Quote(op.Column.Name))}, nil
}

// DropColumn removes a column from a table
type DropColumn struct {
	Table  string
	Column string
}

func (op DropColumn) Describe() string {
	return fmt.Sprintf("Drop column %s from %s", op.Column, op.Table)
}

func (op DropColumn) Mutate(s *State) error { return s.dropColumn(op.Table, op.Column) }

func (op DropColumn) Forward(d Dialect) ([]string, error) {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(op.Table), d.Quote(op.Column))}, nil
}

func (op DropColumn) Backward(Dialect) ([]string, error) {
	return nil, fmt.Errorf("%w: drop column %s.%s", ErrIrreversible, op.Table, op.Column)
}

// CreateIndex creates an index over columns of a table
type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

func (op CreateIndex) Describe() string {
	return fmt.Sprintf("Create index %s on %s", op.Name, op.Table)
}

func (op CreateIndex) Mutate(s *State) error { return s.addIndex(op.Name, op.Table, op.Columns) }

func (op CreateIndex) Forward(d Dialect) ([]string, error) {
	cols := make([]string, len(op.Columns))
	for i, c := range op.Columns {
		cols[i] = d.Quote(c)
	}
	unique := ""
	if op.Unique {
		unique = "UNIQUE "
	}
	return []string{fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, d.Quote(op.Name), d.Quote(op.Table), strings.Join(cols, ", "))}, nil
}

func (op CreateIndex) Backward(d Dialect) ([]string, error) {
	return []string{"DROP INDEX " + d.Quote(op.Name)}, nil
}

// RunSQL executes raw statements. It does not change the projected schema.
type RunSQL struct {
	SQL        string
	ReverseSQL string
}

func (op RunSQL) Describe() string { return "Raw SQL operation" }

func (op RunSQL) Mutate(*State) error { return nil }

func (op RunSQL) Forward(Dialect) ([]string, error) {
	if strings.TrimSpace(op.SQL) == "" {
		return nil, fmt.Errorf("%w: empty SQL", ErrInvalidOperation)
	}
	return []string{op.SQL}, nil
}

func (op RunSQL) Backward(Dialect) ([]string, error) {
	if strings.TrimSpace(op.ReverseSQL) == "" {
		return nil, fmt.Errorf("%w: raw SQL without reverse", ErrIrreversible)
	}
	return []string{op.ReverseSQL}, nil
}
