// Package migrate provides dependency-ordered schema migrations for the
// relational store, tracked in a persistent ledger.
package migrate

import (
	"fmt"
	"strings"
	"time"
)

// Migration is a single schema-change record. Its operations are applied in
// declared order, after every migration named in Dependencies.
type Migration struct {
	App          string      // Owning application, e.g. "catalog"
	Name         string      // Record name, e.g. "0005_book_language"
	Dependencies []string    // IDs of migrations that must be applied first
	Operations   []Operation // Schema operations, applied in order

	Applied   bool      // Set by Status when the ledger holds this record
	AppliedAt time.Time // When the record was applied
}

// ID returns the stable identifier "<app>.<name>"
func (m *Migration) ID() string {
	return m.App + "." + m.Name
}

// New builds a migration record
func New(app, name string, deps []string, ops ...Operation) *Migration {
	return &Migration{
		App:          app,
		Name:         name,
		Dependencies: deps,
		Operations:   ops,
	}
}

// ParseID splits "<app>.<name>" into its parts
func ParseID(id string) (app, name string, err error) {
	app, name, ok := strings.Cut(id, ".")
	if !ok || app == "" || name == "" {
		return "", "", fmt.Errorf("invalid migration id %q: expected <app>.<name>", id)
	}
	return app, name, nil
}

// ColumnType is the portable type of a column
type ColumnType string

const (
	TypeAutoID     ColumnType = "auto_id"
	TypeForeignKey ColumnType = "foreign_key"
	TypeInt        ColumnType = "int"
	TypeBigInt     ColumnType = "bigint"
	TypeString     ColumnType = "string"
	TypeText       ColumnType = "text"
	TypeBool       ColumnType = "bool"
	TypeDate       ColumnType = "date"
	TypeTimestamp  ColumnType = "timestamp"
	TypeUUID       ColumnType = "uuid"
)

// Column describes a table column
type Column struct {
	Name       string
	Type       ColumnType
	Length     int    // For TypeString
	Nullable   bool
	Unique     bool
	PrimaryKey bool
	Default    string // Raw SQL default expression
	References *ForeignKey
}

// ForeignKey describes the target of a foreign key column
type ForeignKey struct {
	Table    string
	Column   string // Defaults to "id"
	OnDelete CascadeAction
}

func (fk *ForeignKey) targetColumn() string {
	if fk.Column == "" {
		return "id"
	}
	return fk.Column
}

// CascadeAction is the referential action taken when a referenced row is deleted
type CascadeAction int

const (
	CascadeRestrict CascadeAction = iota
	CascadeCascade
	CascadeSetNull
	CascadeNoAction
)

// String returns the string representation of the cascade action
func (c CascadeAction) String() string {
	switch c {
	case CascadeRestrict:
		return "restrict"
	case CascadeCascade:
		return "cascade"
	case CascadeSetNull:
		return "set_null"
	case CascadeNoAction:
		return "no_action"
	default:
		return "unknown"
	}
}

// SQL returns the SQL keyword form of the action
func (c CascadeAction) SQL() string {
	switch c {
	case CascadeCascade:
		return "CASCADE"
	case CascadeSetNull:
		return "SET NULL"
	case CascadeNoAction:
		return "NO ACTION"
	default:
		return "RESTRICT"
	}
}

// ParseCascadeAction converts a string to a CascadeAction
func ParseCascadeAction(s string) (CascadeAction, error) {
	switch s {
	case "restrict":
		return CascadeRestrict, nil
	case "cascade":
		return CascadeCascade, nil
	case "set_null":
		return CascadeSetNull, nil
	case "no_action":
		return CascadeNoAction, nil
	default:
		return 0, fmt.Errorf("unknown cascade action: %s", s)
	}
}

// Column helpers used by migration declarations

// AutoID is a surrogate integer primary key named "id"
func AutoID() Column {
	return Column{Name: "id", Type: TypeAutoID, PrimaryKey: true}
}

// String is a VARCHAR column
func String(name string, length int) Column {
	return Column{Name: name, Type: TypeString, Length: length}
}

// Text is an unbounded text column
func Text(name string) Column {
	return Column{Name: name, Type: TypeText}
}

// Date is a calendar date column
func Date(name string) Column {
	return Column{Name: name, Type: TypeDate}
}

// Timestamp is a date-time column
func Timestamp(name string) Column {
	return Column{Name: name, Type: TypeTimestamp}
}

// Bool is a boolean column
func Bool(name string) Column {
	return Column{Name: name, Type: TypeBool}
}

// UUID is a UUID column
func UUID(name string) Column {
	return Column{Name: name, Type: TypeUUID}
}

// ForeignKeyTo is a column referencing the id of table
func ForeignKeyTo(name, table string, onDelete CascadeAction) Column {
	return Column{
		Name:       name,
		Type:       TypeForeignKey,
		References: &ForeignKey{Table: table, OnDelete: onDelete},
	}
}

// Null returns a nullable copy of the column
func (c Column) Null() Column {
	c.Nullable = true
	return c
}

// WithUnique returns a copy of the column with a unique constraint
func (c Column) WithUnique() Column {
	c.Unique = true
	return c
}

// WithDefault returns a copy of the column with a raw SQL default
func (c Column) WithDefault(expr string) Column {
	c.Default = expr
	return c
}

// AsPrimaryKey returns a copy of the column marked as primary key
func (c Column) AsPrimaryKey() Column {
	c.PrimaryKey = true
	return c
}
