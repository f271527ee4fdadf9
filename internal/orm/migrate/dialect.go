package migrate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect renders SQL for a specific database engine
type Dialect interface {
	// Name returns the driver name registered with database/sql
	Name() string

	// Rebind rewrites '?' placeholders into the engine's native form
	Rebind(query string) string

	// Quote quotes an identifier
	Quote(ident string) string

	// ColumnType maps a column type to the engine's DDL type
	ColumnType(c Column) (string, error)

	// TransactionalDDL reports whether DDL statements roll back with the transaction
	TransactionalDDL() bool
}

// Postgres is the PostgreSQL dialect used with the pgx stdlib driver
type Postgres struct{}

// SQLite is the SQLite dialect used with the mattn/go-sqlite3 driver
type SQLite struct{}

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func (Postgres) Name() string { return "pgx" }

// Rebind converts '?' placeholders to $1, $2, ...
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inString = !inString
		}
		if c == '?' && !inString {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (Postgres) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (Postgres) TransactionalDDL() bool { return true }

// ColumnType maps a column type to PostgreSQL
func (Postgres) ColumnType(c Column) (string, error) {
	switch c.Type {
	case TypeAutoID:
		return "BIGSERIAL", nil
	case TypeForeignKey, TypeBigInt:
		return "BIGINT", nil
	case TypeInt:
		return "INTEGER", nil
	case TypeString:
		if c.Length <= 0 {
			return "VARCHAR(255)", nil
		}
		return fmt.Sprintf("VARCHAR(%d)", c.Length), nil
	case TypeText:
		return "TEXT", nil
	case TypeBool:
		return "BOOLEAN", nil
	case TypeDate:
		return "DATE", nil
	case TypeTimestamp:
		return "TIMESTAMPTZ", nil
	case TypeUUID:
		return "UUID", nil
	default:
		return "", fmt.Errorf("unsupported column type %q for column %s", c.Type, c.Name)
	}
}

func (SQLite) Name() string { return "sqlite3" }

// Rebind leaves '?' placeholders untouched
func (SQLite) Rebind(query string) string { return query }

// Quote uses double quotes, which SQLite accepts for identifiers
func (SQLite) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (SQLite) TransactionalDDL() bool { return true }

// ColumnType maps a column type to SQLite storage classes
func (SQLite) ColumnType(c Column) (string, error) {
	switch c.Type {
	case TypeAutoID, TypeForeignKey, TypeInt, TypeBigInt:
		return "INTEGER", nil
	case TypeString:
		if c.Length <= 0 {
			return "VARCHAR(255)", nil
		}
		return fmt.Sprintf("VARCHAR(%d)", c.Length), nil
	case TypeText:
		return "TEXT", nil
	case TypeBool:
		return "BOOLEAN", nil
	case TypeDate:
		return "DATE", nil
	case TypeTimestamp:
		return "TIMESTAMP", nil
	case TypeUUID:
		return "VARCHAR(36)", nil
	default:
		return "", fmt.Errorf("unsupported column type %q for column %s", c.Type, c.Name)
	}
}

// columnDefinition renders "name TYPE [constraints]" for a column
func columnDefinition(d Dialect, c Column) (string, error) {
	colType, err := d.ColumnType(c)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(d.Quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(colType)

	if c.Type == TypeAutoID {
		b.WriteString(" PRIMARY KEY")
		if _, ok := d.(SQLite); ok {
			b.WriteString(" AUTOINCREMENT")
		}
		return b.String(), nil
	}

	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	} else if c.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}

	if c.Unique && !c.PrimaryKey {
		b.WriteString(" UNIQUE")
	}

	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}

	if fk := c.References; fk != nil {
		b.WriteString(" REFERENCES ")
		b.WriteString(d.Quote(fk.Table))
		b.WriteString(" (")
		b.WriteString(d.Quote(fk.targetColumn()))
		b.WriteString(")")
		b.WriteString(" ON DELETE ")
		b.WriteString(fk.OnDelete.SQL())
	}

	return b.String(), nil
}
