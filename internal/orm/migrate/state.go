package migrate

import (
	"fmt"
	"sort"
)

// State is the in-memory projection of the schema produced by replaying
// operations. It is used to validate a migration pass before touching the store.
type State struct {
	tables map[string]*TableState
}

// TableState is a table in the projected schema
type TableState struct {
	Name    string
	Columns []Column
	Indexes []string
}

// NewState returns an empty schema state
func NewState() *State {
	return &State{tables: make(map[string]*TableState)}
}

// Table returns a table by name
func (s *State) Table(name string) (*TableState, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns the sorted table names
func (s *State) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns a column of the table by name
func (t *TableState) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s *State) addTable(name string, columns []Column) error {
	if _, exists := s.tables[name]; exists {
		return fmt.Errorf("%w: table %s already exists", ErrInvalidOperation, name)
	}

	t := &TableState{Name: name}
	primaryKeys := 0
	for _, c := range columns {
		if _, dup := t.Column(c.Name); dup {
			return fmt.Errorf("%w: duplicate column %s.%s", ErrInvalidOperation, name, c.Name)
		}
		if c.PrimaryKey || c.Type == TypeAutoID {
			primaryKeys++
		}
		if err := s.checkReference(name, c); err != nil {
			return err
		}
		t.Columns = append(t.Columns, c)
	}
	if primaryKeys > 1 {
		return fmt.Errorf("%w: table %s declares %d primary keys", ErrInvalidOperation, name, primaryKeys)
	}

	s.tables[name] = t
	return nil
}

func (s *State) dropTable(name string) error {
	if _, exists := s.tables[name]; !exists {
		return fmt.Errorf("%w: table %s does not exist", ErrInvalidOperation, name)
	}
	for _, other := range s.tables {
		if other.Name == name {
			continue
		}
		for _, c := range other.Columns {
			if c.References != nil && c.References.Table == name {
				return fmt.Errorf("%w: table %s is referenced by %s.%s", ErrInvalidOperation, name, other.Name, c.Name)
			}
		}
	}
	delete(s.tables, name)
	return nil
}

func (s *State) addColumn(table string, c Column) error {
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %s does not exist", ErrInvalidOperation, table)
	}
	if _, dup := t.Column(c.Name); dup {
		return fmt.Errorf("%w: column %s.%s already exists", ErrInvalidOperation, table, c.Name)
	}
	if c.PrimaryKey || c.Type == TypeAutoID {
		return fmt.Errorf("%w: cannot add primary key column %s.%s", ErrInvalidOperation, table, c.Name)
	}
	if !c.Nullable && c.Default == "" {
		return fmt.Errorf("%w: non-nullable column %s.%s needs a default", ErrInvalidOperation, table, c.Name)
	}
	if err := s.checkReference(table, c); err != nil {
		return err
	}
	t.Columns = append(t.Columns, c)
	return nil
}

func (s *State) dropColumn(table, column string) error {
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %s does not exist", ErrInvalidOperation, table)
	}
	for i, c := range t.Columns {
		if c.Name == column {
			if c.PrimaryKey || c.Type == TypeAutoID {
				return fmt.Errorf("%w: cannot drop primary key %s.%s", ErrInvalidOperation, table, column)
			}
			t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: column %s.%s does not exist", ErrInvalidOperation, table, column)
}

func (s *State) addIndex(name, table string, columns []string) error {
	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("%w: table %s does not exist", ErrInvalidOperation, table)
	}
	for _, other := range s.tables {
		for _, idx := range other.Indexes {
			if idx == name {
				return fmt.Errorf("%w: index %s already exists", ErrInvalidOperation, name)
			}
		}
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: index %s has no columns", ErrInvalidOperation, name)
	}
	for _, col := range columns {
		if _, ok := t.Column(col); !ok {
			return fmt.Errorf("%w: index %s references unknown column %s.%s", ErrInvalidOperation, name, table, col)
		}
	}
	t.Indexes = append(t.Indexes, name)
	return nil
}

// checkReference validates the foreign key of c, declared on table owner
func (s *State) checkReference(owner string, c Column) error {
	fk := c.References
	if fk == nil {
		if c.Type == TypeForeignKey {
			return fmt.Errorf("%w: foreign key column %s.%s has no target", ErrInvalidOperation, owner, c.Name)
		}
		return nil
	}
	if fk.OnDelete == CascadeSetNull && !c.Nullable {
		return fmt.Errorf("%w: %s.%s uses SET NULL but is not nullable", ErrInvalidOperation, owner, c.Name)
	}
	if fk.Table == owner {
		return nil
	}
	target, ok := s.tables[fk.Table]
	if !ok {
		return fmt.Errorf("%w: %s.%s references unknown table %s", ErrInvalidOperation, owner, c.Name, fk.Table)
	}
	if _, ok := target.Column(fk.targetColumn()); !ok {
		return fmt.Errorf("%w: %s.%s references unknown column %s.%s", ErrInvalidOperation, owner, c.Name, fk.Table, fk.targetColumn())
	}
	return nil
}
