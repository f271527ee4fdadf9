package migrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ms []*Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID()
	}
	return out
}

func TestPlan_DependenciesFirst(t *testing.T) {
	a := New("app", "a", nil)
	b := New("app", "b", []string{"app.a"})

	tests := []struct {
		name  string
		input []*Migration
	}{
		{"declared in order", []*Migration{a, b}},
		{"declared reversed", []*Migration{b, a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan(tt.input)
			require.NoError(t, err)
			assert.Equal(t, []string{"app.a", "app.b"}, ids(plan))
		})
	}
}

func TestPlan_TiesFollowDeclarationOrder(t *testing.T) {
	records := []*Migration{
		New("catalog", "0002_instance", []string{"catalog.0001_initial"}),
		New("accounts", "0001_initial", nil),
		New("catalog", "0001_initial", nil),
		New("catalog", "0003_borrower", []string{"catalog.0002_instance", "accounts.0001_initial"}),
	}

	plan, err := Plan(records)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"accounts.0001_initial",
		"catalog.0001_initial",
		"catalog.0002_instance",
		"catalog.0003_borrower",
	}, ids(plan))
}

func TestPlan_Cycle(t *testing.T) {
	records := []*Migration{
		New("app", "a", []string{"app.b"}),
		New("app", "b", []string{"app.a"}),
		New("app", "c", nil),
	}

	_, err := Plan(records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyCycle))

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []string{"app.a", "app.b"}, cycleErr.Cycle)
	assert.Contains(t, err.Error(), "app.a")
}

func TestPlan_SelfDependency(t *testing.T) {
	_, err := Plan([]*Migration{New("app", "a", []string{"app.a"})})

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"app.a"}, cycleErr.Cycle)
}

func TestPlan_UnknownDependency(t *testing.T) {
	_, err := Plan([]*Migration{New("app", "a", []string{"app.missing"})})
	assert.ErrorIs(t, err, ErrUnknownDependency)
}

func TestPlan_DuplicateID(t *testing.T) {
	_, err := Plan([]*Migration{New("app", "a", nil), New("app", "a", nil)})
	assert.ErrorIs(t, err, ErrDuplicateMigration)
}

func TestPlan_DuplicateDependencyListedOnce(t *testing.T) {
	plan, err := Plan([]*Migration{
		New("app", "b", []string{"app.a", "app.a"}),
		New("app", "a", nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.a", "app.b"}, ids(plan))
}

func TestGraph_Dependents(t *testing.T) {
	g, err := newGraph([]*Migration{
		New("app", "a", nil),
		New("app", "b", []string{"app.a"}),
		New("app", "c", []string{"app.b"}),
		New("app", "d", nil),
	})
	require.NoError(t, err)

	got := g.dependents("app.a")
	assert.Equal(t, map[string]bool{"app.a": true, "app.b": true, "app.c": true}, got)
}

func TestParseID(t *testing.T) {
	app, name, err := ParseID("catalog.0005_book_language")
	require.NoError(t, err)
	assert.Equal(t, "catalog", app)
	assert.Equal(t, "0005_book_language", name)

	_, _, err = ParseID("catalog")
	assert.Error(t, err)
}
