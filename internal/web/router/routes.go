package router

import (
	"fmt"
	"strings"
)

// RouteInfo provides metadata about a route for introspection
type RouteInfo struct {
	Pattern    string // Full pattern from the root table
	Name       string
	Kind       Kind
	Target     string
	Parameters []string
}

// Walk calls fn for every leaf route in declaration order, descending into
// included tables. Returning an error from fn stops the walk.
func (t *Table) Walk(fn func(RouteInfo) error) error {
	return t.walk("", nil, fn)
}

func (t *Table) walk(prefix string, params []string, fn func(RouteInfo) error) error {
	for i := range t.routes {
		r := &t.routes[i]
		full := prefix + r.Pattern
		names := append(append([]string(nil), params...), r.compiled.params()...)

		if r.Kind == KindInclude {
			if err := r.Table.walk(full, names, fn); err != nil {
				return err
			}
			continue
		}

		info := RouteInfo{
			Pattern:    "/" + full,
			Name:       r.Name,
			Kind:       r.Kind,
			Target:     r.Target,
			Parameters: names,
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

// Routes returns every leaf route for introspection
func (t *Table) Routes() []RouteInfo {
	var routes []RouteInfo
	_ = t.Walk(func(info RouteInfo) error {
		routes = append(routes, info)
		return nil
	})
	return routes
}

// Reverse generates the URL of a named route. Params supply every placeholder
// on the chain of patterns leading to the route.
func (t *Table) Reverse(name string, params map[string]any) (string, error) {
	chain, ok := t.names[name]
	if !ok {
		return "", fmt.Errorf("%w: no route named %q", ErrNoReverseMatch, name)
	}

	var sb strings.Builder
	sb.WriteString("/")
	for _, r := range chain {
		part, err := r.compiled.build(params)
		if err != nil {
			return "", fmt.Errorf("%w: route %q: %v", ErrNoReverseMatch, name, err)
		}
		sb.WriteString(part)
	}
	return sb.String(), nil
}

// MustReverse is Reverse that panics when the route cannot be built
func (t *Table) MustReverse(name string, params map[string]any) string {
	u, err := t.Reverse(name, params)
	if err != nil {
		panic(err)
	}
	return u
}

// Reverser is any value that can build URLs of named routes
type Reverser interface {
	Reverse(name string, params map[string]any) (string, error)
}
