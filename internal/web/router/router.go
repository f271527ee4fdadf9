package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/conduit-lang/locallibrary/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

// Kind says how a route consumes the path
type Kind int

const (
	// KindPath matches the whole remaining path and calls a handler
	KindPath Kind = iota
	// KindInclude matches a prefix and resolves the rest in a nested table
	KindInclude
	// KindMount matches a prefix and hands the rest to an http.Handler
	KindMount
	// KindRedirect matches the whole remaining path and redirects
	KindRedirect
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindInclude:
		return "include"
	case KindMount:
		return "mount"
	case KindRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Route is one entry of a Table. Build routes with Path, Include, Mount and
// Redirect.
type Route struct {
	Pattern   string
	Name      string
	Kind      Kind
	Handler   http.Handler
	Table     *Table // Include only
	Target    string // Redirect only
	Permanent bool   // Redirect only

	compiled *pattern
}

// Path routes a full match of pattern to h
func Path(pattern string, h http.Handler, name string) Route {
	return Route{Pattern: pattern, Handler: h, Name: name, Kind: KindPath}
}

// PathFunc is Path for a handler function
func PathFunc(pattern string, h http.HandlerFunc, name string) Route {
	return Path(pattern, h, name)
}

// Include delegates everything below prefix to t
func Include(prefix string, t *Table) Route {
	return Route{Pattern: prefix, Table: t, Kind: KindInclude}
}

// Mount delegates everything below prefix to h. The handler sees the
// remainder as its request path.
func Mount(prefix string, h http.Handler) Route {
	return Route{Pattern: prefix, Handler: h, Kind: KindMount}
}

// Redirect sends requests for pattern to target, with 301 when permanent and
// 302 otherwise
func Redirect(pattern, target string, permanent bool) Route {
	return Route{Pattern: pattern, Target: target, Permanent: permanent, Kind: KindRedirect}
}

// Named returns a copy of the route carrying name
func (r Route) Named(name string) Route {
	r.Name = name
	return r
}

// Status is the redirect status code of a redirect route
func (r Route) Status() int {
	if r.Permanent {
		return http.StatusMovedPermanently
	}
	return http.StatusFound
}

// Table is an ordered, immutable list of routes. The first route matching a
// path wins; once an include or mount prefix matches, resolution does not
// return to the enclosing table.
type Table struct {
	routes   []Route
	names    map[string][]*Route // full chain down to the named route
	notFound http.Handler
}

// NewTable compiles every route. Malformed patterns, missing handlers and
// duplicate names, including those of nested tables, are reported here.
func NewTable(routes ...Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, len(routes)),
		names:  make(map[string][]*Route),
	}
	copy(t.routes, routes)

	for i := range t.routes {
		r := &t.routes[i]

		full := r.Kind == KindPath || r.Kind == KindRedirect
		p, err := compilePattern(r.Pattern, full)
		if err != nil {
			return nil, err
		}
		r.compiled = p

		switch r.Kind {
		case KindPath, KindMount:
			if r.Handler == nil {
				return nil, fmt.Errorf("route %q: %s route has no handler", r.Pattern, r.Kind)
			}
		case KindInclude:
			if r.Table == nil {
				return nil, fmt.Errorf("route %q: include has no table", r.Pattern)
			}
		case KindRedirect:
			if r.Target == "" {
				return nil, fmt.Errorf("route %q: redirect has no target", r.Pattern)
			}
		default:
			return nil, fmt.Errorf("route %q: unknown kind %d", r.Pattern, r.Kind)
		}

		if r.Name != "" {
			if err := t.addName(r.Name, []*Route{r}); err != nil {
				return nil, err
			}
		}
		if r.Kind == KindInclude {
			for name, chain := range r.Table.names {
				if err := t.addName(name, append([]*Route{r}, chain...)); err != nil {
					return nil, err
				}
			}
		}
	}

	return t, nil
}

// MustTable is NewTable that panics on error, for tables built from literals
func MustTable(routes ...Route) *Table {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) addName(name string, chain []*Route) error {
	if _, exists := t.names[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	t.names[name] = chain
	return nil
}

// WithNotFound returns a copy of t that serves unmatched paths with h
func (t *Table) WithNotFound(h http.Handler) *Table {
	c := *t
	c.notFound = h
	return &c
}

// Match is the outcome of a successful resolution
type Match struct {
	Route   *Route
	Handler http.Handler
	Params  Params
	// Chain holds the patterns matched from the root table down
	Chain []string
	// Remainder is the unconsumed path handed to a mount
	Remainder string
}

// Name is the name of the matched route, if any
func (m *Match) Name() string {
	return m.Route.Name
}

// Resolve maps a request path to a route. It has no side effects.
func (t *Table) Resolve(path string) (*Match, error) {
	m := &Match{}
	if err := t.resolve(strings.TrimPrefix(path, "/"), m); err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return m, nil
}

func (t *Table) resolve(path string, m *Match) error {
	for i := range t.routes {
		r := &t.routes[i]

		params, n, ok := r.compiled.match(path)
		if !ok {
			continue
		}

		m.Chain = append(m.Chain, r.Pattern)
		m.Params = m.Params.merge(params)

		switch r.Kind {
		case KindInclude:
			return r.Table.resolve(path[n:], m)
		case KindMount:
			m.Route = r
			m.Handler = r.Handler
			m.Remainder = path[n:]
			return nil
		case KindRedirect:
			m.Route = r
			m.Handler = redirectHandler(r.Target, r.Status())
			return nil
		default:
			m.Route = r
			m.Handler = r.Handler
			return nil
		}
	}
	return ErrNotFound
}

func redirectHandler(target string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, status)
	})
}

// ServeHTTP implements http.Handler interface
func (t *Table) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	m, err := t.Resolve(req.URL.Path)
	if err != nil {
		t.serveNotFound(w, req)
		return
	}

	ctx := withMatch(req.Context(), m)
	req = req.WithContext(ctx)

	if m.Route.Kind == KindMount {
		req = mountRequest(req, m.Remainder)
	}
	m.Handler.ServeHTTP(w, req)
}

func (t *Table) serveNotFound(w http.ResponseWriter, req *http.Request) {
	if t.notFound != nil {
		t.notFound.ServeHTTP(w, req)
		return
	}
	NewErrorHandler(false).NotFoundHandler().ServeHTTP(w, req)
}

// mountRequest rewrites the request path to the unconsumed remainder. When the
// request is already routed by chi, the routing path is updated too so that
// a mounted chi router matches against the remainder.
func mountRequest(req *http.Request, remainder string) *http.Request {
	r2 := req.Clone(req.Context())
	r2.URL.Path = "/" + remainder
	r2.URL.RawPath = ""

	if rctx := chi.RouteContext(r2.Context()); rctx != nil {
		rctx.RoutePath = r2.URL.Path
	}
	return r2
}

// Router is the top-level HTTP handler: a chi mux carrying the middleware
// chain, with the root table mounted beneath it
type Router struct {
	mux   chi.Router
	table *Table
}

// NewRouter creates a Router serving table
func NewRouter(table *Table) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		table: table,
	}
}

// Use adds middleware to the router's middleware chain
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// Handler finalizes the router. Middleware must be registered before this is
// called.
func (r *Router) Handler() http.Handler {
	r.mux.Handle("/*", r.table)
	return r.mux
}

// Table returns the root table
func (r *Router) Table() *Table {
	return r.table
}

type matchKey struct{}

func withMatch(ctx context.Context, m *Match) context.Context {
	return context.WithValue(ctx, matchKey{}, m)
}

// MatchFromContext returns the match of the current request
func MatchFromContext(ctx context.Context) (*Match, bool) {
	m, ok := ctx.Value(matchKey{}).(*Match)
	return m, ok
}
