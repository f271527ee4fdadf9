// Package admin is a read-only staff view of the library tables.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/conduit-lang/locallibrary/internal/orm/database"
	"github.com/conduit-lang/locallibrary/internal/web/auth"
	"github.com/conduit-lang/locallibrary/internal/web/render"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// DefaultRowLimit is the number of rows a model page shows
const DefaultRowLimit = 50

// Model is a table listed by the admin
type Model struct {
	Name    string // URL segment
	Label   string
	Table   string
	Columns []string
	OrderBy string
}

// Models returns the library tables in display order. Password hashes are
// never listed.
func Models() []Model {
	return []Model{
		{Name: "author", Label: "Authors", Table: "author", Columns: []string{"id", "last_name", "first_name", "date_of_birth", "date_of_death"}, OrderBy: "last_name, first_name"},
		{Name: "book", Label: "Books", Table: "book", Columns: []string{"id", "title", "author_id", "isbn", "language_id"}, OrderBy: "title"},
		{Name: "bookinstance", Label: "Book instances", Table: "book_instance", Columns: []string{"id", "book_id", "imprint", "status", "due_back", "borrower_id"}, OrderBy: "due_back"},
		{Name: "genre", Label: "Genres", Table: "genre", Columns: []string{"id", "name"}, OrderBy: "name"},
		{Name: "language", Label: "Languages", Table: "language", Columns: []string{"id", "name"}, OrderBy: "name"},
		{Name: "user", Label: "Users", Table: "auth_user", Columns: []string{"id", "username", "is_staff", "is_active", "date_joined"}, OrderBy: "username"},
	}
}

// Options configures the admin site
type Options struct {
	Models   []Model
	RowLimit int
	// Profiling exposes net/http/pprof under /debug/pprof/
	Profiling bool
}

type site struct {
	db     *database.DB
	render *render.Renderer
	models []Model
	byName map[string]Model
	limit  int
}

// Handler returns the admin router. It expects to be mounted, so paths are
// relative to the mount point. Non-staff visitors are sent to the login page.
func Handler(db *database.DB, renderer *render.Renderer, sessions *auth.Sessions, opts Options) http.Handler {
	if opts.Models == nil {
		opts.Models = Models()
	}
	if opts.RowLimit <= 0 {
		opts.RowLimit = DefaultRowLimit
	}
	s := &site{db: db, render: renderer, models: opts.Models, byName: make(map[string]Model), limit: opts.RowLimit}
	for _, m := range opts.Models {
		s.byName[m.Name] = m
	}

	r := chi.NewRouter()
	r.Use(sessions.RequireStaff)
	r.Use(chimw.NoCache)
	r.NotFound(renderer.NotFound)

	r.Get("/", s.index)
	r.Get("/{model}/", s.list)
	if opts.Profiling {
		r.Route("/debug/pprof", registerProfiling)
	}
	return r
}

type modelCount struct {
	Name  string
	Label string
	Count int
}

func (s *site) index(w http.ResponseWriter, r *http.Request) {
	counts := make([]modelCount, 0, len(s.models))
	for _, m := range s.models {
		n, err := s.count(r.Context(), m)
		if err != nil {
			s.render.Error(w, r, err)
			return
		}
		counts = append(counts, modelCount{Name: m.Name, Label: m.Label, Count: n})
	}
	s.render.Render(w, r, http.StatusOK, "admin/index.html", counts)
}

type modelPage struct {
	Label   string
	Count   int
	Columns []string
	Rows    [][]string
}

func (s *site) list(w http.ResponseWriter, r *http.Request) {
	m, ok := s.byName[chi.URLParam(r, "model")]
	if !ok {
		s.render.NotFound(w, r)
		return
	}

	n, err := s.count(r.Context(), m)
	if err != nil {
		s.render.Error(w, r, err)
		return
	}
	rows, err := s.rows(r.Context(), m)
	if err != nil {
		s.render.Error(w, r, err)
		return
	}
	s.render.Render(w, r, http.StatusOK, "admin/model.html", modelPage{Label: m.Label, Count: n, Columns: m.Columns, Rows: rows})
}

func (s *site) count(ctx context.Context, m Model) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.db.Dialect.Quote(m.Table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", m.Table, database.ConvertError(err))
	}
	return n, nil
}

func (s *site) rows(ctx context.Context, m Model) ([][]string, error) {
	cols := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		cols[i] = s.db.Dialect.Quote(c)
	}
	query := `SELECT ` + strings.Join(cols, ", ") + ` FROM ` + s.db.Dialect.Quote(m.Table)
	if m.OrderBy != "" {
		query += ` ORDER BY ` + m.OrderBy
	}
	query += ` LIMIT ?`

	rs, err := s.db.QueryContext(ctx, s.db.Rebind(query), s.limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.Table, database.ConvertError(err))
	}
	defer rs.Close()

	var out [][]string
	for rs.Next() {
		values := make([]any, len(m.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.Table, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case []byte:
		return string(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.DateTime)
	case bool:
		if v {
			return "yes"
		}
		return "no"
	default:
		return fmt.Sprint(v)
	}
}
