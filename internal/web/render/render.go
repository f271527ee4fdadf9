// Package render executes the embedded HTML templates.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/conduit-lang/locallibrary/internal/web/auth"
	webcontext "github.com/conduit-lang/locallibrary/internal/web/context"
	"github.com/conduit-lang/locallibrary/internal/web/router"
	"go.uber.org/zap"
)

//go:embed templates
var embedded embed.FS

const layout = "templates/base.html"

// Options configures a Renderer
type Options struct {
	// StaticURL prefixes asset paths in the static template func
	StaticURL string
	// Debug shows error details on 500 pages
	Debug bool
	// FS overrides the embedded templates; it must hold a templates/ directory
	FS fs.FS
}

// Renderer renders pages inside the shared layout. Page templates are parsed
// once at construction.
type Renderer struct {
	pages     map[string]*template.Template
	staticURL string
	debug     bool
	reverser  atomic.Pointer[reverserBox]
}

type reverserBox struct{ r router.Reverser }

// View is the value every page template is executed with
type View struct {
	User      *auth.User
	CSRFToken string // empty when CSRF protection is off
	Path      string
	Request   *http.Request
	Data      any
}

// New parses every page under templates/
func New(opts Options) (*Renderer, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = embedded
	}

	r := &Renderer{
		pages:     make(map[string]*template.Template),
		staticURL: opts.StaticURL,
		debug:     opts.Debug,
	}

	err := fs.WalkDir(fsys, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == layout || path.Ext(p) != ".html" {
			return nil
		}
		name := strings.TrimPrefix(p, "templates/")
		t, err := template.New(path.Base(layout)).Funcs(r.funcs()).ParseFS(fsys, layout, p)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Bind sets the route table used by the url template func. Tables are built
// from handlers that need the renderer, so binding happens afterwards.
func (r *Renderer) Bind(rev router.Reverser) {
	r.reverser.Store(&reverserBox{r: rev})
}

// Has reports whether a page template exists
func (r *Renderer) Has(page string) bool {
	_, ok := r.pages[page]
	return ok
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"url":    r.url,
		"static": r.static,
		"date":   formatDate,
	}
}

// url builds the URL of a named route from name/value pairs:
// {{url "book-detail" "pk" .ID}}
func (r *Renderer) url(name string, pairs ...any) (string, error) {
	box := r.reverser.Load()
	if box == nil {
		return "", errors.New("renderer has no route table bound")
	}
	if len(pairs)%2 != 0 {
		return "", fmt.Errorf("url %q: odd number of parameter arguments", name)
	}
	params := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return "", fmt.Errorf("url %q: parameter name %v is not a string", name, pairs[i])
		}
		params[key] = deref(pairs[i+1])
	}
	return box.r.Reverse(name, params)
}

func (r *Renderer) static(p string) string {
	return strings.TrimSuffix(r.staticURL, "/") + "/" + strings.TrimPrefix(p, "/")
}

func deref(v any) any {
	if p, ok := v.(*int64); ok && p != nil {
		return *p
	}
	return v
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("Jan. 2, 2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("Jan. 2, 2006")
	default:
		return ""
	}
}

// Render writes page with status. Output is buffered, so a template error
// still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, page string, data any) {
	t, ok := r.pages[page]
	if !ok {
		r.Error(w, req, fmt.Errorf("unknown template %q", page))
		return
	}

	view := View{
		User:      auth.CurrentUser(req.Context()),
		CSRFToken: auth.CSRFToken(req.Context()),
		Path:      req.URL.Path,
		Request:   req,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, path.Base(layout), view); err != nil {
		r.Error(w, req, fmt.Errorf("render %s: %w", page, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// NotFound renders the 404 page
func (r *Renderer) NotFound(w http.ResponseWriter, req *http.Request) {
	if !r.Has("404.html") {
		http.NotFound(w, req)
		return
	}
	r.Render(w, req, http.StatusNotFound, "404.html", nil)
}

// Error logs err and writes a plain 500. In debug mode the error text is shown.
func (r *Renderer) Error(w http.ResponseWriter, req *http.Request, err error) {
	webcontext.Logger(req.Context()).Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if r.debug {
		fmt.Fprintf(w, "Internal Server Error: %v\n", err)
		return
	}
	_, _ = w.Write([]byte("Internal Server Error\n"))
}
