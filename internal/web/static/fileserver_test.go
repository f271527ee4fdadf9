package static

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/conduit-lang/locallibrary/internal/web/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAssets(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "styles.css"), []byte("body { margin: 0 }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), []byte("\x89PNG"), 0o644))
	return root
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes_Development(t *testing.T) {
	root := setupAssets(t)

	routes, err := Routes("/static/", root, false)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "static/", routes[0].Pattern)
	assert.Equal(t, router.KindMount, routes[0].Kind)

	table, err := router.NewTable(routes...)
	require.NoError(t, err)

	rec := get(table, "/static/css/styles.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body { margin: 0 }", rec.Body.String())
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	assert.Equal(t, http.StatusNotFound, get(table, "/static/missing.js").Code)
}

func TestRoutes_Production(t *testing.T) {
	routes, err := Routes("/static/", setupAssets(t), true)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestRoutes_Configuration(t *testing.T) {
	_, err := Routes("", "/srv/static", false)
	assert.ErrorIs(t, err, ErrEmptyPrefix)

	_, err = Routes("/", "/srv/static", false)
	assert.ErrorIs(t, err, ErrEmptyPrefix)

	_, err = Routes("/static/", "", false)
	assert.Error(t, err)

	routes, err := Routes("https://cdn.example.com/static/", "", false)
	require.NoError(t, err)
	assert.Empty(t, routes, "remote prefixes are not served locally")

	routes, err = Routes("assets", setupAssets(t), false)
	require.NoError(t, err)
	assert.Equal(t, "assets/", routes[0].Pattern)
}

func TestFileServer_Traversal(t *testing.T) {
	root := setupAssets(t)
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	h := FileServer(&FileServerConfig{Root: root})

	for _, p := range []string{"/../secret.txt", "/css/../../secret.txt", "/%2e%2e/secret.txt"} {
		t.Run(p, func(t *testing.T) {
			rec := get(h, p)
			assert.NotEqual(t, http.StatusOK, rec.Code)
			assert.NotContains(t, rec.Body.String(), "secret")
		})
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()

	got, ok := resolve(root, "/css/site.css")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "css", "site.css"), got)

	_, ok = resolve(root, "/a/../../etc/passwd")
	assert.False(t, ok)

	_, ok = resolve(root, "/a\x00b")
	assert.False(t, ok)
}

func TestFileServer_ConditionalRequests(t *testing.T) {
	h := FileServer(&FileServerConfig{Root: setupAssets(t), MaxAge: 3600})

	rec := get(h, "/logo.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/logo.png", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestFileServer_Directories(t *testing.T) {
	root := setupAssets(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "index.html"), []byte("<p>css</p>"), 0o644))

	assert.Equal(t, http.StatusForbidden, get(FileServer(&FileServerConfig{Root: root}), "/css/").Code)

	rec := get(FileServer(&FileServerConfig{Root: root, IndexFile: "index.html"}), "/css/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>css</p>", rec.Body.String())
}

func TestFileServer_Methods(t *testing.T) {
	h := FileServer(&FileServerConfig{Root: setupAssets(t)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logo.png", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/logo.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestFileServer_CustomNotFound(t *testing.T) {
	h := FileServer(&FileServerConfig{
		Root: setupAssets(t),
		NotFoundHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})
	assert.Equal(t, http.StatusTeapot, get(h, "/nope.css").Code)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "text/javascript; charset=utf-8", detectContentType("app.JS"))
	assert.Equal(t, "application/octet-stream", detectContentType("archive.bin"))
}
