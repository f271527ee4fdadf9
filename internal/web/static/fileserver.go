// Package static serves the development-time asset directory.
package static

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conduit-lang/locallibrary/internal/web/router"
)

// ErrEmptyPrefix is returned when static serving is configured without a URL prefix
var ErrEmptyPrefix = errors.New("static URL prefix must not be empty")

// FileServerConfig holds configuration for the static file server
type FileServerConfig struct {
	// Root is the directory files are served from
	Root string

	// MaxAge is the Cache-Control max-age in seconds
	MaxAge int

	// IndexFile is served for directory requests; empty forbids directories
	IndexFile string

	// NotFoundHandler is called when a file is not found
	NotFoundHandler http.Handler
}

// Routes returns the route serving root under urlPrefix, or no routes at all
// in production, where a front server is expected to serve assets. The prefix
// is given the way settings write it, e.g. "/static/" or "static/".
func Routes(urlPrefix, root string, production bool) ([]router.Route, error) {
	prefix := strings.Trim(urlPrefix, "/")
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	if strings.Contains(urlPrefix, "://") {
		// Assets live on another host; nothing to serve locally
		return nil, nil
	}
	if production {
		return nil, nil
	}
	if root == "" {
		return nil, fmt.Errorf("static root must be set when serving %s", urlPrefix)
	}

	fs := FileServer(&FileServerConfig{
		Root: root,
		// Development assets change constantly
		MaxAge: 0,
	})
	return []router.Route{router.Mount(prefix+"/", fs)}, nil
}

// FileServer serves files below config.Root. The request path is taken
// relative to the root, so mount the handler with the prefix stripped.
func FileServer(config *FileServerConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filePath, ok := resolve(config.Root, r.URL.Path)
		if !ok {
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}

		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				notFound(config, w, r)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if info.IsDir() {
			if config.IndexFile == "" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			indexPath := filepath.Join(filePath, config.IndexFile)
			indexInfo, err := os.Stat(indexPath)
			if err != nil || indexInfo.IsDir() {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			filePath, info = indexPath, indexInfo
		}

		f, err := os.Open(filePath)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		if config.MaxAge > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", config.MaxAge))
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		w.Header().Set("Content-Type", detectContentType(filePath))
		w.Header().Set("ETag", etag(info))

		// ServeContent answers If-None-Match, If-Modified-Since and Range
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// resolve maps urlPath to a file under root, refusing anything that would
// leave root
func resolve(root, urlPath string) (string, bool) {
	if strings.Contains(urlPath, "\x00") {
		return "", false
	}
	for _, part := range strings.Split(urlPath, "/") {
		if part == ".." {
			return "", false
		}
	}

	clean := path.Clean("/" + urlPath)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	full := filepath.Join(absRoot, filepath.FromSlash(clean))

	rel, err := filepath.Rel(absRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func notFound(config *FileServerConfig, w http.ResponseWriter, r *http.Request) {
	if config.NotFoundHandler != nil {
		config.NotFoundHandler.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

// etag is a weak validator built from size and modification time
func etag(info os.FileInfo) string {
	return fmt.Sprintf(`W/"%x-%x"`, info.Size(), info.ModTime().UnixNano()/int64(time.Millisecond))
}

// contentTypes covers the asset types the tutorial templates use
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// detectContentType detects the content type from file extension
func detectContentType(filePath string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		return ct
	}
	return "application/octet-stream"
}
