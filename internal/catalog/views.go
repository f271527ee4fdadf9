package catalog

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/conduit-lang/locallibrary/internal/web/cache"
	"github.com/conduit-lang/locallibrary/internal/web/render"
	"github.com/conduit-lang/locallibrary/internal/web/router"
)

// PerPage is the page size of the book and author lists
const PerPage = 10

const countsKey = "catalog:counts"

// Handlers serves the catalog pages
type Handlers struct {
	repo     *Repository
	render   *render.Renderer
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewHandlers creates the catalog handlers. A nil cache disables caching.
func NewHandlers(repo *Repository, renderer *render.Renderer, c cache.Cache, cacheTTL time.Duration) *Handlers {
	if c == nil {
		c = cache.Nop{}
	}
	return &Handlers{repo: repo, render: renderer, cache: c, cacheTTL: cacheTTL}
}

// InvalidateCounts drops the cached home page figures
func (h *Handlers) InvalidateCounts(ctx context.Context) error {
	return h.cache.Delete(ctx, countsKey)
}

// Index shows record counts
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	counts, err := cache.Remember(r.Context(), h.cache, countsKey, h.cacheTTL, h.repo.Counts)
	if err != nil {
		h.render.Error(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "catalog/index.html", counts)
}

// BookList shows one page of books; ?page= out of range is a 404
func (h *Handlers) BookList(w http.ResponseWriter, r *http.Request) {
	p := router.NewParamExtractor(r).ExtractPagination(PerPage)
	page, err := h.repo.ListBooks(r.Context(), p.Page, p.PerPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "catalog/book_list.html", page)
}

// BookDetail shows a book and its copies
func (h *Handlers) BookDetail(w http.ResponseWriter, r *http.Request) {
	id, err := router.NewParamExtractor(r).PathParamInt64("pk")
	if err != nil {
		h.render.NotFound(w, r)
		return
	}
	book, err := h.repo.GetBook(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "catalog/book_detail.html", book)
}

// AuthorList shows one page of authors
func (h *Handlers) AuthorList(w http.ResponseWriter, r *http.Request) {
	p := router.NewParamExtractor(r).ExtractPagination(PerPage)
	page, err := h.repo.ListAuthors(r.Context(), p.Page, p.PerPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "catalog/author_list.html", page)
}

// AuthorDetail shows an author and their books
func (h *Handlers) AuthorDetail(w http.ResponseWriter, r *http.Request) {
	id, err := router.NewParamExtractor(r).PathParamInt64("pk")
	if err != nil {
		h.render.NotFound(w, r)
		return
	}
	author, books, err := h.repo.GetAuthor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "catalog/author_detail.html", struct {
		Author *Author
		Books  []Book
	}{author, books})
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		h.render.NotFound(w, r)
		return
	}
	h.render.Error(w, r, err)
}

// safeMethods rejects anything but GET and HEAD
func safeMethods(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	})
}
