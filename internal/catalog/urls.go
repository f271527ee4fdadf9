package catalog

import (
	"github.com/conduit-lang/locallibrary/internal/web/router"
)

// URLs returns the catalog route table, included under catalog/
func URLs(h *Handlers) (*router.Table, error) {
	return router.NewTable(
		router.Path("", safeMethods(h.Index), "index"),
		router.Path("books/", safeMethods(h.BookList), "books"),
		router.Path("book/<int:pk>", safeMethods(h.BookDetail), "book-detail"),
		router.Path("authors/", safeMethods(h.AuthorList), "authors"),
		router.Path("author/<int:pk>", safeMethods(h.AuthorDetail), "author-detail"),
	)
}
