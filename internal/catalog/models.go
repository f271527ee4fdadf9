// Package catalog holds the library records: books, authors, genres,
// languages and the physical copies that can be borrowed.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author is a book author
type Author struct {
	ID          int64
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	DateOfDeath *time.Time
}

// Name is "Last, First", the order the author list sorts by
func (a *Author) Name() string {
	return a.LastName + ", " + a.FirstName
}

// Lifespan renders "born - died" with open ends left blank
func (a *Author) Lifespan() string {
	if a.DateOfBirth == nil && a.DateOfDeath == nil {
		return ""
	}
	born, died := "", ""
	if a.DateOfBirth != nil {
		born = a.DateOfBirth.Format("Jan 2, 2006")
	}
	if a.DateOfDeath != nil {
		died = a.DateOfDeath.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("%s - %s", born, died)
}

// Genre is a book genre, e.g. "Science Fiction"
type Genre struct {
	ID   int64
	Name string
}

// Language is the natural language a book is written in
type Language struct {
	ID   int64
	Name string
}

// Book is a title, independent of how many copies the library holds
type Book struct {
	ID         int64
	Title      string
	AuthorID   *int64
	Summary    string
	ISBN       string
	LanguageID *int64

	// Loaded by the detail queries
	Author    *Author
	Language  *Language
	Genres    []Genre
	Instances []BookInstance
}

// GenreNames joins the genre names for display
func (b *Book) GenreNames() string {
	names := make([]string, len(b.Genres))
	for i, g := range b.Genres {
		names[i] = g.Name
	}
	return strings.Join(names, ", ")
}

// LoanStatus is the availability of a copy
type LoanStatus string

const (
	StatusMaintenance LoanStatus = "m"
	StatusOnLoan      LoanStatus = "o"
	StatusAvailable   LoanStatus = "a"
	StatusReserved    LoanStatus = "r"
)

// Label returns the display name of the status
func (s LoanStatus) Label() string {
	switch s {
	case StatusMaintenance:
		return "Maintenance"
	case StatusOnLoan:
		return "On loan"
	case StatusAvailable:
		return "Available"
	case StatusReserved:
		return "Reserved"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known statuses
func (s LoanStatus) Valid() bool {
	switch s {
	case StatusMaintenance, StatusOnLoan, StatusAvailable, StatusReserved:
		return true
	}
	return false
}

// BookInstance is a physical copy of a book
type BookInstance struct {
	ID         uuid.UUID
	BookID     *int64
	Imprint    string
	DueBack    *time.Time
	Status     LoanStatus
	BorrowerID *int64
}

// IsOverdue reports whether the copy is past its due date at now
func (bi *BookInstance) IsOverdue(now time.Time) bool {
	return bi.DueBack != nil && now.After(*bi.DueBack)
}

// Counts are the figures on the home page
type Counts struct {
	Books              int `json:"books"`
	Instances          int `json:"instances"`
	InstancesAvailable int `json:"instances_available"`
	Authors            int `json:"authors"`
	Genres             int `json:"genres"`
}

// Page is one page of a paginated list
type Page[T any] struct {
	Items   []T
	Number  int
	PerPage int
	Total   int
}

// NumPages returns the page count, at least 1
func (p *Page[T]) NumPages() int {
	if p.Total <= 0 || p.PerPage <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasPrevious reports whether a previous page exists
func (p *Page[T]) HasPrevious() bool { return p.Number > 1 }

// HasNext reports whether a following page exists
func (p *Page[T]) HasNext() bool { return p.Number < p.NumPages() }

// Previous is the previous page number
func (p *Page[T]) Previous() int { return p.Number - 1 }

// Next is the next page number
func (p *Page[T]) Next() int { return p.Number + 1 }
