package app

import (
	"context"
	"fmt"
	"time"

	"github.com/conduit-lang/locallibrary/internal/catalog"
	"go.uber.org/zap"
)

// SeedResult counts the records Seed created
type SeedResult struct {
	Authors   int
	Books     int
	Instances int
	Skipped   bool
}

type seedBook struct {
	title, isbn, summary string
	author, language     string
	genres               []string
	copies               []catalog.LoanStatus
}

var seedAuthors = []catalog.Author{
	{FirstName: "Ursula", LastName: "Le Guin", DateOfBirth: day(1929, 10, 21), DateOfDeath: day(2018, 1, 22)},
	{FirstName: "Iain", LastName: "Banks", DateOfBirth: day(1954, 2, 16), DateOfDeath: day(2013, 6, 9)},
	{FirstName: "Jane", LastName: "Austen", DateOfBirth: day(1775, 12, 16), DateOfDeath: day(1817, 7, 18)},
}

var seedBooks = []seedBook{
	{
		title: "The Dispossessed", isbn: "9780061054884", author: "Le Guin", language: "English",
		summary: "A physicist travels from an anarchist moon to its capitalist twin planet.",
		genres:  []string{"Science Fiction"},
		copies:  []catalog.LoanStatus{catalog.StatusAvailable, catalog.StatusOnLoan},
	},
	{
		title: "A Wizard of Earthsea", isbn: "9780547773742", author: "Le Guin", language: "English",
		summary: "A young mage unleashes a shadow on the world and must hunt it down.",
		genres:  []string{"Fantasy"},
		copies:  []catalog.LoanStatus{catalog.StatusAvailable},
	},
	{
		title: "The Player of Games", isbn: "9780316005401", author: "Banks", language: "English",
		summary: "A master game player is sent to an empire whose society is built on a game.",
		genres:  []string{"Science Fiction"},
		copies:  []catalog.LoanStatus{catalog.StatusMaintenance, catalog.StatusReserved},
	},
	{
		title: "Orgueil et préjugés", isbn: "9782070413850", author: "Austen", language: "French",
		summary: "Elizabeth Bennet and Mr Darcy, in translation.",
		genres:  []string{"Romance"},
		copies:  []catalog.LoanStatus{catalog.StatusAvailable},
	},
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Seed loads a small sample catalog into an empty database. It does nothing
// when books already exist.
func (a *App) Seed(ctx context.Context) (*SeedResult, error) {
	counts, err := a.Catalog.Counts(ctx)
	if err != nil {
		return nil, err
	}
	if counts.Books > 0 {
		return &SeedResult{Skipped: true}, nil
	}

	res := &SeedResult{}
	authors := make(map[string]int64)
	for _, au := range seedAuthors {
		if err := a.Catalog.CreateAuthor(ctx, &au); err != nil {
			return nil, err
		}
		authors[au.LastName] = au.ID
		res.Authors++
	}

	genres := make(map[string]int64)
	languages := make(map[string]int64)
	for _, sb := range seedBooks {
		for _, g := range sb.genres {
			if _, ok := genres[g]; ok {
				continue
			}
			genre, err := a.Catalog.CreateGenre(ctx, g)
			if err != nil {
				return nil, err
			}
			genres[g] = genre.ID
		}
		if _, ok := languages[sb.language]; !ok {
			lang, err := a.Catalog.CreateLanguage(ctx, sb.language)
			if err != nil {
				return nil, err
			}
			languages[sb.language] = lang.ID
		}
	}

	due := time.Now().UTC().AddDate(0, 0, 21).Truncate(24 * time.Hour)
	for _, sb := range seedBooks {
		authorID, langID := authors[sb.author], languages[sb.language]
		book := &catalog.Book{Title: sb.title, ISBN: sb.isbn, Summary: sb.summary, AuthorID: &authorID, LanguageID: &langID}
		ids := make([]int64, len(sb.genres))
		for i, g := range sb.genres {
			ids[i] = genres[g]
		}
		if err := a.Catalog.CreateBook(ctx, book, ids...); err != nil {
			return nil, err
		}
		res.Books++

		for i, status := range sb.copies {
			inst := &catalog.BookInstance{BookID: &book.ID, Imprint: fmt.Sprintf("%s, impression %d", sb.title, i+1), Status: status}
			if status != catalog.StatusAvailable {
				inst.DueBack = &due
			}
			if err := a.Catalog.CreateInstance(ctx, inst); err != nil {
				return nil, err
			}
			res.Instances++
		}
	}

	if err := a.InvalidateCache(ctx); err != nil {
		a.Logger.Warn("cache invalidation failed", zap.Error(err))
	}
	return res, nil
}
