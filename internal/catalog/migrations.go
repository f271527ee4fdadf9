package catalog

import (
	m "github.com/conduit-lang/locallibrary/internal/orm/migrate"
)

// App is the migration app label
const App = "catalog"

// Migrations returns the catalog schema history in declaration order.
// catalog.0003 depends on the accounts app for the borrower column.
func Migrations(accountsInitial string) []*m.Migration {
	return []*m.Migration{
		m.New(App, "0001_initial", nil,
			m.CreateTable{Name: "author", Columns: []m.Column{
				m.AutoID(),
				m.String("first_name", 100),
				m.String("last_name", 100),
				m.Date("date_of_birth").Null(),
				m.Date("date_of_death").Null(),
			}},
			m.CreateTable{Name: "genre", Columns: []m.Column{
				m.AutoID(),
				m.String("name", 200).WithUnique(),
			}},
			m.CreateTable{Name: "book", Columns: []m.Column{
				m.AutoID(),
				m.String("title", 200),
				m.ForeignKeyTo("author_id", "author", m.CascadeSetNull).Null(),
				m.Text("summary"),
				m.String("isbn", 13).WithUnique(),
			}},
			m.CreateTable{Name: "book_genre", Columns: []m.Column{
				m.AutoID(),
				m.ForeignKeyTo("book_id", "book", m.CascadeCascade),
				m.ForeignKeyTo("genre_id", "genre", m.CascadeCascade),
			}},
			m.CreateIndex{Name: "book_genre_book_id_genre_id_uniq", Table: "book_genre", Columns: []string{"book_id", "genre_id"}, Unique: true},
			m.CreateIndex{Name: "book_author_id_idx", Table: "book", Columns: []string{"author_id"}},
		),
		m.New(App, "0002_bookinstance", []string{App + ".0001_initial"},
			m.CreateTable{Name: "book_instance", Columns: []m.Column{
				m.UUID("id").AsPrimaryKey(),
				m.ForeignKeyTo("book_id", "book", m.CascadeRestrict).Null(),
				m.String("imprint", 200),
				m.Date("due_back").Null(),
				m.String("status", 1).WithDefault("'m'"),
			}},
			m.CreateIndex{Name: "book_instance_book_id_idx", Table: "book_instance", Columns: []string{"book_id"}},
		),
		m.New(App, "0003_bookinstance_borrower", []string{App + ".0002_bookinstance", accountsInitial},
			m.AddColumn{Table: "book_instance", Column: m.ForeignKeyTo("borrower_id", "auth_user", m.CascadeSetNull).Null()},
		),
		// The date_of_death change only relabels the field and emits no SQL
		m.New(App, "0004_language_alter_author_date_of_death", []string{App + ".0003_bookinstance_borrower"},
			m.CreateTable{Name: "language", Columns: []m.Column{
				m.AutoID(),
				m.String("name", 200).WithUnique(),
			}},
		),
		m.New(App, "0005_book_language", []string{App + ".0004_language_alter_author_date_of_death"},
			m.AddColumn{Table: "book", Column: m.ForeignKeyTo("language_id", "language", m.CascadeSetNull).Null()},
		),
	}
}
