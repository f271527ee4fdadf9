// Package accounts manages library users: the auth_user table, login,
// logout and password changes.
package accounts

import (
	"github.com/conduit-lang/locallibrary/internal/orm/migrate"
)

// App is the migration app label
const App = "accounts"

// InitialMigration is the record that creates auth_user
const InitialMigration = App + ".0001_initial"

// Migrations returns the accounts schema history
func Migrations() []*migrate.Migration {
	return []*migrate.Migration{
		migrate.New(App, "0001_initial", nil,
			migrate.CreateTable{Name: "auth_user", Columns: []migrate.Column{
				migrate.AutoID(),
				migrate.String("username", 150).WithUnique(),
				migrate.String("password", 128),
				migrate.Bool("is_staff").WithDefault("FALSE"),
				migrate.Bool("is_active").WithDefault("TRUE"),
				migrate.Timestamp("date_joined"),
			}},
		),
	}
}
