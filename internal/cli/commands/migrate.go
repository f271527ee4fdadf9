package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/conduit-lang/locallibrary/internal/app"
	"github.com/conduit-lang/locallibrary/internal/cli/ui"
	"github.com/conduit-lang/locallibrary/internal/orm/migrate"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMigrateCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Apply and inspect schema migrations.

Migrations are declared in code per app and applied in dependency order.
Every pass holds the migration lock configured by migrate.lock.

Available subcommands:
  up      - Apply all pending migrations
  status  - Show applied and pending migrations
  plan    - Show the apply order without touching the database
  down    - Roll back a migration and everything that depends on it`,
	}
	cmd.AddCommand(
		newMigrateUpCommand(o),
		newMigrateStatusCommand(o),
		newMigratePlanCommand(o),
		newMigrateDownCommand(o),
	)
	return cmd
}

func newMigrateUpCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			applier, err := a.Migrator()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := applier.ApplyPending(cmd.Context(), app.Migrations())
			if res != nil {
				for _, id := range res.Applied {
					ui.Success(out, o.noColor, "Applied %s", id)
				}
			}
			if err != nil {
				consequence := "No migration was applied."
				if res != nil && len(res.Applied) > 0 {
					consequence = "Migrations listed above stay applied; the failing one was rolled back."
				}
				var opErr *migrate.OperationError
				if errors.As(err, &opErr) {
					consequence += " " + opErr.Migration + " is still pending."
				}
				ui.MigrationError(err.Error(), consequence, nil, o.noColor).Write(cmd.ErrOrStderr())
				return err
			}

			if len(res.Applied) == 0 {
				ui.Note(out, o.noColor, "No pending migrations")
				return nil
			}
			ui.Success(out, o.noColor, "Applied %d migration(s)", len(res.Applied))
			return nil
		},
	}
}

func newMigrateStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			applier, err := a.Migrator()
			if err != nil {
				return err
			}
			st, err := applier.Status(cmd.Context(), app.Migrations())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := ui.NewTable(out, o.noColor, "ID", "STATUS", "APPLIED AT")
			t.Style(1, func(s string) string {
				if strings.HasPrefix(s, "applied") {
					return color.GreenString(s)
				}
				return color.YellowString(s)
			})
			for _, m := range st.Applied {
				t.AddRow(m.ID(), "applied", m.AppliedAt.Local().Format(time.DateTime))
			}
			for _, m := range st.Pending {
				t.AddRow(m.ID(), "pending", "")
			}
			t.Render()

			for _, id := range st.Unknown {
				ui.Message{Level: ui.LevelWarning, Problem: id + " is in the ledger but not declared", NoColor: o.noColor}.Write(out)
			}
			fmt.Fprintln(out)
			ui.Note(out, o.noColor, "%s", st.Summary())
			return nil
		},
	}
}

func newMigratePlanCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the order migrations apply in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := migrate.Plan(app.Migrations())
			if err != nil {
				ui.MigrationError(err.Error(), "Nothing can be applied until the dependencies are fixed.", nil, o.noColor).Write(cmd.ErrOrStderr())
				return err
			}

			t := ui.NewTable(cmd.OutOrStdout(), o.noColor, "#", "ID", "DEPENDS ON", "OPERATIONS")
			for i, m := range plan {
				ops := make([]string, len(m.Operations))
				for j, op := range m.Operations {
					ops[j] = op.Describe()
				}
				deps := strings.Join(m.Dependencies, ", ")
				if deps == "" {
					deps = "-"
				}
				t.AddRow(fmt.Sprint(i+1), m.ID(), deps, strings.Join(ops, "; "))
			}
			t.Render()
			return nil
		},
	}
}

func newMigrateDownCommand(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "down <id>",
		Short: "Roll back a migration and its dependents",
		Long: `Roll back the applied migration <id> together with every applied
migration that depends on it, most dependent first. Data in dropped tables
and columns is lost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			records := app.Migrations()

			ids := make([]string, len(records))
			for i, m := range records {
				ids[i] = m.ID()
			}
			if !contains(ids, id) {
				err := fmt.Errorf("%w: %s is not declared", migrate.ErrUnknownDependency, id)
				ui.MigrationError(err.Error(), "Nothing was rolled back.", ui.Suggest(id, ids), o.noColor).Write(cmd.ErrOrStderr())
				return err
			}

			if !yes {
				confirmed := false
				prompt := &survey.Confirm{Message: fmt.Sprintf("Roll back %s and every migration that depends on it?", id)}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					ui.Note(cmd.OutOrStdout(), o.noColor, "Rollback cancelled")
					return nil
				}
			}

			a, err := o.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			applier, err := a.Migrator()
			if err != nil {
				return err
			}
			res, err := applier.Rollback(cmd.Context(), records, id)
			if res != nil {
				for _, rid := range res.RolledBack {
					ui.Success(cmd.OutOrStdout(), o.noColor, "Rolled back %s", rid)
				}
			}
			if err != nil {
				ui.MigrationError(err.Error(), "Migrations not listed above are unchanged.", nil, o.noColor).Write(cmd.ErrOrStderr())
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
