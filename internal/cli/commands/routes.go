package commands

import (
	"github.com/conduit-lang/locallibrary/internal/cli/ui"
	"github.com/conduit-lang/locallibrary/internal/web/router"
	"github.com/spf13/cobra"
)

func newRoutesCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List every route in resolution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			table, err := a.Routes()
			if err != nil {
				return err
			}

			t := ui.NewTable(cmd.OutOrStdout(), o.noColor, "PATTERN", "NAME", "KIND")
			for _, r := range table.Routes() {
				name := r.Name
				if name == "" {
					name = "-"
				}
				kind := r.Kind.String()
				if r.Kind == router.KindRedirect {
					kind += " -> " + r.Target
				}
				t.AddRow(r.Pattern, name, kind)
			}
			t.Render()
			return nil
		},
	}
}
