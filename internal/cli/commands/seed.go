package commands

import (
	"github.com/conduit-lang/locallibrary/internal/cli/ui"
	"github.com/spf13/cobra"
)

func newSeedCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample authors, books and copies",
		Long:  "Load a small sample catalog. Nothing is loaded when the catalog already has books.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			res, err := a.Seed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				ui.Note(out, o.noColor, "The catalog already has books; nothing was loaded")
				return nil
			}
			ui.Success(out, o.noColor, "Loaded %d authors, %d books and %d copies", res.Authors, res.Books, res.Instances)
			return nil
		},
	}
}
