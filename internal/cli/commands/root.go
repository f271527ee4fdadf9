// Package commands implements the locallibrary command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/conduit-lang/locallibrary/internal/app"
	"github.com/conduit-lang/locallibrary/internal/cli/config"
	"github.com/conduit-lang/locallibrary/internal/cli/ui"
	"github.com/conduit-lang/locallibrary/internal/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// options are the persistent flags shared by every subcommand
type options struct {
	configPath string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "locallibrary",
		Short: "LocalLibrary catalog server and management commands",
		Long: color.CyanString(`LocalLibrary - a library catalog website

Serves the catalog of books, authors and copies, applies schema
migrations and manages library staff accounts.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file (default ./locallibrary.yml)")
	root.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newServeCommand(o),
		newMigrateCommand(o),
		newRoutesCommand(o),
		newCreateUserCommand(o),
		newSeedCommand(o),
		newVersionCommand(o),
	)
	return root
}

func newVersionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), o.noColor)
			kv.AddRow("LocalLibrary version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", runtime.Version())
			kv.Render()
		},
	}
}

// configError marks errors loading settings so Execute can explain them
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func (o *options) load(logOutput io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, &configError{err}
	}
	logger, _, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Debug,
		Output:      logOutput,
	})
	if err != nil {
		return nil, nil, &configError{err}
	}
	return cfg, logger, nil
}

// open loads settings and opens the app, logging to the command's stderr.
// The caller closes it.
func (o *options) open(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := o.load(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// Execute runs the root command
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		noColor, _ := root.PersistentFlags().GetBool("no-color")
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			ui.ConfigError(cfgErr.Error(), noColor).Write(root.ErrOrStderr())
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		if noColor {
			errorColor.DisableColor()
		}
		errorColor.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// Main is the process entry point
func Main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

func closeApp(cmd *cobra.Command, a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "close: %v\n", err)
	}
	_ = a.Logger.Sync()
}
