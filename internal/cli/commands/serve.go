package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conduit-lang/locallibrary/internal/app"
	"github.com/conduit-lang/locallibrary/internal/web/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(o *options) *cobra.Command {
	var (
		noMigrate bool
		addr      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Apply pending migrations and serve the site until SIGINT or SIGTERM.
In-flight requests are drained before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)
			cfg := a.Config

			if cfg.Migrate.AutoRun && !noMigrate {
				applier, err := a.Migrator()
				if err != nil {
					return err
				}
				res, err := applier.ApplyPending(ctx, app.Migrations())
				if err != nil {
					return err
				}
				a.Logger.Info("migrations up to date", zap.Int("applied", len(res.Applied)), zap.Int("skipped", res.Skipped))
			}

			handler, _, err := a.Handler()
			if err != nil {
				return err
			}

			sc := server.DefaultConfig(handler)
			sc.Address = cfg.Server.Address
			if addr != "" {
				sc.Address = addr
			}
			sc.CertFile, sc.KeyFile = cfg.Server.CertFile, cfg.Server.KeyFile
			if cfg.Server.ReadTimeout > 0 {
				sc.ReadTimeout = cfg.Server.ReadTimeout
			}
			if cfg.Server.WriteTimeout > 0 {
				sc.WriteTimeout = cfg.Server.WriteTimeout
			}
			if cfg.Server.IdleTimeout > 0 {
				sc.IdleTimeout = cfg.Server.IdleTimeout
			}
			if cfg.Server.ShutdownTimeout > 0 {
				sc.ShutdownTimeout = cfg.Server.ShutdownTimeout
			}
			sc.Logger = a.Logger

			srv, err := server.New(sc)
			if err != nil {
				return err
			}
			srv.OnShutdown(func(context.Context) error { return a.Close() })
			if cfg.Debug {
				a.Logger.Warn("debug mode is on; do not use it in production")
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip applying pending migrations")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding server.address")
	return cmd
}
