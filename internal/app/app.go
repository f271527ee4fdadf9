// Package app wires the library site together: storage, sessions, page
// rendering and the root route table.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/conduit-lang/locallibrary/internal/accounts"
	"github.com/conduit-lang/locallibrary/internal/admin"
	"github.com/conduit-lang/locallibrary/internal/catalog"
	"github.com/conduit-lang/locallibrary/internal/cli/config"
	"github.com/conduit-lang/locallibrary/internal/orm/database"
	"github.com/conduit-lang/locallibrary/internal/orm/migrate"
	"github.com/conduit-lang/locallibrary/internal/web/auth"
	"github.com/conduit-lang/locallibrary/internal/web/cache"
	"github.com/conduit-lang/locallibrary/internal/web/middleware"
	"github.com/conduit-lang/locallibrary/internal/web/ratelimit"
	"github.com/conduit-lang/locallibrary/internal/web/render"
	"github.com/conduit-lang/locallibrary/internal/web/router"
	"github.com/conduit-lang/locallibrary/internal/web/static"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Migrations returns the schema history of every app
func Migrations() []*migrate.Migration {
	return append(accounts.Migrations(), catalog.Migrations(accounts.InitialMigration)...)
}

// App holds the long-lived collaborators of one process
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *database.DB
	Redis    *redis.Client
	Cache    cache.Cache
	Catalog  *catalog.Repository
	Users    *accounts.Users
	Renderer *render.Renderer
	Sessions *auth.Sessions

	catalogViews *catalog.Handlers
	limiter      ratelimit.Limiter
	closers      []func() error
}

// New opens the database and every configured backend
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	db, err := database.Open(ctx, database.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	if cfg.UsesRedis() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		a.closers = append(a.closers, a.Redis.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.Redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	c, err := cache.New(ctx, cache.Options{
		Backend:  cfg.Cache.Backend,
		RedisURL: cfg.Redis.URL,
		Config:   cache.Config{DefaultTTL: cfg.Cache.TTL, Prefix: "locallibrary:cache:"},
	})
	if err != nil {
		return err
	}
	a.Cache = c
	a.closers = append(a.closers, c.Close)

	a.Catalog = catalog.NewRepository(a.DB)
	a.Users = accounts.NewUsers(a.DB)

	a.Renderer, err = render.New(render.Options{StaticURL: cfg.Static.URL, Debug: cfg.Debug})
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.SecretKey, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	a.Sessions, err = auth.NewSessions(auth.SessionConfig{
		Tokens:     tokens,
		Users:      a.Users,
		CookieName: cfg.Auth.CookieName,
		Secure:     cfg.Auth.CookieSecure,
	})
	if err != nil {
		return err
	}

	if cfg.RateLimit.Enabled {
		if a.limiter, err = a.newLimiter(); err != nil {
			return err
		}
	}
	a.catalogViews = catalog.NewHandlers(a.Catalog, a.Renderer, a.Cache, cfg.Cache.TTL)
	return nil
}

func (a *App) newLimiter() (ratelimit.Limiter, error) {
	rl := a.Config.RateLimit
	if rl.Backend == "redis" {
		return ratelimit.NewRedisRateLimiter(ratelimit.RedisRateLimiterConfig{
			Client: a.Redis,
			Limit:  rl.Attempts,
			Window: rl.Window,
			Prefix: "locallibrary:login:",
		})
	}
	tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
		Capacity:        rl.Attempts,
		Period:          rl.Window,
		CleanupInterval: 10 * rl.Window,
	})
	a.closers = append(a.closers, tb.Close)
	return tb, nil
}

// InvalidateCache drops cached catalog figures after writes outside a request
func (a *App) InvalidateCache(ctx context.Context) error {
	return a.catalogViews.InvalidateCounts(ctx)
}

// Routes builds the root route table and binds the renderer to it
func (a *App) Routes() (*router.Table, error) {
	catalogURLs, err := catalog.URLs(a.catalogViews)
	if err != nil {
		return nil, fmt.Errorf("catalog urls: %w", err)
	}

	var limit middleware.Middleware
	if a.limiter != nil {
		limit = middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:  a.limiter,
			Methods:  []string{http.MethodPost},
			FailOpen: true,
		})
	}
	accountURLs, err := accounts.URLs(accounts.NewHandlers(a.Users, a.Sessions, a.Renderer), limit)
	if err != nil {
		return nil, fmt.Errorf("accounts urls: %w", err)
	}

	routes := []router.Route{
		router.Redirect("", "/catalog/", true),
		router.Mount("admin/", admin.Handler(a.DB, a.Renderer, a.Sessions, admin.Options{Profiling: a.Config.Debug})),
		router.Include("catalog/", catalogURLs),
		router.Include("accounts/", accountURLs),
	}
	staticRoutes, err := static.Routes(a.Config.Static.URL, a.Config.Static.Root, a.Config.Production())
	if err != nil {
		return nil, err
	}
	routes = append(routes, staticRoutes...)

	table, err := router.NewTable(routes...)
	if err != nil {
		return nil, fmt.Errorf("root urls: %w", err)
	}
	table = table.WithNotFound(http.HandlerFunc(a.Renderer.NotFound))
	a.Renderer.Bind(table)
	return table, nil
}

// Handler returns the root table behind the request middleware
func (a *App) Handler() (http.Handler, *router.Table, error) {
	table, err := a.Routes()
	if err != nil {
		return nil, nil, err
	}

	r := router.NewRouter(table)
	r.Use(
		middleware.RequestID(),
		middleware.Logging(middleware.LoggingConfig{
			Logger:       a.Logger,
			SkipPrefixes: []string{"/" + strings.Trim(a.Config.Static.URL, "/") + "/"},
		}),
		middleware.Recovery(middleware.RecoveryConfig{
			EnableStackTrace: true,
			ShowDetails:      a.Config.Debug,
		}),
		a.Sessions.Middleware,
		auth.CSRF(auth.CSRFConfig{
			Secure: a.Config.Auth.CookieSecure,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				a.Renderer.Render(w, r, http.StatusForbidden, "403.html", err)
			},
		}),
	)
	return r.Handler(), table, nil
}

// Migrator returns an applier using the configured lock
func (a *App) Migrator() (*migrate.Applier, error) {
	cfg := a.Config.Migrate
	opts := []migrate.Option{migrate.WithLogger(a.Logger.Named("migrate"))}
	if cfg.LockKey != "" {
		opts = append(opts, migrate.WithLockKey(cfg.LockKey))
	}

	switch cfg.Lock {
	case "", "auto":
		if _, ok := a.DB.Dialect.(migrate.Postgres); !ok {
			opts = append(opts, migrate.WithLocker(migrate.NewTableLocker(a.DB.DB, a.DB.Dialect, cfg.LockStaleAfter)))
		}
	case "advisory":
		if _, ok := a.DB.Dialect.(migrate.Postgres); !ok {
			return nil, errors.New("advisory migration lock requires PostgreSQL")
		}
		opts = append(opts, migrate.WithLocker(migrate.NewAdvisoryLocker(a.DB.DB)))
	case "table":
		opts = append(opts, migrate.WithLocker(migrate.NewTableLocker(a.DB.DB, a.DB.Dialect, cfg.LockStaleAfter)))
	case "redis":
		if a.Redis == nil {
			return nil, errors.New("redis migration lock requires a redis client")
		}
		opts = append(opts, migrate.WithLocker(migrate.NewRedisLocker(a.Redis)))
	default:
		return nil, fmt.Errorf("unknown migration lock %q", cfg.Lock)
	}
	return migrate.NewApplier(a.DB.DB, a.DB.Dialect, opts...), nil
}

// Close releases every backend in reverse order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
