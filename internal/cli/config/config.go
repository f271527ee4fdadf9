// Package config loads locallibrary settings from locallibrary.yml and
// LOCALLIBRARY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment overrides, e.g. LOCALLIBRARY_DATABASE_URL
const EnvPrefix = "LOCALLIBRARY"

// devSecret signs sessions in debug mode when no secret is configured
const devSecret = "insecure-development-secret-do-not-deploy"

// Config represents the locallibrary configuration
type Config struct {
	// Debug enables detailed error pages and local static serving
	Debug     bool            `mapstructure:"debug"`
	SecretKey string          `mapstructure:"secret_key"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Static    StaticConfig    `mapstructure:"static"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Migrate   MigrateConfig   `mapstructure:"migrate"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CertFile        string        `mapstructure:"cert_file"`
	KeyFile         string        `mapstructure:"key_file"`
}

// StaticConfig locates the asset directory and its URL prefix
type StaticConfig struct {
	URL  string `mapstructure:"url"`
	Root string `mapstructure:"root"`
}

// AuthConfig configures session cookies
type AuthConfig struct {
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// RedisConfig is shared by every Redis-backed component
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// CacheConfig selects the page cache backend
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// MigrateConfig configures the migration applier
type MigrateConfig struct {
	// Lock is auto, advisory, table or redis
	Lock    string `mapstructure:"lock"`
	LockKey string `mapstructure:"lock_key"`
	// LockStaleAfter lets a table lock left by a crashed process be taken
	// over once it is this old; zero waits forever
	LockStaleAfter time.Duration `mapstructure:"lock_stale_after"`
	AutoRun        bool          `mapstructure:"auto_run"`
}

// RateLimitConfig throttles login attempts
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is memory or redis
	Backend  string        `mapstructure:"backend"`
	Attempts int           `mapstructure:"attempts"`
	Window   time.Duration `mapstructure:"window"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is console or json; empty picks by Debug
	Format string `mapstructure:"format"`
}

// Production reports whether the app runs without debug facilities
func (c *Config) Production() bool {
	return !c.Debug
}

// UsesRedis reports whether any component is configured for Redis
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == "redis" || c.Migrate.Lock == "redis" ||
		(c.RateLimit.Enabled && c.RateLimit.Backend == "redis")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("secret_key", "")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "file:db.sqlite3?_foreign_keys=on&_busy_timeout=5000")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cert_file", "")
	v.SetDefault("server.key_file", "")

	v.SetDefault("static.url", "/static/")
	v.SetDefault("static.root", "static")

	v.SetDefault("auth.session_ttl", 14*24*time.Hour)
	v.SetDefault("auth.cookie_name", "sessionid")
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Minute)

	v.SetDefault("migrate.lock", "auto")
	v.SetDefault("migrate.lock_key", "locallibrary:migrate")
	v.SetDefault("migrate.lock_stale_after", 15*time.Minute)
	v.SetDefault("migrate.auto_run", true)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.attempts", 5)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// Load reads locallibrary.yml (or the file at path when non-empty), applies
// environment overrides and validates the result
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("locallibrary")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.SecretKey == "" && cfg.Debug {
		cfg.SecretKey = devSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration, reporting every problem at once
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !c.Debug && (c.SecretKey == "" || c.SecretKey == devSecret) {
		add("secret_key must be set when debug is off")
	}

	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		add("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		add("database.url must be set")
	}

	if c.Static.URL == "" {
		add("static.url must not be empty")
	} else if !strings.HasSuffix(c.Static.URL, "/") {
		add("static.url must end with '/', got: %s", c.Static.URL)
	}

	if c.Auth.SessionTTL <= 0 {
		add("auth.session_ttl must be positive")
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		add("cache.backend must be memory, redis or none, got %q", c.Cache.Backend)
	}

	switch c.Migrate.Lock {
	case "auto", "table", "redis":
	case "advisory":
		if c.Database.Driver != "pgx" {
			add("migrate.lock advisory requires the pgx driver")
		}
	default:
		add("migrate.lock must be auto, advisory, table or redis, got %q", c.Migrate.Lock)
	}
	if c.Migrate.LockStaleAfter < 0 {
		add("migrate.lock_stale_after must not be negative")
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory", "redis":
		default:
			add("ratelimit.backend must be memory or redis, got %q", c.RateLimit.Backend)
		}
		if c.RateLimit.Attempts <= 0 || c.RateLimit.Window <= 0 {
			add("ratelimit.attempts and ratelimit.window must be positive")
		}
	}

	if c.UsesRedis() {
		if _, err := url.Parse(c.Redis.URL); err != nil || !strings.HasPrefix(c.Redis.URL, "redis") {
			add("redis.url must be a redis:// or rediss:// URL, got %q", c.Redis.URL)
		}
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add("log.level: %v", err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		add("log.format must be console or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
