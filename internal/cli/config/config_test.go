package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(oldWd) })
	return tmpDir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Production())
	assert.Equal(t, devSecret, cfg.SecretKey)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/static/", cfg.Static.URL)
	assert.Equal(t, 14*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "auto", cfg.Migrate.Lock)
	assert.True(t, cfg.Migrate.AutoRun)
	assert.Equal(t, 15*time.Minute, cfg.Migrate.LockStaleAfter)
	assert.Equal(t, 5, cfg.RateLimit.Attempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_ConfigFile(t *testing.T) {
	chdirTemp(t)

	configContent := `
debug: false
secret_key: s3cret
database:
  driver: pgx
  url: postgres://localhost/library
server:
  address: 0.0.0.0:8080
  shutdown_timeout: 5s
static:
  url: /assets/
cache:
  backend: redis
migrate:
  lock: advisory
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile("locallibrary.yml", []byte(configContent), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/library", cfg.Database.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/assets/", cfg.Static.URL)
	assert.Equal(t, "advisory", cfg.Migrate.Lock)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: :9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LOCALLIBRARY_DATABASE_URL", "file:other.db")
	t.Setenv("LOCALLIBRARY_SERVER_ADDRESS", ":7000")
	t.Setenv("LOCALLIBRARY_RATELIMIT_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file:other.db", cfg.Database.URL)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_InvalidYAML(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile("locallibrary.yml", []byte("server: [unclosed"), 0o644))

	_, err := Load("")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		chdirTemp(t)
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"production without secret", func(c *Config) { c.Debug = false; c.SecretKey = "" }, "secret_key must be set"},
		{"production with dev secret", func(c *Config) { c.Debug = false }, "secret_key must be set"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"empty static url", func(c *Config) { c.Static.URL = "" }, "static.url must not be empty"},
		{"static url without slash", func(c *Config) { c.Static.URL = "/static" }, "must end with '/'"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"advisory on sqlite", func(c *Config) { c.Migrate.Lock = "advisory" }, "requires the pgx driver"},
		{"unknown lock", func(c *Config) { c.Migrate.Lock = "file" }, "migrate.lock"},
		{"negative stale lock age", func(c *Config) { c.Migrate.LockStaleAfter = -time.Second }, "migrate.lock_stale_after"},
		{"bad redis url", func(c *Config) { c.Cache.Backend = "redis"; c.Redis.URL = "localhost:6379" }, "redis.url"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero attempts", func(c *Config) { c.RateLimit.Attempts = 0 }, "ratelimit.attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Static.URL = ""
	cfg.Log.Level = "loud"
	err = cfg.Validate()
	assert.ErrorContains(t, err, "static.url")
	assert.ErrorContains(t, err, "log.level")
}
