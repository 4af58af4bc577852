package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BISTRO_DATABASE_DSN", "postgres://bistro@localhost/bistro")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 8*time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, "bistro_admin_session", cfg.Security.CookieName)
	assert.False(t, cfg.Security.CookieSecure)
	assert.Equal(t, RateLimitConfig{Action: "admin_login", Threshold: 5, Window: 15 * time.Minute, Lockout: 30 * time.Minute}, cfg.RateLimit)
	assert.Equal(t, 24*time.Hour, cfg.Reaper.Retention)
	assert.Equal(t, ReaperModeInline, cfg.Reaper.Mode)
}

func TestLoadProductionSecuresCookie(t *testing.T) {
	t.Setenv("BISTRO_ENVIRONMENT", "production")
	t.Setenv("BISTRO_DATABASE_DSN", "postgres://bistro@localhost/bistro")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Security.CookieSecure)

	t.Setenv("BISTRO_SECURITY_COOKIESECURE", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.Security.CookieSecure)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BISTRO_DATABASE_DRIVER", "sqlite")
	t.Setenv("BISTRO_DATABASE_DSN", "file:bistro.db")
	t.Setenv("BISTRO_RATELIMIT_THRESHOLD", "3")
	t.Setenv("BISTRO_RATELIMIT_WINDOW", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.RateLimit.Threshold)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.Window)
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			Database:  DatabaseConfig{Driver: DriverSQLite, DSN: "file::memory:", QueryTimeout: time.Second},
			Queues:    QueueConfig{ClaimInterval: time.Second},
			Security:  SecurityConfig{SessionTTL: time.Hour, CookieName: "s"},
			RateLimit: RateLimitConfig{Action: "admin_login", Threshold: 5, Window: time.Minute, Lockout: time.Minute},
			Reaper:    ReaperConfig{Retention: time.Hour, Mode: ReaperModeInline},
		}
	}

	base := valid()
	require.NoError(t, base.Validate())

	exact := valid()
	exact.Reaper.Retention = exact.RateLimit.Window + exact.RateLimit.Lockout
	require.NoError(t, exact.Validate())

	for name, mutate := range map[string]func(*AppConfig){
		"unknown driver":     func(c *AppConfig) { c.Database.Driver = "mysql" },
		"missing dsn":        func(c *AppConfig) { c.Database.DSN = "" },
		"zero threshold":     func(c *AppConfig) { c.RateLimit.Threshold = 0 },
		"zero window":        func(c *AppConfig) { c.RateLimit.Window = 0 },
		"zero session ttl":   func(c *AppConfig) { c.Security.SessionTTL = 0 },
		"unknown mode":       func(c *AppConfig) { c.Reaper.Mode = "cron" },
		"queue without addr": func(c *AppConfig) { c.Reaper.Mode = ReaperModeQueue },
		"retention shorter than lockout": func(c *AppConfig) {
			c.RateLimit.Window = 15 * time.Minute
			c.RateLimit.Lockout = 30 * time.Minute
			c.Reaper.Retention = 10 * time.Minute
		},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
