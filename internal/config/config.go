package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ReaperModeInline = "inline"
	ReaperModeQueue  = "queue"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type QueueConfig struct {
	ClaimInterval time.Duration
}

type SecurityConfig struct {
	SessionTTL   time.Duration
	CookieName   string
	CookieSecure bool
	CookieDomain string
	CookiePath   string
	LoginPath    string
}

type RateLimitConfig struct {
	Action    string
	Threshold int
	Window    time.Duration
	Lockout   time.Duration
}

type ReaperConfig struct {
	Schedule  string
	Retention time.Duration
	Mode      string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	Logging          LoggingConfig
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Queues           QueueConfig
	Security         SecurityConfig
	RateLimit        RateLimitConfig
	Reaper           ReaperConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("BISTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if v.IsSet("security.cookiesecure") {
		cfg.Security.CookieSecure = v.GetBool("security.cookiesecure")
	} else {
		cfg.Security.CookieSecure = cfg.IsProduction()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the auth core cannot run safely with.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Database.QueryTimeout <= 0 {
		return errors.New("config: database.querytimeout must be positive")
	}
	if c.Security.SessionTTL <= 0 {
		return errors.New("config: security.sessionttl must be positive")
	}
	if c.Security.CookieName == "" {
		return errors.New("config: security.cookiename is required")
	}
	if c.RateLimit.Action == "" {
		return errors.New("config: ratelimit.action is required")
	}
	if c.RateLimit.Threshold < 1 {
		return errors.New("config: ratelimit.threshold must be at least 1")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Lockout <= 0 {
		return errors.New("config: ratelimit.window and ratelimit.lockout must be positive")
	}
	if c.Queues.ClaimInterval <= 0 {
		return errors.New("config: queues.claiminterval must be positive")
	}
	if c.Reaper.Retention <= 0 {
		return errors.New("config: reaper.retention must be positive")
	}
	// Locked counters keep their last attempt time for the whole lockout, so
	// retention has to cover window + lockout.
	if c.Reaper.Retention < c.RateLimit.Window+c.RateLimit.Lockout {
		return fmt.Errorf("config: reaper.retention %s is shorter than ratelimit.window + ratelimit.lockout (%s)",
			c.Reaper.Retention, c.RateLimit.Window+c.RateLimit.Lockout)
	}
	switch c.Reaper.Mode {
	case ReaperModeInline:
	case ReaperModeQueue:
		if c.Redis.Addr == "" {
			return errors.New("config: reaper.mode=queue requires redis.addr")
		}
	default:
		return fmt.Errorf("config: unknown reaper mode %q", c.Reaper.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("logging.level", "info")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxopen", 20)
	v.SetDefault("database.maxidle", 5)
	v.SetDefault("database.connmaxlifetime", "30m")
	v.SetDefault("database.querytimeout", "3s")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "bistro:maintenance")
	v.SetDefault("redis.group", "bistro-maintenance")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("queues.claiminterval", "10s")

	v.SetDefault("security.sessionttl", "8h")
	v.SetDefault("security.cookiename", "bistro_admin_session")
	v.SetDefault("security.cookiedomain", "")
	v.SetDefault("security.cookiepath", "/")
	v.SetDefault("security.loginpath", "/admin/login")

	v.SetDefault("ratelimit.action", "admin_login")
	v.SetDefault("ratelimit.threshold", 5)
	v.SetDefault("ratelimit.window", "15m")
	v.SetDefault("ratelimit.lockout", "30m")

	v.SetDefault("reaper.schedule", "0 */5 * * * *")
	v.SetDefault("reaper.retention", "24h")
	v.SetDefault("reaper.mode", ReaperModeInline)

	v.SetDefault("allowcorsorigins", []string{})
}
