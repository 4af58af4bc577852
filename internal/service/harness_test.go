package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bistro/auth/internal/config"
	"bistro/auth/internal/database"
	"bistro/auth/internal/ids"
	"bistro/auth/internal/models"
	"bistro/auth/internal/ratelimit"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/security"
)

var testHashParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    repository.Store
	cfg      *config.AppConfig
	clock    *fakeClock
	limiter  *ratelimit.Limiter
	auth     *AuthService
	sessions *SessionService
	reaper   *Reaper
	accounts *AccountService
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			DSN:          "file::memory:",
			QueryTimeout: time.Second,
			Migrate:      true,
		},
		Security: config.SecurityConfig{
			SessionTTL: 8 * time.Hour,
			CookieName: "bistro_admin_session",
		},
		RateLimit: config.RateLimitConfig{
			Action:    "admin_login",
			Threshold: 5,
			Window:    15 * time.Minute,
			Lockout:   30 * time.Minute,
		},
		Reaper: config.ReaperConfig{
			Retention: 24 * time.Hour,
			Mode:      config.ReaperModeInline,
		},
	}
}

func openStore(t *testing.T, cfg *config.AppConfig) repository.Store {
	t.Helper()
	store, err := database.Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testConfig()
	return newHarnessWithStore(t, cfg, openStore(t, cfg), nil)
}

// newHarnessWithStore lets a test swap the rate limit store independently of
// the rest of the backend.
func newHarnessWithStore(t *testing.T, cfg *config.AppConfig, store repository.Store, limits repository.RateLimitStore) *harness {
	t.Helper()
	if limits == nil {
		limits = store.RateLimits()
	}

	clock := &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
	log := zerolog.Nop()

	limiter := ratelimit.NewLimiter(limits, cfg.RateLimit, cfg.Database.QueryTimeout, log).WithClock(clock.Now)
	reaper := NewReaper(store, cfg.Reaper.Retention, cfg.Database.QueryTimeout, log).WithClock(clock.Now)

	return &harness{
		store:    store,
		cfg:      cfg,
		clock:    clock,
		limiter:  limiter,
		auth:     NewAuthService(store, limiter, cfg, log).WithClock(clock.Now),
		sessions: NewSessionService(store, cfg.Database.QueryTimeout, log).WithClock(clock.Now),
		reaper:   reaper,
		accounts: NewAccountService(store, reaper, log),
	}
}

func (h *harness) seedAccount(t *testing.T, email string, password string, role models.AdminRole, active bool) models.AdminAccount {
	t.Helper()
	hash, err := security.HashPasswordWithParams(password, testHashParams)
	require.NoError(t, err)

	account := models.AdminAccount{
		ID:           ids.New(),
		Email:        models.NormalizeEmail(email),
		DisplayName:  "Head Chef",
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	require.NoError(t, h.store.Accounts().Create(context.Background(), account))
	return account
}

func (h *harness) login(email string, password string, client models.ClientInfo) (LoginResult, error) {
	return h.auth.Authenticate(context.Background(), LoginInput{Email: email, Password: password, Client: client})
}

// counterAttempts reports the attempt count a fresh hit would observe minus
// the hit itself, i.e. 0 when no counter row exists.
func (h *harness) counterAttempts(t *testing.T, identifier string) int {
	t.Helper()
	now := h.clock.Now()
	counter, err := h.store.RateLimits().Hit(context.Background(), models.RateLimitHit{
		Identifier:  identifier,
		Action:      h.cfg.RateLimit.Action,
		Now:         now,
		WindowStart: now.Add(-h.cfg.RateLimit.Window),
		Threshold:   1000,
		LockUntil:   now.Add(h.cfg.RateLimit.Lockout),
	})
	require.NoError(t, err)
	return counter.Attempts - 1
}

var (
	office = models.ClientInfo{IP: "1.2.3.4", UserAgent: "Mozilla/5.0 (Macintosh)"}
	laptop = models.ClientInfo{IP: "5.6.7.8", UserAgent: "Mozilla/5.0 (X11; Linux)"}
)

type sessionStoreOverride struct {
	repository.Store
	sessions repository.SessionStore
}

func (s sessionStoreOverride) Sessions() repository.SessionStore { return s.sessions }

// brokenSessionStore fails every write and lookup; other calls reach the
// embedded store.
type brokenSessionStore struct {
	repository.SessionStore
	err error
}

func (b brokenSessionStore) Create(context.Context, models.Session) error { return b.err }

func (b brokenSessionStore) FindActive(context.Context, []byte, time.Time) (models.SessionRecord, error) {
	return models.SessionRecord{}, b.err
}

func (b brokenSessionStore) Delete(context.Context, []byte) (bool, error) { return false, b.err }
