package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/security"
)

func TestSweepRemovesOnlyExpiredSessions(t *testing.T) {
	h := newHarness(t)
	account := h.seedAccount(t, "owner@bistro.test", "correct horse battery", models.AdminRoleAdmin, true)
	ctx := context.Background()
	now := h.clock.Now()

	create := func(expires time.Time) []byte {
		hash := security.HashToken(security.GenerateToken())
		require.NoError(t, h.store.Sessions().Create(ctx, models.Session{
			TokenHash: hash,
			AccountID: account.ID,
			CreatedAt: expires.Add(-8 * time.Hour),
			ExpiresAt: expires,
		}))
		return hash
	}

	create(now.Add(-time.Hour))
	create(now)
	live := create(now.Add(time.Second))

	result, err := h.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.SessionsDeleted)

	_, err = h.store.Sessions().FindActive(ctx, live, now)
	assert.NoError(t, err)
}

func TestSweepRemovesStaleCountersRegardlessOfLockout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := h.clock.Now()

	for i := 0; i < 5; i++ {
		h.limiter.CheckAndRecord(ctx, "locked-long-ago", "admin_login")
	}
	h.limiter.CheckAndRecord(ctx, "old", "admin_login")

	h.clock.Set(start.Add(23 * time.Hour))
	h.limiter.CheckAndRecord(ctx, "recent", "admin_login")

	h.clock.Set(start.Add(25 * time.Hour))
	result, err := h.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RateLimitRowsDeleted)

	h.clock.Set(start.Add(23*time.Hour + time.Minute))
	assert.Equal(t, 1, h.counterAttempts(t, "recent"))
}

func TestSweepReportsStoreErrors(t *testing.T) {
	cfg := testConfig()
	backend := openStore(t, cfg)
	store := sessionStoreOverride{
		Store:    backend,
		sessions: failingExpiry{brokenSessionStore{SessionStore: backend.Sessions(), err: errors.New("locked")}},
	}
	h := newHarnessWithStore(t, cfg, store, nil)

	_, err := h.reaper.Sweep(context.Background())
	assert.ErrorContains(t, err, "delete expired sessions")
}

type failingExpiry struct {
	brokenSessionStore
}

func (f failingExpiry) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func TestInvalidateAllSessionsForAccount(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "owner@bistro.test", "correct horse battery", models.AdminRoleAdmin, true)
	other := h.seedAccount(t, "sous@bistro.test", "correct horse battery", models.AdminRoleAdmin, true)
	ctx := context.Background()

	first, err := h.login("owner@bistro.test", "correct horse battery", office)
	require.NoError(t, err)
	second, err := h.login("owner@bistro.test", "correct horse battery", laptop)
	require.NoError(t, err)
	kept, err := h.login("sous@bistro.test", "correct horse battery", office)
	require.NoError(t, err)

	n, err := h.reaper.InvalidateAllSessionsForAccount(ctx, first.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = h.sessions.Resolve(ctx, first.Token, office)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = h.sessions.Resolve(ctx, second.Token, laptop)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	identity, err := h.sessions.Resolve(ctx, kept.Token, office)
	require.NoError(t, err)
	assert.Equal(t, other.ID, identity.ID)
}

type stallingRateLimits struct {
	repository.RateLimitStore
}

func (stallingRateLimits) DeleteStale(ctx context.Context, _ time.Time) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type rateLimitOverride struct {
	repository.Store
	limits repository.RateLimitStore
}

func (s rateLimitOverride) RateLimits() repository.RateLimitStore { return s.limits }

func TestSweepHonoursQueryTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Database.QueryTimeout = 50 * time.Millisecond
	backend := openStore(t, cfg)
	store := rateLimitOverride{Store: backend, limits: stallingRateLimits{RateLimitStore: backend.RateLimits()}}
	reaper := NewReaper(store, cfg.Reaper.Retention, cfg.Database.QueryTimeout, zerolog.Nop())

	started := time.Now()
	_, err := reaper.Sweep(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), time.Second)
}

func TestSweepKeepsActiveLockouts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := h.clock.Now()

	for i := 0; i < 5; i++ {
		h.limiter.CheckAndRecord(ctx, "1.2.3.4", "admin_login")
	}

	h.clock.Set(start.Add(11 * time.Minute))
	require.False(t, h.limiter.CheckAndRecord(ctx, "1.2.3.4", "admin_login").Allowed)

	result, err := h.reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.RateLimitRowsDeleted)

	h.clock.Set(start.Add(20 * time.Minute))
	assert.False(t, h.limiter.CheckAndRecord(ctx, "1.2.3.4", "admin_login").Allowed)
}
