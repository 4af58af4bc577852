package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bistro/auth/internal/repository"
)

type SweepResult struct {
	SessionsDeleted      int64 `json:"sessionsDeleted"`
	RateLimitRowsDeleted int64 `json:"rateLimitRowsDeleted"`
}

// Reaper removes expired sessions and stale rate limit counters.
type Reaper struct {
	sessions     repository.SessionStore
	rateLimits   repository.RateLimitStore
	retention    time.Duration
	queryTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

func NewReaper(store repository.Store, retention time.Duration, queryTimeout time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{
		sessions:     store.Sessions(),
		rateLimits:   store.RateLimits(),
		retention:    retention,
		queryTimeout: queryTimeout,
		now:          time.Now,
		log:          log.With().Str("component", "reaper").Logger(),
	}
}

func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Sweep deletes sessions with expires_at <= now and counters whose last
// attempt is older than the retention horizon, whatever their lockout state.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	now := r.now().UTC()
	var result SweepResult

	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.sessions.DeleteExpired(gctx, now)
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		result.SessionsDeleted = n
		return nil
	})
	g.Go(func() error {
		n, err := r.rateLimits.DeleteStale(gctx, now.Add(-r.retention))
		if err != nil {
			return fmt.Errorf("delete stale rate limits: %w", err)
		}
		result.RateLimitRowsDeleted = n
		return nil
	})
	if err := g.Wait(); err != nil {
		r.log.Error().Err(err).Msg("sweep failed")
		return result, err
	}

	r.log.Info().
		Str("event", "sweep_completed").
		Int64("sessions_deleted", result.SessionsDeleted).
		Int64("rate_limit_rows_deleted", result.RateLimitRowsDeleted).
		Msg("sweep completed")
	return result, nil
}

// InvalidateAllSessionsForAccount deletes every session the account owns.
func (r *Reaper) InvalidateAllSessionsForAccount(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	n, err := r.sessions.DeleteByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}

	r.log.Info().
		Str("event", "sessions_invalidated").
		Str("account_id", accountID).
		Int64("sessions_deleted", n).
		Msg("account sessions invalidated")
	return n, nil
}
