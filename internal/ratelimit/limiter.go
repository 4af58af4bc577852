package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bistro/auth/internal/config"
	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
)

// Decision is the outcome of one recorded attempt.
type Decision struct {
	Allowed      bool
	Remaining    int
	LockoutUntil *time.Time
}

// Limiter counts attempts per (identifier, action) in a rolling window and
// locks the pair out once the threshold is reached. All state lives in the
// store; nothing is cached in process.
type Limiter struct {
	store        repository.RateLimitStore
	cfg          config.RateLimitConfig
	queryTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

func NewLimiter(store repository.RateLimitStore, cfg config.RateLimitConfig, queryTimeout time.Duration, log zerolog.Logger) *Limiter {
	return &Limiter{
		store:        store,
		cfg:          cfg,
		queryTimeout: queryTimeout,
		now:          time.Now,
		log:          log.With().Str("component", "ratelimit").Logger(),
	}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Action() string {
	return l.cfg.Action
}

// CheckAndRecord records one attempt and reports whether it may proceed.
// If the store is unreachable the attempt is allowed.
func (l *Limiter) CheckAndRecord(ctx context.Context, identifier string, action string) Decision {
	now := l.now().UTC()

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	counter, err := l.store.Hit(ctx, models.RateLimitHit{
		Identifier:  identifier,
		Action:      action,
		Now:         now,
		WindowStart: now.Add(-l.cfg.Window),
		Threshold:   l.cfg.Threshold,
		LockUntil:   now.Add(l.cfg.Lockout),
	})
	if err != nil {
		l.log.Error().
			Err(err).
			Str("event", "rate_limit_store_unavailable").
			Str("identifier", identifier).
			Str("action", action).
			Msg("rate limit store unavailable, allowing attempt")
		return Decision{Allowed: true, Remaining: l.cfg.Threshold}
	}

	if counter.Locked(now) {
		until := *counter.LockoutUntil
		return Decision{Allowed: false, Remaining: 0, LockoutUntil: &until}
	}

	remaining := l.cfg.Threshold - counter.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// Reset clears the failure history of the pair.
func (l *Limiter) Reset(ctx context.Context, identifier string, action string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.store.Delete(ctx, identifier, action)
}

func (l *Limiter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.queryTimeout)
}
