package sqlite

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"bistro/auth/internal/models"
)

type RateLimitRepository struct {
	db *bun.DB
}

func NewRateLimitRepository(db *bun.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// SQLite serializes writers, so the single upsert statement is atomic per row.
// The SET expressions all read the pre-update row.
const hitQuery = `
	INSERT INTO rate_limits (identifier, action, attempts, last_attempt, lockout_until)
	VALUES (?, ?, 1, ?, NULL)
	ON CONFLICT (identifier, action) DO UPDATE SET
		attempts = CASE
			WHEN rate_limits.lockout_until IS NOT NULL AND rate_limits.lockout_until > ? THEN rate_limits.attempts
			WHEN rate_limits.lockout_until IS NOT NULL OR rate_limits.last_attempt < ? THEN 1
			ELSE rate_limits.attempts + 1
		END,
		last_attempt = CASE
			WHEN rate_limits.lockout_until IS NOT NULL AND rate_limits.lockout_until > ? THEN rate_limits.last_attempt
			ELSE ?
		END,
		lockout_until = CASE
			WHEN rate_limits.lockout_until IS NOT NULL AND rate_limits.lockout_until > ? THEN rate_limits.lockout_until
			WHEN rate_limits.lockout_until IS NOT NULL OR rate_limits.last_attempt < ? THEN NULL
			WHEN rate_limits.attempts + 1 >= ? THEN ?
			ELSE NULL
		END
	RETURNING attempts, last_attempt, lockout_until
`

func (r *RateLimitRepository) Hit(ctx context.Context, hit models.RateLimitHit) (models.RateLimitCounter, error) {
	now := toMillis(hit.Now)
	windowStart := toMillis(hit.WindowStart)

	var row rateLimitRow
	err := r.db.NewRaw(hitQuery,
		hit.Identifier, hit.Action, now,
		now, windowStart,
		now, now,
		now, windowStart, hit.Threshold, toMillis(hit.LockUntil),
	).Scan(ctx, &row)
	if err != nil {
		return models.RateLimitCounter{}, err
	}

	counter := models.RateLimitCounter{
		Identifier:  hit.Identifier,
		Action:      hit.Action,
		Attempts:    row.Attempts,
		LastAttempt: fromMillis(row.LastAttempt),
	}
	if row.LockoutUntil != nil {
		until := fromMillis(*row.LockoutUntil)
		counter.LockoutUntil = &until
	}
	return counter, nil
}

func (r *RateLimitRepository) Delete(ctx context.Context, identifier string, action string) error {
	_, err := r.db.NewDelete().
		Model((*rateLimitRow)(nil)).
		Where("identifier = ?", identifier).
		Where("action = ?", action).
		Exec(ctx)
	return err
}

func (r *RateLimitRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*rateLimitRow)(nil)).
		Where("last_attempt < ?", toMillis(before)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
