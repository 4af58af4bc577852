package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/auth/internal/models"
)

type RateLimitRepository struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepository(pool *pgxpool.Pool) *RateLimitRepository {
	return &RateLimitRepository{pool: pool}
}

// hitQuery is evaluated under the row lock ON CONFLICT takes, so concurrent
// attempts on one (identifier, action) pair are serialized.
//
//	$3 now, $4 window start, $5 threshold, $6 lockout end
const hitQuery = `
	INSERT INTO rate_limits AS rl (identifier, action, attempts, last_attempt, lockout_until)
	VALUES ($1, $2, 1, $3, NULL)
	ON CONFLICT (identifier, action) DO UPDATE SET
		attempts = CASE
			WHEN rl.lockout_until IS NOT NULL AND rl.lockout_until > $3 THEN rl.attempts
			WHEN rl.lockout_until IS NOT NULL OR rl.last_attempt < $4 THEN 1
			ELSE rl.attempts + 1
		END,
		last_attempt = CASE
			WHEN rl.lockout_until IS NOT NULL AND rl.lockout_until > $3 THEN rl.last_attempt
			ELSE $3
		END,
		lockout_until = CASE
			WHEN rl.lockout_until IS NOT NULL AND rl.lockout_until > $3 THEN rl.lockout_until
			WHEN rl.lockout_until IS NOT NULL OR rl.last_attempt < $4 THEN NULL
			WHEN rl.attempts + 1 >= $5::int THEN $6::timestamptz
			ELSE NULL
		END
	RETURNING attempts, last_attempt, lockout_until
`

func (r *RateLimitRepository) Hit(ctx context.Context, hit models.RateLimitHit) (models.RateLimitCounter, error) {
	counter := models.RateLimitCounter{
		Identifier: hit.Identifier,
		Action:     hit.Action,
	}
	row := r.pool.QueryRow(ctx, hitQuery,
		hit.Identifier,
		hit.Action,
		hit.Now,
		hit.WindowStart,
		hit.Threshold,
		hit.LockUntil,
	)
	if err := row.Scan(&counter.Attempts, &counter.LastAttempt, &counter.LockoutUntil); err != nil {
		return models.RateLimitCounter{}, err
	}
	return counter, nil
}

func (r *RateLimitRepository) Delete(ctx context.Context, identifier string, action string) error {
	const query = `DELETE FROM rate_limits WHERE identifier = $1 AND action = $2`
	_, err := r.pool.Exec(ctx, query, identifier, action)
	return err
}

func (r *RateLimitRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM rate_limits WHERE last_attempt < $1`
	cmd, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
