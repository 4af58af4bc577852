package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO admin_sessions (
			token_hash, account_id, expires_at, created_at, last_access_at, ip_address, user_agent
		) VALUES (
			$1, $2, $3, $4, $4, $5, $6
		)
	`

	_, err := r.pool.Exec(ctx, query,
		session.TokenHash,
		session.AccountID,
		session.ExpiresAt,
		session.CreatedAt,
		session.IPAddress,
		session.UserAgent,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateToken
	}
	return err
}

func (r *SessionRepository) FindActive(ctx context.Context, tokenHash []byte, now time.Time) (models.SessionRecord, error) {
	const query = `
		SELECT s.token_hash, s.account_id, s.expires_at, s.created_at, s.last_access_at, s.ip_address, s.user_agent,
		       a.id, a.email, a.display_name, a.password_hash, a.role, a.active, a.created_at, a.updated_at
		FROM admin_sessions s
		JOIN admin_accounts a ON a.id = s.account_id
		WHERE s.token_hash = $1 AND s.expires_at > $2 AND a.active
	`

	row := r.pool.QueryRow(ctx, query, tokenHash, now)
	var (
		record models.SessionRecord
		role   string
	)
	if err := row.Scan(
		&record.Session.TokenHash,
		&record.Session.AccountID,
		&record.Session.ExpiresAt,
		&record.Session.CreatedAt,
		&record.Session.LastAccessAt,
		&record.Session.IPAddress,
		&record.Session.UserAgent,
		&record.Account.ID,
		&record.Account.Email,
		&record.Account.DisplayName,
		&record.Account.PasswordHash,
		&role,
		&record.Account.Active,
		&record.Account.CreatedAt,
		&record.Account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SessionRecord{}, repository.ErrSessionNotFound
		}
		return models.SessionRecord{}, err
	}
	record.Account.Role = models.AdminRole(role)
	return record, nil
}

func (r *SessionRepository) Touch(ctx context.Context, tokenHash []byte, now time.Time) error {
	const query = `UPDATE admin_sessions SET last_access_at = $2 WHERE token_hash = $1`
	cmd, err := r.pool.Exec(ctx, query, tokenHash, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash []byte) (bool, error) {
	const query = `DELETE FROM admin_sessions WHERE token_hash = $1`
	cmd, err := r.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM admin_sessions WHERE expires_at <= $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	const query = `DELETE FROM admin_sessions WHERE account_id = $1`
	cmd, err := r.pool.Exec(ctx, query, accountID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
