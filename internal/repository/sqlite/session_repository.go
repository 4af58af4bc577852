package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
)

type SessionRepository struct {
	db *bun.DB
}

func NewSessionRepository(db *bun.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	row := newSessionRow(session)
	_, err := r.db.NewInsert().Model(&row).Exec(ctx)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateToken
	}
	return err
}

func (r *SessionRepository) FindActive(ctx context.Context, tokenHash []byte, now time.Time) (models.SessionRecord, error) {
	const query = `
		SELECT s.token_hash, s.account_id, s.expires_at, s.created_at, s.last_access_at, s.ip_address, s.user_agent,
		       a.email, a.display_name, a.password_hash, a.role, a.active,
		       a.created_at AS account_created_at, a.updated_at AS account_updated_at
		FROM admin_sessions AS s
		JOIN admin_accounts AS a ON a.id = s.account_id
		WHERE s.token_hash = ? AND s.expires_at > ? AND a.active = ?
		LIMIT 1
	`

	var row sessionAccountRow
	if err := r.db.NewRaw(query, tokenHash, toMillis(now), true).Scan(ctx, &row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SessionRecord{}, repository.ErrSessionNotFound
		}
		return models.SessionRecord{}, err
	}
	return row.model(), nil
}

func (r *SessionRepository) Touch(ctx context.Context, tokenHash []byte, now time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("last_access_at = ?", toMillis(now)).
		Where("token_hash = ?", tokenHash).
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash []byte) (bool, error) {
	n, err := r.delete(ctx, "token_hash = ?", tokenHash)
	return n > 0, err
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, "expires_at <= ?", toMillis(now))
}

func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	return r.delete(ctx, "account_id = ?", accountID)
}

func (r *SessionRepository) delete(ctx context.Context, where string, arg interface{}) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where(where, arg).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
