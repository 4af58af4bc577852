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

type AccountRepository struct {
	db *bun.DB
}

func NewAccountRepository(db *bun.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account models.AdminAccount) error {
	now := toMillis(time.Now())
	row := accountRow{
		ID:           account.ID,
		Email:        account.Email,
		DisplayName:  account.DisplayName,
		PasswordHash: account.PasswordHash,
		Role:         string(account.Role),
		Active:       account.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.db.NewInsert().Model(&row).Exec(ctx)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	return err
}

func (r *AccountRepository) FindActiveByEmail(ctx context.Context, email string) (models.AdminAccount, error) {
	var row accountRow
	err := r.db.NewSelect().
		Model(&row).
		Where("email = ?", email).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	return accountOrNotFound(row, err)
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.AdminAccount, error) {
	var row accountRow
	err := r.db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	return accountOrNotFound(row, err)
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	res, err := r.db.NewUpdate().
		Model((*accountRow)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", toMillis(time.Now())).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOrNotFound(res, err)
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.NewUpdate().
		Model((*accountRow)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", toMillis(time.Now())).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOrNotFound(res, err)
}

func accountOrNotFound(row accountRow, err error) (models.AdminAccount, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AdminAccount{}, repository.ErrAccountNotFound
		}
		return models.AdminAccount{}, err
	}
	return row.model(), nil
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}
