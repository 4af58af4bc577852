package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
)

const uniqueViolation = "23505"

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, account models.AdminAccount) error {
	const query = `
		INSERT INTO admin_accounts (
			id, email, display_name, password_hash, role, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		string(account.Role),
		account.Active,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	return err
}

func (r *AccountRepository) FindActiveByEmail(ctx context.Context, email string) (models.AdminAccount, error) {
	const query = `
		SELECT id, email, display_name, password_hash, role, active, created_at, updated_at
		FROM admin_accounts WHERE email = $1 AND active
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.AdminAccount, error) {
	const query = `
		SELECT id, email, display_name, password_hash, role, active, created_at, updated_at
		FROM admin_accounts WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	const query = `
		UPDATE admin_accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `
		UPDATE admin_accounts SET active = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) scanOne(row pgx.Row) (models.AdminAccount, error) {
	var (
		account models.AdminAccount
		role    string
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&role,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AdminAccount{}, repository.ErrAccountNotFound
		}
		return models.AdminAccount{}, err
	}
	account.Role = models.AdminRole(role)
	return account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
