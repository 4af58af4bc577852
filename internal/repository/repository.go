package repository

import (
	"context"
	"errors"
	"time"

	"bistro/auth/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrDuplicateToken  = errors.New("session token already exists")
)

type AccountStore interface {
	// FindActiveByEmail expects an already normalized email.
	FindActiveByEmail(ctx context.Context, email string) (models.AdminAccount, error)
	GetByID(ctx context.Context, id string) (models.AdminAccount, error)
	Create(ctx context.Context, account models.AdminAccount) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	SetActive(ctx context.Context, id string, active bool) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	// FindActive returns the session only if expires_at > now and its account is active.
	FindActive(ctx context.Context, tokenHash []byte, now time.Time) (models.SessionRecord, error)
	Touch(ctx context.Context, tokenHash []byte, now time.Time) error
	Delete(ctx context.Context, tokenHash []byte) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
}

type RateLimitStore interface {
	// Hit applies one attempt as a single atomic upsert and returns the stored row.
	Hit(ctx context.Context, hit models.RateLimitHit) (models.RateLimitCounter, error)
	Delete(ctx context.Context, identifier string, action string) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// Store is the persistence backend selected once at startup.
type Store interface {
	Accounts() AccountStore
	Sessions() SessionStore
	RateLimits() RateLimitStore
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
