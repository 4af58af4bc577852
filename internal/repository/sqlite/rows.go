package sqlite

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"bistro/auth/internal/models"
)

// Timestamps are stored as unix milliseconds so that range predicates
// compare numerically.

type accountRow struct {
	bun.BaseModel `bun:"table:admin_accounts"`

	ID           string `bun:"id,pk"`
	Email        string `bun:"email"`
	DisplayName  string `bun:"display_name"`
	PasswordHash []byte `bun:"password_hash"`
	Role         string `bun:"role"`
	Active       bool   `bun:"active"`
	CreatedAt    int64  `bun:"created_at"`
	UpdatedAt    int64  `bun:"updated_at"`
}

func (r accountRow) model() models.AdminAccount {
	return models.AdminAccount{
		ID:           r.ID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		Role:         models.AdminRole(r.Role),
		Active:       r.Active,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:admin_sessions"`

	TokenHash    []byte  `bun:"token_hash,pk"`
	AccountID    string  `bun:"account_id"`
	ExpiresAt    int64   `bun:"expires_at"`
	CreatedAt    int64   `bun:"created_at"`
	LastAccessAt int64   `bun:"last_access_at"`
	IPAddress    *string `bun:"ip_address"`
	UserAgent    *string `bun:"user_agent"`
}

func newSessionRow(s models.Session) sessionRow {
	return sessionRow{
		TokenHash:    s.TokenHash,
		AccountID:    s.AccountID,
		ExpiresAt:    toMillis(s.ExpiresAt),
		CreatedAt:    toMillis(s.CreatedAt),
		LastAccessAt: toMillis(s.CreatedAt),
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
	}
}

type sessionAccountRow struct {
	TokenHash        []byte  `bun:"token_hash"`
	AccountID        string  `bun:"account_id"`
	ExpiresAt        int64   `bun:"expires_at"`
	CreatedAt        int64   `bun:"created_at"`
	LastAccessAt     int64   `bun:"last_access_at"`
	IPAddress        *string `bun:"ip_address"`
	UserAgent        *string `bun:"user_agent"`
	Email            string  `bun:"email"`
	DisplayName      string  `bun:"display_name"`
	PasswordHash     []byte  `bun:"password_hash"`
	Role             string  `bun:"role"`
	Active           bool    `bun:"active"`
	AccountCreatedAt int64   `bun:"account_created_at"`
	AccountUpdatedAt int64   `bun:"account_updated_at"`
}

func (r sessionAccountRow) model() models.SessionRecord {
	return models.SessionRecord{
		Session: models.Session{
			TokenHash:    r.TokenHash,
			AccountID:    r.AccountID,
			ExpiresAt:    fromMillis(r.ExpiresAt),
			CreatedAt:    fromMillis(r.CreatedAt),
			LastAccessAt: fromMillis(r.LastAccessAt),
			IPAddress:    r.IPAddress,
			UserAgent:    r.UserAgent,
		},
		Account: models.AdminAccount{
			ID:           r.AccountID,
			Email:        r.Email,
			DisplayName:  r.DisplayName,
			PasswordHash: r.PasswordHash,
			Role:         models.AdminRole(r.Role),
			Active:       r.Active,
			CreatedAt:    fromMillis(r.AccountCreatedAt),
			UpdatedAt:    fromMillis(r.AccountUpdatedAt),
		},
	}
}

type rateLimitRow struct {
	bun.BaseModel `bun:"table:rate_limits"`

	Attempts     int    `bun:"attempts"`
	LastAttempt  int64  `bun:"last_attempt"`
	LockoutUntil *int64 `bun:"lockout_until"`
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
