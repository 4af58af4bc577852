package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/auth/internal/repository"
)

//go:embed schema.sql
var schema string

// Store is the PostgreSQL backend.
type Store struct {
	pool       *pgxpool.Pool
	accounts   *AccountRepository
	sessions   *SessionRepository
	rateLimits *RateLimitRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:       pool,
		accounts:   NewAccountRepository(pool),
		sessions:   NewSessionRepository(pool),
		rateLimits: NewRateLimitRepository(pool),
	}
}

func (s *Store) Accounts() repository.AccountStore     { return s.accounts }
func (s *Store) Sessions() repository.SessionStore     { return s.sessions }
func (s *Store) RateLimits() repository.RateLimitStore { return s.rateLimits }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
