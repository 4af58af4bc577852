package sqlite

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"bistro/auth/internal/repository"
)

//go:embed schema.sql
var schema string

// Store is the embedded SQLite backend for development and single-node installs.
type Store struct {
	db         *bun.DB
	accounts   *AccountRepository
	sessions   *SessionRepository
	rateLimits *RateLimitRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{
		db:         db,
		accounts:   NewAccountRepository(db),
		sessions:   NewSessionRepository(db),
		rateLimits: NewRateLimitRepository(db),
	}
}

func (s *Store) Accounts() repository.AccountStore     { return s.accounts }
func (s *Store) Sessions() repository.SessionStore     { return s.sessions }
func (s *Store) RateLimits() repository.RateLimitStore { return s.rateLimits }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
