package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/security"
)

// SessionService resolves presented tokens into identities. Any failure,
// including a store timeout, resolves to ErrNotAuthenticated.
type SessionService struct {
	sessions     repository.SessionStore
	queryTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

func NewSessionService(store repository.Store, queryTimeout time.Duration, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions:     store.Sessions(),
		queryTimeout: queryTimeout,
		now:          time.Now,
		log:          log.With().Str("component", "sessions").Logger(),
	}
}

func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Resolve returns the identity behind token if the session is live and the
// presenting client matches the binding captured at login. A mismatch
// destroys the session.
func (s *SessionService) Resolve(ctx context.Context, token string, client models.ClientInfo) (models.Identity, error) {
	record, err := s.lookup(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}

	check := security.CheckBinding(record.Session, client)
	if check.Mismatch() {
		s.revokeMismatched(ctx, token, record, client, check)
		return models.Identity{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, ErrBindingMismatch)
	}

	s.touch(ctx, token)
	return record.Account.Identity(), nil
}

// ResolveWithoutBinding skips the client comparison. It exists for callers
// with no request context and must name why; every call is logged.
func (s *SessionService) ResolveWithoutBinding(ctx context.Context, token string, reason string) (models.Identity, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Identity{}, fmt.Errorf("%w: unbound resolve requires a reason", ErrInvalidInput)
	}

	record, err := s.lookup(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}

	s.log.Warn().
		Str("event", "session_unbound_resolve").
		Str("reason", reason).
		Str("account_id", record.Account.ID).
		Str("session", security.TokenFingerprint(token)).
		Msg("session resolved without binding check")

	s.touch(ctx, token)
	return record.Account.Identity(), nil
}

func (s *SessionService) lookup(ctx context.Context, token string) (models.SessionRecord, error) {
	if token == "" {
		return models.SessionRecord{}, ErrNotAuthenticated
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	record, err := s.sessions.FindActive(ctx, security.HashToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.SessionRecord{}, ErrNotAuthenticated
		}
		s.log.Error().Err(err).Str("session", security.TokenFingerprint(token)).Msg("session lookup failed")
		return models.SessionRecord{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	return record, nil
}

func (s *SessionService) revokeMismatched(
	ctx context.Context,
	token string,
	record models.SessionRecord,
	client models.ClientInfo,
	check security.BindingCheck,
) {
	s.log.Warn().
		Str("event", "session_binding_mismatch").
		Str("account_id", record.Account.ID).
		Str("session", security.TokenFingerprint(token)).
		Bool("ip_mismatch", check.IPMismatch).
		Bool("user_agent_mismatch", check.UserAgentMismatch).
		Str("bound_ip", record.Session.Binding().IP).
		Str("presented_ip", client.IP).
		Msg("session revoked")

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	if _, err := s.sessions.Delete(ctx, record.Session.TokenHash); err != nil {
		s.log.Error().Err(err).Str("session", security.TokenFingerprint(token)).Msg("delete mismatched session failed")
	}
}

func (s *SessionService) touch(ctx context.Context, token string) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := s.sessions.Touch(ctx, security.HashToken(token), s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("session", security.TokenFingerprint(token)).Msg("refresh last access failed")
	}
}
