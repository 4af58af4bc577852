package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"bistro/auth/internal/config"
	"bistro/auth/internal/models"
	"bistro/auth/internal/ratelimit"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/security"
)

type AuthService struct {
	accounts repository.AccountStore
	sessions repository.SessionStore
	limiter  *ratelimit.Limiter
	cfg      *config.AppConfig
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthService(
	store repository.Store,
	limiter *ratelimit.Limiter,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		accounts: store.Accounts(),
		sessions: store.Sessions(),
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

type LoginInput struct {
	Email    string
	Password string
	Client   models.ClientInfo
}

type LoginResult struct {
	Token   string
	Session models.Session
	Account models.Identity
}

// Authenticate turns credentials into a new bound session. Failures are one
// of ErrInvalidInput, ErrRateLimited, ErrInvalidCredentials, ErrUnauthorized
// or ErrInternal.
func (s *AuthService) Authenticate(ctx context.Context, input LoginInput) (LoginResult, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidInput
	}

	action := s.cfg.RateLimit.Action
	if err := s.checkRateLimits(ctx, action, email, input.Client.IP); err != nil {
		return LoginResult{}, err
	}

	lookupCtx, cancel := withTimeout(ctx, s.cfg.Database.QueryTimeout)
	account, err := s.accounts.FindActiveByEmail(lookupCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			security.BurnVerify(input.Password)
			s.loginFailed(email, input.Client, "unknown_account")
			return LoginResult{}, ErrInvalidCredentials
		}
		s.log.Error().Err(err).Str("email", email).Msg("account lookup failed")
		return LoginResult{}, internalError("find account", err)
	}

	if !account.Role.Valid() {
		security.BurnVerify(input.Password)
		s.loginFailed(email, input.Client, "role_not_permitted")
		return LoginResult{}, ErrUnauthorized
	}

	ok, err := security.VerifyPassword(input.Password, account.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("account_id", account.ID).Msg("stored password hash unreadable")
		return LoginResult{}, internalError("verify password", err)
	}
	if !ok {
		s.loginFailed(email, input.Client, "wrong_password")
		return LoginResult{}, ErrInvalidCredentials
	}

	token := security.GenerateToken()
	now := s.now().UTC()
	session := models.Session{
		TokenHash:    security.HashToken(token),
		AccountID:    account.ID,
		CreatedAt:    now,
		LastAccessAt: now,
		ExpiresAt:    now.Add(s.cfg.Security.SessionTTL),
		IPAddress:    models.NullableString(input.Client.IP),
		UserAgent:    models.NullableString(input.Client.UserAgent),
	}

	createCtx, cancel := withTimeout(ctx, s.cfg.Database.QueryTimeout)
	err = s.sessions.Create(createCtx, session)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("account_id", account.ID).Msg("create session failed")
		return LoginResult{}, internalError("create session", err)
	}

	for _, identifier := range identifiers(email, input.Client.IP) {
		if err := s.limiter.Reset(ctx, identifier, action); err != nil {
			s.log.Warn().Err(err).Str("identifier", identifier).Str("action", action).Msg("reset rate limit failed")
		}
	}

	s.log.Info().
		Str("event", "login_succeeded").
		Str("account_id", account.ID).
		Str("ip", input.Client.IP).
		Str("session", security.TokenFingerprint(token)).
		Msg("admin login")

	return LoginResult{
		Token:   token,
		Session: session,
		Account: account.Identity(),
	}, nil
}

// checkRateLimits records the attempt against the IP and the email. Both
// counters are always evaluated; if both block, the later lockout wins.
func (s *AuthService) checkRateLimits(ctx context.Context, action string, email string, ip string) error {
	var blockedUntil *time.Time
	for _, identifier := range identifiers(email, ip) {
		decision := s.limiter.CheckAndRecord(ctx, identifier, action)
		if decision.Allowed {
			continue
		}
		if blockedUntil == nil || decision.LockoutUntil.After(*blockedUntil) {
			blockedUntil = decision.LockoutUntil
		}
	}
	if blockedUntil == nil {
		return nil
	}

	s.log.Warn().
		Str("event", "login_rate_limited").
		Str("email", email).
		Str("ip", ip).
		Str("action", action).
		Time("lockout_until", *blockedUntil).
		Msg("login attempt rejected")
	return &RateLimitedError{LockoutUntil: *blockedUntil}
}

// identifiers lists the rate limit keys for one attempt, IP first.
// Requests without a client address only count against the email.
func identifiers(email string, ip string) []string {
	if ip == "" {
		return []string{email}
	}
	return []string{ip, email}
}

func (s *AuthService) loginFailed(email string, client models.ClientInfo, reason string) {
	s.log.Warn().
		Str("event", "login_failed").
		Str("email", email).
		Str("ip", client.IP).
		Str("action", s.cfg.RateLimit.Action).
		Str("reason", reason).
		Msg("admin login failed")
}

// Logout deletes the session behind token. It never fails from the caller's
// point of view.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Database.QueryTimeout)
	defer cancel()

	deleted, err := s.sessions.Delete(ctx, security.HashToken(token))
	if err != nil {
		s.log.Error().Err(err).Str("session", security.TokenFingerprint(token)).Msg("logout delete failed")
		return
	}
	s.log.Debug().Bool("deleted", deleted).Str("session", security.TokenFingerprint(token)).Msg("logout")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
