package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"bistro/auth/internal/ids"
	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/security"
)

const MinPasswordLength = 12

var ErrWeakPassword = errors.New("password too short")

// AccountService is the provisioning path for administrator accounts.
type AccountService struct {
	accounts repository.AccountStore
	reaper   *Reaper
	log      zerolog.Logger
}

func NewAccountService(store repository.Store, reaper *Reaper, log zerolog.Logger) *AccountService {
	return &AccountService{
		accounts: store.Accounts(),
		reaper:   reaper,
		log:      log.With().Str("component", "accounts").Logger(),
	}
}

type CreateAccountInput struct {
	Email    string
	Name     string
	Password string
	Role     models.AdminRole
}

func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (models.Identity, error) {
	email := models.NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return models.Identity{}, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if !input.Role.Valid() {
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}
	if err := checkPassword(input.Password); err != nil {
		return models.Identity{}, err
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.Identity{}, internalError("hash password", err)
	}

	account := models.AdminAccount{
		ID:           ids.New(),
		Email:        email,
		DisplayName:  strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.Identity{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return models.Identity{}, internalError("create account", err)
	}

	s.log.Info().Str("account_id", account.ID).Str("role", string(account.Role)).Msg("account created")
	return account.Identity(), nil
}

// ChangePassword rehashes the password and signs the account out everywhere.
func (s *AccountService) ChangePassword(ctx context.Context, accountID string, password string) (int64, error) {
	if err := checkPassword(password); err != nil {
		return 0, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return 0, internalError("hash password", err)
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hash); err != nil {
		return 0, err
	}
	return s.reaper.InvalidateAllSessionsForAccount(ctx, accountID)
}

// Deactivate blocks further logins and drops the account's sessions.
func (s *AccountService) Deactivate(ctx context.Context, accountID string) (int64, error) {
	if err := s.accounts.SetActive(ctx, accountID, false); err != nil {
		return 0, err
	}
	s.log.Info().Str("account_id", accountID).Msg("account deactivated")
	return s.reaper.InvalidateAllSessionsForAccount(ctx, accountID)
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrWeakPassword)
	}
	return nil
}
