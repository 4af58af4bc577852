package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
	ErrBindingMismatch    = errors.New("session binding mismatch")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// RateLimitedError carries the time the lockout ends. It matches
// ErrRateLimited with errors.Is.
type RateLimitedError struct {
	LockoutUntil time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.LockoutUntil.UTC().Format(time.RFC3339))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

const (
	MessageInvalidCredentials = "invalid credentials"
	MessageInvalidInput       = "email and password are required"
	MessageInternal           = "something went wrong, please try again"
)

// PublicMessage is the only text a caller should show for err. Wrong
// email, wrong password and insufficient role read the same.
func PublicMessage(err error) string {
	var limited *RateLimitedError
	switch {
	case errors.As(err, &limited):
		return fmt.Sprintf("too many attempts, try again after %s", limited.LockoutUntil.UTC().Format(time.RFC3339))
	case errors.Is(err, ErrInvalidInput):
		return MessageInvalidInput
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return MessageInvalidCredentials
	default:
		return MessageInternal
	}
}

func internalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
