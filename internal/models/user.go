package models

import (
	"strings"
	"time"
)

type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "super_admin"
)

// Valid reports whether the role is allowed to hold an admin session.
func (r AdminRole) Valid() bool {
	return r == AdminRoleAdmin || r == AdminRoleSuperAdmin
}

type AdminAccount struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	Role         AdminRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the public view of an account. It never carries the password hash.
type Identity struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  AdminRole `json:"role"`
}

func (a AdminAccount) Identity() Identity {
	return Identity{
		ID:    a.ID,
		Email: a.Email,
		Name:  a.DisplayName,
		Role:  a.Role,
	}
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
