package auth

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// User is the single identity record shared by local (password) and
// OAuth-federated accounts. PasswordHash is nil for accounts created purely
// through a provider, so "has a password" is a direct predicate rather than
// a sentinel value.
type User struct {
	ID               string
	Name             *string
	Email            string
	EmailVerifiedAt  *time.Time
	PasswordHash     *string
	Role             Role
	TwoFactorSecret  *string
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) Verified() bool {
	return u.EmailVerifiedAt != nil
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil
}

// NormalizeEmail is applied before every lookup and insert so that the
// unique-email invariant holds case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
