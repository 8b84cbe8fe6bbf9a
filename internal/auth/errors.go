package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmailTaken maps the store's unique-email violation. Registration
	// surfaces it as a conflict; federation treats it as "read the winner".
	ErrEmailTaken = errors.New("email already registered")

	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials covers unknown email, OAuth-only account and
	// wrong password identically, to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrEmailNotVerified = errors.New("email not verified")

	ErrNoActiveChallenge = errors.New("no active verification challenge")
	ErrChallengeExpired  = errors.New("verification challenge expired")
	ErrChallengeMismatch = errors.New("verification value mismatch")
)

// CooldownError is returned by resend while the previous challenge is still
// active. RetryAfter is the remaining lifetime of that challenge.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend on cooldown for %s", e.RetryAfter.Round(time.Second))
}

// RetryAfterSeconds rounds up so a client never retries a second early.
func (e *CooldownError) RetryAfterSeconds() int64 {
	secs := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// domainError reports whether err is an expected outcome of the auth flows
// rather than a store failure worth retrying.
func domainError(err error) bool {
	var cooldown *CooldownError
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrEmailNotVerified),
		errors.Is(err, ErrNoActiveChallenge),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrChallengeMismatch):
		return true
	case errors.As(err, &cooldown):
		return true
	}
	return false
}
