package auth

import (
	"context"
	"time"
)

type CreateUserParams struct {
	Name            *string
	Email           string
	PasswordHash    *string
	Role            Role
	EmailVerifiedAt *time.Time
}

// UserStore is the identity store boundary. Lookups return (nil, nil) when
// no record exists; Create returns ErrEmailTaken on a unique-email violation
// so callers can decide between Conflict and read-the-winner semantics.
type UserStore interface {
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	SetEmailVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateTwoFactorSecret(ctx context.Context, id string, secret *string) error
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error

	FindByOAuthAccount(ctx context.Context, provider, accountID string) (*User, error)
	LinkOAuthAccount(ctx context.Context, userID, provider, accountID string) error
}

// ChallengeStore owns verification challenges. Replace upserts the single
// row per (user, purpose), superseding any prior challenge in the same
// operation. Consume is the compare-and-set on consumed_at, pinned to the
// challenge identified by codeHash: it returns false when the row was
// already consumed, no longer exists, or was replaced by a newer issue
// after the caller read it. That last case matters — without the identity
// check a validated-but-stale consume would burn the fresh challenge.
type ChallengeStore interface {
	Replace(ctx context.Context, ch Challenge) error
	Find(ctx context.Context, userID string, purpose ChallengePurpose) (*Challenge, error)
	FindByTokenHash(ctx context.Context, purpose ChallengePurpose, tokenHash string) (*Challenge, error)
	Consume(ctx context.Context, userID string, purpose ChallengePurpose, codeHash string, at time.Time) (bool, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error
}
