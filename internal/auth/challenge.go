package auth

import "time"

type ChallengePurpose string

const (
	PurposeSignup ChallengePurpose = "signup"
	PurposeReset  ChallengePurpose = "reset"
)

// Challenge is a single-use, time-boxed proof of mailbox access. Each row
// carries both delivery forms of the same challenge: a 6-digit code typed
// into a form and an opaque token embedded in the emailed link. Only SHA-256
// hashes of both are stored.
//
// At most one challenge per (user, purpose) exists at a time: issuing a new
// one overwrites the previous row, which supersedes it atomically.
type Challenge struct {
	UserID     string
	Purpose    ChallengePurpose
	CodeHash   string
	TokenHash  string
	SentTo     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// ActiveAt reports whether the challenge can still be consumed at the given
// instant. Expiry is evaluated lazily at use time; rows are never evicted by
// a background timer.
func (c *Challenge) ActiveAt(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}
