package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/rs/zerolog"
)

// ChallengeSender delivers an issued challenge to the user's mailbox. The
// plaintext code and token exist only for the duration of this call.
type ChallengeSender interface {
	SendChallenge(ctx context.Context, user *User, purpose ChallengePurpose, locale, code, token string, validFor time.Duration) error
}

// ChallengeManager issues, resends and consumes verification challenges.
//
// Correctness properties it maintains:
//   - at most one active challenge per (user, purpose); issuing supersedes
//     the previous one in a single store upsert,
//   - expiry is checked before value comparison, so an expired challenge
//     never validates even when the value matches,
//   - single use, enforced by the store's compare-and-set on consumed_at,
//   - resend is refused while the prior challenge is still active; the
//     cooldown is purely a function of expires_at, no timers involved.
type ChallengeManager struct {
	store  ChallengeStore
	sender ChallengeSender
	log    zerolog.Logger
	ttl    time.Duration

	now func() time.Time
}

func NewChallengeManager(store ChallengeStore, sender ChallengeSender, log zerolog.Logger, ttl time.Duration) *ChallengeManager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ChallengeManager{
		store:  store,
		sender: sender,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a fresh challenge for the user, superseding any prior one,
// and dispatches it by email. Delivery is best effort: the stored row is the
// source of truth, so a send failure is logged but does not fail the
// operation.
func (m *ChallengeManager) Issue(ctx context.Context, user *User, purpose ChallengePurpose, locale string) (*Challenge, error) {
	code, err := NewChallengeCode()
	if err != nil {
		return nil, err
	}
	token, err := NewChallengeToken()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	ch := Challenge{
		UserID:    user.ID,
		Purpose:   purpose,
		CodeHash:  HashString(code),
		TokenHash: HashString(token),
		SentTo:    user.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Replace(ctx, ch); err != nil {
		return nil, err
	}

	// Stale rows are harmless; sweep them opportunistically while we are here.
	if err := m.store.DeleteExpiredBefore(ctx, now.Add(-24*time.Hour)); err != nil {
		m.log.Warn().Err(err).Msg("challenge garbage collection failed")
	}

	if m.sender != nil {
		if err := m.sender.SendChallenge(ctx, user, purpose, locale, code, token, m.ttl); err != nil {
			m.log.Error().Err(err).
				Str("user_id", user.ID).
				Str("purpose", string(purpose)).
				Msg("challenge email dispatch failed; challenge remains valid")
		}
	}

	return &ch, nil
}

// Resend re-issues the challenge unless the previous one is still active, in
// which case it fails with a CooldownError carrying the remaining wait.
func (m *ChallengeManager) Resend(ctx context.Context, user *User, purpose ChallengePurpose, locale string) (*Challenge, error) {
	prior, err := m.store.Find(ctx, user.ID, purpose)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.ActiveAt(m.now().UTC()) {
		return nil, &CooldownError{RetryAfter: prior.ExpiresAt.Sub(m.now().UTC())}
	}
	return m.Issue(ctx, user, purpose, locale)
}

// ConsumeCode validates a form-entered code against the user's active
// challenge and consumes it.
func (m *ChallengeManager) ConsumeCode(ctx context.Context, userID string, purpose ChallengePurpose, code string) error {
	ch, err := m.store.Find(ctx, userID, purpose)
	if err != nil {
		return err
	}
	return m.consume(ctx, ch, HashString(code))
}

// ConsumeToken validates an emailed link token and consumes the matching
// challenge, returning the owning user id.
func (m *ChallengeManager) ConsumeToken(ctx context.Context, purpose ChallengePurpose, token string) (string, error) {
	hash := HashString(token)
	ch, err := m.store.FindByTokenHash(ctx, purpose, hash)
	if err != nil {
		return "", err
	}
	if err := m.consume(ctx, ch, hash); err != nil {
		return "", err
	}
	return ch.UserID, nil
}

func (m *ChallengeManager) consume(ctx context.Context, ch *Challenge, presentedHash string) error {
	if ch == nil || ch.ConsumedAt != nil {
		return ErrNoActiveChallenge
	}

	now := m.now().UTC()

	// Expiry comes first: a matching value on a dead challenge must still fail.
	if !now.Before(ch.ExpiresAt) {
		return ErrChallengeExpired
	}

	if !challengeValueMatches(ch, presentedHash) {
		return ErrChallengeMismatch
	}

	// Pin the CAS to the challenge we validated. If a superseding issue
	// landed after the read above, the store refuses and we report no
	// active challenge instead of burning the fresh one.
	consumed, err := m.store.Consume(ctx, ch.UserID, ch.Purpose, ch.CodeHash, now)
	if err != nil {
		return err
	}
	if !consumed {
		// Lost the race to a concurrent consume or a superseding issue.
		return ErrNoActiveChallenge
	}
	return nil
}

func challengeValueMatches(ch *Challenge, presentedHash string) bool {
	codeMatch := subtle.ConstantTimeCompare([]byte(presentedHash), []byte(ch.CodeHash))
	tokenMatch := subtle.ConstantTimeCompare([]byte(presentedHash), []byte(ch.TokenHash))
	return codeMatch|tokenMatch == 1
}

// RetryAfter reports how long until a resend would be accepted for the user,
// or zero when one is allowed now.
func (m *ChallengeManager) RetryAfter(ctx context.Context, userID string, purpose ChallengePurpose) (time.Duration, error) {
	ch, err := m.store.Find(ctx, userID, purpose)
	if err != nil {
		return 0, err
	}
	now := m.now().UTC()
	if ch == nil || !ch.ActiveAt(now) {
		return 0, nil
	}
	return ch.ExpiresAt.Sub(now), nil
}
