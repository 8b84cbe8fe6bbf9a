package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	storeAttempts     = 3
	storeRetryBackoff = 100 * time.Millisecond
)

// Service is the façade the HTTP layer calls. It drives the per-identity
// state machine Unregistered -> PendingVerification -> Verified (OAuth
// accounts skip straight to Verified) and retries transient store failures
// with a short bounded backoff before surfacing them.
type Service struct {
	Users      UserStore
	Challenges *ChallengeManager
	Hasher     PasswordHasher
	Auth       *Authenticator
	Federation *Federator
	Log        zerolog.Logger

	// NoEmailVerify stamps new registrations verified immediately; used for
	// local development without an SMTP server.
	NoEmailVerify bool

	now func() time.Time
}

func NewService(users UserStore, challenges *ChallengeManager, hasher PasswordHasher, log zerolog.Logger) *Service {
	return &Service{
		Users:      users,
		Challenges: challenges,
		Hasher:     hasher,
		Auth:       NewAuthenticator(users, hasher),
		Federation: NewFederator(users),
		Log:        log,
		now:        time.Now,
	}
}

// Register creates a local account in PendingVerification and issues its
// first challenge. A normalized-email duplicate fails with ErrEmailTaken
// regardless of whether the existing account is local or OAuth-only.
func (s *Service) Register(ctx context.Context, email, password string, name *string, locale string) (*User, error) {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	params := CreateUserParams{
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
		Role:         RoleCustomer,
	}
	if s.NoEmailVerify {
		now := s.now().UTC()
		params.EmailVerifiedAt = &now
	}

	var user *User
	err = s.withRetry(ctx, func() error {
		var createErr error
		user, createErr = s.Users.Create(ctx, params)
		return createErr
	})
	if err != nil {
		return nil, err
	}

	if !s.NoEmailVerify {
		if _, err := s.Challenges.Issue(ctx, user, PurposeSignup, locale); err != nil {
			// The account exists; the user can still request a resend.
			s.Log.Error().Err(err).Str("user_id", user.ID).Msg("initial verification challenge failed")
			return nil, err
		}
	}

	return user, nil
}

// VerifyByCode consumes the signup challenge matching the form-entered code
// and stamps the account verified. Verifying an already-verified account is
// a no-op success.
func (s *Service) VerifyByCode(ctx context.Context, email, code string) (*User, error) {
	var user *User
	err := s.withRetry(ctx, func() error {
		var findErr error
		user, findErr = s.Users.FindByEmail(ctx, email)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Indistinguishable from a wrong code, so the endpoint cannot be
		// used to discover which emails are registered.
		return nil, ErrNoActiveChallenge
	}
	if user.Verified() {
		return user, nil
	}

	if err := s.Challenges.ConsumeCode(ctx, user.ID, PurposeSignup, code); err != nil {
		return nil, err
	}

	return s.markVerified(ctx, user)
}

// VerifyByToken is the emailed-link variant of VerifyByCode.
func (s *Service) VerifyByToken(ctx context.Context, token string) (*User, error) {
	userID, err := s.Challenges.ConsumeToken(ctx, PurposeSignup, token)
	if err != nil {
		return nil, err
	}

	var user *User
	err = s.withRetry(ctx, func() error {
		var findErr error
		user, findErr = s.Users.FindByID(ctx, userID)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return s.markVerified(ctx, user)
}

func (s *Service) markVerified(ctx context.Context, user *User) (*User, error) {
	now := s.now().UTC()
	err := s.withRetry(ctx, func() error {
		return s.Users.SetEmailVerified(ctx, user.ID, now)
	})
	if err != nil {
		return nil, err
	}
	if user.EmailVerifiedAt == nil {
		user.EmailVerifiedAt = &now
	}
	return user, nil
}

// ResendVerification re-issues the signup challenge. An unknown or already
// verified email reports success without doing anything, while an active
// cooldown surfaces as a CooldownError.
func (s *Service) ResendVerification(ctx context.Context, email, locale string) error {
	var user *User
	err := s.withRetry(ctx, func() error {
		var findErr error
		user, findErr = s.Users.FindByEmail(ctx, email)
		return findErr
	})
	if err != nil {
		return err
	}
	if user == nil || user.Verified() {
		return nil
	}

	_, err = s.Challenges.Resend(ctx, user, PurposeSignup, locale)
	return err
}

// Login delegates to the credential authenticator.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	return s.Auth.Authenticate(ctx, email, password)
}

// OAuthCallback delegates to the federation handler.
func (s *Service) OAuthCallback(ctx context.Context, assertion Assertion) (*User, error) {
	var user *User
	err := s.withRetry(ctx, func() error {
		var fedErr error
		user, fedErr = s.Federation.Federate(ctx, assertion)
		return fedErr
	})
	return user, err
}

// ForgotPassword issues a reset challenge for local accounts. The caller
// reports success regardless, so the endpoint leaks nothing; OAuth-only
// accounts are told by email to use their provider instead.
func (s *Service) ForgotPassword(ctx context.Context, email, locale string) (*User, bool, error) {
	var user *User
	err := s.withRetry(ctx, func() error {
		var findErr error
		user, findErr = s.Users.FindByEmail(ctx, email)
		return findErr
	})
	if err != nil || user == nil {
		return nil, false, err
	}
	if user.PasswordHash == nil {
		return user, false, nil
	}

	if _, err := s.Challenges.Resend(ctx, user, PurposeReset, locale); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ResetPassword consumes a reset-link token and replaces the password.
// Returns the affected user id so the caller can revoke open sessions.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	userID, err := s.Challenges.ConsumeToken(ctx, PurposeReset, token)
	if err != nil {
		return "", err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return "", err
	}

	err = s.withRetry(ctx, func() error {
		return s.Users.UpdatePassword(ctx, userID, hash)
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// withRetry re-attempts an operation on store-level failures. Domain
// outcomes (conflicts, mismatches, cooldowns) pass through untouched.
func (s *Service) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		err = op()
		if domainError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == storeAttempts {
			break
		}
		s.Log.Warn().Err(err).Int("attempt", attempt).Msg("store operation failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * storeRetryBackoff):
		}
	}
	return err
}
