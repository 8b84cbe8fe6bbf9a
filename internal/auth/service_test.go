package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc    *Service
	users  *MemoryUserStore
	sender *captureSender
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	users := NewMemoryUserStore()
	sender := &captureSender{}
	manager := NewChallengeManager(NewMemoryChallengeStore(), sender, zerolog.Nop(), 5*time.Minute)
	svc := NewService(users, manager, testHasher(), zerolog.Nop())

	return &serviceFixture{svc: svc, users: users, sender: sender}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	assert.False(t, user.Verified())
	assert.Equal(t, 1, f.sender.sends)

	// Unverified accounts cannot sign in yet.
	_, err = f.svc.Login(ctx, "shopper@example.com", "Sup3rSecret")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	code, _ := f.sender.last()
	verified, err := f.svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.NoError(t, err)
	assert.True(t, verified.Verified())

	logged, err := f.svc.Login(ctx, "shopper@example.com", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Shopper@Example.com", "0therSecret", nil, "en")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestVerifyUnknownEmailLooksLikeNoChallenge(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.VerifyByCode(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
}

func TestVerifyAlreadyVerifiedIsNoop(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	code, _ := f.sender.last()

	_, err = f.svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.NoError(t, err)

	// Second submission, even with a stale code, reports success.
	user, err := f.svc.VerifyByCode(ctx, "shopper@example.com", "000000")
	require.NoError(t, err)
	assert.True(t, user.Verified())
}

func TestVerifyByTokenFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	_, token := f.sender.last()

	user, err := f.svc.VerifyByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.True(t, user.Verified())
}

func TestResendVerification(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Unknown email reports success and sends nothing.
	require.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com", "en"))
	assert.Zero(t, f.sender.sends)

	_, err := f.svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)

	// The challenge issued at registration is still active.
	err = f.svc.ResendVerification(ctx, "shopper@example.com", "en")
	var cooldown *CooldownError
	assert.ErrorAs(t, err, &cooldown)

	// Verified accounts are left alone.
	code, _ := f.sender.last()
	_, err = f.svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendVerification(ctx, "shopper@example.com", "en"))
	assert.Equal(t, 1, f.sender.sends)
}

func TestNoEmailVerifySkipsChallenge(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.NoEmailVerify = true
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "dev@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	assert.True(t, user.Verified())
	assert.Zero(t, f.sender.sends)

	_, err = f.svc.Login(ctx, "dev@example.com", "Sup3rSecret")
	require.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	code, _ := f.sender.last()
	_, err = f.svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.NoError(t, err)

	user, issued, err := f.svc.ForgotPassword(ctx, "shopper@example.com", "en")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, issued)
	_, token := f.sender.last()

	userID, err := f.svc.ResetPassword(ctx, token, "BrandNewPass1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	_, err = f.svc.Login(ctx, "shopper@example.com", "Sup3rSecret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "shopper@example.com", "BrandNewPass1")
	require.NoError(t, err)

	// The reset token is single use.
	_, err = f.svc.ResetPassword(ctx, token, "AnotherPass1")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)
}

func TestForgotPasswordOAuthOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	seedUser(t, f.users, "federated@example.com", "", true)

	user, issued, err := f.svc.ForgotPassword(ctx, "federated@example.com", "en")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, issued, "no reset challenge for accounts without a password")
	assert.Zero(t, f.sender.sends)
}

// flakyUserStore fails a set number of times per operation before delegating,
// imitating transient store outages.
type flakyUserStore struct {
	*MemoryUserStore
	failures int
}

func (s *flakyUserStore) SetEmailVerified(ctx context.Context, id string, at time.Time) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.MemoryUserStore.SetEmailVerified(ctx, id, at)
}

func TestTransientStoreErrorsAreRetried(t *testing.T) {
	users := &flakyUserStore{MemoryUserStore: NewMemoryUserStore(), failures: 2}
	sender := &captureSender{}
	manager := NewChallengeManager(NewMemoryChallengeStore(), sender, zerolog.Nop(), 5*time.Minute)
	svc := NewService(users, manager, testHasher(), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	code, _ := sender.last()

	// Two transient failures are still within the retry allowance.
	user, err := svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.NoError(t, err)
	assert.True(t, user.Verified())
}

// flakyLookupStore fails FindByEmail a set number of times, covering the
// operations whose first store touch is the email lookup itself.
type flakyLookupStore struct {
	*MemoryUserStore
	failures int
}

func (s *flakyLookupStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection reset")
	}
	return s.MemoryUserStore.FindByEmail(ctx, email)
}

func TestResendAndForgotRetryTheLookup(t *testing.T) {
	users := &flakyLookupStore{MemoryUserStore: NewMemoryUserStore()}
	sender := &captureSender{}
	manager := NewChallengeManager(NewMemoryChallengeStore(), sender, zerolog.Nop(), 5*time.Minute)
	svc := NewService(users, manager, testHasher(), zerolog.Nop())
	ctx := context.Background()

	user, err := svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	code, _ := sender.last()
	_, err = svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.NoError(t, err)

	users.failures = 2
	_, issued, err := svc.ForgotPassword(ctx, "shopper@example.com", "en")
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, 2, sender.sends)

	_, token := sender.last()
	_, err = svc.ResetPassword(ctx, token, "N3wSecret!")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "shopper@example.com", "N3wSecret!")
	require.NoError(t, err)

	// Verification resend goes through the same boundary; the account is
	// already verified, so the lookup retries and then no-ops.
	users.failures = 2
	require.NoError(t, svc.ResendVerification(ctx, user.Email, "en"))
}

func TestExhaustedRetriesSurfaceTheError(t *testing.T) {
	users := &flakyUserStore{MemoryUserStore: NewMemoryUserStore(), failures: 10}
	sender := &captureSender{}
	manager := NewChallengeManager(NewMemoryChallengeStore(), sender, zerolog.Nop(), 5*time.Minute)
	svc := NewService(users, manager, testHasher(), zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, "shopper@example.com", "Sup3rSecret", nil, "en")
	require.NoError(t, err)
	code, _ := sender.last()

	_, err = svc.VerifyByCode(ctx, "shopper@example.com", code)
	require.Error(t, err)
	assert.False(t, domainError(err))
}
