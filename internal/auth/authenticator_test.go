package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.MinCost}
}

func seedUser(t *testing.T, store *MemoryUserStore, email, password string, verified bool) *User {
	t.Helper()

	params := CreateUserParams{Email: email, Role: RoleCustomer}
	if password != "" {
		hash, err := testHasher().Hash(password)
		require.NoError(t, err)
		params.PasswordHash = &hash
	}
	if verified {
		now := time.Now().UTC()
		params.EmailVerifiedAt = &now
	}

	user, err := store.Create(context.Background(), params)
	require.NoError(t, err)
	return user
}

func TestAuthenticateSuccess(t *testing.T) {
	store := NewMemoryUserStore()
	seeded := seedUser(t, store, "shopper@example.com", "Sup3rSecret", true)
	authn := NewAuthenticator(store, testHasher())

	user, err := authn.Authenticate(context.Background(), "shopper@example.com", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)
}

func TestAuthenticateNormalizesEmail(t *testing.T) {
	store := NewMemoryUserStore()
	seedUser(t, store, "shopper@example.com", "Sup3rSecret", true)
	authn := NewAuthenticator(store, testHasher())

	_, err := authn.Authenticate(context.Background(), "  Shopper@Example.COM ", "Sup3rSecret")
	require.NoError(t, err)
}

// All three failure shapes collapse into the same error so the endpoint
// cannot be used to discover which emails have accounts.
func TestAuthenticateFailuresAreUniform(t *testing.T) {
	store := NewMemoryUserStore()
	seedUser(t, store, "shopper@example.com", "Sup3rSecret", true)
	seedUser(t, store, "federated@example.com", "", true) // OAuth-only, no password
	authn := NewAuthenticator(store, testHasher())
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "Sup3rSecret"},
		{"wrong password", "shopper@example.com", "wrong"},
		{"oauth-only account", "federated@example.com", "Sup3rSecret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := authn.Authenticate(ctx, tc.email, tc.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestAuthenticateUnverified(t *testing.T) {
	store := NewMemoryUserStore()
	seedUser(t, store, "pending@example.com", "Sup3rSecret", false)
	authn := NewAuthenticator(store, testHasher())

	// The password is correct, so this is not an enumeration vector; the
	// caller may tell the user to verify first.
	_, err := authn.Authenticate(context.Background(), "pending@example.com", "Sup3rSecret")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	_, err = authn.Authenticate(context.Background(), "pending@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
