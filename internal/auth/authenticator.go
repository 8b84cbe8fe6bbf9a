package auth

import "context"

// dummyHash is a throwaway bcrypt digest compared against whenever the
// account lookup misses, so unknown emails, OAuth-only accounts and wrong
// passwords all cost one hash verification.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Authenticator validates local password logins against the identity store.
type Authenticator struct {
	Users  UserStore
	Hasher PasswordHasher
}

func NewAuthenticator(users UserStore, hasher PasswordHasher) *Authenticator {
	return &Authenticator{Users: users, Hasher: hasher}
}

// Authenticate returns the user on success. An unknown email, an account
// without a password credential and a wrong password are all reported as
// ErrInvalidCredentials; an unverified local account fails with
// ErrEmailNotVerified only after the password checked out.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := a.Users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	if user == nil || user.PasswordHash == nil {
		a.Hasher.Compare(dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	if !a.Hasher.Compare(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !user.Verified() {
		return nil, ErrEmailNotVerified
	}

	return user, nil
}
