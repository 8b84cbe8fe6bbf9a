package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Assertion is the provider-verified identity received during an OAuth
// callback. It is never persisted; only the resulting User and the provider
// account link are.
type Assertion struct {
	Provider  string
	AccountID string
	Email     string
	Name      string
}

// Federator exchanges a provider assertion for a local user, creating one on
// first sight. Matching is by normalized email, so a local account and a
// Google sign-in with the same address always resolve to one User.
type Federator struct {
	Users UserStore

	now func() time.Time
}

func NewFederator(users UserStore) *Federator {
	return &Federator{Users: users, now: time.Now}
}

// Federate is idempotent and race safe: concurrent callbacks for the same
// new email both end up with the same user id. The store's unique-email
// constraint is the arbiter; losing the insert race means someone else just
// created the account, so we re-read and return the winner.
func (f *Federator) Federate(ctx context.Context, assertion Assertion) (*User, error) {
	email := NormalizeEmail(assertion.Email)
	if email == "" {
		return nil, errors.New("assertion is missing an email")
	}

	user, err := f.Users.FindByOAuthAccount(ctx, assertion.Provider, assertion.AccountID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user, err = f.Users.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
	}

	if user == nil {
		verifiedAt := f.now().UTC()
		params := CreateUserParams{
			Email:           email,
			Role:            RoleCustomer,
			EmailVerifiedAt: &verifiedAt, // the provider already verified the mailbox
		}
		if name := strings.TrimSpace(assertion.Name); name != "" {
			params.Name = &name
		}

		user, err = f.Users.Create(ctx, params)
		if errors.Is(err, ErrEmailTaken) {
			user, err = f.Users.FindByEmail(ctx, email)
			if err == nil && user == nil {
				err = ErrUserNotFound
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if err := f.Users.LinkOAuthAccount(ctx, user.ID, assertion.Provider, assertion.AccountID); err != nil {
		return nil, err
	}

	return user, nil
}
