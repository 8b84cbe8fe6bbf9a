package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUserStore is an in-process UserStore with the same unique-email and
// link-upsert semantics as the postgres implementation. It backs the test
// suite and local development without a database.
type MemoryUserStore struct {
	mu      sync.Mutex
	users   map[string]*User  // id -> user
	byEmail map[string]string // normalized email -> id
	links   map[string]string // provider + "\x00" + accountID -> user id
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		links:   make(map[string]string),
	}
}

func (s *MemoryUserStore) Create(_ context.Context, params CreateUserParams) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(params.Email)
	if _, taken := s.byEmail[email]; taken {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	u := &User{
		ID:              uuid.NewString(),
		Name:            params.Name,
		Email:           email,
		EmailVerifiedAt: params.EmailVerifiedAt,
		PasswordHash:    params.PasswordHash,
		Role:            params.Role,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID

	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if u.EmailVerifiedAt == nil {
		stamped := at
		u.EmailVerifiedAt = &stamped
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) UpdateTwoFactorSecret(_ context.Context, id string, secret *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.TwoFactorSecret = secret
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) SetTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.TwoFactorEnabled = enabled
	if !enabled {
		u.TwoFactorSecret = nil
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) FindByOAuthAccount(_ context.Context, provider, accountID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.links[provider+"\x00"+accountID]
	if !ok {
		return nil, nil
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) LinkOAuthAccount(_ context.Context, userID, provider, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[provider+"\x00"+accountID] = userID
	return nil
}

// MemoryChallengeStore mirrors the single-row-per-identity upsert of the
// postgres store, including the compare-and-set consume.
type MemoryChallengeStore struct {
	mu   sync.Mutex
	rows map[string]*Challenge // userID + "\x00" + purpose
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{rows: make(map[string]*Challenge)}
}

func challengeKey(userID string, purpose ChallengePurpose) string {
	return userID + "\x00" + string(purpose)
}

func (s *MemoryChallengeStore) Replace(_ context.Context, ch Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch.ConsumedAt = nil
	s.rows[challengeKey(ch.UserID, ch.Purpose)] = &ch
	return nil
}

func (s *MemoryChallengeStore) Find(_ context.Context, userID string, purpose ChallengePurpose) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.rows[challengeKey(userID, purpose)]
	if !ok {
		return nil, nil
	}
	cp := *ch
	return &cp, nil
}

func (s *MemoryChallengeStore) FindByTokenHash(_ context.Context, purpose ChallengePurpose, tokenHash string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.rows {
		if ch.Purpose == purpose && ch.TokenHash == tokenHash {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryChallengeStore) Consume(_ context.Context, userID string, purpose ChallengePurpose, codeHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.rows[challengeKey(userID, purpose)]
	if !ok || ch.ConsumedAt != nil || ch.CodeHash != codeHash {
		return false, nil
	}
	stamped := at
	ch.ConsumedAt = &stamped
	return true, nil
}

func (s *MemoryChallengeStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ch := range s.rows {
		if ch.ExpiresAt.Before(cutoff) {
			delete(s.rows, key)
		}
	}
	return nil
}
