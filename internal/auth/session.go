package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// Session is the server-side record behind the opaque cookie handle. It
// deliberately carries no role or verification state: those are re-read from
// the identity store on every request, so a promoted or revoked account is
// reflected immediately.
type Session struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	IP                string     `json:"ip"`
	UserAgent         string     `json:"userAgent"`
	LoginTime         time.Time  `json:"loginTime"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	TwoFactorVerified bool       `json:"twoFactorVerified"`
	TwoFactorAt       *time.Time `json:"twoFactorAt,omitempty"`
}

type SessionStore struct {
	Redis *redis.Client
}

func NewSessionID() string {
	return uuid.NewString()
}

// Create serializes the session under an opaque id with a TTL matching its
// expiry. The returned id is the session handle handed to the cookie layer.
func (s *SessionStore) Create(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.Redis.Set(ctx, sessionKeyPrefix+sess.ID, raw, ttl).Err()
}

// Get resolves a handle back to its session, or (nil, nil) when the handle
// is unknown or expired.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.Redis.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if sess.ExpiresAt.Before(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.Redis.Del(ctx, sessionKeyPrefix+id).Err()
}

// DeleteByUser revokes every session belonging to the user, e.g. after a
// password reset.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	iter := s.Redis.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		sess, err := s.Get(ctx, strings.TrimPrefix(key, sessionKeyPrefix))
		if err != nil {
			return err
		}
		if sess != nil && sess.UserID == userID {
			if err := s.Redis.Del(ctx, key).Err(); err != nil {
				return err
			}
		}
	}
	return iter.Err()
}

// ListByUser returns the user's open sessions for the account dashboard.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	var sessions []Session
	iter := s.Redis.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sess, err := s.Get(ctx, strings.TrimPrefix(iter.Val(), sessionKeyPrefix))
		if err != nil {
			return nil, err
		}
		if sess != nil && sess.UserID == userID {
			sessions = append(sessions, *sess)
		}
	}
	return sessions, iter.Err()
}
