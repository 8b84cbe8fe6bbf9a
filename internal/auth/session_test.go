package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestSession(userID string, ttl time.Duration) Session {
	now := time.Now()
	return Session{
		ID:        NewSessionID(),
		UserID:    userID,
		IP:        "203.0.113.7",
		UserAgent: "test-agent",
		LoginTime: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := &SessionStore{Redis: testRedis(t)}
	ctx := context.Background()

	sess := newTestSession("user-1", time.Hour)
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "203.0.113.7", got.IP)
}

func TestSessionUnknownHandle(t *testing.T) {
	store := &SessionStore{Redis: testRedis(t)}

	got, err := store.Get(context.Background(), "not-a-handle")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionDelete(t *testing.T) {
	store := &SessionStore{Redis: testRedis(t)}
	ctx := context.Background()

	sess := newTestSession("user-1", time.Hour)
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, store.Delete(ctx, sess.ID))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionExpiredIsGone(t *testing.T) {
	store := &SessionStore{Redis: testRedis(t)}
	ctx := context.Background()

	sess := newTestSession("user-1", time.Hour)
	sess.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionDeleteByUser(t *testing.T) {
	store := &SessionStore{Redis: testRedis(t)}
	ctx := context.Background()

	mine1 := newTestSession("user-1", time.Hour)
	mine2 := newTestSession("user-1", time.Hour)
	other := newTestSession("user-2", time.Hour)
	for _, sess := range []Session{mine1, mine2, other} {
		require.NoError(t, store.Create(ctx, sess))
	}

	require.NoError(t, store.DeleteByUser(ctx, "user-1"))

	for _, id := range []string{mine1.ID, mine2.ID} {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	kept, err := store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestSessionListByUser(t *testing.T) {
	store := &SessionStore{Redis: testRedis(t)}
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("user-1", time.Hour)))
	require.NoError(t, store.Create(ctx, newTestSession("user-1", time.Hour)))
	require.NoError(t, store.Create(ctx, newTestSession("user-2", time.Hour)))

	sessions, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestRateLimiterLoginBan(t *testing.T) {
	rl := &RateLimiter{Redis: testRedis(t)}
	ctx := context.Background()
	ip := "198.51.100.9"

	assert.False(t, rl.IsIPBanned(ctx, ip))
	for i := 0; i < loginMaxAttempts; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, ip))
	}
	assert.True(t, rl.IsIPBanned(ctx, ip))
}

func TestRateLimiter2FAAttempts(t *testing.T) {
	rl := &RateLimiter{Redis: testRedis(t)}
	ctx := context.Background()
	userID := "user-1"

	assert.False(t, rl.Is2FALocked(ctx, userID))
	for i := 0; i < twoFAMaxAttempts-1; i++ {
		locked, err := rl.Register2FAFailure(ctx, userID)
		require.NoError(t, err)
		assert.False(t, locked)
	}
	locked, err := rl.Register2FAFailure(ctx, userID)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, rl.Is2FALocked(ctx, userID))

	// A successful code verification clears the counter.
	rl.Reset2FA(ctx, userID)
	assert.False(t, rl.Is2FALocked(ctx, userID))
}

func TestRateLimiterVerifyAttempts(t *testing.T) {
	rl := &RateLimiter{Redis: testRedis(t)}
	ctx := context.Background()

	for i := 0; i < verifyMaxAttempts-1; i++ {
		locked, _, err := rl.RegisterVerifyAttempt(ctx, "shopper@example.com")
		require.NoError(t, err)
		assert.False(t, locked)
	}
	locked, ttl, err := rl.RegisterVerifyAttempt(ctx, "shopper@example.com")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Greater(t, ttl, time.Duration(0))

	// Success clears the counter.
	rl.ResetVerify(ctx, "shopper@example.com")
	locked, _, err = rl.RegisterVerifyAttempt(ctx, "shopper@example.com")
	require.NoError(t, err)
	assert.False(t, locked)
}
