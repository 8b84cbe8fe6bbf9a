package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles brute-force attempts with redis counters. This is
// endpoint protection only; the resend cooldown on verification emails is a
// property of the challenge row itself and lives in the ChallengeManager.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts   = 5
	loginAttemptTTL    = 10 * time.Minute
	loginBanTTL        = 1 * time.Hour
	twoFAMaxAttempts   = 5
	twoFAAttemptTTL    = 10 * time.Minute
	verifyMaxAttempts  = 5
	verifyAttemptTTL   = 10 * time.Minute
	registerMaxPerIP   = 10
	registerIPTTL      = 30 * time.Minute
	registerMaxPerMail = 3
	registerMailTTL    = 30 * time.Minute
)

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	exists, _ := r.Redis.Exists(ctx, "login_ban:"+ip).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	key := "login_attempts:" + ip

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, "login_ban:"+ip, "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.Redis.Del(ctx, "login_attempts:"+ip)
}

// Is2FALocked reports whether the user has exhausted their TOTP attempts.
// Checked before verifying a code, so a locked-out caller learns nothing
// about whether their guess was right.
func (r *RateLimiter) Is2FALocked(ctx context.Context, userID string) bool {
	attempts, err := r.Redis.Get(ctx, "2fa_attempts:"+userID).Int64()
	if err != nil {
		return false
	}
	return attempts >= twoFAMaxAttempts
}

// Register2FAFailure counts failed TOTP codes per user, across every channel
// a code can be submitted on. A 6-digit space is small enough to walk inside
// the window otherwise.
func (r *RateLimiter) Register2FAFailure(ctx context.Context, userID string) (bool, error) {
	key := "2fa_attempts:" + userID

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, twoFAAttemptTTL)
	}
	return attempts >= twoFAMaxAttempts, nil
}

func (r *RateLimiter) Reset2FA(ctx context.Context, userID string) {
	r.Redis.Del(ctx, "2fa_attempts:"+userID)
}

// RegisterVerifyAttempt counts code submissions per email so a 6-digit code
// cannot be brute forced within its 5-minute lifetime.
func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, email string) (bool, time.Duration, error) {
	key := "verify_attempts:" + strings.ToLower(email)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, verifyAttemptTTL)
	}
	ttl, _ := r.Redis.TTL(ctx, key).Result()
	return attempts >= verifyMaxAttempts, ttl, nil
}

func (r *RateLimiter) ResetVerify(ctx context.Context, email string) {
	r.Redis.Del(ctx, "verify_attempts:"+strings.ToLower(email))
}

func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	limits := []struct {
		key string
		max int64
		ttl time.Duration
	}{
		{"register_attempts_ip:" + ip, registerMaxPerIP, registerIPTTL},
		{"register_attempts_email:" + strings.ToLower(email), registerMaxPerMail, registerMailTTL},
	}

	locked := false
	var ttlMax time.Duration

	for _, l := range limits {
		attempts, err := r.Redis.Incr(ctx, l.key).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, l.key, l.ttl)
		}
		if attempts >= l.max {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, l.key).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}

	return locked, ttlMax, nil
}
