package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Elissa100/kapee-shop/internal/auth"
	"github.com/Elissa100/kapee-shop/internal/i18n"
)

type registerRequest struct {
	Name     *string `json:"name"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	locale := i18n.LocaleFromRequest(r)
	ip := clientIP(r, s.trustedProxies)

	if locked, ttl, err := s.RateLimiter.RegisterRegisterAttempt(ctx, req.Email, ip); err != nil {
		s.writeStoreError(w, err, "register rate limit check failed")
		return
	} else if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"message":           "Too many signup attempts. Try again later.",
			"retryAfterSeconds": int64(ttl.Seconds()),
		})
		return
	}

	user, err := s.Auth.Register(ctx, auth.NormalizeEmail(req.Email), req.Password, req.Name, locale)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "An account with this email already exists.")
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "register failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"pendingVerification": !user.Verified(),
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	locked, ttl, err := s.RateLimiter.RegisterVerifyAttempt(ctx, req.Email)
	if err != nil {
		s.writeStoreError(w, err, "verify rate limit check failed")
		return
	}
	if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"message":           "Too many verification attempts. Try again later.",
			"retryAfterSeconds": int64(ttl.Seconds()),
		})
		return
	}

	user, err := s.Auth.VerifyByCode(ctx, auth.NormalizeEmail(req.Email), req.Code)
	if err != nil {
		s.writeVerifyFailure(w, err)
		return
	}
	s.RateLimiter.ResetVerify(ctx, req.Email)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified": true,
		"user":     userPayload(user),
	})
}

// handleVerifyEmailLink is the emailed-link variant of handleVerifyEmail.
func (s *Server) handleVerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing token")
		return
	}

	user, err := s.Auth.VerifyByToken(r.Context(), token)
	if err != nil {
		s.writeVerifyFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified": true,
		"user":     userPayload(user),
	})
}

// writeVerifyFailure maps challenge outcomes to their client-facing reason.
// All three reasons are 400: the request was understood, the value just did
// not verify.
func (s *Server) writeVerifyFailure(w http.ResponseWriter, err error) {
	var reason string
	switch {
	case errors.Is(err, auth.ErrChallengeExpired):
		reason = "Expired"
	case errors.Is(err, auth.ErrChallengeMismatch):
		reason = "Mismatch"
	case errors.Is(err, auth.ErrNoActiveChallenge), errors.Is(err, auth.ErrUserNotFound):
		reason = "NoActiveChallenge"
	default:
		s.writeStoreError(w, err, "verification failed")
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"verified": false,
		"reason":   reason,
	})
}

type resendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.Auth.ResendVerification(r.Context(), auth.NormalizeEmail(req.Email), i18n.LocaleFromRequest(r))
	var cooldown *auth.CooldownError
	if errors.As(err, &cooldown) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"message":           "A verification email was sent recently. Please wait before requesting another.",
			"retryAfterSeconds": cooldown.RetryAfterSeconds(),
		})
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "resend verification failed")
		return
	}

	// Same answer for unknown and verified emails.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If the account exists and is unverified, a verification email has been sent.",
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	locale := i18n.LocaleFromRequest(r)
	ip := clientIP(r, s.trustedProxies)

	if s.RateLimiter.IsIPBanned(ctx, ip) {
		writeError(w, http.StatusForbidden, "IP_BANNED")
		return
	}

	user, err := s.Auth.Login(ctx, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		_ = s.RateLimiter.RegisterLoginFailure(ctx, ip)
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS")
		return
	}
	if errors.Is(err, auth.ErrEmailNotVerified) {
		writeError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED")
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "login failed")
		return
	}

	if user.TwoFactorEnabled {
		if req.Code == "" {
			writeError(w, http.StatusForbidden, "TWO_FACTOR_REQUIRED")
			return
		}
		if s.RateLimiter.Is2FALocked(ctx, user.ID) {
			writeError(w, http.StatusTooManyRequests, "TOO_MANY_2FA_ATTEMPTS")
			return
		}
		if user.TwoFactorSecret == nil || !s.TOTP.Verify(*user.TwoFactorSecret, req.Code) {
			locked, _ := s.RateLimiter.Register2FAFailure(ctx, user.ID)
			_ = s.RateLimiter.RegisterLoginFailure(ctx, ip)
			if locked {
				writeError(w, http.StatusTooManyRequests, "TOO_MANY_2FA_ATTEMPTS")
				return
			}
			writeError(w, http.StatusForbidden, "INVALID_2FA_CODE")
			return
		}
		s.RateLimiter.Reset2FA(ctx, user.ID)
	}

	sess, err := s.createSession(ctx, user, r, user.TwoFactorEnabled)
	if err != nil {
		s.writeStoreError(w, err, "session create failed")
		return
	}

	s.RateLimiter.ResetLogin(ctx, ip)
	auth.SetSessionCookie(w, sess.ID, sess.ExpiresAt)
	_ = s.sendSignInAlert(ctx, user, sess, locale)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionHandle": sess.ID,
		"user":          userPayload(user),
	})
}

func (s *Server) createSession(ctx context.Context, user *auth.User, r *http.Request, twoFactorVerified bool) (auth.Session, error) {
	now := time.Now()
	ttl := s.Config.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	sess := auth.Session{
		ID:                auth.NewSessionID(),
		UserID:            user.ID,
		IP:                clientIP(r, s.trustedProxies),
		UserAgent:         r.UserAgent(),
		LoginTime:         now,
		ExpiresAt:         now.Add(ttl),
		TwoFactorVerified: twoFactorVerified,
	}
	if twoFactorVerified {
		sess.TwoFactorAt = &now
	}

	return sess, s.Sessions.Create(ctx, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := auth.SessionIDFromRequest(r); id != "" {
		_ = s.Sessions.Delete(r.Context(), id)
	}
	auth.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	sess := sessionFromContext(r.Context())
	if user == nil || sess == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payload := userPayload(user)
	payload["sessionHandle"] = sess.ID
	writeJSON(w, http.StatusOK, payload)
}

func userPayload(user *auth.User) map[string]interface{} {
	return map[string]interface{}{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"role":             user.Role,
		"emailVerified":    user.Verified(),
		"twoFactorEnabled": user.TwoFactorEnabled,
		"hasPassword":      user.HasPassword(),
	}
}
