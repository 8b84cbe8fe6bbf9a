package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Elissa100/kapee-shop/internal/auth"
	"github.com/Elissa100/kapee-shop/internal/config"
)

// Mailer delivers transactional mail. Implemented by email.Sender in
// production and by fakes in tests.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type Server struct {
	Auth        *auth.Service
	Users       auth.UserStore
	Sessions    *auth.SessionStore
	RateLimiter *auth.RateLimiter
	Mailer      Mailer
	TOTP        auth.TOTPVerifier
	Redis       *redis.Client
	Config      config.Config
	Log         zerolog.Logger

	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, svc *auth.Service, sessions *auth.SessionStore, rl *auth.RateLimiter, redisClient *redis.Client, mailer Mailer, totp auth.TOTPVerifier, log zerolog.Logger) *Server {
	return &Server{
		Auth:           svc,
		Users:          svc.Users,
		Sessions:       sessions,
		RateLimiter:    rl,
		Mailer:         mailer,
		TOTP:           totp,
		Redis:          redisClient,
		Config:         cfg,
		Log:            log,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/verify-email", s.handleVerifyEmail)
	r.Get("/api/auth/verify-email", s.handleVerifyEmailLink)
	r.Post("/api/auth/resend-verification", s.handleResendVerification)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)
	r.Post("/api/auth/forgot-password", s.handleForgotPassword)
	r.Post("/api/auth/reset-password", s.handleResetPassword)

	r.Get("/api/oauth/google/start", s.handleGoogleStart)
	r.Get("/api/oauth/google/callback", s.handleGoogleCallback)
	r.Post("/api/oauth/google/two-factor", s.handleGoogleTwoFactor)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireSession)

		pr.Get("/api/auth/me", s.handleMe)

		pr.Get("/api/sessions", s.handleListSessions)
		pr.Delete("/api/sessions/{id}", s.handleDeleteSession)

		pr.Post("/api/two-factor/setup-start", s.handleTwoFactorSetupStart)
		pr.Post("/api/two-factor/setup-finalize", s.handleTwoFactorSetupFinalize)
		pr.Post("/api/two-factor/disable", s.handleTwoFactorDisable)

		pr.With(s.requireAdmin).Get("/api/admin/users/{id}", s.handleAdminGetUser)
		pr.With(s.requireAdmin).Delete("/api/admin/users/{id}/sessions", s.handleAdminRevokeSessions)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
