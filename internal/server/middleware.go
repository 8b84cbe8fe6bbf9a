package server

import (
	"context"
	"net/http"

	"github.com/Elissa100/kapee-shop/internal/auth"
)

type ctxKey string

const (
	sessionContextKey ctxKey = "session"
	userContextKey    ctxKey = "user"
)

// requireSession resolves the cookie's opaque handle and re-reads the user
// from the identity store on every request. Role and verification state are
// never trusted from the session blob, so demotions and deletions take
// effect immediately.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.SessionIDFromRequest(r)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sess, err := s.Sessions.Get(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err, "session lookup failed")
			return
		}
		if sess == nil {
			auth.ClearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "Session expired")
			return
		}

		user, err := s.Users.FindByID(r.Context(), sess.UserID)
		if err != nil {
			s.writeStoreError(w, err, "session user lookup failed")
			return
		}
		if user == nil {
			_ = s.Sessions.Delete(r.Context(), sess.ID)
			auth.ClearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if user.TwoFactorEnabled && !sess.TwoFactorVerified {
			writeError(w, http.StatusForbidden, "TWO_FACTOR_REQUIRED")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if user.Role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFromContext(ctx context.Context) *auth.Session {
	if val, ok := ctx.Value(sessionContextKey).(*auth.Session); ok {
		return val
	}
	return nil
}

func userFromContext(ctx context.Context) *auth.User {
	if val, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return val
	}
	return nil
}
