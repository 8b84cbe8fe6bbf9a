package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Elissa100/kapee-shop/internal/auth"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	current := sessionFromContext(r.Context())
	if user == nil || current == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := s.Sessions.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeStoreError(w, err, "session list failed")
		return
	}

	items := make([]map[string]interface{}, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, map[string]interface{}{
			"id":        sess.ID,
			"ip":        sess.IP,
			"userAgent": sess.UserAgent,
			"loginTime": sess.LoginTime,
			"expiresAt": sess.ExpiresAt,
			"current":   sess.ID == current.ID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": items})
}

// handleDeleteSession revokes one of the caller's own sessions.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	sess, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "session lookup failed")
		return
	}
	if sess == nil || sess.UserID != user.ID {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "session delete failed")
		return
	}

	if current := sessionFromContext(r.Context()); current != nil && current.ID == id {
		auth.ClearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
