package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.Users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err, "admin user lookup failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, userPayload(user))
}

// handleAdminRevokeSessions force-logs-out every device of the given user,
// e.g. after a support-confirmed account takeover.
func (s *Server) handleAdminRevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := s.Sessions.DeleteByUser(r.Context(), userID); err != nil {
		s.writeStoreError(w, err, "admin session revocation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
