package server

import (
	"errors"
	"net/http"

	"github.com/Elissa100/kapee-shop/internal/auth"
	"github.com/Elissa100/kapee-shop/internal/i18n"
)

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	locale := i18n.LocaleFromRequest(r)

	user, issued, err := s.Auth.ForgotPassword(ctx, auth.NormalizeEmail(req.Email), locale)
	var cooldown *auth.CooldownError
	if err != nil && !errors.As(err, &cooldown) {
		s.writeStoreError(w, err, "forgot password failed")
		return
	}

	// OAuth-only accounts get a pointer to their provider instead of a
	// reset link they could never use.
	if user != nil && !issued && cooldown == nil && !user.HasPassword() {
		content := i18n.OAuthNoticeEmail(locale)
		if sendErr := s.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML); sendErr != nil {
			s.Log.Error().Err(sendErr).Msg("oauth notice email failed")
		}
	}

	// One answer for every outcome, including an active cooldown, so the
	// endpoint reveals nothing about which emails are registered.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If the account exists, a password reset email has been sent.",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	userID, err := s.Auth.ResetPassword(ctx, req.Token, req.NewPassword)
	if err != nil {
		s.writeVerifyFailure(w, err)
		return
	}

	// A reset proves mailbox control, not possession of open sessions.
	if err := s.Sessions.DeleteByUser(ctx, userID); err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Msg("session revocation after reset failed")
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. Please sign in with your new password.",
	})
}
