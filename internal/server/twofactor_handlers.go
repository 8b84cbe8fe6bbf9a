package server

import (
	"net/http"
)

// handleTwoFactorSetupStart provisions a TOTP secret for the signed-in user.
// The secret stays pending until a first code proves the authenticator was
// actually enrolled.
func (s *Server) handleTwoFactorSetupStart(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if user.TwoFactorEnabled {
		writeError(w, http.StatusConflict, "Two-factor authentication is already enabled.")
		return
	}

	secret, otpauth, qr, err := s.TOTP.Generate(user.Email)
	if err != nil {
		s.Log.Error().Err(err).Msg("totp generate failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate secret")
		return
	}

	if err := s.Users.UpdateTwoFactorSecret(r.Context(), user.ID, &secret); err != nil {
		s.writeStoreError(w, err, "totp secret store failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":     secret,
		"otpauthUrl": otpauth,
		"qrCodeUrl":  qr,
	})
}

type twoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

func (s *Server) handleTwoFactorSetupFinalize(w http.ResponseWriter, r *http.Request) {
	var req twoFactorCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if user.TwoFactorSecret == nil {
		writeError(w, http.StatusBadRequest, "Two-factor setup has not been started.")
		return
	}

	if !s.TOTP.Verify(*user.TwoFactorSecret, req.Code) {
		writeError(w, http.StatusForbidden, "The code is invalid or expired.")
		return
	}

	if err := s.Users.SetTwoFactorEnabled(r.Context(), user.ID, true); err != nil {
		s.writeStoreError(w, err, "enable two-factor failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Two-factor authentication enabled.",
	})
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		writeError(w, http.StatusBadRequest, "Two-factor authentication is not enabled.")
		return
	}

	// Disabling weakens the account, so it always requires a current code.
	if !s.TOTP.Verify(*user.TwoFactorSecret, req.Code) {
		writeError(w, http.StatusForbidden, "INVALID_2FA_CODE")
		return
	}

	ctx := r.Context()
	if err := s.Users.SetTwoFactorEnabled(ctx, user.ID, false); err != nil {
		s.writeStoreError(w, err, "disable two-factor failed")
		return
	}
	if err := s.Users.UpdateTwoFactorSecret(ctx, user.ID, nil); err != nil {
		s.writeStoreError(w, err, "clear two-factor secret failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Two-factor authentication disabled.",
	})
}
