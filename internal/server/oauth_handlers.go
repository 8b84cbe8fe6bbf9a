package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Elissa100/kapee-shop/internal/auth"
	"github.com/Elissa100/kapee-shop/internal/i18n"
)

const (
	oauthStatePrefix   = "oauth_state:"
	oauthStateTTL      = 10 * time.Minute
	oauthPendingPrefix = "oauth_pending:"
	oauthPendingTTL    = 10 * time.Minute

	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type oauthState struct {
	ReturnTo string `json:"returnTo"`
}

type oauthPendingLogin struct {
	UserID   string `json:"userId"`
	ReturnTo string `json:"returnTo"`
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	returnTo := sanitizeReturnTo(r.URL.Query().Get("returnTo"))
	if !s.Config.Google.Configured() {
		s.oauthErrorRedirect(w, r, returnTo, "provider_unavailable")
		return
	}

	state := auth.NewSessionID()
	raw, _ := json.Marshal(oauthState{ReturnTo: returnTo})
	if err := s.Redis.Set(r.Context(), oauthStatePrefix+state, raw, oauthStateTTL).Err(); err != nil {
		s.Log.Error().Err(err).Msg("oauth state persist failed")
		s.oauthErrorRedirect(w, r, returnTo, "state_persist_failed")
		return
	}

	u, _ := url.Parse(googleAuthURL)
	q := u.Query()
	q.Set("client_id", s.Config.Google.ClientID)
	q.Set("redirect_uri", s.Config.Google.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	returnTo := "/"
	ctx := r.Context()
	locale := i18n.LocaleFromRequest(r)

	stateParam := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if stateParam == "" || code == "" {
		s.oauthErrorRedirect(w, r, returnTo, "missing_state")
		return
	}

	rawState, err := s.Redis.Get(ctx, oauthStatePrefix+stateParam).Bytes()
	if err != nil {
		s.Log.Warn().Err(err).Msg("oauth state lookup failed")
		s.oauthErrorRedirect(w, r, returnTo, "state_invalid")
		return
	}
	_ = s.Redis.Del(ctx, oauthStatePrefix+stateParam).Err()

	var st oauthState
	_ = json.Unmarshal(rawState, &st)
	returnTo = sanitizeReturnTo(st.ReturnTo)

	token, err := s.exchangeGoogleCode(ctx, code)
	if err != nil {
		s.Log.Error().Err(err).Msg("oauth token exchange failed")
		s.oauthErrorRedirect(w, r, returnTo, "token_exchange_failed")
		return
	}

	assertion, err := fetchGoogleUser(ctx, token)
	if err != nil {
		s.Log.Error().Err(err).Msg("oauth profile fetch failed")
		s.oauthErrorRedirect(w, r, returnTo, "profile_fetch_failed")
		return
	}
	if assertion.Email == "" {
		s.oauthErrorRedirect(w, r, returnTo, "email_required")
		return
	}

	user, err := s.Auth.OAuthCallback(ctx, assertion)
	if err != nil {
		s.Log.Error().Err(err).Msg("oauth federation failed")
		s.oauthErrorRedirect(w, r, returnTo, "federation_failed")
		return
	}

	// Federated sign-ins still honour the account's 2FA. Park the login and
	// let the frontend collect a code.
	if user.TwoFactorEnabled {
		pendingID := auth.NewSessionID()
		raw, _ := json.Marshal(oauthPendingLogin{UserID: user.ID, ReturnTo: returnTo})
		if err := s.Redis.Set(ctx, oauthPendingPrefix+pendingID, raw, oauthPendingTTL).Err(); err != nil {
			s.Log.Error().Err(err).Msg("oauth pending store failed")
			s.oauthErrorRedirect(w, r, returnTo, "two_factor_failed")
			return
		}

		u := &url.URL{Path: "/login"}
		q := u.Query()
		q.Set("oauth_pending", pendingID)
		q.Set("oauth_return", returnTo)
		u.RawQuery = q.Encode()
		http.Redirect(w, r, u.String(), http.StatusFound)
		return
	}

	sess, err := s.createSession(ctx, user, r, false)
	if err != nil {
		s.Log.Error().Err(err).Msg("oauth session create failed")
		s.oauthErrorRedirect(w, r, returnTo, "session_failed")
		return
	}

	s.RateLimiter.ResetLogin(ctx, clientIP(r, s.trustedProxies))
	auth.SetSessionCookie(w, sess.ID, sess.ExpiresAt)
	_ = s.sendSignInAlert(ctx, user, sess, locale)

	http.Redirect(w, r, returnTo, http.StatusFound)
}

func (s *Server) handleGoogleTwoFactor(w http.ResponseWriter, r *http.Request) {
	pendingID := r.URL.Query().Get("pending")
	if pendingID == "" {
		writeError(w, http.StatusBadRequest, "Missing pending token")
		return
	}

	var req twoFactorCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid code")
		return
	}

	ctx := r.Context()
	raw, err := s.Redis.Get(ctx, oauthPendingPrefix+pendingID).Bytes()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expired or invalid challenge")
		return
	}

	var pending oauthPendingLogin
	if err := json.Unmarshal(raw, &pending); err != nil {
		writeError(w, http.StatusBadRequest, "Corrupt challenge")
		return
	}

	user, err := s.Users.FindByID(ctx, pending.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusBadRequest, "User not found")
		return
	}

	// The pending record outlives a handful of guesses, so the same
	// per-user attempt counter as password login applies here.
	if s.RateLimiter.Is2FALocked(ctx, user.ID) {
		writeError(w, http.StatusTooManyRequests, "TOO_MANY_2FA_ATTEMPTS")
		return
	}
	if user.TwoFactorSecret == nil || !s.TOTP.Verify(*user.TwoFactorSecret, req.Code) {
		locked, _ := s.RateLimiter.Register2FAFailure(ctx, user.ID)
		if locked {
			writeError(w, http.StatusTooManyRequests, "TOO_MANY_2FA_ATTEMPTS")
			return
		}
		writeError(w, http.StatusForbidden, "INVALID_2FA_CODE")
		return
	}
	s.RateLimiter.Reset2FA(ctx, user.ID)
	_ = s.Redis.Del(ctx, oauthPendingPrefix+pendingID).Err()

	sess, err := s.createSession(ctx, user, r, true)
	if err != nil {
		s.writeStoreError(w, err, "oauth session create failed")
		return
	}

	auth.SetSessionCookie(w, sess.ID, sess.ExpiresAt)
	_ = s.sendSignInAlert(ctx, user, sess, i18n.LocaleFromRequest(r))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionHandle": sess.ID,
		"user":          userPayload(user),
		"returnTo":      pending.ReturnTo,
	})
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

func (s *Server) exchangeGoogleCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", s.Config.Google.ClientID)
	form.Set("client_secret", s.Config.Google.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", s.Config.Google.RedirectURL)
	form.Set("grant_type", "authorization_code")

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tok googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("missing access token")
	}
	return tok.AccessToken, nil
}

func fetchGoogleUser(ctx context.Context, accessToken string) (auth.Assertion, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return auth.Assertion{}, err
	}
	defer resp.Body.Close()

	var data struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return auth.Assertion{}, err
	}
	if data.ID == "" {
		return auth.Assertion{}, errors.New("missing provider account id")
	}

	return auth.Assertion{
		Provider:  "google",
		AccountID: data.ID,
		Email:     data.Email,
		Name:      data.Name,
	}, nil
}

func (s *Server) oauthErrorRedirect(w http.ResponseWriter, r *http.Request, returnTo, reason string) {
	u, err := url.Parse(sanitizeReturnTo(returnTo))
	if err != nil || u.IsAbs() {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("oauth_error", reason)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// sanitizeReturnTo keeps post-login redirects on this origin.
func sanitizeReturnTo(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "//") {
		return "/"
	}
	if strings.HasPrefix(raw, "/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return "/"
	}

	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
