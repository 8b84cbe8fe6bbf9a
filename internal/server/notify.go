package server

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Elissa100/kapee-shop/internal/auth"
	"github.com/Elissa100/kapee-shop/internal/i18n"
)

// ChallengeMailer renders and sends challenge emails. It implements
// auth.ChallengeSender; the plaintext code and token never leave this hop.
type ChallengeMailer struct {
	Mailer  Mailer
	BaseURL string
}

func (c *ChallengeMailer) SendChallenge(ctx context.Context, user *auth.User, purpose auth.ChallengePurpose, locale, code, token string, validFor time.Duration) error {
	minutes := int((validFor + time.Minute - 1) / time.Minute)

	var content i18n.EmailContent
	switch purpose {
	case auth.PurposeSignup:
		link := c.link("/verify-email", token)
		content = i18n.VerificationEmail(locale, code, link, minutes)
	case auth.PurposeReset:
		content = i18n.PasswordResetEmail(locale, c.link("/reset-password", token), minutes)
	default:
		return fmt.Errorf("no email template for challenge purpose %q", purpose)
	}

	return c.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML)
}

func (c *ChallengeMailer) link(path, token string) string {
	return c.BaseURL + path + "?token=" + url.QueryEscape(token)
}

func (s *Server) sendSignInAlert(ctx context.Context, user *auth.User, sess auth.Session, locale string) error {
	if s.Mailer == nil {
		return nil
	}

	content := i18n.SignInAlertEmail(
		locale,
		user.Email,
		sess.LoginTime.UTC().Format(time.RFC1123),
		sess.IP,
		sess.UserAgent,
	)

	return s.Mailer.Send(ctx, user.Email, content.Subject, content.Text, content.HTML)
}
