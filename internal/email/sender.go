package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/Elissa100/kapee-shop/internal/config"
)

// Sender delivers transactional mail over SMTP. Delivery is best effort:
// callers that must not fail on a mail outage decide that policy themselves.
type Sender struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *Sender) Send(ctx context.Context, to, subject, text, html string) error {
	if !s.cfg.Enabled() {
		return fmt.Errorf("email is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)

	if html != "" {
		msg.SetBody("text/html", html)
		if text != "" {
			msg.AddAlternative("text/plain", text)
		}
	} else {
		msg.SetBody("text/plain", text)
	}

	return s.dialer.DialAndSend(msg)
}
