package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"procurement-service/config"

	mail "github.com/go-mail/mail/v2"
)

// ErrNotConfigured is returned when SMTP settings are missing
var ErrNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// Sender delivers an HTML email
type Sender interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// Mailer sends mail over SMTP with mandatory STARTTLS
type Mailer struct {
	cfg    config.MailConfig
	dialer *mail.Dialer
}

// NewMailer creates a mailer from SMTP settings
func NewMailer(cfg config.MailConfig) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &Mailer{cfg: cfg, dialer: d}
}

// Send delivers one message to every recipient. An empty recipient list is a no-op.
func (m *Mailer) Send(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.cfg.Enabled() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(buildMessage(m.cfg.From, to, subject, html)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, html string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return msg
}
