// Package notification sends membership invitation mail. Delivery is
// decoupled from the request path: handlers enqueue, the worker sends.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"

	"backend/internal/config"

	"go.uber.org/zap"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
	log *zap.Logger
}

// NewSMTPMailer constructs the mailer.
func NewSMTPMailer(cfg config.SMTPConfig, log *zap.Logger) *SMTPMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, log: log}
}

// Send delivers one message. ctx is honored up to the point net/smtp
// takes over; SMTP dial timeouts come from the relay address config.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	from := m.cfg.FromAddress

	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	m.log.Info("invitation mail sent", zap.String("to", to))
	return nil
}

var inviteTemplate = template.Must(template.New("invite").Parse(
	`Hello,

You have been invited to join {{.OrgName}} on {{.PlatformName}} as a {{.Role}}.

Sign in at {{.LoginURL}} with this email address to accept the invitation.

If you did not expect this invitation you can ignore this message.
`))

// InviteMessage renders the invitation body for a new membership.
func InviteMessage(orgName, platformName, role, loginURL string) (string, error) {
	var buf bytes.Buffer
	err := inviteTemplate.Execute(&buf, map[string]string{
		"OrgName":      orgName,
		"PlatformName": platformName,
		"Role":         role,
		"LoginURL":     loginURL,
	})
	if err != nil {
		return "", fmt.Errorf("render invite template: %w", err)
	}
	return buf.String(), nil
}
