package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Tarun553/study-coach/internal/config"
)

// Mailer sends reminder emails over SMTP. Without a configured host it
// runs in log-only mode: the email body is logged instead of sent, and the
// attempt counts as successful so local development needs no mail server.
type Mailer struct {
	cfg    config.MailConfig
	logger zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates an SMTP mailer from config.
func NewMailer(cfg config.MailConfig, logger zerolog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailer").Logger(),
		send:   smtp.SendMail,
	}
}

// Notify sends the reminder email, or logs it in log-only mode.
func (m *Mailer) Notify(ctx context.Context, n Notification) error {
	if n.Email == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := m.compose(n)

	if m.cfg.Host == "" {
		m.logger.Info().
			Str("run_id", n.RunID).
			Str("to", n.Email).
			Msg("Mail host not configured, logging reminder instead of sending")
		m.logger.Debug().Str("body", msg).Msg("Reminder email body")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{n.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	m.logger.Info().Str("run_id", n.RunID).Str("to", n.Email).Msg("Reminder email sent")
	return nil
}

// compose renders the full RFC 5322 message, headers included.
func (m *Mailer) compose(n Notification) string {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	greeting := "Hi"
	if n.Name != "" {
		greeting = "Hi " + n.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", n.Email)
	fmt.Fprintf(&b, "Subject: Study Reminder: %s\r\n", n.Topic)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s,\r\n\r\n", greeting)
	fmt.Fprintf(&b, "It's been %d minutes since you started studying %q.\r\n", n.Minutes, n.Topic)
	if n.Goal != "" {
		fmt.Fprintf(&b, "Your goal: %s\r\n", n.Goal)
	}
	b.WriteString("\r\nTime to check in on your progress.\r\n")
	if m.cfg.BaseURL != "" {
		fmt.Fprintf(&b, "\r\nOpen your session: %s/runs/%s\r\n", strings.TrimRight(m.cfg.BaseURL, "/"), n.RunID)
	}
	return b.String()
}
