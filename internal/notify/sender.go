// Package notify delivers outbound email for the recovery workflow.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/loanrecovery/backend/internal/config"
)

type Message struct {
	To      []string
	Subject string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through a plain-auth SMTP relay.
type SMTPSender struct {
	host     string
	port     int32
	username string
	password string
	from     string
	logger   *slog.Logger
}

func NewSMTPSender(cfg config.Config, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SenderEmail,
		logger:   logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := email.NewEmail()
	e.From = s.from
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.Info("email sent", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	return nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email suppressed", "to", strings.Join(msg.To, ","), "subject", msg.Subject, "bytes", len(msg.Text))
	return nil
}

func NewSenderFromConfig(cfg config.Config, logger *slog.Logger) (Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.NotifyMode)) {
	case "", "log":
		return NewLogSender(logger), nil
	case "smtp":
		if strings.TrimSpace(cfg.SMTPHost) == "" {
			return nil, fmt.Errorf("NOTIFY_MODE=smtp requires SMTP_HOST")
		}
		return NewSMTPSender(cfg, logger), nil
	default:
		return nil, fmt.Errorf("invalid NOTIFY_MODE: %s", cfg.NotifyMode)
	}
}
