package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/wneessen/go-mail"
)

var ErrNoRecipient = errors.New("recipient has no email address")

const defaultSMTPTimeout = 10 * time.Second

type Email struct {
	To      string
	Subject string
	Body    string
}

type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// NewEmailSender returns an SMTP sender when a host is configured and a
// logging sender otherwise.
func NewEmailSender(cfg internal.NotificationConfig, logger *slog.Logger) (EmailSender, error) {
	if cfg.SMTPHost == "" {
		logger.Info("smtp host not configured, emails will be logged only")
		return &LogSender{logger: logger}, nil
	}

	timeout := cfg.SMTPTimeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(timeout),
		mail.WithDialContextFunc(dialWithDeadline(timeout)),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword))
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, logger: logger}, nil
}

// dialWithDeadline bounds the whole SMTP conversation, greeting included, by
// the earlier of the context deadline and timeout.
func dialWithDeadline(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

type SMTPSender struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid sender %s: %w", s.from, err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("invalid recipient %s: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, email.Body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}
	s.logger.Info("email sent", "to", email.To, "subject", email.Subject)
	return nil
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	s.logger.Info("email (not delivered)", "to", email.To, "subject", email.Subject, "body", email.Body)
	return nil
}
