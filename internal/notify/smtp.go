package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig carries the connection settings for the SMTP email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPEmailSender sends mail through an SMTP relay.
type SMTPEmailSender struct {
	dialer *gomail.Dialer
	from   string
	logger zerolog.Logger
}

// NewSMTPEmailSender constructs an SMTP sender.
func NewSMTPEmailSender(cfg SMTPConfig, logger zerolog.Logger) (*SMTPEmailSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address must be provided")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}

	return &SMTPEmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger.With().Str("component", "smtp_email_sender").Logger(),
	}, nil
}

// Send delivers one plain-text message. gomail has no context support, so the
// ctx is only honored before dialing.
func (s *SMTPEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", s.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
