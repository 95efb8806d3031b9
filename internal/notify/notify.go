package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// EmailSender delivers a single email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single SMS message.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// ChannelReport records, per channel, whether delivery was attempted and
// whether it succeeded. A failed channel never fails the caller's request;
// the flags end up in the audit trail instead.
type ChannelReport struct {
	EmailAttempted bool
	EmailSuccess   bool
	SMSAttempted   bool
	SMSSuccess     bool
}

// Dispatcher fans a message out over the channels enabled by configuration.
type Dispatcher struct {
	email        EmailSender
	sms          SMSSender
	emailEnabled bool
	smsEnabled   bool
	logger       zerolog.Logger
}

// NewDispatcher constructs a dispatcher. Either sender may be nil when its
// channel is disabled.
func NewDispatcher(email EmailSender, sms SMSSender, emailEnabled, smsEnabled bool, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		email:        email,
		sms:          sms,
		emailEnabled: emailEnabled,
		smsEnabled:   smsEnabled,
		logger:       logger.With().Str("component", "notify_dispatcher").Logger(),
	}
}

// Dispatch attempts email when an address is present and SMS only when the
// channel is enabled and a phone number is present. Send failures are logged
// and reported in the return value, never raised.
func (d *Dispatcher) Dispatch(ctx context.Context, email, phone, subject, body string) ChannelReport {
	var report ChannelReport

	if email != "" {
		report.EmailAttempted = true
		if d.emailEnabled && d.email != nil {
			if err := d.email.Send(ctx, email, subject, body); err != nil {
				d.logger.Warn().Err(err).Msg("email delivery failed")
			} else {
				report.EmailSuccess = true
			}
		} else {
			d.logger.Info().Msg("email delivery skipped: channel disabled")
		}
	}

	if d.smsEnabled && d.sms != nil && phone != "" {
		report.SMSAttempted = true
		if err := d.sms.Send(ctx, phone, body); err != nil {
			d.logger.Warn().Err(err).Msg("sms delivery failed")
		} else {
			report.SMSSuccess = true
		}
	}

	return report
}

// LogEmailSender logs instead of sending. Used when email delivery is
// disabled and in tests.
type LogEmailSender struct {
	logger zerolog.Logger
}

// NewLogEmailSender constructs a logging email sender.
func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger.With().Str("component", "log_email_sender").Logger()}
}

// Send logs the message metadata. The body is not logged because it may carry
// a temporary credential.
func (l *LogEmailSender) Send(ctx context.Context, to, subject, body string) error {
	l.logger.Info().Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("email (log only)")
	return nil
}

// LogSMSSender logs instead of sending. Stands in for a real SMS provider.
type LogSMSSender struct {
	logger zerolog.Logger
}

// NewLogSMSSender constructs a logging SMS sender.
func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger.With().Str("component", "log_sms_sender").Logger()}
}

// Send logs the message metadata only.
func (l *LogSMSSender) Send(ctx context.Context, to, message string) error {
	l.logger.Info().Str("to", to).Int("message_len", len(message)).Msg("sms (log only)")
	return nil
}
