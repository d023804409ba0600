package worker

import (
	"strings"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk/internal/config"
)

// Mailer delivers one email message.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from config.
func NewSMTPMailer(cfg config.NotificationConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.EmailFrom,
	}
}

// Send delivers the message to all recipients in one envelope.
func (m *SMTPMailer) Send(to []string, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}

// NopMailer logs instead of sending. Used when SMTP is not configured.
type NopMailer struct {
	logger *zap.Logger
}

// NewNopMailer builds the logging mailer.
func NewNopMailer(logger *zap.Logger) *NopMailer {
	return &NopMailer{logger: logger}
}

// Send logs the would-be delivery.
func (m *NopMailer) Send(to []string, subject, body string) error {
	m.logger.Info("email suppressed, smtp not configured",
		zap.String("to", strings.Join(to, ",")),
		zap.String("subject", subject))
	return nil
}

// NewMailer picks the SMTP mailer when a host is configured.
func NewMailer(cfg config.NotificationConfig, logger *zap.Logger) Mailer {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return NewNopMailer(logger)
	}
	return NewSMTPMailer(cfg)
}
