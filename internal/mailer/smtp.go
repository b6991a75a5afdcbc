package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the submission server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender delivers mail over SMTP with mandatory STARTTLS.
// A fresh connection is opened and closed for each message.
type SMTPSender struct {
	cfg SMTPConfig
}

// ErrNoSender is returned for every message when no sender address is
// configured.
var ErrNoSender = errors.New("smtp sender address is not configured")

// NewSMTPSender validates cfg and returns a sender. Credentials may be
// empty for relays that accept unauthenticated submission. An empty From
// is accepted so the process can start without mail settings; each send
// then fails with ErrNoSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host must not be empty")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid smtp port: %d", cfg.Port)
	}
	return &SMTPSender{cfg: cfg}, nil
}

// BuildMessage assembles the plain-text message for one recipient.
// It fails for malformed addresses before any connection is made.
func (s *SMTPSender) BuildMessage(to string, msg Message) (*mail.Msg, error) {
	if s.cfg.From == "" {
		return nil, ErrNoSender
	}
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetDate()
	m.SetMessageID()
	return m, nil
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, to string, msg Message) error {
	m, err := s.BuildMessage(to, msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
