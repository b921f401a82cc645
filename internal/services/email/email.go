// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers recovery codes over SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/i18n"
	"codeberg.org/clubedagente/backoffice/internal/templates"
	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by LogNotifier when no delivery channel exists.
var ErrNotConfigured = errors.New("no mail delivery configured")

// Service sends recovery codes through an SMTP relay.
type Service struct {
	cfg      *config.SMTPConfig
	validity time.Duration
}

// NewService creates a new email service. validity is the code lifetime
// announced in the message.
func NewService(cfg *config.SMTPConfig, validity time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:      cfg,
		validity: validity,
	}, nil
}

// SendRecoveryCode delivers the one-time code to the account's address.
func (s *Service) SendRecoveryCode(ctx context.Context, to, name, code string) error {
	msg, err := s.BuildRecoveryMessage(ctx, to, name, code)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// BuildRecoveryMessage assembles the recovery e-mail without sending it.
func (s *Service) BuildRecoveryMessage(ctx context.Context, to, name, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	data := templates.RecoveryMailData{
		Name:    name,
		Code:    code,
		Minutes: int(s.validity.Round(time.Minute) / time.Minute),
	}

	var body bytes.Buffer
	if err := templates.RecoveryMail(data).Render(ctx, &body); err != nil {
		return nil, fmt.Errorf("rendering recovery mail: %w", err)
	}

	msg.Subject(i18n.TData(ctx, "recovery_mail_subject", map[string]any{"Code": code}))
	msg.SetBodyString(mail.TypeTextHTML, body.String())
	msg.AddAlternativeString(mail.TypeTextPlain, templates.RecoveryMailText(ctx, data))

	return msg, nil
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// LogNotifier stands in for SMTP in development. When enabled it logs the
// code instead of sending it; otherwise every dispatch fails.
type LogNotifier struct {
	logger  *slog.Logger
	enabled bool
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger, enabled bool) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, enabled: enabled}
}

// SendRecoveryCode logs the code or reports ErrNotConfigured.
func (n *LogNotifier) SendRecoveryCode(ctx context.Context, to, _ string, code string) error {
	if !n.enabled {
		return ErrNotConfigured
	}
	n.logger.WarnContext(ctx, "recovery_code_logged", "to", to, "code", code)
	return nil
}
