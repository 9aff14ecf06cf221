// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

// Package email delivers account verification mail over SMTP.
package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/parkwise/accounts/internal/config"
	"github.com/wneessen/go-mail"
)

// Service sends verification mail. It satisfies auth.Notifier.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SendVerification mails the verification link for the given token.
func (s *Service) SendVerification(ctx context.Context, toEmail, name, tok string) error {
	verifyURL := fmt.Sprintf("%s/auth/account/verify?code=%s&email=%s",
		s.baseURL, url.QueryEscape(tok), url.QueryEscape(toEmail))

	subject := "Verify your account"
	body := fmt.Sprintf(
		"Hello %s,\n\nplease confirm your email address by opening the link below:\n\n%s\n\nThe link expires in 24 hours. If you did not create this account, ignore this message.\n",
		name, verifyURL)

	return s.send(ctx, toEmail, subject, body)
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS for port 465, STARTTLS otherwise
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

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
