// Package notification delivers outgoing email over SMTP.
package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	appnotification "github.com/erp/billing/internal/application/notification"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/jordan-wright/email"
	"go.uber.org/zap"
)

var _ appnotification.Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends messages through one SMTP relay
type SMTPMailer struct {
	addr   string
	from   string
	auth   smtp.Auth
	logger *zap.Logger
}

// NewSMTPMailer creates a mailer from configuration. PLAIN auth is used when
// a username is configured.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	m := &SMTPMailer{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:   cfg.From,
		logger: logger.Named("smtp"),
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

// Send implements appnotification.Mailer. The SMTP exchange itself cannot be
// cancelled; ctx is checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg appnotification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := e.Send(m.addr, m.auth); err != nil {
		m.logger.Warn("smtp send failed", zap.String("addr", m.addr), zap.Strings("to", msg.To), zap.Error(err))
		return fmt.Errorf("mailer: %w", err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg appnotification.Message) (*email.Email, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("mailer: message has no recipient")
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	if msg.ReplyTo != "" {
		e.ReplyTo = []string{msg.ReplyTo}
	}
	for _, a := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Content), a.FileName, a.ContentType); err != nil {
			return nil, fmt.Errorf("mailer: attach %s: %w", a.FileName, err)
		}
	}
	return e, nil
}
