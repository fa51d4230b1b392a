package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/config"
)

var (
	ErrStartTLSUnsupported = errors.New("mailer: server does not offer STARTTLS")
	ErrAuthUnsupported     = errors.New("mailer: credentials configured but server does not offer AUTH")
)

type tlsMode string

const (
	tlsNone     tlsMode = "none"
	tlsStartTLS tlsMode = "starttls"
	tlsImplicit tlsMode = "tls"
)

// SMTPMailer speaks to a relay (Mailpit locally, a provider relay in
// production). Each Send uses its own connection.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	mode    tlsMode
	timeout time.Duration
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, errors.New("mailer: smtp host and port are required")
	}
	mode := tlsMode(strings.ToLower(strings.TrimSpace(cfg.TLSMode)))
	switch mode {
	case "":
		mode = tlsNone
	case tlsNone, tlsStartTLS, tlsImplicit:
	default:
		return nil, fmt.Errorf("mailer: unknown smtp tls mode %q", cfg.TLSMode)
	}
	return &SMTPMailer{cfg: cfg, mode: mode, timeout: 15 * time.Second}, nil
}

// Send delivers e. The whole exchange is bounded by ctx and by the mailer
// timeout, whichever ends first.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	raw, err := buildMIMEMessage(e, m.messageIDDomain(e))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("mailer: smtp greeting: %w", err)
	}
	defer c.Close()

	if m.mode == tlsStartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return ErrStartTLSUnsupported
		}
		if err := c.StartTLS(m.tlsConfig()); err != nil {
			return fmt.Errorf("mailer: starttls: %w", err)
		}
	}

	if m.cfg.User != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return ErrAuthUnsupported
		}
		if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)); err != nil {
			return fmt.Errorf("mailer: auth: %w", err)
		}
	}

	if err := c.Mail(e.From); err != nil {
		return fmt.Errorf("mailer: mail from: %w", err)
	}
	for _, rcpt := range e.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mailer: rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mailer: data: %w", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("mailer: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: data close: %w", err)
	}
	return c.Quit()
}

func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	d := &net.Dialer{}
	if m.mode == tlsImplicit {
		td := &tls.Dialer{NetDialer: d, Config: m.tlsConfig()}
		conn, err := td.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("mailer: dial tls %s: %w", addr, err)
		}
		return conn, nil
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mailer: dial %s: %w", addr, err)
	}
	return conn, nil
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: m.cfg.SkipVerifyTLS,
		MinVersion:         tls.VersionTLS12,
	}
}

// messageIDDomain prefers the sender's domain so receipts thread under the
// brand rather than the relay host.
func (m *SMTPMailer) messageIDDomain(e Email) string {
	if d := e.senderDomain(); d != "" {
		return d
	}
	return m.cfg.Host
}
