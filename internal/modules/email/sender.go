package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VNZray/capstone-project-sub008/internal/config"
	"github.com/VNZray/capstone-project-sub008/internal/mailer"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender only logs; used when no provider is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "email skipped: no provider configured", "to", m.To, "subject", m.Subject)
	return nil
}

// NewSender picks the provider named in cfg.Provider.
func NewSender(cfg config.EmailConfig, smtp config.SMTPConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		m, err := mailer.NewSMTPMailer(smtp)
		if err != nil {
			return nil, err
		}
		return NewMailerAdapter(m, cfg.From, cfg.FromName), nil
	case "mailtrap":
		p, err := NewMailtrapProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "", "none":
		return LogSender{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("email: unknown provider %q", cfg.Provider)
	}
}
