// Package mailer delivers transactional mail such as order confirmations.
package mailer

import (
	"context"
	"errors"
	"strings"
)

type Service interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string
	From     string
	To       []string

	Subject  string
	TextBody string
	HTMLBody string

	// Headers are extra headers such as X-Order-ID. Entries containing
	// line breaks are dropped.
	Headers map[string]string
}

func (e Email) validate() error {
	switch {
	case len(e.To) == 0:
		return errors.New("mailer: at least one recipient required")
	case e.From == "":
		return errors.New("mailer: from address required")
	case e.Subject == "":
		return errors.New("mailer: subject required")
	case e.TextBody == "" && e.HTMLBody == "":
		return errors.New("mailer: text or html body required")
	}
	return nil
}

// senderDomain is the part of From after the last @, or "".
func (e Email) senderDomain() string {
	i := strings.LastIndex(e.From, "@")
	if i < 0 || i == len(e.From)-1 {
		return ""
	}
	return strings.Trim(e.From[i+1:], "<> ")
}
