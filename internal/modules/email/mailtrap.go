package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/config"
)

type MailtrapProvider struct {
	apiURL   string
	apiKey   string
	from     PersonInfo
	category string
	client   *http.Client
}

type MailtrapPayload struct {
	From     PersonInfo   `json:"from"`
	To       []PersonInfo `json:"to"`
	Subject  string       `json:"subject"`
	Text     string       `json:"text,omitempty"`
	HTML     string       `json:"html,omitempty"`
	Category string       `json:"category,omitempty"`
}

type PersonInfo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func NewMailtrapProvider(cfg config.EmailConfig) (*MailtrapProvider, error) {
	if cfg.MailtrapURL == "" || cfg.MailtrapToken == "" {
		return nil, errors.New("email: mailtrap credentials not configured")
	}
	return &MailtrapProvider{
		apiURL:   cfg.MailtrapURL,
		apiKey:   cfg.MailtrapToken,
		from:     PersonInfo{Email: cfg.From, Name: cfg.FromName},
		category: "Order Confirmation",
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (m *MailtrapProvider) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(MailtrapPayload{
		From:     m.from,
		To:       []PersonInfo{{Email: msg.To, Name: msg.ToName}},
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Text:     msg.Text,
		Category: m.category,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("mailtrap API error: %d", res.StatusCode)
	}
	return nil
}
