// Package apiclient is the JSON-over-HTTP plumbing shared by the backend
// and payment-processor clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

var ErrTimeout = errors.New("request timed out")

// ResponseError is a non-2xx response. Body is kept raw so callers can dig
// processor error codes out of it.
type ResponseError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

type Client struct {
	BaseURL   string
	HTTP      *http.Client
	UserAgent string

	token     string
	basicUser string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: "cityventure-checkout/1",
	}
}

// WithToken returns a copy that sends the bearer token on every request.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	cp.basicUser = ""
	return &cp
}

// WithBasicKey returns a copy that authenticates with key as the basic-auth user.
func (c *Client) WithBasicKey(key string) *Client {
	cp := *c
	cp.basicUser = key
	cp.token = ""
	return &cp
}

func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.basicUser != "":
		req.SetBasicAuth(c.basicUser, "")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("api: %s %s: %w", method, path, ErrTimeout)
		}
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ResponseError{Status: resp.StatusCode, Message: messageFrom(raw), Body: raw}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// messageFrom pulls a human message from the usual error envelopes.
func messageFrom(raw []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	if s, ok := env.Error.(string); ok && s != "" {
		return s
	}
	if len(env.Errors) > 0 {
		return env.Errors[0].Detail
	}
	return ""
}
