// Package authbridge hands a provider-hosted authorization page (3-D Secure
// or e-wallet) to the user and waits for them to come back.
package authbridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type ResultType string

const (
	Success ResultType = "success"
	Cancel  ResultType = "cancel"
	Dismiss ResultType = "dismiss"
)

func ParseResultType(s string) (ResultType, bool) {
	switch t := ResultType(s); t {
	case Success, Cancel, Dismiss:
		return t, true
	}
	return "", false
}

// Result says how the redirect ended. Success and Dismiss are not proof
// of payment; only the intent status is.
type Result struct {
	Type ResultType `json:"type"`
}

// IsConfirmedCancel is true only for an explicit cancel inside the provider page.
func IsConfirmedCancel(r Result) bool { return r.Type == Cancel }

type Request struct {
	// Key identifies the waiting checkout session; Resolve uses it.
	Key       string
	URL       string
	ReturnURL string

	// Ready, when set, runs once Resolve can reach this redirect and
	// before the page is launched.
	Ready func()
}

type Window interface {
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context, req Request) (Window, error)
}

var (
	ErrBusy  = errors.New("authorization already in progress")
	ErrNoURL = errors.New("authorization url is empty")
)

type Bridge struct {
	launcher Launcher
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	waiters map[string]chan ResultType
}

func New(l Launcher, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Bridge{
		launcher: l,
		timeout:  timeout,
		logger:   slog.Default(),
		waiters:  make(map[string]chan ResultType),
	}
}

func (b *Bridge) SetLogger(l *slog.Logger) { b.logger = l }

// Open launches the page and blocks until Resolve is called for req.Key,
// ctx ends or the redirect timeout passes; the last two yield Dismiss.
// The window is closed on every path.
func (b *Bridge) Open(ctx context.Context, req Request) (Result, error) {
	if req.URL == "" {
		return Result{}, ErrNoURL
	}
	ch, err := b.register(req.Key)
	if err != nil {
		return Result{}, err
	}
	defer b.unregister(req.Key)
	if req.Ready != nil {
		req.Ready()
	}

	win, err := b.launcher.Launch(ctx, req)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := win.Close(); err != nil {
			b.logger.WarnContext(ctx, "authorization window close failed", "key", req.Key, "err", err)
		}
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case t := <-ch:
		return Result{Type: t}, nil
	case <-ctx.Done():
		return Result{Type: Dismiss}, nil
	case <-timer.C:
		b.logger.InfoContext(ctx, "authorization redirect timed out", "key", req.Key)
		return Result{Type: Dismiss}, nil
	}
}

// Resolve delivers the outcome to a waiting Open. Only the first call for
// an open redirect counts.
func (b *Bridge) Resolve(key string, t ResultType) bool {
	b.mu.Lock()
	ch, ok := b.waiters[key]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- t:
		return true
	default:
		return false
	}
}

func (b *Bridge) Pending(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.waiters[key]
	return ok
}

func (b *Bridge) register(key string) (chan ResultType, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.waiters[key]; busy {
		return nil, ErrBusy
	}
	ch := make(chan ResultType, 1)
	b.waiters[key] = ch
	return ch, nil
}

func (b *Bridge) unregister(key string) {
	b.mu.Lock()
	delete(b.waiters, key)
	b.mu.Unlock()
}
