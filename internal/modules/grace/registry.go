package grace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrSessionExists = errors.New("checkout session already exists")
	// ErrActiveSession means the user already has a session that has not
	// navigated yet. One cart may only be committed by one controller.
	ErrActiveSession = errors.New("checkout already in progress for this user")
)

type entry struct {
	c          *Controller
	cancel     context.CancelFunc
	finishedAt time.Time
}

// Registry owns the running controllers. Each runs in its own goroutine
// bound to the registry's base context, not to the request that started it.
type Registry struct {
	base      context.Context
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	byUser   map[string]*entry
	wg       sync.WaitGroup
}

func NewRegistry(base context.Context, retention time.Duration) *Registry {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &Registry{
		base:      base,
		retention: retention,
		now:       time.Now,
		logger:    slog.Default(),
		sessions:  make(map[string]*entry),
		byUser:    make(map[string]*entry),
	}
}

func (r *Registry) SetLogger(l *slog.Logger) { r.logger = l }

func (r *Registry) Start(c *Controller) error {
	r.mu.Lock()
	if _, ok := r.sessions[c.ID()]; ok {
		r.mu.Unlock()
		return ErrSessionExists
	}
	if prev, ok := r.byUser[c.UserID()]; ok && !finished(prev.c) {
		r.mu.Unlock()
		return ErrActiveSession
	}
	ctx, cancel := context.WithCancel(r.base)
	e := &entry{c: c, cancel: cancel}
	r.sessions[c.ID()] = e
	r.byUser[c.UserID()] = e
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.WarnContext(ctx, "checkout session stopped", "session_id", c.ID(), "err", err)
		}
		r.mu.Lock()
		e.finishedAt = r.now()
		r.mu.Unlock()
	}()
	return nil
}

func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.c, true
}

// Active returns the user's session that is still counting or committing.
func (r *Registry) Active(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUser[userID]
	if !ok || finished(e.c) {
		return nil, false
	}
	return e.c, true
}

func finished(c *Controller) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

// ByOrder finds the session that created orderID, used by the return URL.
func (r *Registry) ByOrder(orderID string) (*Controller, bool) {
	r.mu.Lock()
	list := make([]*Controller, 0, len(r.sessions))
	for _, e := range r.sessions {
		list = append(list, e.c)
	}
	r.mu.Unlock()

	for _, c := range list {
		if s := c.State(); s.Order != nil && s.Order.OrderID == orderID {
			return c, true
		}
	}
	return nil, false
}

// Remove stops the session. A session still counting is cancelled.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		r.drop(id, e)
	}
	r.mu.Unlock()
	if ok {
		e.cancel()
	}
}

// Sweep drops sessions that finished more than the retention ago.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.retention)
	var stale []*entry

	r.mu.Lock()
	for id, e := range r.sessions {
		if !e.finishedAt.IsZero() && e.finishedAt.Before(cutoff) {
			stale = append(stale, e)
			r.drop(id, e)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.cancel()
	}
	return len(stale)
}

// drop must be called with r.mu held.
func (r *Registry) drop(id string, e *entry) {
	delete(r.sessions, id)
	if r.byUser[e.c.UserID()] == e {
		delete(r.byUser, e.c.UserID())
	}
}

func (r *Registry) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.logger.DebugContext(ctx, "swept checkout sessions", "count", n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Wait blocks until every session goroutine has returned.
func (r *Registry) Wait() { r.wg.Wait() }
