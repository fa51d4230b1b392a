// Package grace runs one checkout attempt: a cancellable countdown, then a
// single commit that creates the order and drives the payment.
package grace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/modules/orders"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

var (
	ErrCommitted   = errors.New("checkout already committed")
	ErrNotCounting = errors.New("checkout is no longer counting down")
	ErrMissingDeps = errors.New("grace: missing dependency")
)

type CartClearer interface {
	Clear(ctx context.Context) error
}

type OrderSubmitter interface {
	Create(ctx context.Context, req orders.CreateRequest) (orders.Created, error)
}

type Authorizer interface {
	Open(ctx context.Context, req authbridge.Request) (authbridge.Result, error)
}

type Hooks struct {
	OnState  func(Summary)
	OnCue    func(secondsLeft int)
	OnFinish func(Summary)
}

type Contact struct {
	Name  string
	Email string
	// Token is the user's backend credential; it never reaches hooks.
	Token string
}

type Deps struct {
	Cart      CartClearer
	Orders    OrderSubmitter
	Payments  payments.Gateway
	Bridge    Authorizer
	ReturnURL func(orderID string) string
	Contact   Contact

	Now    func() time.Time
	Tick   time.Duration
	Logger *slog.Logger
	Hooks  Hooks
}

type Controller struct {
	id      string
	deps    Deps
	logger  *slog.Logger
	started time.Time

	// latch is set exactly once, by the commit or by a confirmed cancel.
	latch   atomic.Bool
	proceed chan struct{}

	mu    sync.Mutex
	draft checkout.OrderDraft
	state State

	done     chan struct{}
	doneOnce sync.Once
}

func New(id string, draft checkout.OrderDraft, deps Deps) (*Controller, error) {
	if deps.Cart == nil || deps.Orders == nil {
		return nil, ErrMissingDeps
	}
	if draft.IsOnline() && (deps.Payments == nil || deps.Bridge == nil || deps.ReturnURL == nil) {
		return nil, ErrMissingDeps
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Tick <= 0 {
		deps.Tick = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Controller{
		id:      id,
		deps:    deps,
		logger:  deps.Logger.With(slog.String("session_id", id)),
		started: deps.Now(),
		proceed: make(chan struct{}, 1),
		draft:   draft,
		state:   State{ID: id, Phase: PhaseCounting, SecondsLeft: PeriodSeconds},
		done:    make(chan struct{}),
	}, nil
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) UserID() string { return c.draft.UserID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Done is closed once the controller has issued its navigation.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) Navigation() (view.Navigation, bool) {
	s := c.State()
	if s.Navigation == nil {
		return view.Navigation{}, false
	}
	return *s.Navigation, true
}

// Run ticks the countdown once per Deps.Tick until the controller finishes.
// If ctx ends while still counting the attempt is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.deps.Tick)
	defer t.Stop()

	c.emit(c.State())
	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			if err := c.ConfirmCancel(); err == nil {
				c.logger.InfoContext(ctx, "checkout abandoned during grace period")
			}
			return ctx.Err()
		case <-t.C:
			c.Tick(ctx)
		case <-c.proceed:
			_ = c.ProceedNow(ctx)
		}
	}
}

// Tick counts down one second. Reaching zero commits.
func (c *Controller) Tick(ctx context.Context) {
	var left int
	var moved bool
	c.update(func(s *State) bool {
		if s.Phase != PhaseCounting || s.IsCancelling || s.SecondsLeft <= 0 {
			return false
		}
		s.SecondsLeft--
		left, moved = s.SecondsLeft, true
		return true
	})
	if !moved {
		return
	}
	if left > 0 && left <= CueThreshold && c.deps.Hooks.OnCue != nil {
		c.deps.Hooks.OnCue(left)
	}
	if left == 0 {
		c.commit(ctx)
	}
}

// ProceedNow skips the rest of the countdown and commits in the caller's goroutine.
func (c *Controller) ProceedNow(ctx context.Context) error {
	c.mu.Lock()
	counting := c.state.Phase == PhaseCounting
	c.mu.Unlock()
	if !counting || c.latch.Load() {
		return ErrNotCounting
	}
	c.commit(ctx)
	return nil
}

// RequestProceed asks Run's goroutine to commit. It never blocks.
func (c *Controller) RequestProceed() error {
	c.mu.Lock()
	counting := c.state.Phase == PhaseCounting
	c.mu.Unlock()
	if !counting || c.latch.Load() {
		return ErrNotCounting
	}
	select {
	case c.proceed <- struct{}{}:
	default:
	}
	return nil
}

// BeginCancel opens the cancel prompt and pauses the countdown.
func (c *Controller) BeginCancel() error {
	var err error
	c.update(func(s *State) bool {
		if s.Phase != PhaseCounting || c.latch.Load() {
			err = ErrNotCounting
			return false
		}
		if s.IsCancelling {
			return false
		}
		s.IsCancelling = true
		return true
	})
	return err
}

// AbortCancel closes the prompt; the countdown resumes where it stopped.
func (c *Controller) AbortCancel() {
	c.update(func(s *State) bool {
		if !s.IsCancelling {
			return false
		}
		s.IsCancelling = false
		return true
	})
}

// ConfirmCancel ends the attempt before anything was created server-side.
func (c *Controller) ConfirmCancel() error {
	if !c.latch.CompareAndSwap(false, true) {
		return ErrCommitted
	}
	c.finish(context.Background(), PhaseCancelled, view.Navigation{Screen: view.ScreenCheckoutCancelled})
	return nil
}

func (c *Controller) update(fn func(s *State) bool) {
	c.mu.Lock()
	changed := fn(&c.state)
	snap := c.state.clone()
	c.mu.Unlock()
	if changed {
		c.emit(snap)
	}
}

func (c *Controller) step(label string) {
	c.update(func(s *State) bool {
		s.StepLabel = label
		return true
	})
}

func (c *Controller) emit(s State) {
	if c.deps.Hooks.OnState != nil {
		c.deps.Hooks.OnState(c.summary(s))
	}
}

func (c *Controller) summary(s State) Summary {
	c.mu.Lock()
	d := c.draft
	c.mu.Unlock()

	sum := Summary{
		SessionID:     c.id,
		UserID:        d.UserID,
		BusinessID:    d.BusinessID,
		PaymentMethod: d.PaymentMethod,
		PaymentType:   d.PaymentMethodType,
		Total:         d.Total,
		CustomerName:  c.deps.Contact.Name,
		CustomerEmail: c.deps.Contact.Email,
		StartedAt:     c.started,
		State:         s,
	}
	if d.Billing != nil {
		if d.Billing.Name != "" {
			sum.CustomerName = d.Billing.Name
		}
		if d.Billing.Email != "" {
			sum.CustomerEmail = d.Billing.Email
		}
	}
	return sum
}

// finish issues the one navigation this controller ends with. The created
// order, if any, rides along on every screen.
func (c *Controller) finish(ctx context.Context, phase Phase, nav view.Navigation) {
	c.mu.Lock()
	if c.state.Phase.Terminal() {
		c.mu.Unlock()
		return
	}
	nav.Order = c.state.Order.Clone()
	nav.OrderCreated = nav.Order != nil
	nav.PaymentMethod = string(c.draft.PaymentMethod)
	if c.draft.IsOnline() {
		nav.PaymentMethodType = string(c.draft.PaymentMethodType)
	}
	nav.PaymentIntentID = c.state.IntentID

	c.state.Phase = phase
	c.state.IsCancelling = false
	c.state.IsProcessing = false
	c.state.StepLabel = ""
	c.state.Navigation = &nav
	snap := c.state.clone()
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })
	c.emit(snap)
	if c.deps.Hooks.OnFinish != nil {
		c.deps.Hooks.OnFinish(c.summary(snap))
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "checkout finished",
		slog.String("phase", string(phase)),
		slog.String("screen", string(nav.Screen)),
		slog.Bool("order_created", nav.OrderCreated),
		slog.String("intent_id", nav.PaymentIntentID),
	)
}
