// Package tracking turns grace controller hooks into ledger rows, domain
// events, archived receipts and the order-confirmation email.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/events"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/modules/email"
	"github.com/VNZray/capstone-project-sub008/internal/modules/grace"
	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
	"github.com/VNZray/capstone-project-sub008/internal/modules/receipts"
	"github.com/VNZray/capstone-project-sub008/internal/shared/money"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

// hookTimeout bounds the I/O one hook call may do; hooks run on the
// controller's goroutine.
const hookTimeout = 10 * time.Second

type progress struct {
	started      bool
	orderCreated bool
}

type Tracker struct {
	attempts  ledger.Store
	publisher events.Publisher
	receipts  *receipts.Archiver
	notifier  *email.Notifier
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*progress
}

func New(attempts ledger.Store, publisher events.Publisher) *Tracker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Tracker{
		attempts:  attempts,
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
		sessions:  make(map[string]*progress),
	}
}

func (t *Tracker) SetLogger(l *slog.Logger) {
	if l != nil {
		t.logger = l
	}
}

func (t *Tracker) SetReceipts(a *receipts.Archiver) { t.receipts = a }

func (t *Tracker) SetNotifier(n *email.Notifier) { t.notifier = n }

func (t *Tracker) Hooks() grace.Hooks {
	return grace.Hooks{
		OnState:  t.OnState,
		OnFinish: t.OnFinish,
	}
}

// OnState persists every snapshot and announces the first sighting of a
// session and of its order.
func (t *Tracker) OnState(s grace.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	if t.attempts != nil {
		if err := t.attempts.SaveAttempt(ctx, AttemptFromSummary(s)); err != nil {
			t.logger.ErrorContext(ctx, "save checkout attempt failed", "session_id", s.SessionID, "err", err)
		}
	}

	t.mu.Lock()
	p, ok := t.sessions[s.SessionID]
	if !ok {
		p = &progress{}
		t.sessions[s.SessionID] = p
	}
	announceStart := !p.started
	p.started = true
	announceOrder := s.State.Order != nil && !p.orderCreated
	if announceOrder {
		p.orderCreated = true
	}
	t.mu.Unlock()

	if announceStart {
		t.publish(ctx, events.TypeSessionStarted, s)
	}
	if announceOrder {
		t.publish(ctx, events.TypeOrderCreated, s)
	}
}

// OnFinish archives the outcome and mails the confirmation when an order
// is confirmed.
func (t *Tracker) OnFinish(s grace.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	t.mu.Lock()
	delete(t.sessions, s.SessionID)
	t.mu.Unlock()

	nav := s.State.Navigation
	typ := events.TypeSessionFinished
	if nav != nil && nav.Screen == view.ScreenCheckoutCancelled {
		typ = events.TypeSessionCancelled
	}
	t.publish(ctx, typ, s)

	if t.receipts != nil {
		if _, err := t.receipts.Archive(ctx, receipts.FromSummary(s, t.now())); err != nil {
			t.logger.ErrorContext(ctx, "archive receipt failed", "session_id", s.SessionID, "err", err)
		}
	}

	if t.notifier == nil || nav == nil || nav.Screen != view.ScreenOrderConfirmation || nav.Order == nil {
		return
	}
	if s.CustomerEmail == "" {
		return
	}
	method := string(s.PaymentMethod)
	if s.PaymentMethod == checkout.Online {
		method = string(s.PaymentType)
	}
	err := t.notifier.OrderConfirmed(ctx, email.OrderConfirmation{
		To:            s.CustomerEmail,
		Name:          s.CustomerName,
		Order:         *nav.Order,
		PaymentMethod: method,
		Total:         s.Total,
	})
	if err != nil {
		t.logger.ErrorContext(ctx, "order confirmation email failed", "session_id", s.SessionID, "order_id", nav.Order.OrderID, "err", err)
	}
}

func (t *Tracker) publish(ctx context.Context, typ string, s grace.Summary) {
	ev := events.New(typ)
	ev.SessionID = s.SessionID
	ev.IntentID = s.State.IntentID
	ev.Phase = string(s.State.Phase)
	if s.State.Order != nil {
		ev.OrderID = s.State.Order.OrderID
	}
	if nav := s.State.Navigation; nav != nil {
		ev.Screen = string(nav.Screen)
		ev.Detail = nav.Reason
	}
	if err := t.publisher.Publish(ctx, ev); err != nil {
		t.logger.WarnContext(ctx, "publish event failed", "type", typ, "session_id", s.SessionID, "err", err)
	}
}

// AttemptFromSummary maps a controller snapshot onto its ledger row.
func AttemptFromSummary(s grace.Summary) *ledger.Attempt {
	a := &ledger.Attempt{
		ID:             s.SessionID,
		UserID:         s.UserID,
		BusinessID:     s.BusinessID,
		PaymentMethod:  string(s.PaymentMethod),
		PaymentType:    string(s.PaymentType),
		AmountCentavos: money.Centavos(s.Total),
		Currency:       money.PHP,
		Phase:          string(s.State.Phase),
		PaymentStatus:  paymentStatus(s),
		CreatedAt:      s.StartedAt,
	}
	if o := s.State.Order; o != nil {
		a.OrderID = optional(o.OrderID)
		a.OrderNumber = optional(o.OrderNumber)
		a.ArrivalCode = optional(o.ArrivalCode)
	}
	a.IntentID = optional(s.State.IntentID)
	if nav := s.State.Navigation; nav != nil {
		a.Screen = string(nav.Screen)
		a.ErrorTitle = optional(nav.Title)
		a.ErrorMessage = optional(nav.Message)
	}
	return a
}

func paymentStatus(s grace.Summary) string {
	if s.PaymentMethod != checkout.Online {
		return ledger.PaymentNone
	}
	nav := s.State.Navigation
	if nav == nil {
		return ledger.PaymentPending
	}
	switch nav.Screen {
	case view.ScreenOrderConfirmation:
		return ledger.PaymentSucceeded
	case view.ScreenPaymentCancel:
		return ledger.PaymentCancelled
	case view.ScreenPaymentFailed:
		if s.State.IntentID == "" {
			return ledger.PaymentNone
		}
		return ledger.PaymentFailed
	case view.ScreenCheckout, view.ScreenCheckoutCancelled:
		return ledger.PaymentNone
	default:
		return ledger.PaymentPending
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
