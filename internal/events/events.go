package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	TypeSessionStarted   = "checkout.session_started"
	TypeSessionCancelled = "checkout.session_cancelled"
	TypeOrderCreated     = "checkout.order_created"
	TypeRedirectOpened   = "payment.redirect_opened"
	TypeRedirectClosed   = "payment.redirect_closed"
	TypeSessionFinished  = "checkout.session_finished"
	TypePaymentUpdated   = "payment.status_updated"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	IntentID   string    `json:"payment_intent_id,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Screen     string    `json:"screen,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(typ string) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev Event) error {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	l.LogAttrs(ctx, slog.LevelInfo, "event",
		slog.String("type", ev.Type),
		slog.String("event_id", ev.ID),
		slog.String("session_id", ev.SessionID),
		slog.String("order_id", ev.OrderID),
		slog.String("intent_id", ev.IntentID),
		slog.String("screen", ev.Screen),
	)
	return nil
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
