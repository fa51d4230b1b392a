package ledger

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("checkout attempt not found")
	ErrDuplicateEvent = errors.New("provider event already recorded")
)

type Store interface {
	// SaveAttempt inserts or replaces the attempt by ID. A payment status a
	// webhook already settled survives a snapshot that still says pending.
	SaveAttempt(ctx context.Context, a *Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FindByIntent(ctx context.Context, intentID string) (Attempt, error)
	// RecordPaymentEvent stores ev once per (provider, event id) and applies
	// upd to the matching attempt. A replay returns ErrDuplicateEvent and
	// changes nothing. An unknown intent is recorded with a process error.
	RecordPaymentEvent(ctx context.Context, ev ProviderEvent, upd *PaymentUpdate) error
}

// applyStatus keeps terminal payment statuses sticky. A late failure
// never overwrites a recorded success.
func applyStatus(current, next string) (string, bool) {
	if current == next {
		return current, false
	}
	if current == PaymentSucceeded {
		return current, false
	}
	return next, true
}

// mergeSnapshot picks the payment status kept when a session snapshot
// overwrites an attempt row.
func mergeSnapshot(current, next string) string {
	if current == PaymentSucceeded {
		return current
	}
	if current == PaymentFailed && next == PaymentPending {
		return current
	}
	return next
}
