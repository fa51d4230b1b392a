package payments

import (
	"context"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

type StatusPoller interface {
	PollStatus(ctx context.Context, intentID string) (IntentStatus, error)
}

// Outcome is what the processing screen shows after asking the processor.
type Outcome struct {
	IntentID string          `json:"payment_intent_id"`
	Status   Status          `json:"status"`
	Final    bool            `json:"final"`
	Screen   view.Screen     `json:"screen"`
	Error    *Classification `json:"error,omitempty"`
}

// Reconciler resolves ambiguous redirect outcomes by polling the intent.
type Reconciler struct {
	poller   StatusPoller
	interval time.Duration
	timeout  time.Duration
}

func NewReconciler(p StatusPoller, interval, timeout time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Reconciler{poller: p, interval: interval, timeout: timeout}
}

func (r *Reconciler) Check(ctx context.Context, intentID string) (Outcome, error) {
	st, err := r.poller.PollStatus(ctx, intentID)
	if err != nil {
		return Outcome{}, err
	}
	return outcomeFor(intentID, st), nil
}

// Await polls until the status is final, the timeout passes or ctx ends.
// A non-final outcome is returned on timeout; that is not an error.
func (r *Reconciler) Await(ctx context.Context, intentID string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := Outcome{IntentID: intentID, Screen: view.ScreenPaymentProcessing}
	for {
		out, err := r.Check(ctx, intentID)
		switch {
		case err == nil:
			last = out
			if out.Final {
				return out, nil
			}
		case ctx.Err() != nil:
			return last, nil
		default:
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, nil
		case <-ticker.C:
		}
	}
}

func outcomeFor(intentID string, st IntentStatus) Outcome {
	out := Outcome{IntentID: intentID, Status: st.Status, Screen: view.ScreenPaymentProcessing}
	switch {
	case st.Status == StatusSucceeded:
		out.Final = true
		out.Screen = view.ScreenOrderConfirmation
	case st.Status == StatusFailed,
		st.Status.NeedsPaymentMethod() && st.LastPaymentError != nil:
		c := Classify(&IntentFailedError{IntentID: intentID, Last: st.LastPaymentError})
		out.Final = true
		out.Screen = view.ScreenPaymentFailed
		out.Error = &c
	}
	return out
}

// Settled returns the final outcome for a status already recorded on the
// attempt, usually by a webhook. Pending attempts report false.
func Settled(att ledger.Attempt) (Outcome, bool) {
	out := Outcome{Final: true}
	if att.IntentID != nil {
		out.IntentID = *att.IntentID
	}
	switch att.PaymentStatus {
	case ledger.PaymentSucceeded:
		out.Status = StatusSucceeded
		out.Screen = view.ScreenOrderConfirmation
	case ledger.PaymentFailed:
		out.Status = StatusFailed
		out.Screen = view.ScreenPaymentFailed
		c := Classify(&IntentFailedError{IntentID: out.IntentID})
		if att.ErrorTitle != nil && att.ErrorMessage != nil {
			c = Classification{Category: CategoryDeclined, Title: *att.ErrorTitle, Message: *att.ErrorMessage}
		}
		out.Error = &c
	default:
		return Outcome{}, false
	}
	return out, true
}
