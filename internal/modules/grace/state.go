package grace

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

const (
	PeriodSeconds = 10
	// CueThreshold is the last few seconds that fire OnCue.
	CueThreshold = 3
)

type Phase string

const (
	PhaseCounting         Phase = "counting"
	PhaseCommitting       Phase = "committing"
	PhaseAwaitingRedirect Phase = "awaiting_redirect"
	// PhaseReconciling hands off to the processing screen; the intent
	// status decides what happened.
	PhaseReconciling Phase = "reconciling"
	PhaseSucceeded   Phase = "succeeded"
	PhaseFailed      Phase = "failed"
	PhaseCancelled   Phase = "cancelled"
)

func (p Phase) Terminal() bool {
	switch p {
	case PhaseReconciling, PhaseSucceeded, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

type State struct {
	ID           string           `json:"id"`
	Phase        Phase            `json:"phase"`
	SecondsLeft  int              `json:"seconds_left"`
	IsCancelling bool             `json:"is_cancelling"`
	IsProcessing bool             `json:"is_processing"`
	StepLabel    string           `json:"step_label,omitempty"`
	Order        *view.OrderRef   `json:"order,omitempty"`
	RedirectURL  string           `json:"redirect_url,omitempty"`
	IntentID     string           `json:"payment_intent_id,omitempty"`
	Navigation   *view.Navigation `json:"navigation,omitempty"`
}

func (s State) clone() State {
	s.Order = s.Order.Clone()
	if s.Navigation != nil {
		nav := *s.Navigation
		nav.Order = nav.Order.Clone()
		if nav.Fields != nil {
			fields := make(map[string]string, len(nav.Fields))
			for k, v := range nav.Fields {
				fields[k] = v
			}
			nav.Fields = fields
		}
		s.Navigation = &nav
	}
	return s
}

// Summary is what hooks see: the session's current state plus the parts
// of the draft that are safe to persist.
type Summary struct {
	SessionID     string
	UserID        string
	BusinessID    string
	PaymentMethod checkout.PaymentMethod
	PaymentType   checkout.OnlineType
	Total         decimal.Decimal
	CustomerName  string
	CustomerEmail string
	StartedAt     time.Time
	State         State
}

const (
	stepValidating = "Checking your order..."
	stepOrder      = "Creating your order..."
	stepIntent     = "Preparing payment..."
	stepAttach     = "Connecting to payment provider..."
	stepRedirect   = "Waiting for payment authorization..."
)
