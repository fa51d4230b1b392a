package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
)

var (
	ErrMissingOrderID = errors.New("order response missing order id")
)

// SubmitError means the backend did not create the order. Retrying with the
// same draft is safe.
type SubmitError struct {
	Status  int
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Message != "" {
		return "order submit failed: " + e.Message
	}
	return fmt.Sprintf("order submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

type HintKind string

const (
	HintOutOfStock    HintKind = "out_of_stock"
	HintUnavailable   HintKind = "unavailable"
	HintPaymentFailed HintKind = "payment_failed"
	HintTimeout       HintKind = "timeout"
	HintGeneric       HintKind = "generic"
)

type SubmitHint struct {
	Kind      HintKind
	Title     string
	Message   string
	Retryable bool
}

// Hint turns an order-creation failure into a friendlier title by matching
// known backend phrases.
func Hint(err error) SubmitHint {
	if err == nil {
		return SubmitHint{Kind: HintGeneric, Title: "Order Failed", Message: "We couldn't place your order. Please try again.", Retryable: true}
	}

	msg := err.Error()
	var se *SubmitError
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "out of stock") || strings.Contains(lower, "insufficient stock"):
		return SubmitHint{
			Kind:    HintOutOfStock,
			Title:   "Item Out of Stock",
			Message: "Some items in your cart are no longer in stock. Please update your cart.",
		}
	case strings.Contains(lower, "unavailable"):
		return SubmitHint{
			Kind:    HintUnavailable,
			Title:   "Item Unavailable",
			Message: "Some items are currently unavailable. Please update your cart.",
		}
	case strings.Contains(lower, "payment") && strings.Contains(lower, "failed"):
		return SubmitHint{
			Kind:      HintPaymentFailed,
			Title:     "Payment Failed",
			Message:   "We couldn't set up payment for this order. Please try again.",
			Retryable: true,
		}
	case errors.Is(err, apiclient.ErrTimeout) || strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return SubmitHint{
			Kind:      HintTimeout,
			Title:     "Request Timed Out",
			Message:   "The server took too long to respond. Please try again.",
			Retryable: true,
		}
	}
	return SubmitHint{
		Kind:      HintGeneric,
		Title:     "Order Failed",
		Message:   "We couldn't place your order. Please try again.",
		Retryable: true,
	}
}
