package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidDraft      = errors.New("invalid order draft")
	ErrPickupTooSoon     = errors.New("pickup time is too soon")
	ErrPickupTooFar      = errors.New("pickup time is too far ahead")
	ErrBelowMinimum      = errors.New("amount below online payment minimum")
	ErrBillingIncomplete = errors.New("billing details incomplete")
)

var publicMessages = map[error]string{
	ErrInvalidDraft:      "Please review your order details.",
	ErrPickupTooSoon:     fmt.Sprintf("Pickup time must be at least %d minutes from now.", int(MinPrepTime.Minutes())),
	ErrPickupTooFar:      fmt.Sprintf("Pickup time cannot be more than %d hours ahead.", int(MaxAdvance.Hours())),
	ErrBelowMinimum:      "Online payments require a minimum of ₱" + MinOnlineAmount.StringFixed(2) + ". Choose cash on pickup or add more items.",
	ErrBillingIncomplete: "Please complete your billing details.",
}

// ValidationError is a local, pre-submission failure. Nothing exists
// server-side when one is returned.
type ValidationError struct {
	Err    error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(keys, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Message() string {
	if m, ok := publicMessages[e.Err]; ok {
		return m
	}
	return publicMessages[ErrInvalidDraft]
}

func invalid(err error, field, msg string) *ValidationError {
	ve := &ValidationError{Err: err}
	if field != "" {
		ve.Fields = map[string]string{field: msg}
	}
	return ve
}
