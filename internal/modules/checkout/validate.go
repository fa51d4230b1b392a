package checkout

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// Validate runs every local check in the order the user would fix them.
func Validate(d OrderDraft, now time.Time) error {
	if err := validate.Struct(d); err != nil {
		return &ValidationError{Err: ErrInvalidDraft, Fields: fieldErrors(err, "")}
	}
	if d.IsOnline() && d.PaymentMethodType == "" {
		return invalid(ErrInvalidDraft, "payment_method_type", "Choose a payment option.")
	}
	if err := ValidatePickupWindow(d.PickupAt, now); err != nil {
		return err
	}
	if err := ValidateMinimumAmount(d); err != nil {
		return err
	}
	return ValidateBilling(d)
}

// ValidatePickupWindow requires pickup within [now+MinPrepTime, now+MaxAdvance].
func ValidatePickupWindow(pickup, now time.Time) error {
	if pickup.IsZero() {
		return invalid(ErrInvalidDraft, "pickup_datetime", "Choose a pickup time.")
	}
	if pickup.Before(now.Add(MinPrepTime)) {
		return invalid(ErrPickupTooSoon, "pickup_datetime", publicMessages[ErrPickupTooSoon])
	}
	if pickup.After(now.Add(MaxAdvance)) {
		return invalid(ErrPickupTooFar, "pickup_datetime", publicMessages[ErrPickupTooFar])
	}
	return nil
}

// ValidateMinimumAmount only applies to online payments.
func ValidateMinimumAmount(d OrderDraft) error {
	if !d.IsOnline() {
		return nil
	}
	if d.Total.LessThan(MinOnlineAmount) {
		return invalid(ErrBelowMinimum, "total", publicMessages[ErrBelowMinimum])
	}
	return nil
}

// ValidateBilling requires billing contact for online payments and card
// fields for card payments.
func ValidateBilling(d OrderDraft) error {
	if !d.IsOnline() {
		return nil
	}
	if d.Billing == nil {
		return invalid(ErrBillingIncomplete, "billing", publicMessages[ErrBillingIncomplete])
	}
	if err := validate.Struct(d.Billing); err != nil {
		return &ValidationError{Err: ErrBillingIncomplete, Fields: fieldErrors(err, "billing.")}
	}
	if d.IsCard() {
		if d.Billing.Card == nil {
			return invalid(ErrBillingIncomplete, "billing.card", "Enter your card details.")
		}
		if err := validate.Struct(d.Billing.Card); err != nil {
			return &ValidationError{Err: ErrBillingIncomplete, Fields: fieldErrors(err, "billing.card.")}
		}
	}
	return nil
}

func fieldErrors(err error, prefix string) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = "Invalid order details."
		return out
	}
	for _, fe := range ve {
		name := fe.Field()
		// card fields carry json:"-" so the tag func falls back to lowercased names
		out[prefix+name] = messageForTag(fe.Tag(), fe.Param())
	}
	return out
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "numeric":
		return "Only digits are allowed."
	case "min":
		return "Must be at least " + param + "."
	case "max":
		return "Must be at most " + param + "."
	case "oneof":
		return "Must be one of: " + param + "."
	default:
		return "Invalid value."
	}
}
