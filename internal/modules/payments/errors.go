package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
)

var (
	ErrInitFailed       = errors.New("payment initialization failed")
	ErrMissingClientKey = errors.New("payment intent missing client key")
	ErrMissingCard      = errors.New("card details required")
	ErrBadSignature     = errors.New("invalid webhook signature")
	ErrStaleWebhook     = errors.New("webhook timestamp outside tolerance")
)

type APIError struct {
	Code    string `json:"code"`
	SubCode string `json:"sub_code,omitempty"`
	Detail  string `json:"detail"`
	Source  *struct {
		Pointer   string `json:"pointer"`
		Attribute string `json:"attribute"`
	} `json:"source,omitempty"`
}

// ProcessorError is an error response straight from the payment processor.
type ProcessorError struct {
	Status int
	Errors []APIError
}

func (e *ProcessorError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("processor: status %d", e.Status)
	}
	first := e.Errors[0]
	return fmt.Sprintf("processor: %d %s: %s", e.Status, first.Code, first.Detail)
}

// ProcessorCode reports the first error's code and sub-code.
func (e *ProcessorError) ProcessorCode() (code, subCode string) {
	if len(e.Errors) == 0 {
		return "", ""
	}
	return e.Errors[0].Code, e.Errors[0].SubCode
}

// IntentFailedError means the intent went back to awaiting a payment method
// with a last_payment_error attached.
type IntentFailedError struct {
	IntentID string
	Last     *PaymentError
}

func (e *IntentFailedError) Error() string {
	code := ""
	if e.Last != nil {
		code = firstNonEmpty(e.Last.SubCode, e.Last.FailedCode, e.Last.Code)
	}
	return fmt.Sprintf("payment intent %s failed: %s", e.IntentID, code)
}

func asProcessorError(err error) error {
	var re *apiclient.ResponseError
	if !errors.As(err, &re) {
		return err
	}
	var body struct {
		Errors []APIError `json:"errors"`
	}
	if json.Unmarshal(re.Body, &body) != nil || len(body.Errors) == 0 {
		return err
	}
	return &ProcessorError{Status: re.Status, Errors: body.Errors}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
