package payments

import (
	"github.com/shopspring/decimal"

	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
)

type Status string

const (
	StatusAwaitingPaymentMethod Status = "awaiting_payment_method"
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusAwaitingNextAction    Status = "awaiting_next_action"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusFailed                Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// NeedsPaymentMethod covers both spellings the processor and backend use.
func (s Status) NeedsPaymentMethod() bool {
	return s == StatusAwaitingPaymentMethod || s == StatusRequiresPaymentMethod
}

// Intent is the locally cached reference for one checkout attempt.
type Intent struct {
	ID          string
	ClientKey   string
	Amount      int64 // centavos
	Currency    string
	MethodTypes []string
	Status      Status
}

type IntentRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	MethodTypes []string
}

type MethodRequest struct {
	Type    checkout.OnlineType
	Card    *checkout.CardDetails
	Billing checkout.BillingInfo
}

type AttachRequest struct {
	IntentID  string
	MethodID  string
	ClientKey string
	ReturnURL string
}

type EWalletRequest struct {
	IntentID  string
	Type      checkout.OnlineType
	ReturnURL string
	Billing   checkout.BillingInfo
}

// PaymentError is the processor's last_payment_error.
type PaymentError struct {
	Code          string `json:"code,omitempty"`
	SubCode       string `json:"sub_code,omitempty"`
	FailedCode    string `json:"failed_code,omitempty"`
	FailedMessage string `json:"failed_message,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (p *PaymentError) empty() bool {
	return p == nil || (p.Code == "" && p.SubCode == "" && p.FailedCode == "" && p.FailedMessage == "" && p.Message == "")
}

type AttachResult struct {
	Status Status
	// RedirectURL is set only when the processor returned next_action.redirect.url.
	RedirectURL      string
	LastPaymentError *PaymentError
}

func (r AttachResult) NeedsRedirect() bool { return r.RedirectURL != "" }

type IntentStatus struct {
	ID               string
	Status           Status
	LastPaymentError *PaymentError
}

type WebhookEvent struct {
	EventID  string
	Type     string // payment.paid|payment.failed|source.chargeable|...
	Livemode bool

	PaymentID string
	IntentID  string

	AmountCentavos int64
	Currency       string

	FailedCode    string
	FailedMessage string
}
