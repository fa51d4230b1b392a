package payments

import (
	"encoding/json"
	"errors"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
)

type Category string

const (
	CategoryDeclined    Category = "declined"
	CategoryBlocked     Category = "blocked"
	CategoryProcessor   Category = "processor_error"
	CategoryInvalidCard Category = "invalid_card"
	CategoryInitFailed  Category = "init_failed"
	CategoryUnknown     Category = "unknown"
)

const (
	GenericDeclineTitle   = "Payment Declined"
	GenericDeclineMessage = "Your payment was declined. Please try a different payment method or contact your bank."
)

// Code is the canonical processor code pair extracted from any error shape.
type Code struct {
	Code    string
	SubCode string
}

func (c Code) Empty() bool { return c.Code == "" && c.SubCode == "" }

type Classification struct {
	Category    Category `json:"category"`
	Code        string   `json:"code,omitempty"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	IsCardError bool     `json:"is_card_error"`
}

type entry struct {
	category    Category
	title       string
	message     string
	isCardError bool
}

func declined(msg string) entry {
	return entry{CategoryDeclined, "Card Declined", msg, true}
}

func invalidCard(msg string) entry {
	return entry{CategoryInvalidCard, "Invalid Card Details", msg, true}
}

func processor(msg string) entry {
	return entry{CategoryProcessor, "Payment Processor Error", msg, false}
}

// Security-sensitive codes all share one message so the client never learns
// which fraud signal fired.
var blocked = entry{CategoryBlocked, GenericDeclineTitle, GenericDeclineMessage, true}

var codeTable = map[string]entry{
	"insufficient_funds":      declined("Your card has insufficient funds. Please use a different card or payment method."),
	"card_expired":            declined("Your card has expired. Please use a different card."),
	"expired_card":            declined("Your card has expired. Please use a different card."),
	"limit_exceeded":          declined("Your card has reached its transaction limit. Please use a different card or contact your bank."),
	"card_velocity_exceeded":  declined("Your card has reached its transaction limit. Please use a different card or contact your bank."),
	"credit_limit_exceeded":   declined("Your card has reached its credit limit. Please use a different card."),
	"do_not_honor":            declined("Your bank did not approve this payment. Please contact your bank or use a different card."),
	"call_card_issuer":        declined("Your bank asked you to contact them before this payment can go through."),
	"issuer_declined":         declined("Your bank did not approve this payment. Please contact your bank or use a different card."),
	"transaction_not_allowed": declined("This card cannot be used for this type of purchase. Please use a different card."),
	"card_not_supported":      declined("This card type is not supported. Please use a Visa or Mastercard."),
	"card_type_mismatch":      declined("The card type does not match the card number. Please check your card details."),
	"currency_not_supported":  declined("Your card does not support payments in Philippine Peso."),
	"authentication_failed":   declined("Card verification (3-D Secure) failed. Please try again or use a different card."),
	"authentication_required": declined("Your bank requires card verification. Please try again and complete the verification step."),
	"payment_expired":         {CategoryDeclined, "Payment Expired", "The payment authorization expired before it was completed. Please try again.", false},
	"insufficient_balance":    {CategoryDeclined, "Insufficient Balance", "Your e-wallet balance is not enough for this payment. Please top up or choose another method.", false},

	"fraudulent":           blocked,
	"suspected_fraud":      blocked,
	"highrisk_transaction": blocked,
	"lost_card":            blocked,
	"stolen_card":          blocked,
	"pickup_card":          blocked,
	"restricted_card":      blocked,
	"security_violation":   blocked,
	"blocked":              blocked,
	"processor_blocked":    blocked,
	"generic_decline":      blocked,

	"processor_unavailable": processor("The payment processor is temporarily unavailable. Please try again in a few minutes."),
	"processing_error":      processor("An error occurred while processing your payment. Please try again."),
	"issuer_not_available":  processor("Your card issuer could not be reached. Please try again shortly."),
	"issuer_unavailable":    processor("Your card issuer could not be reached. Please try again shortly."),
	"system_error":          processor("The payment service ran into a problem. Please try again."),
	"try_again_later":       processor("The payment could not be completed right now. Please try again later."),

	"cvc_invalid":          invalidCard("The card security code (CVC) is incorrect."),
	"incorrect_cvc":        invalidCard("The card security code (CVC) is incorrect."),
	"invalid_cvc":          invalidCard("The card security code (CVC) is incorrect."),
	"card_number_invalid":  invalidCard("The card number is invalid. Please check and try again."),
	"invalid_card_number":  invalidCard("The card number is invalid. Please check and try again."),
	"incorrect_number":     invalidCard("The card number is invalid. Please check and try again."),
	"invalid_expiry_month": invalidCard("The card expiry month is invalid."),
	"invalid_expiry_year":  invalidCard("The card expiry year is invalid."),
	"invalid_account":      invalidCard("This card account is invalid or closed. Please use a different card."),
}

// Normalize extracts the processor code pair from whichever shape the error
// arrived in: a typed error carrying codes directly, a response body with
// response.data.errors[0], data.errors[0] or errors[0], or a
// last_payment_error.
func Normalize(err error) Code {
	if err == nil {
		return Code{}
	}

	var coder interface{ ProcessorCode() (string, string) }
	if errors.As(err, &coder) {
		if c, s := coder.ProcessorCode(); c != "" || s != "" {
			return Code{Code: c, SubCode: s}
		}
	}

	var ie *IntentFailedError
	if errors.As(err, &ie) && ie.Last != nil {
		return fromPaymentError(ie.Last)
	}

	var re *apiclient.ResponseError
	if errors.As(err, &re) {
		return fromBody(re.Body)
	}
	return Code{}
}

func fromPaymentError(p *PaymentError) Code {
	return Code{
		Code:    firstNonEmpty(p.Code, p.FailedCode),
		SubCode: p.SubCode,
	}
}

type errorList []APIError

func (l errorList) first() Code {
	if len(l) == 0 {
		return Code{}
	}
	return Code{Code: l[0].Code, SubCode: l[0].SubCode}
}

func fromBody(raw []byte) Code {
	var body struct {
		Code     string    `json:"code"`
		SubCode  string    `json:"sub_code"`
		Errors   errorList `json:"errors"`
		Response *struct {
			Data *struct {
				Errors errorList `json:"errors"`
			} `json:"data"`
		} `json:"response"`
		Data *struct {
			Errors     errorList `json:"errors"`
			Attributes *struct {
				LastPaymentError *PaymentError `json:"last_payment_error"`
			} `json:"attributes"`
		} `json:"data"`
		LastPaymentError *PaymentError `json:"last_payment_error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return Code{}
	}

	candidates := []Code{{Code: body.Code, SubCode: body.SubCode}}
	if body.Response != nil && body.Response.Data != nil {
		candidates = append(candidates, body.Response.Data.Errors.first())
	}
	if body.Data != nil {
		candidates = append(candidates, body.Data.Errors.first())
		if body.Data.Attributes != nil && body.Data.Attributes.LastPaymentError != nil {
			candidates = append(candidates, fromPaymentError(body.Data.Attributes.LastPaymentError))
		}
	}
	candidates = append(candidates, body.Errors.first())
	if body.LastPaymentError != nil {
		candidates = append(candidates, fromPaymentError(body.LastPaymentError))
	}

	for _, c := range candidates {
		if !c.Empty() {
			return c
		}
	}
	return Code{}
}

// Classify maps any error to a user-facing message. It never panics and
// returns the same result for the same input.
func Classify(err error) Classification {
	code := Normalize(err)

	for _, key := range []string{code.SubCode, code.Code} {
		if key == "" {
			continue
		}
		if e, ok := codeTable[key]; ok {
			return Classification{
				Category:    e.category,
				Code:        key,
				Title:       e.title,
				Message:     e.message,
				IsCardError: e.isCardError,
			}
		}
	}

	if err != nil && errors.Is(err, ErrInitFailed) {
		return Classification{
			Category: CategoryInitFailed,
			Code:     firstNonEmpty(code.SubCode, code.Code),
			Title:    "Payment Initialization Failed",
			Message:  "We couldn't start the payment. Your order was created and you can retry payment from your orders.",
		}
	}

	if !code.Empty() {
		return Classification{
			Category:    CategoryDeclined,
			Code:        firstNonEmpty(code.SubCode, code.Code),
			Title:       GenericDeclineTitle,
			Message:     GenericDeclineMessage,
			IsCardError: true,
		}
	}

	return Classification{
		Category: CategoryUnknown,
		Title:    "Payment Error",
		Message:  "Something went wrong while processing your payment. Please try again.",
	}
}
