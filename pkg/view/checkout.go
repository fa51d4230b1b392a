package view

type Screen string

const (
	// ScreenCheckout returns to the checkout form; nothing was created server-side.
	ScreenCheckout          Screen = "checkout"
	ScreenCheckoutCancelled Screen = "checkout_cancelled"
	ScreenOrderConfirmation Screen = "order_confirmation"
	// ScreenPaymentProcessing polls the intent status before telling the user anything.
	ScreenPaymentProcessing Screen = "payment_processing"
	ScreenPaymentCancel     Screen = "payment_cancel"
	ScreenPaymentFailed     Screen = "payment_failed"
)

// ReasonCancelled is the payment-cancel reason for an explicit in-provider cancel.
const ReasonCancelled = "cancelled"

// Navigation is the terminal instruction a checkout attempt ends with.
type Navigation struct {
	Screen Screen `json:"screen"`

	Order        *OrderRef `json:"order,omitempty"`
	OrderCreated bool      `json:"order_created"`

	PaymentMethod     string `json:"payment_method,omitempty"`
	PaymentMethodType string `json:"payment_method_type,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`

	Reason      string            `json:"reason,omitempty"`
	Title       string            `json:"title,omitempty"`
	Message     string            `json:"message,omitempty"`
	IsCardError bool              `json:"is_card_error,omitempty"`
	Retryable   bool              `json:"retryable,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

func (n Navigation) Terminal() bool {
	return n.Screen != ""
}
