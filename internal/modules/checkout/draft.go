package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
)

type PaymentMethod string

const (
	CashOnPickup PaymentMethod = "cash_on_pickup"
	Online       PaymentMethod = "online"
)

type OnlineType string

const (
	TypeCard    OnlineType = "card"
	TypeGCash   OnlineType = "gcash"
	TypePayMaya OnlineType = "paymaya"
	TypeGrabPay OnlineType = "grab_pay"
)

func (t OnlineType) IsEWallet() bool {
	switch t {
	case TypeGCash, TypePayMaya, TypeGrabPay:
		return true
	}
	return false
}

const (
	MinPrepTime = 30 * time.Minute
	MaxAdvance  = 72 * time.Hour
)

// MinOnlineAmount is the processor's smallest payable amount in pesos.
var MinOnlineAmount = decimal.NewFromInt(20)

type LineItem struct {
	ProductID      string `json:"product_id" validate:"required"`
	Quantity       int    `json:"quantity" validate:"min=1"`
	SpecialRequest string `json:"special_request,omitempty" validate:"max=255"`
}

// CardDetails only lives for the duration of the payment-method call.
type CardDetails struct {
	Number   string `json:"-" validate:"required,numeric,min=12,max=19"`
	ExpMonth int    `json:"-" validate:"min=1,max=12"`
	ExpYear  int    `json:"-" validate:"min=2000,max=2100"`
	CVC      string `json:"-" validate:"required,numeric,min=3,max=4"`
}

type BillingInfo struct {
	Name  string       `json:"name" validate:"required,max=255"`
	Email string       `json:"email" validate:"required,email"`
	Phone string       `json:"phone,omitempty" validate:"omitempty,max=32"`
	Card  *CardDetails `json:"-" validate:"-"`
}

func (b BillingInfo) Redacted() BillingInfo {
	b.Card = nil
	return b
}

type OrderDraft struct {
	BusinessID          string          `json:"business_id" validate:"required"`
	UserID              string          `json:"user_id" validate:"required"`
	Items               []LineItem      `json:"items" validate:"required,min=1,dive"`
	DiscountID          *string         `json:"discount_id"`
	PickupAt            time.Time       `json:"pickup_datetime"`
	SpecialInstructions string          `json:"special_instructions,omitempty" validate:"max=500"`
	PaymentMethod       PaymentMethod   `json:"payment_method" validate:"required,oneof=cash_on_pickup online"`
	PaymentMethodType   OnlineType      `json:"payment_method_type,omitempty" validate:"omitempty,oneof=card gcash paymaya grab_pay"`
	SkipCheckoutSession bool            `json:"skip_checkout_session"`
	Total               decimal.Decimal `json:"total"`
	Billing             *BillingInfo    `json:"billing,omitempty" validate:"-"`
}

func (d OrderDraft) IsOnline() bool { return d.PaymentMethod == Online }

func (d OrderDraft) IsCard() bool { return d.IsOnline() && d.PaymentMethodType == TypeCard }

func (d OrderDraft) IsEWallet() bool { return d.IsOnline() && d.PaymentMethodType.IsEWallet() }

// MethodTypes lists the processor method types the intent should allow.
func (d OrderDraft) MethodTypes() []string {
	if !d.IsOnline() || d.PaymentMethodType == "" {
		return nil
	}
	return []string{string(d.PaymentMethodType)}
}

// Input is what the user picked on the checkout form.
type Input struct {
	PickupAt            time.Time
	SpecialInstructions string
	PaymentMethod       PaymentMethod
	PaymentMethodType   OnlineType
	SkipCheckoutSession bool
	Billing             *BillingInfo
}

// BuildDraft combines the cart snapshot with the form input and validates
// the result against now.
func BuildDraft(snap cart.Snapshot, in Input, now time.Time) (OrderDraft, error) {
	if snap.Empty() {
		return OrderDraft{}, invalid(ErrInvalidDraft, "items", "Your cart is empty.")
	}

	items := make([]LineItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, LineItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			SpecialRequest: it.SpecialRequest,
		})
	}

	d := OrderDraft{
		BusinessID:          snap.BusinessID,
		UserID:              snap.UserID,
		Items:               items,
		DiscountID:          snap.DiscountID,
		PickupAt:            in.PickupAt,
		SpecialInstructions: in.SpecialInstructions,
		PaymentMethod:       in.PaymentMethod,
		PaymentMethodType:   in.PaymentMethodType,
		// the in-app intent flow replaces the hosted checkout page
		SkipCheckoutSession: in.SkipCheckoutSession || in.PaymentMethod == Online,
		Total:               snap.Total,
		Billing:             in.Billing,
	}
	if d.PaymentMethod == CashOnPickup {
		d.PaymentMethodType = ""
	}

	if err := Validate(d, now); err != nil {
		return OrderDraft{}, err
	}
	return d, nil
}
