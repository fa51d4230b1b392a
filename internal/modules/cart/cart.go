package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("cart not found")
	ErrEmpty    = errors.New("cart is empty")
	ErrInvalid  = errors.New("invalid cart")
)

type Item struct {
	ProductID      string          `json:"product_id" binding:"required"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity" binding:"required,min=1"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	SpecialRequest string          `json:"special_request,omitempty" binding:"max=255"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is a read-only copy of a user's cart at one point in time.
type Snapshot struct {
	UserID     string          `json:"user_id"`
	BusinessID string          `json:"business_id"`
	Items      []Item          `json:"items"`
	DiscountID *string         `json:"discount_id,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Total      decimal.Decimal `json:"total"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (s Snapshot) Empty() bool { return len(s.Items) == 0 }

func (s Snapshot) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Recalculate derives subtotal and total from the items. The total never goes negative.
func (s *Snapshot) Recalculate() {
	sub := decimal.Zero
	for _, it := range s.Items {
		sub = sub.Add(it.LineTotal())
	}
	s.Subtotal = sub
	total := sub.Sub(s.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	s.Total = total
}

func (s Snapshot) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalid)
	}
	if len(s.Items) > 0 && s.BusinessID == "" {
		return fmt.Errorf("%w: missing business", ErrInvalid)
	}
	if s.Discount.IsNegative() {
		return fmt.Errorf("%w: negative discount", ErrInvalid)
	}
	for _, it := range s.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: item %q quantity %d", ErrInvalid, it.ProductID, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %q has a negative price", ErrInvalid, it.ProductID)
		}
	}
	return nil
}

type Store interface {
	Get(ctx context.Context, userID string) (Snapshot, error)
	Put(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context, userID string) error
}

// Accessor binds a Store to one user. Checkout reads through it and clears
// the cart through it exactly once, after the order exists.
type Accessor struct {
	store  Store
	userID string
}

func For(store Store, userID string) *Accessor {
	return &Accessor{store: store, userID: userID}
}

func (a *Accessor) UserID() string { return a.userID }

func (a *Accessor) Snapshot(ctx context.Context) (Snapshot, error) {
	s, err := a.store.Get(ctx, a.userID)
	if err != nil {
		return Snapshot{}, err
	}
	if s.Empty() {
		return Snapshot{}, ErrEmpty
	}
	return s, nil
}

func (a *Accessor) Clear(ctx context.Context) error {
	return a.store.Clear(ctx, a.userID)
}
