package grace

import (
	"log/slog"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/modules/orders"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
)

type orderBinder interface {
	WithToken(token string) *orders.Client
}

type gatewayBinder interface {
	WithToken(token string) *payments.Client
}

// Factory holds the service-wide collaborators and binds a user's cart
// and backend token to each controller it builds.
type Factory struct {
	Carts     cart.Store
	Orders    OrderSubmitter
	Payments  payments.Gateway
	Bridge    Authorizer
	ReturnURL func(orderID string) string
	Now       func() time.Time
	Logger    *slog.Logger
	Hooks     Hooks
}

func (f *Factory) New(id string, draft checkout.OrderDraft, contact Contact) (*Controller, error) {
	if f.Carts == nil {
		return nil, ErrMissingDeps
	}

	sub, gw := f.Orders, f.Payments
	if contact.Token != "" {
		if b, ok := sub.(orderBinder); ok {
			sub = b.WithToken(contact.Token)
		}
		if b, ok := gw.(gatewayBinder); ok {
			gw = b.WithToken(contact.Token)
		}
	}
	contact.Token = ""

	return New(id, draft, Deps{
		Cart:      cart.For(f.Carts, draft.UserID),
		Orders:    sub,
		Payments:  gw,
		Bridge:    f.Bridge,
		ReturnURL: f.ReturnURL,
		Contact:   contact,
		Now:       f.Now,
		Logger:    f.Logger,
		Hooks:     f.Hooks,
	})
}
