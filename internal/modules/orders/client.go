package orders

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
)

type ItemRequest struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	SpecialRequest string `json:"special_request,omitempty"`
}

type CreateRequest struct {
	BusinessID          string        `json:"business_id"`
	UserID              string        `json:"user_id"`
	Items               []ItemRequest `json:"items"`
	DiscountID          *string       `json:"discount_id"`
	PickupDatetime      string        `json:"pickup_datetime"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	PaymentMethod       string        `json:"payment_method"`
	PaymentMethodType   string        `json:"payment_method_type,omitempty"`
	SkipCheckoutSession bool          `json:"skip_checkout_session"`
}

func NewCreateRequest(d checkout.OrderDraft) CreateRequest {
	items := make([]ItemRequest, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, ItemRequest{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			SpecialRequest: it.SpecialRequest,
		})
	}
	req := CreateRequest{
		BusinessID:          d.BusinessID,
		UserID:              d.UserID,
		Items:               items,
		DiscountID:          d.DiscountID,
		PickupDatetime:      d.PickupAt.UTC().Format(time.RFC3339),
		SpecialInstructions: d.SpecialInstructions,
		PaymentMethod:       string(d.PaymentMethod),
		SkipCheckoutSession: d.SkipCheckoutSession,
	}
	if d.IsOnline() {
		req.PaymentMethodType = string(d.PaymentMethodType)
	}
	return req
}

type Created struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	ArrivalCode string `json:"arrival_code"`
}

type Client struct {
	api *apiclient.Client
}

func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

func (c *Client) WithToken(token string) *Client {
	return &Client{api: c.api.WithToken(token)}
}

// Create submits the order. It is called at most once per checkout attempt;
// the caller owns that guarantee.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Created, error) {
	var env struct {
		Created
		Data *Created `json:"data"`
	}
	if err := c.api.Do(ctx, http.MethodPost, "/orders", req, &env); err != nil {
		se := &SubmitError{Err: err}
		var re *apiclient.ResponseError
		if errors.As(err, &re) {
			se.Status = re.Status
			se.Message = re.Message
		}
		return Created{}, se
	}

	out := env.Created
	if env.Data != nil {
		out = *env.Data
	}
	if out.OrderID == "" {
		return Created{}, &SubmitError{Err: ErrMissingOrderID}
	}
	return out, nil
}
