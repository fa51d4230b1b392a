package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/shared/money"
)

// Client talks to two parties: the backend, which creates intents and
// attaches e-wallets with the secret key, and the processor's public API,
// which receives raw card fields directly.
type Client struct {
	backend   *apiclient.Client
	processor *apiclient.Client
}

func NewClient(backend *apiclient.Client, processor *apiclient.Client, publicKey string) *Client {
	return &Client{backend: backend, processor: processor.WithBasicKey(publicKey)}
}

func (c *Client) WithToken(token string) *Client {
	return &Client{backend: c.backend.WithToken(token), processor: c.processor}
}

type intentAttributes struct {
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	ClientKey        string        `json:"client_key"`
	Status           Status        `json:"status"`
	MethodsAllowed   []string      `json:"payment_method_allowed"`
	LastPaymentError *PaymentError `json:"last_payment_error"`
	NextAction       *struct {
		Type     string `json:"type"`
		Redirect *struct {
			URL       string `json:"url"`
			ReturnURL string `json:"return_url"`
		} `json:"redirect"`
	} `json:"next_action"`
}

// intentResource accepts both {data:{id,attributes:{...}}} and the flattened
// {data:{status,...}} the backend uses for some endpoints.
type intentResource struct {
	Data struct {
		ID              string            `json:"id"`
		PaymentIntentID string            `json:"payment_intent_id"`
		Attributes      *intentAttributes `json:"attributes"`
		intentAttributes
	} `json:"data"`
}

func (r intentResource) id() string {
	return firstNonEmpty(r.Data.PaymentIntentID, r.Data.ID)
}

func (r intentResource) attrs() intentAttributes {
	if r.Data.Attributes != nil {
		return *r.Data.Attributes
	}
	return r.Data.intentAttributes
}

func (r intentResource) attachResult() AttachResult {
	a := r.attrs()
	res := AttachResult{Status: a.Status}
	if a.NextAction != nil && a.NextAction.Redirect != nil {
		res.RedirectURL = a.NextAction.Redirect.URL
	}
	if !a.LastPaymentError.empty() {
		res.LastPaymentError = a.LastPaymentError
	}
	return res
}

// CreateIntent asks the backend for a payment intent tied to the order.
// Any failure is reported as ErrInitFailed.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if req.OrderID == "" {
		return Intent{}, fmt.Errorf("%w: missing order id", ErrInitFailed)
	}
	method := ""
	if len(req.MethodTypes) > 0 {
		method = req.MethodTypes[0]
	}
	payload := map[string]any{
		"payment_for":    "order",
		"reference_id":   req.OrderID,
		"payment_method": method,
	}

	var res intentResource
	if err := c.backend.Do(ctx, http.MethodPost, "/payment-intents", payload, &res); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrInitFailed, asProcessorError(err))
	}

	a := res.attrs()
	in := Intent{
		ID:          res.id(),
		ClientKey:   a.ClientKey,
		Amount:      a.Amount,
		Currency:    a.Currency,
		MethodTypes: req.MethodTypes,
		Status:      a.Status,
	}
	if in.ID == "" {
		return Intent{}, fmt.Errorf("%w: response missing payment intent id", ErrInitFailed)
	}
	if in.Amount == 0 {
		in.Amount = money.Centavos(req.Amount)
	}
	if in.Currency == "" {
		in.Currency = money.PHP
	}
	if len(a.MethodsAllowed) > 0 {
		in.MethodTypes = a.MethodsAllowed
	}
	return in, nil
}

type cardPayload struct {
	CardNumber string `json:"card_number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
}

type billingPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

func toBilling(b checkout.BillingInfo) *billingPayload {
	return &billingPayload{Name: b.Name, Email: b.Email, Phone: b.Phone}
}

// CreatePaymentMethod sends card or wallet details to the processor and
// returns the payment method id. Card fields are only referenced by the
// request body built here.
func (c *Client) CreatePaymentMethod(ctx context.Context, req MethodRequest) (string, error) {
	type attributes struct {
		Type    string          `json:"type"`
		Details *cardPayload    `json:"details,omitempty"`
		Billing *billingPayload `json:"billing,omitempty"`
	}
	attrs := attributes{Type: string(req.Type), Billing: toBilling(req.Billing)}
	if req.Type == checkout.TypeCard {
		if req.Card == nil {
			return "", ErrMissingCard
		}
		attrs.Details = &cardPayload{
			CardNumber: req.Card.Number,
			ExpMonth:   req.Card.ExpMonth,
			ExpYear:    req.Card.ExpYear,
			CVC:        req.Card.CVC,
		}
	}
	payload := map[string]any{"data": map[string]any{"attributes": attrs}}

	var res struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.processor.Do(ctx, http.MethodPost, "/payment_methods", payload, &res); err != nil {
		return "", asProcessorError(err)
	}
	if res.Data.ID == "" {
		return "", errors.New("processor: payment method response missing id")
	}
	return res.Data.ID, nil
}

// AttachPaymentMethod attaches a created method to the intent using the
// intent's client key. A returned IntentFailedError still carries the result.
func (c *Client) AttachPaymentMethod(ctx context.Context, req AttachRequest) (AttachResult, error) {
	if req.ClientKey == "" {
		return AttachResult{}, ErrMissingClientKey
	}
	payload := map[string]any{"data": map[string]any{"attributes": map[string]any{
		"payment_method": req.MethodID,
		"client_key":     req.ClientKey,
		"return_url":     req.ReturnURL,
	}}}

	var res intentResource
	path := "/payment_intents/" + url.PathEscape(req.IntentID) + "/attach"
	if err := c.processor.Do(ctx, http.MethodPost, path, payload, &res); err != nil {
		return AttachResult{}, asProcessorError(err)
	}
	return checkAttach(req.IntentID, res.attachResult())
}

// AttachEWallet lets the backend create and attach a wallet method in one call.
func (c *Client) AttachEWallet(ctx context.Context, req EWalletRequest) (AttachResult, error) {
	payload := map[string]any{
		"intent_id":  req.IntentID,
		"type":       string(req.Type),
		"return_url": req.ReturnURL,
		"billing":    toBilling(req.Billing),
	}
	var res intentResource
	path := "/payment-intents/" + url.PathEscape(req.IntentID) + "/attach"
	if err := c.backend.Do(ctx, http.MethodPost, path, payload, &res); err != nil {
		return AttachResult{}, asProcessorError(err)
	}
	return checkAttach(req.IntentID, res.attachResult())
}

func checkAttach(intentID string, res AttachResult) (AttachResult, error) {
	if res.LastPaymentError != nil && (res.Status.NeedsPaymentMethod() || res.Status == StatusFailed) {
		return res, &IntentFailedError{IntentID: intentID, Last: res.LastPaymentError}
	}
	return res, nil
}

// PollStatus reads the authoritative intent status through the backend.
func (c *Client) PollStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	var res intentResource
	if err := c.backend.Do(ctx, http.MethodGet, "/payment-intents/"+url.PathEscape(intentID), nil, &res); err != nil {
		return IntentStatus{}, asProcessorError(err)
	}
	a := res.attrs()
	st := IntentStatus{ID: firstNonEmpty(res.id(), intentID), Status: a.Status}
	if !a.LastPaymentError.empty() {
		st.LastPaymentError = a.LastPaymentError
	}
	return st, nil
}
