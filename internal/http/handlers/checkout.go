package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/VNZray/capstone-project-sub008/internal/http/middleware"
	"github.com/VNZray/capstone-project-sub008/internal/http/validation"
	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/modules/grace"
	"github.com/VNZray/capstone-project-sub008/internal/shared/apperr"
)

// ControllerFactory builds a controller for a validated draft.
type ControllerFactory interface {
	New(id string, draft checkout.OrderDraft, contact grace.Contact) (*grace.Controller, error)
}

type CheckoutHandler struct {
	Carts    cart.Store
	Sessions *grace.Registry
	Factory  ControllerFactory
	Bridge   *authbridge.Bridge
	Now      func() time.Time

	// MaxWait caps GET ?wait=1 long polls.
	MaxWait time.Duration
}

func NewCheckoutHandler(carts cart.Store, sessions *grace.Registry, f ControllerFactory, b *authbridge.Bridge) *CheckoutHandler {
	return &CheckoutHandler{
		Carts:    carts,
		Sessions: sessions,
		Factory:  f,
		Bridge:   b,
		Now:      time.Now,
		MaxWait:  25 * time.Second,
	}
}

type cardInput struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type billingInput struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Phone string     `json:"phone"`
	Card  *cardInput `json:"card"`
}

type createSessionInput struct {
	PickupAt            time.Time     `json:"pickup_datetime" binding:"required"`
	SpecialInstructions string        `json:"special_instructions" binding:"max=500"`
	PaymentMethod       string        `json:"payment_method" binding:"required,oneof=cash_on_pickup online"`
	PaymentMethodType   string        `json:"payment_method_type" binding:"omitempty,oneof=card gcash paymaya grab_pay"`
	Billing             *billingInput `json:"billing"`
}

func (in createSessionInput) toInput() checkout.Input {
	out := checkout.Input{
		PickupAt:            in.PickupAt,
		SpecialInstructions: in.SpecialInstructions,
		PaymentMethod:       checkout.PaymentMethod(in.PaymentMethod),
		PaymentMethodType:   checkout.OnlineType(in.PaymentMethodType),
	}
	if b := in.Billing; b != nil {
		out.Billing = &checkout.BillingInfo{Name: b.Name, Email: b.Email, Phone: b.Phone}
		if b.Card != nil {
			out.Billing.Card = &checkout.CardDetails{
				Number:   b.Card.Number,
				ExpMonth: b.Card.ExpMonth,
				ExpYear:  b.Card.ExpYear,
				CVC:      b.Card.CVC,
			}
		}
	}
	return out
}

type redirectInput struct {
	Type string `json:"type" binding:"required,oneof=success cancel dismiss"`
}

// POST /api/checkout/sessions validates the draft and starts the countdown.
// A draft that fails local checks never becomes a session.
func (h *CheckoutHandler) Create(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var in createSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Please review your order details.", validation.FromBindError(err, &in)))
		return
	}

	snap, err := cart.For(h.Carts, u.UserID).Snapshot(ctx)
	if errors.Is(err, cart.ErrEmpty) || errors.Is(err, cart.ErrNotFound) {
		middleware.Fail(c, apperr.InvalidErr("Your cart is empty.", map[string]string{"items": "Your cart is empty."}))
		return
	}
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	draft, err := checkout.BuildDraft(snap, in.toInput(), h.Now())
	if err != nil {
		var ve *checkout.ValidationError
		if errors.As(err, &ve) {
			middleware.Fail(c, &apperr.AppError{Kind: apperr.Invalid, PublicMsg: ve.Message(), Fields: ve.Fields, Err: err})
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	if _, busy := h.Sessions.Active(u.UserID); busy {
		middleware.Fail(c, h.activeConflict(u.UserID, grace.ErrActiveSession))
		return
	}

	ctrl, err := h.Factory.New(uuid.NewString(), draft, grace.Contact{Email: u.Email, Token: middleware.BearerToken(c)})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	if err := h.Sessions.Start(ctrl); err != nil {
		if errors.Is(err, grace.ErrActiveSession) {
			middleware.Fail(c, h.activeConflict(u.UserID, err))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusCreated, ctrl.State())
}

// GET /api/checkout/sessions/:id[?wait=1] returns the state; with wait it
// blocks until the session has navigated or MaxWait passes.
func (h *CheckoutHandler) Get(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	if c.Query("wait") != "" {
		t := time.NewTimer(h.MaxWait)
		defer t.Stop()
		select {
		case <-ctrl.Done():
		case <-t.C:
		case <-c.Request.Context().Done():
			return
		}
	}
	c.JSON(http.StatusOK, ctrl.State())
}

// DELETE /api/checkout/sessions/:id forgets a session once it has navigated.
func (h *CheckoutHandler) Delete(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	if _, done := ctrl.Navigation(); !done {
		middleware.Fail(c, apperr.ConflictErr("This checkout is still in progress."))
		return
	}
	h.Sessions.Remove(ctrl.ID())
	c.Status(http.StatusNoContent)
}

// POST /api/checkout/sessions/:id/proceed skips the remaining countdown.
func (h *CheckoutHandler) Proceed(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	if err := ctrl.RequestProceed(); err != nil {
		middleware.Fail(c, notCounting(err))
		return
	}
	c.JSON(http.StatusAccepted, ctrl.State())
}

// POST /api/checkout/sessions/:id/cancel-prompt pauses the countdown.
func (h *CheckoutHandler) OpenCancelPrompt(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	if err := ctrl.BeginCancel(); err != nil {
		middleware.Fail(c, notCounting(err))
		return
	}
	c.JSON(http.StatusOK, ctrl.State())
}

// DELETE /api/checkout/sessions/:id/cancel-prompt resumes the countdown.
func (h *CheckoutHandler) CloseCancelPrompt(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	ctrl.AbortCancel()
	c.JSON(http.StatusOK, ctrl.State())
}

// POST /api/checkout/sessions/:id/cancel
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	if err := ctrl.ConfirmCancel(); err != nil {
		middleware.Fail(c, notCounting(err))
		return
	}
	c.JSON(http.StatusOK, ctrl.State())
}

// POST /api/checkout/sessions/:id/redirect reports how the in-app browser
// closed: success, cancel or dismiss.
func (h *CheckoutHandler) Redirect(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	var in redirectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Unknown redirect result.", validation.FromBindError(err, &in)))
		return
	}
	t, _ := authbridge.ParseResultType(in.Type)

	if !h.Bridge.Resolve(ctrl.ID(), t) {
		middleware.Fail(c, apperr.ConflictErr("No payment authorization is waiting for this checkout."))
		return
	}
	c.JSON(http.StatusAccepted, ctrl.State())
}

// activeConflict points the app at the session it should resume.
func (h *CheckoutHandler) activeConflict(userID string, err error) error {
	ae := &apperr.AppError{Kind: apperr.Conflict, PublicMsg: "Your order is already being placed.", Err: err}
	if ctrl, ok := h.Sessions.Active(userID); ok {
		ae.Fields = map[string]string{"session_id": ctrl.ID()}
	}
	return ae
}

// session loads :id and hides other users' sessions behind a 404.
func (h *CheckoutHandler) session(c *gin.Context) (*grace.Controller, bool) {
	u, _ := middleware.CurrentUser(c)
	ctrl, ok := h.Sessions.Get(c.Param("id"))
	if !ok || ctrl.UserID() != u.UserID {
		middleware.Fail(c, apperr.NotFoundErr("Checkout session not found."))
		return nil, false
	}
	return ctrl, true
}

func notCounting(err error) error {
	switch {
	case errors.Is(err, grace.ErrCommitted):
		return &apperr.AppError{Kind: apperr.Conflict, PublicMsg: "Your order is already being placed.", Err: err}
	case errors.Is(err, grace.ErrNotCounting):
		return &apperr.AppError{Kind: apperr.Conflict, PublicMsg: "This checkout can no longer be changed.", Err: err}
	}
	return apperr.Wrap(err)
}
