package grace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/checkout"
	"github.com/VNZray/capstone-project-sub008/internal/modules/orders"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
	"github.com/VNZray/capstone-project-sub008/pkg/view"
)

// commit runs at most once per controller. Every path ends in finish.
// Once the latch is set the backend and processor calls no longer follow
// ctx; only the wait on the authorization browser does.
func (c *Controller) commit(ctx context.Context) {
	if !c.latch.CompareAndSwap(false, true) {
		return
	}
	waitCtx := ctx
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "checkout commit panicked", "panic", r)
			c.failPayment(ctx, fmt.Errorf("commit panic: %v", r))
		}
	}()

	c.update(func(s *State) bool {
		s.Phase = PhaseCommitting
		s.SecondsLeft = 0
		s.IsCancelling = false
		s.IsProcessing = true
		s.StepLabel = stepValidating
		return true
	})

	c.mu.Lock()
	d := c.draft
	c.mu.Unlock()

	// Time has passed since the draft was built.
	now := c.deps.Now()
	if err := checkout.ValidatePickupWindow(d.PickupAt, now); err != nil {
		c.failLocal(ctx, err)
		return
	}
	if err := checkout.ValidateMinimumAmount(d); err != nil {
		c.failLocal(ctx, err)
		return
	}

	c.step(stepOrder)
	created, err := c.deps.Orders.Create(ctx, orders.NewCreateRequest(d))
	if err != nil {
		c.failOrder(ctx, err)
		return
	}

	ref := &view.OrderRef{OrderID: created.OrderID, OrderNumber: created.OrderNumber, ArrivalCode: created.ArrivalCode}
	c.update(func(s *State) bool {
		s.Order = ref
		return true
	})
	c.logger.InfoContext(ctx, "order created", "order_id", ref.OrderID, "order_number", ref.OrderNumber)

	if err := c.deps.Cart.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "cart clear failed", "order_id", ref.OrderID, "err", err)
	}

	if !d.IsOnline() {
		c.finish(ctx, PhaseSucceeded, view.Navigation{Screen: view.ScreenOrderConfirmation})
		return
	}

	c.step(stepIntent)
	intent, err := c.deps.Payments.CreateIntent(ctx, payments.IntentRequest{
		OrderID:     ref.OrderID,
		Amount:      d.Total,
		MethodTypes: d.MethodTypes(),
	})
	if err != nil {
		c.failPayment(ctx, err)
		return
	}
	c.update(func(s *State) bool {
		s.IntentID = intent.ID
		return true
	})

	c.step(stepAttach)
	returnURL := c.deps.ReturnURL(ref.OrderID)
	res, err := c.attach(ctx, d, intent, returnURL)
	if err != nil {
		c.failPayment(ctx, err)
		return
	}

	if !res.NeedsRedirect() {
		if res.Status == payments.StatusSucceeded {
			c.finish(ctx, PhaseSucceeded, view.Navigation{Screen: view.ScreenOrderConfirmation})
			return
		}
		c.finish(ctx, PhaseReconciling, view.Navigation{Screen: view.ScreenPaymentProcessing})
		return
	}

	// the URL is only published once a redirect result can be delivered
	ready := func() {
		c.update(func(s *State) bool {
			s.Phase = PhaseAwaitingRedirect
			s.IsProcessing = false
			s.StepLabel = stepRedirect
			s.RedirectURL = res.RedirectURL
			return true
		})
	}
	out, err := c.deps.Bridge.Open(waitCtx, authbridge.Request{Key: c.id, URL: res.RedirectURL, ReturnURL: returnURL, Ready: ready})
	if err != nil {
		c.failPayment(ctx, fmt.Errorf("open authorization: %w", err))
		return
	}
	c.logger.InfoContext(ctx, "authorization returned", "result", string(out.Type), "intent_id", intent.ID)

	if authbridge.IsConfirmedCancel(out) {
		c.finish(ctx, PhaseCancelled, view.Navigation{Screen: view.ScreenPaymentCancel, Reason: view.ReasonCancelled})
		return
	}
	// success and dismiss look the same from here
	c.finish(ctx, PhaseReconciling, view.Navigation{Screen: view.ScreenPaymentProcessing})
}

func (c *Controller) attach(ctx context.Context, d checkout.OrderDraft, intent payments.Intent, returnURL string) (payments.AttachResult, error) {
	var billing checkout.BillingInfo
	if d.Billing != nil {
		billing = d.Billing.Redacted()
	}

	if d.IsEWallet() {
		return c.deps.Payments.AttachEWallet(ctx, payments.EWalletRequest{
			IntentID:  intent.ID,
			Type:      d.PaymentMethodType,
			ReturnURL: returnURL,
			Billing:   billing,
		})
	}

	methodID, err := c.deps.Payments.CreatePaymentMethod(ctx, payments.MethodRequest{
		Type:    checkout.TypeCard,
		Card:    c.takeCard(),
		Billing: billing,
	})
	if err != nil {
		return payments.AttachResult{}, err
	}
	return c.deps.Payments.AttachPaymentMethod(ctx, payments.AttachRequest{
		IntentID:  intent.ID,
		MethodID:  methodID,
		ClientKey: intent.ClientKey,
		ReturnURL: returnURL,
	})
}

// takeCard hands out the card fields once and drops them from the draft.
func (c *Controller) takeCard() *checkout.CardDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft.Billing == nil {
		return nil
	}
	card := c.draft.Billing.Card
	b := c.draft.Billing.Redacted()
	c.draft.Billing = &b
	return card
}

func (c *Controller) failLocal(ctx context.Context, err error) {
	nav := view.Navigation{Screen: view.ScreenCheckout, Title: "Please review your order"}
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		nav.Message = ve.Message()
		nav.Fields = ve.Fields
	} else {
		nav.Message = err.Error()
	}
	c.logger.InfoContext(ctx, "checkout revalidation failed", "err", err)
	c.finish(ctx, PhaseFailed, nav)
}

func (c *Controller) failOrder(ctx context.Context, err error) {
	hint := orders.Hint(err)
	c.logger.LogAttrs(ctx, slog.LevelWarn, "order creation failed",
		slog.String("hint", string(hint.Kind)),
		slog.String("err", err.Error()),
	)
	c.finish(ctx, PhaseFailed, view.Navigation{
		Screen:    view.ScreenPaymentFailed,
		Title:     hint.Title,
		Message:   hint.Message,
		Retryable: hint.Retryable,
	})
}

// failPayment is used once the order exists. Nothing is retried here.
func (c *Controller) failPayment(ctx context.Context, err error) {
	cls := payments.Classify(err)
	c.logger.LogAttrs(ctx, slog.LevelWarn, "payment step failed",
		slog.String("category", string(cls.Category)),
		slog.String("code", cls.Code),
		slog.String("err", err.Error()),
	)
	c.finish(ctx, PhaseFailed, view.Navigation{
		Screen:      view.ScreenPaymentFailed,
		Title:       cls.Title,
		Message:     cls.Message,
		IsCardError: cls.IsCardError,
		Retryable:   true,
	})
}
