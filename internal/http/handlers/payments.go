package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VNZray/capstone-project-sub008/internal/http/middleware"
	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
	"github.com/VNZray/capstone-project-sub008/internal/shared/apperr"
)

type PaymentsHandler struct {
	Reconciler *payments.Reconciler
	Attempts   ledger.Store
}

func NewPaymentsHandler(r *payments.Reconciler, attempts ledger.Store) *PaymentsHandler {
	return &PaymentsHandler{Reconciler: r, Attempts: attempts}
}

// GET /api/payments/:intentId/status[?wait=1] backs the processing screen.
// With wait it polls until the intent settles or the reconciler gives up.
func (h *PaymentsHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	intentID := c.Param("intentId")
	u, _ := middleware.CurrentUser(c)

	if h.Attempts != nil {
		att, err := h.Attempts.FindByIntent(ctx, intentID)
		if errors.Is(err, ledger.ErrNotFound) || (err == nil && att.UserID != u.UserID) {
			middleware.Fail(c, apperr.NotFoundErr("Payment not found."))
			return
		}
		if err != nil {
			middleware.Fail(c, apperr.Wrap(err))
			return
		}
		if out, ok := payments.Settled(att); ok {
			c.JSON(http.StatusOK, out)
			return
		}
	}

	var (
		out payments.Outcome
		err error
	)
	if c.Query("wait") != "" {
		out, err = h.Reconciler.Await(ctx, intentID)
	} else {
		out, err = h.Reconciler.Check(ctx, intentID)
	}
	if err != nil {
		middleware.Fail(c, apperr.UnavailableErr("We couldn't check your payment yet. Please try again.", err))
		return
	}
	c.JSON(http.StatusOK, out)
}
