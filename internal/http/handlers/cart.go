package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/VNZray/capstone-project-sub008/internal/http/middleware"
	"github.com/VNZray/capstone-project-sub008/internal/http/validation"
	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
	"github.com/VNZray/capstone-project-sub008/internal/shared/apperr"
)

type CartHandler struct {
	Store cart.Store
}

func NewCartHandler(s cart.Store) *CartHandler {
	return &CartHandler{Store: s}
}

type cartInput struct {
	BusinessID string          `json:"business_id"`
	Items      []cart.Item     `json:"items" binding:"dive"`
	DiscountID *string         `json:"discount_id"`
	Discount   decimal.Decimal `json:"discount"`
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)

	snap, err := h.Store.Get(c.Request.Context(), u.UserID)
	if errors.Is(err, cart.ErrNotFound) {
		snap = cart.Snapshot{UserID: u.UserID, Items: []cart.Item{}}
	} else if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// PUT /api/cart replaces the whole cart; an empty item list clears it.
func (h *CartHandler) Put(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var in cartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Please check your cart.", validation.FromBindError(err, &in)))
		return
	}

	if len(in.Items) == 0 {
		if err := h.Store.Clear(ctx, u.UserID); err != nil {
			middleware.Fail(c, apperr.Wrap(err))
			return
		}
		c.JSON(http.StatusOK, cart.Snapshot{UserID: u.UserID, Items: []cart.Item{}})
		return
	}

	snap := cart.Snapshot{
		UserID:     u.UserID,
		BusinessID: in.BusinessID,
		Items:      in.Items,
		DiscountID: in.DiscountID,
		Discount:   in.Discount,
	}
	snap.Recalculate()

	if err := h.Store.Put(ctx, snap); err != nil {
		if errors.Is(err, cart.ErrInvalid) {
			middleware.Fail(c, &apperr.AppError{Kind: apperr.Invalid, PublicMsg: "Please check your cart.", Err: err})
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	saved, err := h.Store.Get(ctx, u.UserID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, saved)
}
