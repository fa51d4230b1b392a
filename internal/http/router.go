// Package apphttp exposes the checkout service to the mobile app.
package apphttp

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VNZray/capstone-project-sub008/internal/http/handlers"
	"github.com/VNZray/capstone-project-sub008/internal/http/middleware"
)

type Deps struct {
	Logger   *slog.Logger
	Verifier middleware.TokenVerifier

	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Payments *handlers.PaymentsHandler
	Return   *handlers.PaymentReturnHandler
	Webhooks *handlers.WebhookHandler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger, "/healthz"),
		middleware.Recovery(d.Logger),
		middleware.ErrorHandler(d.Logger),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/orders/:orderId/payment-success", d.Return.Success)
	r.POST("/webhooks/paymongo", d.Webhooks.Handle)

	api := r.Group("/api", middleware.RequireAuth(d.Verifier))
	{
		api.GET("/cart", d.Cart.Get)
		api.PUT("/cart", d.Cart.Put)

		s := api.Group("/checkout/sessions")
		s.POST("", d.Checkout.Create)
		s.GET("/:id", d.Checkout.Get)
		s.DELETE("/:id", d.Checkout.Delete)
		s.POST("/:id/proceed", d.Checkout.Proceed)
		s.POST("/:id/cancel-prompt", d.Checkout.OpenCancelPrompt)
		s.DELETE("/:id/cancel-prompt", d.Checkout.CloseCancelPrompt)
		s.POST("/:id/cancel", d.Checkout.Cancel)
		s.POST("/:id/redirect", d.Checkout.Redirect)

		api.GET("/payments/:intentId/status", d.Payments.Status)
	}

	return r
}
