package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/grace"
)

// PaymentReturnHandler serves the processor's return URL. The browser lands
// here after authorization; a waiting bridge is resolved as success and the
// browser is sent back into the app.
type PaymentReturnHandler struct {
	Sessions     *grace.Registry
	Bridge       *authbridge.Bridge
	DeepLinkBase string
	Logger       *slog.Logger
}

func NewPaymentReturnHandler(sessions *grace.Registry, b *authbridge.Bridge, deepLinkBase string, l *slog.Logger) *PaymentReturnHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PaymentReturnHandler{Sessions: sessions, Bridge: b, DeepLinkBase: deepLinkBase, Logger: l}
}

const returnPage = `<!doctype html><html><body style="font-family: sans-serif;"><p>Payment submitted. You can return to the app.</p></body></html>`

// GET /orders/:orderId/payment-success
func (h *PaymentReturnHandler) Success(c *gin.Context) {
	orderID := c.Param("orderId")

	resolved := false
	if ctrl, ok := h.Sessions.ByOrder(orderID); ok {
		resolved = h.Bridge.Resolve(ctrl.ID(), authbridge.Success)
	}
	h.Logger.InfoContext(c.Request.Context(), "payment return",
		"order_id", orderID,
		"resolved", resolved,
	)

	if link := deepLink(h.DeepLinkBase, orderID); link != "" {
		c.Redirect(http.StatusFound, link)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(returnPage))
}

func deepLink(base, orderID string) string {
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "payment-success?orderId=" + url.QueryEscape(orderID)
}
