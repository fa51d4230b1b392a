package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Logger     *slog.Logger
	Secret     []byte
	WebhookSvc *payments.WebhookService
	Now        func() time.Time
}

func NewWebhookHandler(logger *slog.Logger, secret string, svc *payments.WebhookService) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Secret: []byte(secret), WebhookSvc: svc, Now: time.Now}
}

// POST /webhooks/paymongo
// Body is raw JSON; the signature covers the exact bytes received.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if len(h.Secret) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "webhooks not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	ev, err := payments.VerifyWebhook(h.Secret, c.GetHeader(payments.SignatureHeader), body, h.Now())
	if err != nil {
		h.Logger.WarnContext(c.Request.Context(), "webhook rejected", "err", err)
		msg := "invalid signature or payload"
		if errors.Is(err, payments.ErrStaleWebhook) {
			msg = "stale webhook"
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
		return
	}

	if err := h.WebhookSvc.Handle(c.Request.Context(), ev, body); err != nil {
		// 500 so the processor retries
		h.Logger.ErrorContext(c.Request.Context(), "webhook apply failed", "event_id", ev.EventID, "type", ev.Type, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
