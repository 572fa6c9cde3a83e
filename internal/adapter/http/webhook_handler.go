package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/security"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

const webhookBodyLimit = 256 * 1024

// WebhookPublisher hands verified deliveries to the queue for
// asynchronous reconciliation.
type WebhookPublisher interface {
	PublishWebhook(ctx context.Context, msg usecase.QueuedWebhook) error
}

// WebhookHandler terminates the gateway callback: verify the signature
// against the raw body, enqueue, return 200 fast. Paystack retries
// non-200 responses, so enqueue failures surface as 500.
type WebhookHandler struct {
	verifier  security.WebhookVerifier
	publisher WebhookPublisher
}

func NewWebhookHandler(v security.WebhookVerifier, p WebhookPublisher) *WebhookHandler {
	return &WebhookHandler{verifier: v, publisher: p}
}

func (h *WebhookHandler) HandlePaystack(c *gin.Context) {
	l := logging.From(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	sig := c.GetHeader("x-paystack-signature")
	if err := h.verifier.Verify(raw, sig); err != nil {
		l.Warn("webhook signature rejected", "type", "webhook_rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	var ev usecase.WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		l.Warn("webhook body not decodable", "type", "webhook_rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.publisher.PublishWebhook(ctx, usecase.QueuedWebhook{
		Reference: ev.Data.Reference,
		Event:     ev,
		Raw:       raw,
	}); err != nil {
		l.Error("webhook enqueue failed", "reference", ev.Data.Reference,
			"error", err.Error(), "type", "webhook_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	l.Info("webhook accepted", "reference", ev.Data.Reference,
		"event", ev.Event, "type", "webhook_accepted")
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
