// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"io"
	"net/http"

	"mesafacil-billing/internal/provider/wompi"
	billingsvc "mesafacil-billing/internal/service/billing"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// StripeVerifier authenticates a Stripe delivery and parses the event.
// Satisfied by *stripe.Gateway.
type StripeVerifier interface {
	VerifyWebhook(payload []byte, signature string) (stripe.Event, error)
}

// WebhookHandler receives provider callbacks. Verification happens against
// the raw request body before any JSON parsing; a re-serialized body would
// not match the provider's digest.
type WebhookHandler struct {
	reconciler *billingsvc.Reconciler
	stripe     StripeVerifier
	wompi      *wompi.Verifier
	logger     *zap.Logger
}

func NewWebhookHandler(reconciler *billingsvc.Reconciler, stripe StripeVerifier, wompiVerifier *wompi.Verifier, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		stripe:     stripe,
		wompi:      wompiVerifier,
		logger:     logger,
	}
}

// HandleStripe processes a Stripe webhook delivery.
// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read stripe webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := h.stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	if err := h.reconciler.ProcessStripeEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("stripe webhook processing failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		// A 5xx tells Stripe to redeliver.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandleWompi processes a Wompi webhook delivery.
// POST /webhooks/wompi
func (h *WebhookHandler) HandleWompi(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read wompi webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader("signature")
	if signature == "" {
		signature = c.GetHeader("x-signature")
	}

	if err := h.wompi.Verify(payload, signature); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
		return
	}

	event, err := wompi.ParseEvent(payload)
	if err != nil {
		h.logger.Warn("wompi webhook payload unparseable", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.reconciler.ProcessWompiEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("wompi webhook processing failed",
			zap.String("event", event.Event),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
