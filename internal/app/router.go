// internal/app/router.go
package app

import (
	billingHandler "mesafacil-billing/internal/handlers/billing"
	webhookHandler "mesafacil-billing/internal/handlers/webhook"
	"mesafacil-billing/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	BillingHandler *billingHandler.BillingHandler
	WebhookHandler *webhookHandler.WebhookHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Provider Webhooks (no auth, signed) ====================
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.WebhookHandler.HandleStripe)
		webhooks.POST("/wompi", h.WebhookHandler.HandleWompi)
	}

	// ==================== Billing ====================
	billing := api.Group("/billing")
	billing.Use(h.AuthMiddleware.Auth())
	{
		billing.POST("/subscribe", h.BillingHandler.Subscribe)
		billing.POST("/cancel", h.BillingHandler.Cancel)
		billing.GET("/subscription", h.BillingHandler.GetSubscription)
		billing.GET("/payments", h.BillingHandler.ListPayments)
	}
}
