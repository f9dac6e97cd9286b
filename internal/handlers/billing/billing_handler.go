// internal/handlers/billing/billing_handler.go
package billing

import (
	"errors"
	"net/http"

	"mesafacil-billing/internal/domain/billing"
	"mesafacil-billing/internal/middleware"
	xerrors "mesafacil-billing/internal/pkg/errors"
	"mesafacil-billing/internal/pkg/response"
	service "mesafacil-billing/internal/service/billing"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	checkout *service.CheckoutService
}

func NewBillingHandler(checkout *service.CheckoutService) *BillingHandler {
	return &BillingHandler{checkout: checkout}
}

// Subscribe creates or upgrades the tenant's subscription.
// POST /billing/subscribe
func (h *BillingHandler) Subscribe(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var req billing.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.checkout.Subscribe(c.Request.Context(), tenantID, &req)
	if err != nil {
		status, msg := subscribeErrorStatus(err)
		response.Error(c, status, msg, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription processed", result)
}

// Cancel ends the tenant's subscription.
// POST /billing/cancel
func (h *BillingHandler) Cancel(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var req billing.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.checkout.Cancel(c.Request.Context(), tenantID, &req); err != nil {
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "no subscription found")
		case errors.Is(err, xerrors.ErrSubscriptionCancelled):
			response.Error(c, http.StatusConflict, "subscription already cancelled", err)
		case errors.Is(err, xerrors.ErrProviderUnavailable):
			response.Error(c, http.StatusBadGateway, "payment provider unavailable", err)
		default:
			response.Error(c, http.StatusInternalServerError, "failed to cancel subscription", err)
		}
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", nil)
}

// GetSubscription returns the tenant's current subscription.
// GET /billing/subscription
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	sub, err := h.checkout.CurrentSubscription(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "no subscription found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", sub)
}

// ListPayments returns the tenant's payment history.
// GET /billing/payments
func (h *BillingHandler) ListPayments(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var filters billing.PaymentListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	payments, total, err := h.checkout.PaymentHistory(c.Request.Context(), tenantID, &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list payments", err)
		return
	}

	response.Success(c, http.StatusOK, "payments retrieved", gin.H{
		"payments":  payments,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

func subscribeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid subscription request"
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound, "tenant not found"
	case errors.Is(err, xerrors.ErrAlreadySubscribed):
		return http.StatusConflict, "already subscribed to this plan"
	case errors.Is(err, xerrors.ErrDowngradeNotAllowed):
		return http.StatusConflict, "downgrades require cancellation first"
	case errors.Is(err, xerrors.ErrChargeRejected):
		return http.StatusPaymentRequired, "payment was rejected"
	case errors.Is(err, xerrors.ErrProviderUnavailable):
		return http.StatusBadGateway, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "failed to process subscription"
	}
}
