// internal/provider/stripe/gateway.go
package stripe

import (
	"context"
	"fmt"

	"mesafacil-billing/internal/domain/billing"
	xerrors "mesafacil-billing/internal/pkg/errors"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentmethod"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// PlanPriceIDs maps (plan, billing period) to Stripe price ids. These must
// match the price objects configured in the Stripe dashboard.
type PlanPriceIDs map[billing.PlanType]map[billing.BillingPeriod]string

// Gateway wraps the Stripe SDK for the pieces of the API this service
// touches: webhook verification, customer creation and tokenized
// subscription charges.
type Gateway struct {
	webhookSecret string
	priceIDs      PlanPriceIDs
}

// NewGateway configures the global Stripe key and returns a gateway.
func NewGateway(apiKey, webhookSecret string, priceIDs PlanPriceIDs) *Gateway {
	stripe.Key = apiKey
	return &Gateway{
		webhookSecret: webhookSecret,
		priceIDs:      priceIDs,
	}
}

// VerifyWebhook authenticates a delivery using the Stripe-Signature scheme,
// which includes a signed timestamp checked against the SDK's tolerance
// window. Missing signature or secret fails closed regardless of
// environment.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" || g.webhookSecret == "" {
		return stripe.Event{}, xerrors.ErrSignatureInvalid
	}
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", xerrors.ErrSignatureInvalid, err)
	}
	return event, nil
}

// CreateCustomer creates a Stripe customer tagged with the tenant id.
func (g *Gateway) CreateCustomer(_ context.Context, tenantID int64, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"tenant_id": fmt.Sprintf("%d", tenantID),
		},
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create stripe customer: %v", xerrors.ErrProviderUnavailable, err)
	}
	return c.ID, nil
}

// ChargeResult is the outcome of a subscription charge.
type ChargeResult struct {
	SubscriptionID string
	// PaymentID is the latest invoice id, used as the ledger idempotency
	// key.
	PaymentID string
	Status    string
	Settled   bool
}

// ChargeSubscription attaches the tokenized payment method to the customer,
// creates the subscription on the plan's price and reports whether the
// first invoice settled.
func (g *Gateway) ChargeSubscription(_ context.Context, customerID, paymentMethodToken string, plan billing.PlanType, period billing.BillingPeriod) (*ChargeResult, error) {
	priceID, err := g.priceID(plan, period)
	if err != nil {
		return nil, err
	}

	if _, err := paymentmethod.Attach(paymentMethodToken, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}); err != nil {
		return nil, fmt.Errorf("%w: attach payment method: %v", xerrors.ErrChargeRejected, err)
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		DefaultPaymentMethod: stripe.String(paymentMethodToken),
	}
	params.AddExpand("latest_invoice")

	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create stripe subscription: %v", xerrors.ErrChargeRejected, err)
	}

	result := &ChargeResult{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
		Settled:        sub.Status == stripe.SubscriptionStatusActive,
	}
	if sub.LatestInvoice != nil {
		result.PaymentID = sub.LatestInvoice.ID
	}
	return result, nil
}

// CancelSubscription cancels at the provider, either at period end or
// immediately.
func (g *Gateway) CancelSubscription(_ context.Context, subscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		_, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("%w: schedule stripe cancellation: %v", xerrors.ErrProviderUnavailable, err)
		}
		return nil
	}
	if _, err := subscription.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{}); err != nil {
		return fmt.Errorf("%w: cancel stripe subscription: %v", xerrors.ErrProviderUnavailable, err)
	}
	return nil
}

func (g *Gateway) priceID(plan billing.PlanType, period billing.BillingPeriod) (string, error) {
	periods, ok := g.priceIDs[plan]
	if !ok {
		return "", fmt.Errorf("no stripe price id configured for plan %q", plan)
	}
	priceID, ok := periods[period]
	if !ok {
		return "", fmt.Errorf("no stripe price id configured for plan %q period %q", plan, period)
	}
	return priceID, nil
}

// SubscriptionStatus maps a Stripe subscription status onto the internal
// status set.
func SubscriptionStatus(s string) billing.SubscriptionStatus {
	switch stripe.SubscriptionStatus(s) {
	case stripe.SubscriptionStatusActive:
		return billing.StatusActive
	case stripe.SubscriptionStatusTrialing:
		return billing.StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return billing.StatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return billing.StatusCancelled
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusIncompleteExpired:
		return billing.StatusIncomplete
	default:
		return billing.StatusIncomplete
	}
}
