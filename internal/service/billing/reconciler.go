// internal/service/billing/reconciler.go
package billing

import (
	"context"

	"mesafacil-billing/internal/domain/billing"
	"mesafacil-billing/internal/provider/wompi"

	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// Reconciler is the webhook-path entry point: it normalizes a verified
// provider event, resolves the subscription and applies the transition.
// Processing is synchronous within the delivering request; an error return
// becomes a server error response, which is the signal that invites the
// provider's own retry.
type Reconciler struct {
	normalizer *Normalizer
	matcher    *Matcher
	lifecycle  *Lifecycle
	tenants    TenantStore
	notifier   *Notifier
	logger     *zap.Logger
}

func NewReconciler(normalizer *Normalizer, matcher *Matcher, lifecycle *Lifecycle, tenants TenantStore, notifier *Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		normalizer: normalizer,
		matcher:    matcher,
		lifecycle:  lifecycle,
		tenants:    tenants,
		notifier:   notifier,
		logger:     logger,
	}
}

// ProcessStripeEvent reconciles one verified Stripe delivery.
func (r *Reconciler) ProcessStripeEvent(ctx context.Context, event stripe.Event) error {
	return r.Process(ctx, r.normalizer.FromStripe(event))
}

// ProcessWompiEvent reconciles one verified Wompi delivery.
func (r *Reconciler) ProcessWompiEvent(ctx context.Context, ev *wompi.Event) error {
	return r.Process(ctx, r.normalizer.FromWompi(ev))
}

// Process runs the shared reconciliation core on a canonical event. A nil
// return means handled, ignored or unmatched; callers acknowledge all three
// with success.
func (r *Reconciler) Process(ctx context.Context, ev *billing.CanonicalEvent) error {
	if ev.Action == billing.ActionIgnore {
		r.logger.Debug("event ignored",
			zap.String("provider", string(ev.Provider)),
			zap.String("raw_status", ev.RawStatus),
		)
		return nil
	}

	sub, err := r.matcher.Match(ctx, ev)
	if err != nil {
		return err
	}
	if sub == nil {
		// Unmatched: already logged by the matcher. Intentional silent
		// no-op; there is no dead-letter persistence.
		return nil
	}

	result, err := r.lifecycle.Apply(ctx, sub, ev)
	if err != nil {
		return err
	}

	r.afterApply(ctx, result, ev)
	return nil
}

// afterApply schedules fire-and-forget side effects for a completed
// transition. Tenant lookup failures only cost the notification.
func (r *Reconciler) afterApply(ctx context.Context, result *ApplyResult, ev *billing.CanonicalEvent) {
	if result.StatusChanged {
		r.notifier.StateChanged(result.Subscription)
	}
	// A failure notice only goes out when the transition was actually
	// applied; a refused transition (cancelled subscription) or a duplicate
	// delivery re-applying past_due must not re-email the tenant.
	failureApplied := ev.Action == billing.ActionRecordPaymentFailure && result.StatusChanged
	if result.Payment == nil && !failureApplied {
		return
	}

	t, err := r.tenants.FindByID(ctx, result.Subscription.TenantID)
	if err != nil {
		r.logger.Warn("tenant lookup failed, skipping notification",
			zap.Int64("tenant_id", result.Subscription.TenantID),
			zap.Error(err),
		)
		return
	}

	if result.Payment != nil {
		r.notifier.PaymentReceived(t.ContactEmail, result.Payment, result.Subscription.PlanType)
	} else {
		r.notifier.ChargeFailed(t.ContactEmail, result.Subscription.PlanType)
	}
}
