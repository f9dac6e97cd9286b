// internal/service/billing/checkout.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mesafacil-billing/internal/domain/billing"
	"mesafacil-billing/internal/domain/tenant"
	xerrors "mesafacil-billing/internal/pkg/errors"
	"mesafacil-billing/internal/pricing"
	stripegw "mesafacil-billing/internal/provider/stripe"
	"mesafacil-billing/internal/provider/wompi"

	"go.uber.org/zap"
)

// permanentPeriodEnd marks subscriptions with no real expiry (the free
// plan).
var permanentPeriodEnd = time.Date(2999, time.December, 31, 23, 59, 59, 0, time.UTC)

// defaultSettleDelay is how long the orchestrator waits before its single
// Wompi settlement re-check; sandbox settlement can lag the synchronous
// response.
const defaultSettleDelay = 3 * time.Second

// StripeGateway is the slice of the Stripe provider the orchestrator uses.
type StripeGateway interface {
	CreateCustomer(ctx context.Context, tenantID int64, email string) (string, error)
	ChargeSubscription(ctx context.Context, customerID, paymentMethodToken string, plan billing.PlanType, period billing.BillingPeriod) (*stripegw.ChargeResult, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error
}

// WompiGateway is the slice of the Wompi provider the orchestrator uses.
type WompiGateway interface {
	TokenizeCard(ctx context.Context, card wompi.CardDetails) (string, error)
	CreateTransaction(ctx context.Context, in wompi.CreateTransactionInput) (*wompi.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*wompi.Transaction, error)
}

// CheckoutService drives plan creation and upgrades synchronously. It
// converges through the same lifecycle and ledger as the webhook path by
// synthesizing canonical events from charge outcomes.
type CheckoutService struct {
	tenants    TenantStore
	subs       SubscriptionStore
	payments   PaymentStore
	normalizer *Normalizer
	lifecycle  *Lifecycle
	stripe     StripeGateway
	wompi      WompiGateway
	notifier   *Notifier
	logger     *zap.Logger

	settleDelay time.Duration
	sleep       func(d time.Duration)
}

func NewCheckoutService(
	tenants TenantStore,
	subs SubscriptionStore,
	payments PaymentStore,
	normalizer *Normalizer,
	lifecycle *Lifecycle,
	stripe StripeGateway,
	wompi WompiGateway,
	notifier *Notifier,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		tenants:     tenants,
		subs:        subs,
		payments:    payments,
		normalizer:  normalizer,
		lifecycle:   lifecycle,
		stripe:      stripe,
		wompi:       wompi,
		notifier:    notifier,
		logger:      logger,
		settleDelay: defaultSettleDelay,
		sleep:       time.Sleep,
	}
}

// SetSettleDelay overrides the wait before the single Wompi settlement
// re-check.
func (s *CheckoutService) SetSettleDelay(d time.Duration) {
	if d > 0 {
		s.settleDelay = d
	}
}

// Subscribe creates or upgrades the tenant's subscription.
func (s *CheckoutService) Subscribe(ctx context.Context, tenantID int64, req *billing.SubscribeRequest) (*billing.SubscribeResult, error) {
	if !req.PlanType.Valid() {
		return nil, fmt.Errorf("%w: unknown plan type %q", xerrors.ErrInvalidInput, req.PlanType)
	}
	if req.BillingPeriod == "" {
		req.BillingPeriod = billing.PeriodMonthly
	}
	if req.Provider == "" {
		req.Provider = billing.ProviderWompi
	}
	if req.Currency == "" {
		if req.Provider == billing.ProviderWompi {
			req.Currency = "COP"
		} else {
			req.Currency = "USD"
		}
	}
	req.Currency = strings.ToUpper(req.Currency)

	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.HasContactEmail() {
		return nil, fmt.Errorf("%w: tenant has no contact email, required for billing", xerrors.ErrInvalidInput)
	}
	if !t.ContactPhone.Valid || t.ContactPhone.String == "" {
		// Phone is requested by both providers but never blocks a charge.
		s.logger.Warn("tenant has no contact phone", zap.Int64("tenant_id", tenantID))
	}

	existing, err := s.subs.FindLatestByTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("subscription lookup: %w", err)
	}
	if existing != nil && existing.Status != billing.StatusCancelled {
		if existing.PlanType == req.PlanType {
			return nil, xerrors.ErrAlreadySubscribed
		}
		if req.PlanType.Tier() < existing.PlanType.Tier() {
			return nil, xerrors.ErrDowngradeNotAllowed
		}
	} else {
		existing = nil
	}

	if req.PlanType == billing.PlanFree {
		return s.activateFree(ctx, t, existing)
	}

	price, err := pricing.Lookup(req.PlanType, req.BillingPeriod, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	sub, err := s.ensureSubscription(ctx, tenantID, existing, req)
	if err != nil {
		return nil, err
	}

	switch req.Provider {
	case billing.ProviderWompi:
		return s.chargeWompi(ctx, t, sub, req, price)
	case billing.ProviderStripe:
		return s.chargeStripe(ctx, t, sub, req)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", xerrors.ErrInvalidInput, req.Provider)
	}
}

// activateFree activates the free plan with no external call and an
// effectively unbounded period.
func (s *CheckoutService) activateFree(ctx context.Context, t *tenant.Tenant, existing *billing.Subscription) (*billing.SubscribeResult, error) {
	sub := existing
	if sub == nil {
		sub = &billing.Subscription{
			TenantID:           t.ID,
			PlanType:           billing.PlanFree,
			Status:             billing.StatusIncomplete,
			BillingPeriod:      billing.PeriodMonthly,
			CurrentPeriodStart: time.Now(),
			CurrentPeriodEnd:   permanentPeriodEnd,
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("create free subscription: %w", err)
		}
	} else {
		sub.PlanType = billing.PlanFree
		sub.CurrentPeriodStart = time.Now()
		sub.CurrentPeriodEnd = permanentPeriodEnd
		if err := s.subs.UpdatePlan(ctx, sub); err != nil {
			return nil, fmt.Errorf("update subscription to free plan: %w", err)
		}
	}

	result, err := s.lifecycle.Apply(ctx, sub, &billing.CanonicalEvent{
		Action:        billing.ActionSyncSubscription,
		SubjectStatus: billing.StatusActive,
	})
	if err != nil {
		return nil, err
	}
	s.notifier.StateChanged(result.Subscription)

	return &billing.SubscribeResult{Subscription: result.Subscription}, nil
}

// ensureSubscription creates the pending row for a paid plan, or rewrites
// the tenant's existing row in place for an upgrade. The row must exist in
// incomplete status before any charge runs, so a webhook racing the
// synchronous response can still find it.
func (s *CheckoutService) ensureSubscription(ctx context.Context, tenantID int64, existing *billing.Subscription, req *billing.SubscribeRequest) (*billing.Subscription, error) {
	now := time.Now()
	end := now.AddDate(0, 1, 0)
	if req.BillingPeriod == billing.PeriodYearly {
		end = now.AddDate(1, 0, 0)
	}

	if existing == nil {
		sub := &billing.Subscription{
			TenantID:           tenantID,
			PlanType:           req.PlanType,
			Status:             billing.StatusIncomplete,
			Provider:           req.Provider,
			BillingPeriod:      req.BillingPeriod,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   end,
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		return sub, nil
	}

	existing.PlanType = req.PlanType
	existing.Status = billing.StatusIncomplete
	existing.Provider = req.Provider
	existing.BillingPeriod = req.BillingPeriod
	existing.CurrentPeriodStart = now
	existing.CurrentPeriodEnd = end
	if err := s.subs.UpdatePlan(ctx, existing); err != nil {
		return nil, fmt.Errorf("update subscription for upgrade: %w", err)
	}
	return existing, nil
}

func (s *CheckoutService) chargeWompi(ctx context.Context, t *tenant.Tenant, sub *billing.Subscription, req *billing.SubscribeRequest, price pricing.Price) (*billing.SubscribeResult, error) {
	token := req.PaymentToken
	if token == "" && req.Card != nil {
		var err error
		token, err = s.wompi.TokenizeCard(ctx, wompi.CardDetails{
			Number:   req.Card.Number,
			CVC:      req.Card.CVC,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			Holder:   req.Card.Holder,
		})
		if err != nil {
			return nil, err
		}
	}
	if token == "" {
		// Hosted payment-link flow: settlement arrives via webhook and
		// converges at the same lifecycle.
		s.logger.Info("no payment token, leaving subscription pending settlement",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("tenant_id", t.ID),
		)
		return &billing.SubscribeResult{Subscription: sub, PendingSettlement: true}, nil
	}

	reference := fmt.Sprintf("SUB_%d_%d", t.ID, time.Now().Unix())
	trx, err := s.wompi.CreateTransaction(ctx, wompi.CreateTransactionInput{
		AmountInCents: price.AmountMinorUnits,
		Currency:      price.Currency,
		CustomerEmail: t.ContactEmail,
		Reference:     reference,
		PaymentToken:  token,
	})
	if err != nil {
		s.logger.Error("wompi charge failed",
			zap.Int64("tenant_id", t.ID),
			zap.Int64("subscription_id", sub.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.subs.SetExternalID(ctx, sub.ID, billing.ProviderWompi, trx.ID); err != nil {
		return nil, fmt.Errorf("store wompi transaction id: %w", err)
	}
	sub.Provider = billing.ProviderWompi
	sub.ExternalID.String = trx.ID
	sub.ExternalID.Valid = true

	// Exactly one best-effort re-check after a fixed delay: sandbox
	// settlement can lag the synchronous response. Not a retry loop.
	if trx.Status == wompi.StatusPending {
		s.sleep(s.settleDelay)
		if rechecked, err := s.wompi.GetTransaction(ctx, trx.ID); err != nil {
			s.logger.Warn("wompi settlement re-check failed",
				zap.String("transaction_id", trx.ID), zap.Error(err))
		} else {
			trx = rechecked
		}
	}

	if trx.Status == wompi.StatusPending {
		s.logger.Info("wompi transaction still pending, settlement will arrive via webhook",
			zap.String("transaction_id", trx.ID),
			zap.Int64("subscription_id", sub.ID),
		)
		return &billing.SubscribeResult{Subscription: sub, PendingSettlement: true}, nil
	}

	if !wompi.Settled(trx.Status) {
		// The subscription stays incomplete; the user may resubmit.
		s.notifier.ChargeFailed(t.ContactEmail, sub.PlanType)
		return nil, fmt.Errorf("%w: %s", xerrors.ErrChargeRejected, trx.StatusMessage)
	}

	result, err := s.lifecycle.Apply(ctx, sub, s.normalizer.FromWompiTransaction(trx))
	if err != nil {
		return nil, err
	}
	s.afterSettled(t, result)

	return &billing.SubscribeResult{Subscription: result.Subscription, Payment: result.Payment}, nil
}

func (s *CheckoutService) chargeStripe(ctx context.Context, t *tenant.Tenant, sub *billing.Subscription, req *billing.SubscribeRequest) (*billing.SubscribeResult, error) {
	if req.PaymentToken == "" {
		s.logger.Info("no payment method token, leaving subscription pending settlement",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("tenant_id", t.ID),
		)
		return &billing.SubscribeResult{Subscription: sub, PendingSettlement: true}, nil
	}

	customerID := sub.ExternalCustomerID.String
	if customerID == "" {
		var err error
		customerID, err = s.stripe.CreateCustomer(ctx, t.ID, t.ContactEmail)
		if err != nil {
			return nil, err
		}
		if err := s.subs.SetExternalCustomerID(ctx, sub.ID, customerID); err != nil {
			return nil, fmt.Errorf("store stripe customer id: %w", err)
		}
		sub.ExternalCustomerID.String = customerID
		sub.ExternalCustomerID.Valid = true
	}

	charge, err := s.stripe.ChargeSubscription(ctx, customerID, req.PaymentToken, req.PlanType, req.BillingPeriod)
	if err != nil {
		s.logger.Error("stripe charge failed",
			zap.Int64("tenant_id", t.ID),
			zap.Int64("subscription_id", sub.ID),
			zap.Error(err),
		)
		s.notifier.ChargeFailed(t.ContactEmail, sub.PlanType)
		return nil, err
	}

	if err := s.subs.SetExternalID(ctx, sub.ID, billing.ProviderStripe, charge.SubscriptionID); err != nil {
		return nil, fmt.Errorf("store stripe subscription id: %w", err)
	}
	sub.Provider = billing.ProviderStripe
	sub.ExternalID.String = charge.SubscriptionID
	sub.ExternalID.Valid = true

	if !charge.Settled {
		s.logger.Info("stripe subscription not yet settled, webhook will finalize",
			zap.String("stripe_subscription_id", charge.SubscriptionID),
			zap.String("stripe_status", charge.Status),
		)
		return &billing.SubscribeResult{Subscription: sub, PendingSettlement: true}, nil
	}

	price, err := pricing.Lookup(req.PlanType, req.BillingPeriod, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrInvalidInput, err)
	}

	result, err := s.lifecycle.Apply(ctx, sub, &billing.CanonicalEvent{
		Provider:              billing.ProviderStripe,
		Action:                billing.ActionRecordPaymentSuccess,
		ExternalTransactionID: charge.SubscriptionID,
		ExternalSubjectID:     customerID,
		ExternalPaymentID:     charge.PaymentID,
		AmountMinorUnits:      price.AmountMinorUnits,
		Currency:              price.Currency,
		RawStatus:             charge.Status,
	})
	if err != nil {
		return nil, err
	}
	s.afterSettled(t, result)

	return &billing.SubscribeResult{Subscription: result.Subscription, Payment: result.Payment}, nil
}

func (s *CheckoutService) afterSettled(t *tenant.Tenant, result *ApplyResult) {
	if result.StatusChanged {
		s.notifier.StateChanged(result.Subscription)
	}
	if result.Payment != nil {
		s.notifier.PaymentReceived(t.ContactEmail, result.Payment, result.Subscription.PlanType)
	}
}

// Cancel ends the tenant's subscription, at period end by default or
// immediately on request. Downgrades go through here, never through
// Subscribe.
func (s *CheckoutService) Cancel(ctx context.Context, tenantID int64, req *billing.CancelRequest) error {
	sub, err := s.subs.FindLatestByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("subscription lookup: %w", err)
	}
	if sub.Status == billing.StatusCancelled {
		return xerrors.ErrSubscriptionCancelled
	}

	if sub.Provider == billing.ProviderStripe && sub.ExternalID.Valid {
		if err := s.stripe.CancelSubscription(ctx, sub.ExternalID.String, !req.Immediately); err != nil {
			return err
		}
	}

	var result *ApplyResult
	if req.Immediately {
		result, err = s.lifecycle.Apply(ctx, sub, &billing.CanonicalEvent{
			Provider: sub.Provider,
			Action:   billing.ActionCancelSubscription,
		})
	} else {
		result, err = s.lifecycle.Apply(ctx, sub, &billing.CanonicalEvent{
			Provider:          sub.Provider,
			Action:            billing.ActionSyncSubscription,
			SubjectStatus:     sub.Status,
			CancelAtPeriodEnd: true,
		})
	}
	if err != nil {
		return err
	}
	if result.StatusChanged {
		s.notifier.StateChanged(result.Subscription)
	}

	s.logger.Info("subscription cancellation requested",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("subscription_id", sub.ID),
		zap.Bool("immediately", req.Immediately),
		zap.String("reason", req.Reason),
	)
	return nil
}

// CurrentSubscription returns the tenant's latest subscription.
func (s *CheckoutService) CurrentSubscription(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	return s.subs.FindLatestByTenant(ctx, tenantID)
}

// PaymentHistory pages through the tenant's ledger, most recent first.
func (s *CheckoutService) PaymentHistory(ctx context.Context, tenantID int64, filters *billing.PaymentListFilters) ([]billing.Payment, int64, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}
	offset := (filters.Page - 1) * filters.PageSize
	return s.payments.ListByTenant(ctx, tenantID, filters.PageSize, offset)
}
