// internal/service/billing/matcher.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"mesafacil-billing/internal/domain/billing"
	xerrors "mesafacil-billing/internal/pkg/errors"
	"mesafacil-billing/internal/pricing"

	"go.uber.org/zap"
)

// referencePattern matches payment references issued by this service:
// SUB_<tenantId>_<unixTimestamp>.
var referencePattern = regexp.MustCompile(`^SUB_(\d+)_(\d+)$`)

// Matcher resolves a canonical event to an internal subscription through an
// ordered strategy chain; the first strategy that finds one wins. No
// strategy mutates state except the amount heuristic, which backfills the
// matched subscription's external id so future deliveries hit the exact
// match.
type Matcher struct {
	subs   SubscriptionStore
	logger *zap.Logger
}

func NewMatcher(subs SubscriptionStore, logger *zap.Logger) *Matcher {
	return &Matcher{subs: subs, logger: logger}
}

type strategy struct {
	name string
	fn   func(ctx context.Context, ev *billing.CanonicalEvent) (*billing.Subscription, error)
}

// Match runs the strategy chain. It returns (nil, nil) when every strategy
// comes up empty: unmatched events are logged and acknowledged, never
// errored, so the provider does not redeliver them.
func (m *Matcher) Match(ctx context.Context, ev *billing.CanonicalEvent) (*billing.Subscription, error) {
	strategies := []strategy{
		{"external_id", m.byExternalID},
		{"reference", m.byReference},
		{"amount", m.byAmount},
	}

	for _, s := range strategies {
		sub, err := s.fn(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("matcher strategy %s: %w", s.name, err)
		}
		if sub != nil {
			m.logger.Debug("event matched to subscription",
				zap.String("strategy", s.name),
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("tenant_id", sub.TenantID),
			)
			return sub, nil
		}
	}

	m.logger.Warn("webhook event matched no subscription",
		zap.String("provider", string(ev.Provider)),
		zap.String("action", string(ev.Action)),
		zap.String("external_transaction_id", ev.ExternalTransactionID),
		zap.String("external_subject_id", ev.ExternalSubjectID),
		zap.String("reference", ev.Reference),
		zap.Int64("amount_minor_units", ev.AmountMinorUnits),
		zap.String("currency", ev.Currency),
		zap.String("raw_status", ev.RawStatus),
	)
	return nil, nil
}

// byExternalID finds a subscription whose stored external id equals the
// event's transaction/subscription id.
func (m *Matcher) byExternalID(ctx context.Context, ev *billing.CanonicalEvent) (*billing.Subscription, error) {
	if ev.ExternalTransactionID == "" {
		return nil, nil
	}
	sub, err := m.subs.FindByExternalID(ctx, ev.Provider, ev.ExternalTransactionID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// byReference parses the merchant reference and fetches that tenant's most
// recent subscription.
func (m *Matcher) byReference(ctx context.Context, ev *billing.CanonicalEvent) (*billing.Subscription, error) {
	groups := referencePattern.FindStringSubmatch(ev.Reference)
	if groups == nil {
		return nil, nil
	}
	tenantID, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return nil, nil
	}

	sub, err := m.subs.FindLatestByTenant(ctx, tenantID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// byAmount infers the plan from the paid amount and takes the most recent
// subscription of that plan still awaiting settlement. On success the
// subscription's external id is backfilled with the event's transaction id
// so the next delivery matches exactly.
func (m *Matcher) byAmount(ctx context.Context, ev *billing.CanonicalEvent) (*billing.Subscription, error) {
	if ev.AmountMinorUnits <= 0 || ev.Currency == "" {
		return nil, nil
	}

	plan, _, ok := pricing.InferPlan(ev.AmountMinorUnits, ev.Currency)
	if !ok {
		return nil, nil
	}

	sub, err := m.subs.FindPendingByPlan(ctx, plan)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if ev.ExternalTransactionID != "" {
		if err := m.subs.SetExternalID(ctx, sub.ID, ev.Provider, ev.ExternalTransactionID); err != nil {
			return nil, fmt.Errorf("backfill external id: %w", err)
		}
		sub.Provider = ev.Provider
		sub.ExternalID.String = ev.ExternalTransactionID
		sub.ExternalID.Valid = true
	}

	m.logger.Info("subscription matched by amount heuristic",
		zap.Int64("subscription_id", sub.ID),
		zap.String("plan", string(plan)),
		zap.Int64("amount_minor_units", ev.AmountMinorUnits),
		zap.String("external_transaction_id", ev.ExternalTransactionID),
	)
	return sub, nil
}
