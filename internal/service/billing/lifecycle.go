// internal/service/billing/lifecycle.go
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mesafacil-billing/internal/domain/billing"

	"go.uber.org/zap"
)

// Lifecycle applies canonical events to subscriptions. It computes the next
// status, writes it, mirrors the tenant billing-state projection and appends
// to the payment ledger inside a single transaction, so the dual write and
// the ledger idempotency check cannot be torn by a duplicate delivery.
type Lifecycle struct {
	db      TxBeginner
	subs    SubscriptionStore
	tenants TenantStore
	ledger  *Ledger
	logger  *zap.Logger
}

func NewLifecycle(db TxBeginner, subs SubscriptionStore, tenants TenantStore, ledger *Ledger, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{db: db, subs: subs, tenants: tenants, ledger: ledger, logger: logger}
}

// allowedTransitions lists the valid non-self targets per status. Once a
// subscription reaches active or past_due it only moves between those two
// or into cancelled; providers retry deliveries without ordering guarantees,
// so a stale pre-settlement event must never demote a paid-up subscription
// back to incomplete or trialing.
var allowedTransitions = map[billing.SubscriptionStatus]map[billing.SubscriptionStatus]bool{
	billing.StatusIncomplete: {
		billing.StatusTrialing:  true,
		billing.StatusActive:    true,
		billing.StatusPastDue:   true,
		billing.StatusCancelled: true,
	},
	billing.StatusPending: {
		billing.StatusTrialing:  true,
		billing.StatusActive:    true,
		billing.StatusPastDue:   true,
		billing.StatusCancelled: true,
	},
	billing.StatusTrialing: {
		billing.StatusActive:    true,
		billing.StatusPastDue:   true,
		billing.StatusCancelled: true,
	},
	billing.StatusActive: {
		billing.StatusPastDue:   true,
		billing.StatusCancelled: true,
	},
	billing.StatusPastDue: {
		billing.StatusActive:    true,
		billing.StatusCancelled: true,
	},
}

// CanTransition reports whether a subscription may move from one status to
// another. The target is set absolutely, never incremented, so re-applying
// the current status is allowed and idempotent in effect. Cancelled is
// terminal: reactivation requires a brand-new subscription, never an
// un-cancel.
func CanTransition(from, to billing.SubscriptionStatus) bool {
	if from == billing.StatusCancelled {
		return false
	}
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// ApplyResult reports what a transition changed.
type ApplyResult struct {
	Subscription *billing.Subscription
	Payment      *billing.Payment
	// StatusChanged is false when the event re-applied the status the
	// subscription already had.
	StatusChanged bool
}

// Apply drives one reconciliation step for an already-matched subscription.
// Ignored events and transitions out of a terminal state are no-ops.
func (l *Lifecycle) Apply(ctx context.Context, sub *billing.Subscription, ev *billing.CanonicalEvent) (*ApplyResult, error) {
	target := ev.TargetStatus()
	if target == "" {
		return &ApplyResult{Subscription: sub}, nil
	}

	if !CanTransition(sub.Status, target) {
		l.logger.Warn("transition refused",
			zap.Int64("subscription_id", sub.ID),
			zap.String("from", string(sub.Status)),
			zap.String("to", string(target)),
			zap.String("provider", string(ev.Provider)),
			zap.String("external_transaction_id", ev.ExternalTransactionID),
		)
		return &ApplyResult{Subscription: sub}, nil
	}

	var cancelledAt sql.NullTime
	cancelAtPeriodEnd := sub.CancelAtPeriodEnd
	if target == billing.StatusCancelled {
		cancelledAt = sql.NullTime{Time: time.Now(), Valid: true}
	} else if sub.CancelledAt.Valid {
		cancelledAt = sub.CancelledAt
	}
	if ev.Action == billing.ActionSyncSubscription {
		cancelAtPeriodEnd = ev.CancelAtPeriodEnd
	}

	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := l.subs.UpdateStatusWithTx(ctx, tx, sub.ID, target, cancelledAt, cancelAtPeriodEnd); err != nil {
		return nil, fmt.Errorf("update subscription status: %w", err)
	}

	if err := l.tenants.UpdateBillingStateWithTx(ctx, tx, sub.TenantID, string(target)); err != nil {
		return nil, fmt.Errorf("mirror tenant billing state: %w", err)
	}

	payment, err := l.ledger.RecordWithTx(ctx, tx, sub, ev)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	changed := sub.Status != target
	l.logger.Info("subscription transitioned",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("tenant_id", sub.TenantID),
		zap.String("from", string(sub.Status)),
		zap.String("to", string(target)),
		zap.String("provider", string(ev.Provider)),
		zap.Bool("payment_recorded", payment != nil),
	)

	sub.Status = target
	sub.CancelledAt = cancelledAt
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd

	return &ApplyResult{Subscription: sub, Payment: payment, StatusChanged: changed}, nil
}
