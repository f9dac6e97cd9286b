// internal/service/billing/ledger.go
package billing

import (
	"context"
	"fmt"
	"time"

	"mesafacil-billing/internal/domain/billing"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Ledger appends confirmed settlements to the payment ledger, keyed by the
// provider-side payment id. The existence check and the insert run on the
// same transaction as the status transition, so a duplicate delivery racing
// the first one serializes on the row instead of double-counting.
type Ledger struct {
	payments PaymentStore
	logger   *zap.Logger
}

func NewLedger(payments PaymentStore, logger *zap.Logger) *Ledger {
	return &Ledger{payments: payments, logger: logger}
}

// RecordWithTx appends a payment for the event unless one with the same
// external payment id already exists. Returns nil when the event is not a
// settlement or the payment was already recorded.
func (l *Ledger) RecordWithTx(ctx context.Context, tx pgx.Tx, sub *billing.Subscription, ev *billing.CanonicalEvent) (*billing.Payment, error) {
	if !ev.RecordsPayment() {
		return nil, nil
	}

	externalPaymentID := ev.ExternalPaymentID
	if externalPaymentID == "" {
		externalPaymentID = ev.ExternalTransactionID
	}
	if externalPaymentID == "" {
		l.logger.Warn("settlement event carries no payment id, skipping ledger entry",
			zap.Int64("subscription_id", sub.ID),
			zap.String("provider", string(ev.Provider)),
		)
		return nil, nil
	}

	exists, err := l.payments.ExistsByExternalIDWithTx(ctx, tx, ev.Provider, externalPaymentID)
	if err != nil {
		return nil, fmt.Errorf("check payment existence: %w", err)
	}
	if exists {
		l.logger.Info("payment already recorded, skipping duplicate",
			zap.String("external_payment_id", externalPaymentID),
			zap.Int64("subscription_id", sub.ID),
		)
		return nil, nil
	}

	now := time.Now()
	payment := &billing.Payment{
		Reference:         ulid.Make().String(),
		SubscriptionID:    sub.ID,
		TenantID:          sub.TenantID,
		AmountMinorUnits:  ev.AmountMinorUnits,
		Currency:          ev.Currency,
		Provider:          ev.Provider,
		ExternalPaymentID: externalPaymentID,
		Status:            billing.PaymentStatusSettled,
		PaidAt:            now,
	}
	if err := l.payments.CreateWithTx(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("append payment: %w", err)
	}

	l.logger.Info("payment recorded",
		zap.String("reference", payment.Reference),
		zap.String("external_payment_id", externalPaymentID),
		zap.Int64("tenant_id", sub.TenantID),
		zap.Int64("amount_minor_units", ev.AmountMinorUnits),
		zap.String("currency", ev.Currency),
		zap.String("provider", string(ev.Provider)),
	)
	return payment, nil
}
