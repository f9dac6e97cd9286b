// internal/service/billing/ledger_test.go
package billing

import (
	"context"
	"testing"

	"mesafacil-billing/internal/domain/billing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLedgerRecord_AppendsSettlement(t *testing.T) {
	payments := &fakePayments{}
	ledger := NewLedger(payments, zap.NewNop())

	sub := &billing.Subscription{ID: 5, TenantID: 2}
	ev := &billing.CanonicalEvent{
		Provider:              billing.ProviderWompi,
		Action:                billing.ActionRecordPaymentSuccess,
		ExternalTransactionID: "trx-9",
		AmountMinorUnits:      7_200_000,
		Currency:              "COP",
	}

	p, err := ledger.RecordWithTx(context.Background(), &stubTx{}, sub, ev)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "trx-9", p.ExternalPaymentID)
	assert.Equal(t, int64(7_200_000), p.AmountMinorUnits)
	assert.Equal(t, billing.PaymentStatusSettled, p.Status)
	assert.NotEmpty(t, p.Reference)
	require.Len(t, payments.created, 1)
}

func TestLedgerRecord_DuplicateDeliveryRecordsOnce(t *testing.T) {
	payments := &fakePayments{}
	ledger := NewLedger(payments, zap.NewNop())

	sub := &billing.Subscription{ID: 5, TenantID: 2}
	ev := &billing.CanonicalEvent{
		Provider:              billing.ProviderWompi,
		Action:                billing.ActionRecordPaymentSuccess,
		ExternalTransactionID: "trx-9",
		AmountMinorUnits:      3_600_000,
		Currency:              "COP",
	}

	first, err := ledger.RecordWithTx(context.Background(), &stubTx{}, sub, ev)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := ledger.RecordWithTx(context.Background(), &stubTx{}, sub, ev)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Len(t, payments.created, 1)
}

func TestLedgerRecord_PrefersExternalPaymentID(t *testing.T) {
	payments := &fakePayments{}
	ledger := NewLedger(payments, zap.NewNop())

	sub := &billing.Subscription{ID: 5, TenantID: 2}
	ev := &billing.CanonicalEvent{
		Provider:              billing.ProviderStripe,
		Action:                billing.ActionRecordPaymentSuccess,
		ExternalTransactionID: "sub_123",
		ExternalPaymentID:     "in_456",
		AmountMinorUnits:      999,
		Currency:              "USD",
	}

	p, err := ledger.RecordWithTx(context.Background(), &stubTx{}, sub, ev)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "in_456", p.ExternalPaymentID)
}

func TestLedgerRecord_SkipsNonSettlements(t *testing.T) {
	payments := &fakePayments{}
	ledger := NewLedger(payments, zap.NewNop())

	sub := &billing.Subscription{ID: 5, TenantID: 2}
	for _, action := range []billing.EventAction{
		billing.ActionRecordPaymentFailure,
		billing.ActionSyncSubscription,
		billing.ActionCancelSubscription,
		billing.ActionIgnore,
	} {
		p, err := ledger.RecordWithTx(context.Background(), &stubTx{}, sub, &billing.CanonicalEvent{Action: action})
		require.NoError(t, err)
		assert.Nil(t, p, "action %s must not append", action)
	}
	assert.Empty(t, payments.created)
}

func TestLedgerRecord_SkipsWhenNoPaymentID(t *testing.T) {
	payments := &fakePayments{}
	ledger := NewLedger(payments, zap.NewNop())

	sub := &billing.Subscription{ID: 5, TenantID: 2}
	p, err := ledger.RecordWithTx(context.Background(), &stubTx{}, sub, &billing.CanonicalEvent{
		Action: billing.ActionRecordPaymentSuccess,
	})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, payments.created)
}
