// internal/service/billing/lifecycle_test.go
package billing

import (
	"context"
	"testing"

	"mesafacil-billing/internal/domain/billing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from billing.SubscriptionStatus
		to   billing.SubscriptionStatus
		want bool
	}{
		{"incomplete to active", billing.StatusIncomplete, billing.StatusActive, true},
		{"active to past_due", billing.StatusActive, billing.StatusPastDue, true},
		{"past_due to active", billing.StatusPastDue, billing.StatusActive, true},
		{"active to cancelled", billing.StatusActive, billing.StatusCancelled, true},
		{"incomplete to trialing", billing.StatusIncomplete, billing.StatusTrialing, true},
		{"legacy pending to active", billing.StatusPending, billing.StatusActive, true},
		{"re-apply current status", billing.StatusActive, billing.StatusActive, true},
		{"active cannot demote to incomplete", billing.StatusActive, billing.StatusIncomplete, false},
		{"active cannot demote to trialing", billing.StatusActive, billing.StatusTrialing, false},
		{"past_due cannot demote to incomplete", billing.StatusPastDue, billing.StatusIncomplete, false},
		{"trialing cannot regress to incomplete", billing.StatusTrialing, billing.StatusIncomplete, false},
		{"cancelled is terminal", billing.StatusCancelled, billing.StatusActive, false},
		{"cancelled cannot re-cancel", billing.StatusCancelled, billing.StatusCancelled, false},
		{"unknown target refused", billing.StatusActive, "suspended", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestLifecycleApply_PaymentSuccess(t *testing.T) {
	db := &fakeDB{}
	subs := &fakeSubs{}
	tenants := &fakeTenants{}
	payments := &fakePayments{}
	lc := testLifecycle(db, subs, tenants, payments)

	sub := &billing.Subscription{ID: 7, TenantID: 3, Status: billing.StatusIncomplete}
	ev := &billing.CanonicalEvent{
		Provider:              billing.ProviderWompi,
		Action:                billing.ActionRecordPaymentSuccess,
		ExternalTransactionID: "trx-1",
		AmountMinorUnits:      3_600_000,
		Currency:              "COP",
	}

	result, err := lc.Apply(context.Background(), sub, ev)
	require.NoError(t, err)

	assert.True(t, result.StatusChanged)
	assert.Equal(t, billing.StatusActive, result.Subscription.Status)
	require.NotNil(t, result.Payment)
	assert.Equal(t, "trx-1", result.Payment.ExternalPaymentID)
	assert.NotEmpty(t, result.Payment.Reference)

	// status write, tenant mirror and ledger append share one transaction
	require.Len(t, subs.statusUpdates, 1)
	assert.Equal(t, billing.StatusActive, subs.statusUpdates[0].status)
	assert.Equal(t, "active", tenants.billingState[3])
	require.NotNil(t, db.lastTx)
	assert.True(t, db.lastTx.committed)
	assert.False(t, db.lastTx.rolledBack)
}

func TestLifecycleApply_CancelledIsTerminal(t *testing.T) {
	db := &fakeDB{}
	subs := &fakeSubs{}
	tenants := &fakeTenants{}
	lc := testLifecycle(db, subs, tenants, &fakePayments{})

	sub := &billing.Subscription{ID: 7, TenantID: 3, Status: billing.StatusCancelled}
	ev := &billing.CanonicalEvent{
		Provider: billing.ProviderStripe,
		Action:   billing.ActionRecordPaymentSuccess,
	}

	result, err := lc.Apply(context.Background(), sub, ev)
	require.NoError(t, err)

	assert.False(t, result.StatusChanged)
	assert.Equal(t, billing.StatusCancelled, result.Subscription.Status)
	assert.Empty(t, subs.statusUpdates)
	assert.Zero(t, db.beginN)
}

func TestLifecycleApply_ReapplySameStatus(t *testing.T) {
	db := &fakeDB{}
	subs := &fakeSubs{}
	tenants := &fakeTenants{}
	lc := testLifecycle(db, subs, tenants, &fakePayments{})

	sub := &billing.Subscription{ID: 7, TenantID: 3, Status: billing.StatusActive}
	ev := &billing.CanonicalEvent{
		Provider:      billing.ProviderStripe,
		Action:        billing.ActionSyncSubscription,
		SubjectStatus: billing.StatusActive,
	}

	result, err := lc.Apply(context.Background(), sub, ev)
	require.NoError(t, err)

	// written absolutely but reported as unchanged
	assert.False(t, result.StatusChanged)
	require.Len(t, subs.statusUpdates, 1)
	assert.Equal(t, billing.StatusActive, subs.statusUpdates[0].status)
}

func TestLifecycleApply_CancelSetsCancelledAt(t *testing.T) {
	db := &fakeDB{}
	subs := &fakeSubs{}
	tenants := &fakeTenants{}
	lc := testLifecycle(db, subs, tenants, &fakePayments{})

	sub := &billing.Subscription{ID: 7, TenantID: 3, Status: billing.StatusActive}
	ev := &billing.CanonicalEvent{
		Provider: billing.ProviderStripe,
		Action:   billing.ActionCancelSubscription,
	}

	result, err := lc.Apply(context.Background(), sub, ev)
	require.NoError(t, err)

	assert.True(t, result.StatusChanged)
	assert.Equal(t, billing.StatusCancelled, result.Subscription.Status)
	require.Len(t, subs.statusUpdates, 1)
	assert.True(t, subs.statusUpdates[0].cancelledAt.Valid)
	assert.Equal(t, "cancelled", tenants.billingState[3])
}

func TestLifecycleApply_SyncCarriesCancelAtPeriodEnd(t *testing.T) {
	db := &fakeDB{}
	subs := &fakeSubs{}
	tenants := &fakeTenants{}
	lc := testLifecycle(db, subs, tenants, &fakePayments{})

	sub := &billing.Subscription{ID: 7, TenantID: 3, Status: billing.StatusActive}
	ev := &billing.CanonicalEvent{
		Provider:          billing.ProviderStripe,
		Action:            billing.ActionSyncSubscription,
		SubjectStatus:     billing.StatusActive,
		CancelAtPeriodEnd: true,
	}

	result, err := lc.Apply(context.Background(), sub, ev)
	require.NoError(t, err)

	assert.True(t, result.Subscription.CancelAtPeriodEnd)
	require.Len(t, subs.statusUpdates, 1)
	assert.True(t, subs.statusUpdates[0].cancelAtPeriodEnd)
}

func TestLifecycleApply_IgnoredEventIsNoOp(t *testing.T) {
	db := &fakeDB{}
	subs := &fakeSubs{}
	lc := testLifecycle(db, subs, &fakeTenants{}, &fakePayments{})

	sub := &billing.Subscription{ID: 7, TenantID: 3, Status: billing.StatusActive}
	result, err := lc.Apply(context.Background(), sub, &billing.CanonicalEvent{Action: billing.ActionIgnore})
	require.NoError(t, err)

	assert.False(t, result.StatusChanged)
	assert.Zero(t, db.beginN)
	assert.Empty(t, subs.statusUpdates)
}
