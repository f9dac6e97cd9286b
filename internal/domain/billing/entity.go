// internal/domain/billing/entity.go
package billing

import (
	"database/sql"
	"time"
)

type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanPro     PlanType = "pro"
	PlanPremium PlanType = "premium"
)

// Tier returns the ordering of a plan for upgrade/downgrade checks.
func (p PlanType) Tier() int {
	switch p {
	case PlanFree:
		return 0
	case PlanPro:
		return 1
	case PlanPremium:
		return 2
	default:
		return -1
	}
}

func (p PlanType) Valid() bool {
	return p.Tier() >= 0
}

type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

type SubscriptionStatus string

const (
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusActive     SubscriptionStatus = "active"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCancelled  SubscriptionStatus = "cancelled"

	// StatusPending is a legacy value still present in rows written before
	// the incomplete status was introduced. It is never written anymore but
	// pending rows are still candidates for reconciliation.
	StatusPending SubscriptionStatus = "pending"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderWompi  Provider = "wompi"
)

// Subscription is the internal billing record for a tenant. At most one
// non-superseded row per tenant; enforced by lookup-then-upsert, not by a
// database constraint.
type Subscription struct {
	ID       int64    `json:"id" db:"id"`
	TenantID int64    `json:"tenant_id" db:"tenant_id"`
	PlanType PlanType `json:"plan_type" db:"plan_type"`

	Status SubscriptionStatus `json:"status" db:"status"`

	// External identity at the payment processor. For Stripe this is a
	// subscription id, for Wompi a transaction id; the provider tag
	// disambiguates the two.
	Provider           Provider       `json:"provider,omitempty" db:"provider"`
	ExternalID         sql.NullString `json:"external_id,omitempty" db:"external_id"`
	ExternalCustomerID sql.NullString `json:"external_customer_id,omitempty" db:"external_customer_id"`

	BillingPeriod      BillingPeriod `json:"billing_period" db:"billing_period"`
	CurrentPeriodStart time.Time     `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time     `json:"current_period_end" db:"current_period_end"`

	CancelAtPeriodEnd bool         `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	CancelledAt       sql.NullTime `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Payment is one row of the append-only ledger of confirmed settlements.
type Payment struct {
	ID             int64  `json:"id" db:"id"`
	Reference      string `json:"reference" db:"reference"`
	SubscriptionID int64  `json:"subscription_id" db:"subscription_id"`
	TenantID       int64  `json:"tenant_id" db:"tenant_id"`

	AmountMinorUnits int64  `json:"amount_minor_units" db:"amount_minor_units"`
	Currency         string `json:"currency" db:"currency"`

	Provider Provider `json:"provider" db:"provider"`
	// ExternalPaymentID is the processor-side payment id; it doubles as the
	// idempotency key for the ledger.
	ExternalPaymentID string `json:"external_payment_id" db:"external_payment_id"`

	Status string `json:"status" db:"status"`

	PaidAt    time.Time `json:"paid_at" db:"paid_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const PaymentStatusSettled = "settled"
