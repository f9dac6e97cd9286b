// internal/domain/billing/event.go
package billing

// EventAction is the normalized intent of a provider webhook event.
type EventAction string

const (
	ActionSyncSubscription     EventAction = "SYNC_SUBSCRIPTION"
	ActionCancelSubscription   EventAction = "CANCEL_SUBSCRIPTION"
	ActionRecordPaymentSuccess EventAction = "RECORD_PAYMENT_SUCCESS"
	ActionRecordPaymentFailure EventAction = "RECORD_PAYMENT_FAILURE"
	ActionIgnore               EventAction = "IGNORE"
)

// CanonicalEvent is the provider-agnostic representation of a webhook
// payload. Both webhook deliveries and synthetic events produced by the
// synchronous checkout path take this shape, so a single reconciliation
// core handles both.
type CanonicalEvent struct {
	Provider Provider    `json:"provider"`
	Action   EventAction `json:"action"`

	// ExternalTransactionID is the processor's transaction or subscription
	// id, depending on provider.
	ExternalTransactionID string `json:"external_transaction_id"`
	// ExternalSubjectID is the processor-side customer id when the provider
	// has one (Stripe only).
	ExternalSubjectID string `json:"external_subject_id,omitempty"`
	// ExternalPaymentID keys the ledger. For Wompi it equals the
	// transaction id; for Stripe it is the invoice id, since one
	// subscription produces many invoices.
	ExternalPaymentID string `json:"external_payment_id,omitempty"`

	// Reference is the merchant-supplied payment reference, when present.
	// References created by this service follow SUB_<tenantId>_<timestamp>.
	Reference string `json:"reference,omitempty"`

	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency,omitempty"`

	// RawStatus is the provider-native status string, kept for logging.
	RawStatus string `json:"raw_status,omitempty"`

	// SubjectStatus is the subscription status the event implies. Set for
	// sync actions; derived from the action otherwise.
	SubjectStatus SubscriptionStatus `json:"subject_status,omitempty"`

	// CancelAtPeriodEnd mirrors the provider-side flag on sync events.
	CancelAtPeriodEnd bool `json:"cancel_at_period_end,omitempty"`
}

// TargetStatus resolves the subscription status this event drives toward.
func (e *CanonicalEvent) TargetStatus() SubscriptionStatus {
	switch e.Action {
	case ActionRecordPaymentSuccess:
		return StatusActive
	case ActionRecordPaymentFailure:
		return StatusPastDue
	case ActionCancelSubscription:
		return StatusCancelled
	case ActionSyncSubscription:
		return e.SubjectStatus
	default:
		return ""
	}
}

// RecordsPayment reports whether the event represents a confirmed
// settlement that must be appended to the ledger.
func (e *CanonicalEvent) RecordsPayment() bool {
	return e.Action == ActionRecordPaymentSuccess
}
