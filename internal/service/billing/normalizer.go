// internal/service/billing/normalizer.go
package billing

import (
	"encoding/json"

	"mesafacil-billing/internal/domain/billing"
	stripegw "mesafacil-billing/internal/provider/stripe"
	"mesafacil-billing/internal/provider/wompi"

	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// Normalizer maps provider-native webhook payloads onto the canonical event
// shape. Unknown event types normalize to IGNORE and are acknowledged
// without further action.
type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// stripeInvoice and stripeSubscription decode only the fields this service
// reads from event.Data.Raw. Unexpanded references arrive as plain id
// strings, which is what we want.
type stripeInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

type stripeSubscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// FromStripe maps a verified Stripe event. Stripe emits a distinct event
// type per action, so the mapping is a straight table.
func (n *Normalizer) FromStripe(event stripe.Event) *billing.CanonicalEvent {
	switch event.Type {
	case "invoice.paid", "invoice.payment_succeeded":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			n.logger.Warn("stripe invoice payload unparsable, ignoring",
				zap.String("event_type", string(event.Type)), zap.Error(err))
			return ignored(billing.ProviderStripe, string(event.Type))
		}
		return &billing.CanonicalEvent{
			Provider:              billing.ProviderStripe,
			Action:                billing.ActionRecordPaymentSuccess,
			ExternalTransactionID: inv.Subscription,
			ExternalSubjectID:     inv.Customer,
			ExternalPaymentID:     inv.ID,
			AmountMinorUnits:      inv.AmountPaid,
			Currency:              inv.Currency,
			RawStatus:             inv.Status,
		}

	case "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			n.logger.Warn("stripe invoice payload unparsable, ignoring",
				zap.String("event_type", string(event.Type)), zap.Error(err))
			return ignored(billing.ProviderStripe, string(event.Type))
		}
		return &billing.CanonicalEvent{
			Provider:              billing.ProviderStripe,
			Action:                billing.ActionRecordPaymentFailure,
			ExternalTransactionID: inv.Subscription,
			ExternalSubjectID:     inv.Customer,
			ExternalPaymentID:     inv.ID,
			AmountMinorUnits:      inv.AmountDue,
			Currency:              inv.Currency,
			RawStatus:             inv.Status,
		}

	case "customer.subscription.updated":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			n.logger.Warn("stripe subscription payload unparsable, ignoring",
				zap.String("event_type", string(event.Type)), zap.Error(err))
			return ignored(billing.ProviderStripe, string(event.Type))
		}
		return &billing.CanonicalEvent{
			Provider:              billing.ProviderStripe,
			Action:                billing.ActionSyncSubscription,
			ExternalTransactionID: sub.ID,
			ExternalSubjectID:     sub.Customer,
			RawStatus:             sub.Status,
			SubjectStatus:         stripegw.SubscriptionStatus(sub.Status),
			CancelAtPeriodEnd:     sub.CancelAtPeriodEnd,
		}

	case "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			n.logger.Warn("stripe subscription payload unparsable, ignoring",
				zap.String("event_type", string(event.Type)), zap.Error(err))
			return ignored(billing.ProviderStripe, string(event.Type))
		}
		return &billing.CanonicalEvent{
			Provider:              billing.ProviderStripe,
			Action:                billing.ActionCancelSubscription,
			ExternalTransactionID: sub.ID,
			ExternalSubjectID:     sub.Customer,
			RawStatus:             sub.Status,
		}

	default:
		return ignored(billing.ProviderStripe, string(event.Type))
	}
}

// FromWompi maps a verified Wompi event. Wompi emits a single event type
// whose transaction status carries the outcome.
func (n *Normalizer) FromWompi(ev *wompi.Event) *billing.CanonicalEvent {
	if ev.Event != wompi.EventTransactionUpdated {
		return ignored(billing.ProviderWompi, ev.Event)
	}
	return n.FromWompiTransaction(&ev.Data.Transaction)
}

// FromWompiTransaction maps a transaction to a canonical event. The
// synchronous checkout path reuses this for the transaction returned by the
// charge call, so both paths converge on identical events.
func (n *Normalizer) FromWompiTransaction(tx *wompi.Transaction) *billing.CanonicalEvent {
	ev := &billing.CanonicalEvent{
		Provider:              billing.ProviderWompi,
		ExternalTransactionID: tx.ID,
		ExternalPaymentID:     tx.ID,
		Reference:             tx.Reference,
		AmountMinorUnits:      tx.AmountInCents,
		Currency:              tx.Currency,
		RawStatus:             tx.Status,
	}

	switch tx.Status {
	case wompi.StatusApproved, wompi.StatusApprovedPartial:
		ev.Action = billing.ActionRecordPaymentSuccess
		ev.SubjectStatus = billing.StatusActive
	case wompi.StatusDeclined, wompi.StatusVoided, wompi.StatusError:
		ev.Action = billing.ActionRecordPaymentFailure
		ev.SubjectStatus = billing.StatusPastDue
	case wompi.StatusPending:
		// No payment recorded for pending transactions.
		ev.Action = billing.ActionSyncSubscription
		ev.SubjectStatus = billing.StatusIncomplete
	default:
		n.logger.Warn("unknown wompi transaction status, ignoring",
			zap.String("transaction_id", tx.ID),
			zap.String("status", tx.Status))
		ev.Action = billing.ActionIgnore
	}
	return ev
}

func ignored(provider billing.Provider, rawType string) *billing.CanonicalEvent {
	return &billing.CanonicalEvent{
		Provider:  provider,
		Action:    billing.ActionIgnore,
		RawStatus: rawType,
	}
}
