// internal/domain/billing/dto.go
package billing

// SubscribeRequest drives plan creation or upgrade for a tenant.
type SubscribeRequest struct {
	PlanType      PlanType      `json:"plan_type" binding:"required"`
	BillingPeriod BillingPeriod `json:"billing_period"`
	Provider      Provider      `json:"provider"`

	// PaymentToken is a provider-issued payment method token. Optional for
	// hosted payment-link flows, where settlement arrives via webhook.
	PaymentToken string `json:"payment_token"`
	// Card may be supplied instead of a token; the orchestrator tokenizes
	// it with the provider before charging.
	Card     *CardDetails `json:"card,omitempty"`
	Currency string       `json:"currency"`
}

// CardDetails are raw card fields for providers whose tokenization runs
// server side.
type CardDetails struct {
	Number   string `json:"number"`
	CVC      string `json:"cvc"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	Holder   string `json:"holder"`
}

// SubscribeResult is returned from the synchronous checkout path.
type SubscribeResult struct {
	Subscription *Subscription `json:"subscription"`
	Payment      *Payment      `json:"payment,omitempty"`
	// PendingSettlement is true when the subscription was created in
	// incomplete status and confirmation will arrive through the webhook
	// path.
	PendingSettlement bool `json:"pending_settlement"`
}

// CancelRequest cancels the tenant's subscription, either at period end or
// immediately.
type CancelRequest struct {
	Immediately bool   `json:"immediately"`
	Reason      string `json:"reason"`
}

// SubscriptionListFilters pages through a tenant's payment history.
type PaymentListFilters struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
