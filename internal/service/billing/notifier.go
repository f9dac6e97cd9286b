// internal/service/billing/notifier.go
package billing

import (
	"context"
	"fmt"
	"time"

	"mesafacil-billing/internal/domain/billing"
	"mesafacil-billing/internal/pkg/tasks"
	"mesafacil-billing/internal/realtime"

	"go.uber.org/zap"
)

// EmailSender sends a single message. Satisfied by *email.EmailSender.
type EmailSender interface {
	Send(to, subject, bodyHTML string) error
}

// EventPublisher pushes billing state changes to the realtime layer.
// Satisfied by *realtime.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev realtime.BillingEvent) error
}

// Notifier runs billing side effects (receipt emails, realtime fan-out) as
// background tasks so a failing notification can never fail or slow a
// reconciliation.
type Notifier struct {
	runner    *tasks.Runner
	email     EmailSender
	publisher EventPublisher
	logger    *zap.Logger
}

func NewNotifier(runner *tasks.Runner, email EmailSender, publisher EventPublisher, logger *zap.Logger) *Notifier {
	return &Notifier{runner: runner, email: email, publisher: publisher, logger: logger}
}

// PaymentReceived emails a receipt for a settled payment.
func (n *Notifier) PaymentReceived(contactEmail string, payment *billing.Payment, plan billing.PlanType) {
	if n.email == nil || contactEmail == "" {
		return
	}
	subject := "Pago confirmado - MesaFacil"
	body := fmt.Sprintf(
		"<p>Recibimos tu pago del plan <b>%s</b>.</p><p>Referencia: %s<br>Monto: %d %s</p>",
		plan, payment.Reference, payment.AmountMinorUnits/100, payment.Currency,
	)
	n.runner.Submit("billing.receipt_email", func(ctx context.Context) error {
		return n.email.Send(contactEmail, subject, body)
	})
}

// ChargeFailed emails a payment-failure notice.
func (n *Notifier) ChargeFailed(contactEmail string, plan billing.PlanType) {
	if n.email == nil || contactEmail == "" {
		return
	}
	subject := "Problema con tu pago - MesaFacil"
	body := fmt.Sprintf(
		"<p>No pudimos procesar el pago de tu plan <b>%s</b>. Por favor verifica tu medio de pago.</p>",
		plan,
	)
	n.runner.Submit("billing.failure_email", func(ctx context.Context) error {
		return n.email.Send(contactEmail, subject, body)
	})
}

// StateChanged publishes the new subscription state to the realtime layer.
func (n *Notifier) StateChanged(sub *billing.Subscription) {
	if n.publisher == nil {
		return
	}
	ev := realtime.BillingEvent{
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		PlanType:       string(sub.PlanType),
		Status:         string(sub.Status),
		OccurredAt:     time.Now(),
	}
	n.runner.Submit("billing.state_event", func(ctx context.Context) error {
		return n.publisher.Publish(ctx, ev)
	})
}
