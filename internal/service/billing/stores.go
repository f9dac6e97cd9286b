// internal/service/billing/stores.go
package billing

import (
	"context"
	"database/sql"
	"time"

	"mesafacil-billing/internal/domain/billing"
	"mesafacil-billing/internal/domain/tenant"

	"github.com/jackc/pgx/v5"
)

// TxBeginner starts a database transaction. Satisfied by *postgres.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// SubscriptionStore is the persistence surface the reconciliation core
// needs for subscriptions. All Find methods return xerrors.ErrNotFound when
// no row matches.
type SubscriptionStore interface {
	FindByID(ctx context.Context, id int64) (*billing.Subscription, error)
	FindByExternalID(ctx context.Context, provider billing.Provider, externalID string) (*billing.Subscription, error)
	FindLatestByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error)
	// FindPendingByPlan returns the most recently created subscription of
	// the given plan still awaiting settlement.
	FindPendingByPlan(ctx context.Context, plan billing.PlanType) (*billing.Subscription, error)

	Create(ctx context.Context, sub *billing.Subscription) error
	SetExternalID(ctx context.Context, id int64, provider billing.Provider, externalID string) error
	SetExternalCustomerID(ctx context.Context, id int64, externalCustomerID string) error
	// UpdatePlan rewrites the plan, billing period, provider identity,
	// status and period bounds of an existing row; used by upgrades, which
	// never create a second row for the tenant.
	UpdatePlan(ctx context.Context, sub *billing.Subscription) error

	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status billing.SubscriptionStatus, cancelledAt sql.NullTime, cancelAtPeriodEnd bool) error
	UpdatePeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, start, end time.Time) error
}

// TenantStore reads tenants and mirrors the billing-state projection.
type TenantStore interface {
	FindByID(ctx context.Context, id int64) (*tenant.Tenant, error)
	UpdateBillingStateWithTx(ctx context.Context, tx pgx.Tx, tenantID int64, state string) error
}

// PaymentStore is the append-only ledger surface.
type PaymentStore interface {
	ExistsByExternalIDWithTx(ctx context.Context, tx pgx.Tx, provider billing.Provider, externalPaymentID string) (bool, error)
	CreateWithTx(ctx context.Context, tx pgx.Tx, p *billing.Payment) error
	ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]billing.Payment, int64, error)
}
