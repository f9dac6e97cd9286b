// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mesafacil-billing/internal/domain/billing"
	xerrors "mesafacil-billing/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `
	id, tenant_id, plan_type, status,
	provider, external_id, external_customer_id,
	billing_period, current_period_start, current_period_end,
	cancel_at_period_end, cancelled_at,
	created_at, updated_at
`

func scanSubscription(row pgx.Row) (*billing.Subscription, error) {
	var s billing.Subscription
	var provider sql.NullString

	err := row.Scan(
		&s.ID, &s.TenantID, &s.PlanType, &s.Status,
		&provider, &s.ExternalID, &s.ExternalCustomerID,
		&s.BillingPeriod, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd, &s.CancelledAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	s.Provider = billing.Provider(provider.String)
	return &s, nil
}

// Create inserts a new subscription row.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *billing.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			tenant_id, plan_type, status,
			provider, external_id, external_customer_id,
			billing_period, current_period_start, current_period_end,
			cancel_at_period_end
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		sub.TenantID, sub.PlanType, sub.Status,
		string(sub.Provider), sub.ExternalID, sub.ExternalCustomerID,
		sub.BillingPeriod, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// FindByID retrieves a subscription by ID.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*billing.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

// FindByExternalID retrieves the subscription holding a provider-side id.
func (r *SubscriptionRepository) FindByExternalID(ctx context.Context, provider billing.Provider, externalID string) (*billing.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE provider = $1 AND external_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, string(provider), externalID))
}

// FindLatestByTenant retrieves the tenant's most recent subscription.
func (r *SubscriptionRepository) FindLatestByTenant(ctx context.Context, tenantID int64) (*billing.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID))
}

// FindPendingByPlan retrieves the most recently created subscription of a
// plan still awaiting settlement. The legacy 'pending' status predates
// 'incomplete' and still exists on old rows.
func (r *SubscriptionRepository) FindPendingByPlan(ctx context.Context, plan billing.PlanType) (*billing.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE plan_type = $1 AND status IN ('incomplete', 'pending')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, string(plan)))
}

// SetExternalID backfills the provider identity of a subscription.
func (r *SubscriptionRepository) SetExternalID(ctx context.Context, id int64, provider billing.Provider, externalID string) error {
	query := `
		UPDATE subscriptions
		SET provider = $1, external_id = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.Exec(ctx, query, string(provider), externalID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set external id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SetExternalCustomerID stores the provider-side customer id.
func (r *SubscriptionRepository) SetExternalCustomerID(ctx context.Context, id int64, externalCustomerID string) error {
	query := `
		UPDATE subscriptions
		SET external_customer_id = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.Exec(ctx, query, externalCustomerID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set external customer id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdatePlan rewrites an existing row for an upgrade; one logical
// subscription per tenant means upgrades never insert.
func (r *SubscriptionRepository) UpdatePlan(ctx context.Context, sub *billing.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_type = $1, status = $2, provider = NULLIF($3, ''),
		    external_id = $4, external_customer_id = $5,
		    billing_period = $6, current_period_start = $7, current_period_end = $8,
		    cancel_at_period_end = false, cancelled_at = NULL, updated_at = $9
		WHERE id = $10
	`
	result, err := r.db.Exec(
		ctx, query,
		sub.PlanType, sub.Status, string(sub.Provider),
		sub.ExternalID, sub.ExternalCustomerID,
		sub.BillingPeriod, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		time.Now(), sub.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdateStatusWithTx sets the status absolutely within a transaction.
func (r *SubscriptionRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status billing.SubscriptionStatus, cancelledAt sql.NullTime, cancelAtPeriodEnd bool) error {
	query := `
		UPDATE subscriptions
		SET status = $1, cancelled_at = $2, cancel_at_period_end = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := tx.Exec(ctx, query, status, cancelledAt, cancelAtPeriodEnd, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdatePeriodWithTx moves the current billing period.
func (r *SubscriptionRepository) UpdatePeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, start, end time.Time) error {
	query := `
		UPDATE subscriptions
		SET current_period_start = $1, current_period_end = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, start, end, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription period: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
