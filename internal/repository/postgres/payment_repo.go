// internal/repository/postgres/payment_repo.go
package postgres

import (
	"context"
	"fmt"

	"mesafacil-billing/internal/domain/billing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository is the append-only ledger. Rows are never updated or
// deleted.
type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ExistsByExternalIDWithTx checks for a previously recorded payment inside
// the caller's transaction, so the check and the insert commit together.
func (r *PaymentRepository) ExistsByExternalIDWithTx(ctx context.Context, tx pgx.Tx, provider billing.Provider, externalPaymentID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE provider = $1 AND external_payment_id = $2
		)
	`
	var exists bool
	if err := tx.QueryRow(ctx, query, string(provider), externalPaymentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check payment existence: %w", err)
	}
	return exists, nil
}

// CreateWithTx appends a payment within a transaction.
func (r *PaymentRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *billing.Payment) error {
	query := `
		INSERT INTO payments (
			reference, subscription_id, tenant_id,
			amount_minor_units, currency,
			provider, external_payment_id, status, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := tx.QueryRow(
		ctx, query,
		p.Reference, p.SubscriptionID, p.TenantID,
		p.AmountMinorUnits, p.Currency,
		string(p.Provider), p.ExternalPaymentID, p.Status, p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// ListByTenant pages through a tenant's payments, most recent first.
func (r *PaymentRepository) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]billing.Payment, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query := `
		SELECT id, reference, subscription_id, tenant_id,
		       amount_minor_units, currency,
		       provider, external_payment_id, status,
		       paid_at, created_at
		FROM payments
		WHERE tenant_id = $1
		ORDER BY paid_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var p billing.Payment
		if err := rows.Scan(
			&p.ID, &p.Reference, &p.SubscriptionID, &p.TenantID,
			&p.AmountMinorUnits, &p.Currency,
			&p.Provider, &p.ExternalPaymentID, &p.Status,
			&p.PaidAt, &p.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, total, nil
}
