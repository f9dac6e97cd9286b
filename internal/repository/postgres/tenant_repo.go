// internal/repository/postgres/tenant_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mesafacil-billing/internal/domain/tenant"
	xerrors "mesafacil-billing/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

// FindByID retrieves a tenant by ID.
func (r *TenantRepository) FindByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, contact_email, contact_phone,
		       billing_state, enabled_modules,
		       created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	var t tenant.Tenant
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.ContactEmail, &t.ContactPhone,
		&t.BillingState, pq.Array(&t.EnabledModules),
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}
	return &t, nil
}

// UpdateBillingStateWithTx mirrors the subscription status onto the tenant
// row within the caller's transaction, so the two never diverge.
func (r *TenantRepository) UpdateBillingStateWithTx(ctx context.Context, tx pgx.Tx, id int64, billingState string) error {
	query := `
		UPDATE tenants
		SET billing_state = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := tx.Exec(ctx, query, billingState, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update tenant billing state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
