// internal/domain/tenant/entity.go
package tenant

import (
	"database/sql"
	"time"
)

// Tenant is a restaurant account, the unit of multi-tenancy and billing.
// BillingState is a denormalized projection of the tenant's subscription
// status; it is mirrored on every status transition and must stay eventually
// consistent with it.
type Tenant struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	ContactEmail string         `json:"contact_email" db:"contact_email"`
	ContactPhone sql.NullString `json:"contact_phone,omitempty" db:"contact_phone"`

	BillingState string `json:"billing_state" db:"billing_state"`

	// EnabledModules lists the platform modules the tenant has switched on
	// (menu, tables, reservations, ...). Managed by the catalog service;
	// read-only here.
	EnabledModules []string `json:"enabled_modules" db:"enabled_modules"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasContactEmail reports whether the tenant can be billed; both processors
// require a customer email.
func (t *Tenant) HasContactEmail() bool {
	return t.ContactEmail != ""
}
