package tenants

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no tenant matches the lookup key. Callers
// treat an inactive tenant the same way where activation matters.
var ErrNotFound = errors.New("tenant not found")

// Repo is the admin-database tenant registry.
//
// Create only inserts the registry row. Provisioning the tenant's schema and
// running its migrations are deliberate manual steps; callers must not
// assume a new tenant is immediately query-ready.
type Repo interface {
	Create(ctx context.Context, tenant *Tenant) error
	Get(ctx context.Context, tenantID string) (*Tenant, error)
	List(ctx context.Context, offset, limit int) ([]*Tenant, error)
}
