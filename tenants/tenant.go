// Package tenants defines the tenant registry for the schema-per-tenant
// layout: every tenant's data lives in its own Postgres schema, tracked by a
// row in the admin database.
package tenants

import "time"

// Tenant is an isolated organizational boundary. SchemaName names the
// Postgres schema holding the tenant's data. Inactive tenants cannot be
// switched to; a freshly created tenant stays inactive until its schema has
// been provisioned and migrated (a manual step, see Repo.Create).
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SchemaName string    `json:"schema_name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
