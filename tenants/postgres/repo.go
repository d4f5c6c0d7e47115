// Package postgres implements tenants.Repo against the admin database's
// tenants table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finledger/auth-server/tenants"
)

const tenantsTable = "tenants"

var _ tenants.Repo = (*TenantRepo)(nil)

type TenantRepo struct {
	db *pgxpool.Pool
}

func NewTenantRepo(db *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) Create(ctx context.Context, tenant *tenants.Tenant) error {
	const op = "postgres.TenantRepo.Create"

	query := fmt.Sprintf(`INSERT INTO %s (id, name, schema_name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)`, tenantsTable)

	_, err := r.db.Exec(ctx, query,
		tenant.ID, tenant.Name, tenant.SchemaName, tenant.Active, tenant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *TenantRepo) Get(ctx context.Context, tenantID string) (*tenants.Tenant, error) {
	const op = "postgres.TenantRepo.Get"

	query := fmt.Sprintf(`SELECT id, name, schema_name, is_active, created_at
		FROM %s WHERE id = $1`, tenantsTable)

	var tenant tenants.Tenant
	err := r.db.QueryRow(ctx, query, tenantID).Scan(
		&tenant.ID, &tenant.Name, &tenant.SchemaName, &tenant.Active, &tenant.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenants.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &tenant, nil
}

func (r *TenantRepo) List(ctx context.Context, offset, limit int) ([]*tenants.Tenant, error) {
	const op = "postgres.TenantRepo.List"

	query := fmt.Sprintf(`SELECT id, name, schema_name, is_active, created_at
		FROM %s ORDER BY id OFFSET $1 LIMIT $2`, tenantsTable)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*tenants.Tenant
	for rows.Next() {
		var tenant tenants.Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.SchemaName, &tenant.Active, &tenant.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}
	return result, nil
}
