package tenantrepofakes

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/finledger/auth-server/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

// FakeTenantRepo is an in-memory tenants.Repo for tests.
type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{
		tenants: make(map[string]*tenants.Tenant),
	}
}

func (tr *FakeTenantRepo) Create(_ context.Context, tenant *tenants.Tenant) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	cp := *tenant
	tr.tenants[cp.ID] = &cp
	return nil
}

func (tr *FakeTenantRepo) Get(_ context.Context, tenantID string) (*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tenant, ok := tr.tenants[tenantID]
	if !ok {
		return nil, tenants.ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

func (tr *FakeTenantRepo) List(_ context.Context, offset, limit int) ([]*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	all := make([]*tenants.Tenant, 0, len(tr.tenants))
	for _, t := range tr.tenants {
		cp := *t
		all = append(all, &cp)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
