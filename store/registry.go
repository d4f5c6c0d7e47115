// Package store owns the data-access handles in the schema-per-tenant
// layout: one admin handle for the tenant registry, and one lazily built
// handle per tenant, cached for the life of the process. The Registry is an
// explicit object created at the composition root and injected into request
// handlers; it is never ambient global state.
package store

import (
	"context"
	goerrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/finledger/auth-server/tenants"
	tenantspg "github.com/finledger/auth-server/tenants/postgres"
	"github.com/finledger/auth-server/users"
	userspg "github.com/finledger/auth-server/users/postgres"
)

// tenantPlaceholder is substituted into the tenant URL template.
const tenantPlaceholder = "{tenant_id}"

// ErrNoTenant is returned when a request carries no tenant identity and the
// development fallback is disabled.
var ErrNoTenant = goerrors.New("no tenant in request context")

// Config is the registry's slice of the application configuration.
type Config struct {
	// AdminURL is the connection string for the admin database.
	AdminURL string
	// TenantURLTemplate is a connection string containing the {tenant_id}
	// placeholder. Empty means tenants share the admin connection (their
	// isolation then relies on the connection's search_path).
	TenantURLTemplate string
	// DevFallbackTenantID is the ambient tenant used when a request carries
	// no tenant identity. It applies only while DevFallbackEnabled is true,
	// a development convenience that must stay off in production, where a
	// silent fallback would risk cross-tenant leakage.
	DevFallbackTenantID string
	DevFallbackEnabled  bool
}

// Client is a tenant-scoped data-access handle: the repositories bound to
// one tenant's isolated schema. The admin client additionally carries the
// tenant registry repo. Clients are shared by all requests for the tenant.
type Client struct {
	TenantID string
	Users    users.Repo
	Tenants  tenants.Repo // non-nil on the admin client only

	pool *pgxpool.Pool
}

// NewClient builds a Client from pre-constructed repos. Used by tests to
// seed a Registry with fake-backed handles.
func NewClient(tenantID string, userRepo users.Repo, tenantRepo tenants.Repo) *Client {
	return &Client{TenantID: tenantID, Users: userRepo, Tenants: tenantRepo}
}

func (c *Client) close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// OpenFunc builds a connection pool for a connection string. Injectable so
// tests can intercept pool construction.
type OpenFunc func(ctx context.Context, connString string) (*pgxpool.Pool, error)

// Registry caches one Client per tenant plus the admin Client, building
// each lazily on first use and tearing everything down on Close.
type Registry struct {
	cfg  Config
	open OpenFunc

	mu      sync.RWMutex
	admin   *Client
	clients map[string]*Client
	closed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOpenFunc overrides how connection pools are constructed.
func WithOpenFunc(open OpenFunc) RegistryOption {
	return func(r *Registry) {
		r.open = open
	}
}

// WithAdminClient seeds the admin handle (tests).
func WithAdminClient(client *Client) RegistryOption {
	return func(r *Registry) {
		r.admin = client
	}
}

// WithClient seeds a tenant handle (tests).
func WithClient(tenantID string, client *Client) RegistryOption {
	return func(r *Registry) {
		r.clients[tenantID] = client
	}
}

// NewRegistry creates a Registry. No connections are opened until a handle
// is first requested.
func NewRegistry(cfg Config, options ...RegistryOption) *Registry {
	r := &Registry{
		cfg:     cfg,
		open:    pgxpool.New,
		clients: make(map[string]*Client),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// TenantID resolves the caller's tenant from the request context. When the
// context carries none, the configured development fallback applies if
// enabled; otherwise ErrNoTenant.
func (r *Registry) TenantID(ctx context.Context) (string, error) {
	if tenantID, ok := tenantIDFromContext(ctx); ok {
		return tenantID, nil
	}
	if r.cfg.DevFallbackEnabled && r.cfg.DevFallbackTenantID != "" {
		return r.cfg.DevFallbackTenantID, nil
	}
	return "", ErrNoTenant
}

// Admin returns the admin handle, building it on first use.
func (r *Registry) Admin(ctx context.Context) (*Client, error) {
	r.mu.RLock()
	admin := r.admin
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errors.New("[Registry.Admin] registry is closed")
	}
	if admin != nil {
		return admin, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock: a Close racing the first access could
	// have drained the cache since the read-locked check, and a pool opened
	// past that point would never be released.
	if r.closed {
		return nil, errors.New("[Registry.Admin] registry is closed")
	}
	if r.admin != nil {
		return r.admin, nil
	}

	pool, err := r.open(ctx, r.cfg.AdminURL)
	if err != nil {
		return nil, errors.Wrap(err, "[Registry.Admin] open admin pool")
	}
	r.admin = &Client{
		Users:   userspg.NewUserRepo(pool),
		Tenants: tenantspg.NewTenantRepo(pool),
		pool:    pool,
	}
	return r.admin, nil
}

// Client returns the handle for tenantID, building and caching it on first
// use. The double-checked lock makes concurrent first access yield a single
// handle. Construction does not validate the tenant's existence or active
// status; that is SwitchTenant's job.
func (r *Registry) Client(ctx context.Context, tenantID string) (*Client, error) {
	r.mu.RLock()
	client, ok := r.clients[tenantID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errors.New("[Registry.Client] registry is closed")
	}
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Same re-check as Admin: Close may have won the lock in between.
	if r.closed {
		return nil, errors.New("[Registry.Client] registry is closed")
	}
	if client, ok := r.clients[tenantID]; ok {
		return client, nil
	}

	pool, err := r.open(ctx, r.tenantURL(tenantID))
	if err != nil {
		return nil, errors.Wrapf(err, "[Registry.Client] open pool for tenant %s", tenantID)
	}
	client = &Client{
		TenantID: tenantID,
		Users:    userspg.NewUserRepo(pool),
		pool:     pool,
	}
	r.clients[tenantID] = client
	return client, nil
}

// SwitchTenant validates that tenantID names an existing, active tenant and
// returns a context carrying it. A missing or inactive tenant yields
// tenants.ErrNotFound.
func (r *Registry) SwitchTenant(ctx context.Context, tenantID string) (context.Context, error) {
	admin, err := r.Admin(ctx)
	if err != nil {
		return ctx, err
	}

	tenant, err := admin.Tenants.Get(ctx, tenantID)
	if err != nil {
		return ctx, err
	}
	if !tenant.Active {
		return ctx, tenants.ErrNotFound
	}
	return WithTenantID(ctx, tenantID), nil
}

// CreateTenant inserts the tenant registry row. It does NOT provision the
// tenant's schema or run migrations; those are manual follow-up steps, so
// the row starts inactive and SwitchTenant refuses it until an operator
// activates it.
func (r *Registry) CreateTenant(ctx context.Context, name, schemaName string) (*tenants.Tenant, error) {
	admin, err := r.Admin(ctx)
	if err != nil {
		return nil, err
	}

	tenant := &tenants.Tenant{
		ID:         uuid.New().String(),
		Name:       name,
		SchemaName: schemaName,
		Active:     false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := admin.Tenants.Create(ctx, tenant); err != nil {
		return nil, errors.Wrap(err, "[Registry.CreateTenant] Create")
	}
	return tenant, nil
}

// Close releases every cached handle. Idempotent; safe to call when no
// handle was ever built.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	if r.admin != nil {
		r.admin.close()
		r.admin = nil
	}
	for tenantID, client := range r.clients {
		client.close()
		delete(r.clients, tenantID)
	}
}

func (r *Registry) tenantURL(tenantID string) string {
	if r.cfg.TenantURLTemplate == "" {
		return r.cfg.AdminURL
	}
	return strings.ReplaceAll(r.cfg.TenantURLTemplate, tenantPlaceholder, tenantID)
}
