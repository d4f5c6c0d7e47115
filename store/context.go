package store

import "context"

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// WithTenantID returns a context carrying the tenant identity. Tenant
// identity is always threaded through the call chain as an explicit value,
// never kept in process-global state, so one request's tenant can never
// leak into another's.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

func tenantIDFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantIDKey).(string)
	return tenantID, ok && tenantID != ""
}
