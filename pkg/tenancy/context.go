// Package tenancy resolves the calling tenant for rule-management requests
// and carries it through the request context. Every rule API call is scoped
// to exactly one tenant; there is no cross-tenant visibility.
package tenancy

import "context"

// ctxKey is an unexported type used as the context key for the tenant id.
type ctxKey struct{}

// WithTenant returns a new context with the given tenant id attached.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenant)
}

// TenantFromContext retrieves the tenant id from the context.
// Returns "" and false if no tenant is set.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(ctxKey{}).(string)
	return tenant, ok
}

// TenantID is a convenience function that returns the tenant id from the
// context, or "" if none is set.
func TenantID(ctx context.Context) string {
	tenant, _ := TenantFromContext(ctx)
	return tenant
}
