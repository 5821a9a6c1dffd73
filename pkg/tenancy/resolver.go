package tenancy

import (
	"fmt"
	"net/http"
	"regexp"
)

// maxTenantLen bounds tenant ids; tenant ids are account emails or short
// account handles in practice.
const maxTenantLen = 120

// tenantRe validates tenant id format: alphanumerics plus the characters
// that appear in account emails, starting with an alphanumeric.
var tenantRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9@._-]*$`)

// TenantQueryParam is the query parameter name used for tenant resolution.
const TenantQueryParam = "tenant"

// TenantHeader is the HTTP header used for tenant resolution.
const TenantHeader = "X-Tenant-Id"

// Resolver resolves the calling tenant from an HTTP request.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// HeaderResolver reads the tenant id from the request query parameter or
// header. A tenant id is always required on rule-management routes.
type HeaderResolver struct{}

// Resolve extracts the tenant id from the request. It checks the query
// parameter first, then falls back to the X-Tenant-Id header. Returns an
// error if the tenant id is missing or invalid.
func (HeaderResolver) Resolve(r *http.Request) (string, error) {
	tenant := r.URL.Query().Get(TenantQueryParam)
	if tenant == "" {
		tenant = r.Header.Get(TenantHeader)
	}

	if tenant == "" {
		return "", fmt.Errorf("tenant is required (use ?tenant= query param or %s header)", TenantHeader)
	}

	if err := validateTenant(tenant); err != nil {
		return "", err
	}

	return tenant, nil
}

// validateTenant checks that a tenant id is well-formed: 1-120 characters,
// alphanumerics plus @._-, starting with an alphanumeric.
func validateTenant(tenant string) error {
	if len(tenant) > maxTenantLen {
		return fmt.Errorf("tenant %q exceeds maximum length of %d characters", tenant, maxTenantLen)
	}
	if !tenantRe.MatchString(tenant) {
		return fmt.Errorf("tenant %q is invalid: must start with an alphanumeric character and contain only alphanumerics or @._-", tenant)
	}
	return nil
}
