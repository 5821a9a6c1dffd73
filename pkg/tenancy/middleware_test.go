package tenancy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		header     string
		wantStatus int
		wantTenant string // expected tenant in context (empty if error expected)
	}{
		{
			name:       "tenant from query param",
			url:        "/api/test?tenant=rider-ops",
			wantStatus: http.StatusOK,
			wantTenant: "rider-ops",
		},
		{
			name:       "tenant from header",
			url:        "/api/test",
			header:     "depot-7",
			wantStatus: http.StatusOK,
			wantTenant: "depot-7",
		},
		{
			name:       "both query and header: query wins",
			url:        "/api/test?tenant=from-query",
			header:     "from-header",
			wantStatus: http.StatusOK,
			wantTenant: "from-query",
		},
		{
			name:       "email-style tenant id",
			url:        "/api/test?tenant=driver@example.com",
			wantStatus: http.StatusOK,
			wantTenant: "driver@example.com",
		},
		{
			name:       "missing tenant: 400",
			url:        "/api/test",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid tenant: 400",
			url:        "/api/test?tenant=-leading-hyphen",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTenant string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTenant = TenantID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			NewMiddleware()(handler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotTenant != tt.wantTenant {
				t.Errorf("tenant = %q, want %q", gotTenant, tt.wantTenant)
			}
			if tt.wantStatus == http.StatusBadRequest {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body["error"] != "bad_request" {
					t.Errorf("error = %q, want bad_request", body["error"])
				}
			}
		})
	}
}

func TestTenantFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if tenant, ok := TenantFromContext(req.Context()); ok || tenant != "" {
		t.Errorf("expected no tenant, got %q", tenant)
	}
}
