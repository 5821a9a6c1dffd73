package credentials

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/tenancy"
)

// credentialResponse is the API representation of a tenant credential.
// The token itself is masked; the API only confirms that one is on file.
type credentialResponse struct {
	Tenant      string `json:"tenant"`
	TokenOnFile bool   `json:"tokenOnFile"`
	TokenHint   string `json:"tokenHint,omitempty"`
	SenderKey   string `json:"senderKey,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// putCredentialRequest is the body for PUT /credentials.
type putCredentialRequest struct {
	APIToken  string `json:"apiToken"`
	SenderKey string `json:"senderKey,omitempty"`
}

// maskToken keeps the trailing 4 characters so the admin UI can tell keys
// apart without exposing them.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 4) + token[len(token)-4:]
}

// GetCredentialHandler handles GET /credentials for the calling tenant.
func GetCredentialHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		cred, err := store.Get(tenant)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get credential: %v", err))
			return
		}
		if cred == nil {
			writeJSON(w, http.StatusOK, credentialResponse{Tenant: tenant, TokenOnFile: false})
			return
		}

		writeJSON(w, http.StatusOK, credentialResponse{
			Tenant:      tenant,
			TokenOnFile: true,
			TokenHint:   maskToken(cred.APIToken),
			SenderKey:   cred.SenderKey,
			UpdatedAt:   cred.UpdatedAt.Format(time.RFC3339),
		})
	}
}

// PutCredentialHandler handles PUT /credentials for the calling tenant.
// invalidate, when non-nil, is called after a successful write so a cached
// stale token is not served to the next webhook.
func PutCredentialHandler(store *Store, invalidate func(tenant string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		var req putCredentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.APIToken == "" {
			writeError(w, http.StatusBadRequest, "apiToken is required")
			return
		}

		cred := &TenantCredential{
			Tenant:    tenant,
			APIToken:  req.APIToken,
			SenderKey: req.SenderKey,
		}
		if err := store.Put(cred); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store credential: %v", err))
			return
		}
		if invalidate != nil {
			invalidate(tenant)
		}

		writeJSON(w, http.StatusOK, credentialResponse{
			Tenant:      tenant,
			TokenOnFile: true,
			TokenHint:   maskToken(cred.APIToken),
			SenderKey:   cred.SenderKey,
			UpdatedAt:   cred.UpdatedAt.Format(time.RFC3339),
		})
	}
}

// DeleteCredentialHandler handles DELETE /credentials for the calling tenant.
func DeleteCredentialHandler(store *Store, invalidate func(tenant string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		if err := store.Delete(tenant); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete credential: %v", err))
			return
		}
		if invalidate != nil {
			invalidate(tenant)
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// Router creates a chi router with the credential API routes. Mount behind
// tenancy middleware.
func Router(store *Store, invalidate func(tenant string)) chi.Router {
	r := chi.NewRouter()
	r.Get("/", GetCredentialHandler(store))
	r.Put("/", PutCredentialHandler(store, invalidate))
	r.Delete("/", DeleteCredentialHandler(store, invalidate))
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
