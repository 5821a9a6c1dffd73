package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/tenancy"
)

// attemptResponse is the API representation of one delivery attempt.
type attemptResponse struct {
	ID                string `json:"id"`
	RuleID            string `json:"ruleId"`
	RuleName          string `json:"ruleName,omitempty"`
	Channel           string `json:"channel"`
	Recipient         string `json:"recipient,omitempty"`
	ColumnName        string `json:"columnName,omitempty"`
	OldValue          string `json:"oldValue,omitempty"`
	NewValue          string `json:"newValue,omitempty"`
	Success           bool   `json:"success"`
	FellBack          bool   `json:"fellBack,omitempty"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Error             string `json:"error,omitempty"`
	CreatedAt         string `json:"createdAt"`
}

func attemptToResponse(a *DeliveryAttempt) attemptResponse {
	return attemptResponse{
		ID:                a.ID,
		RuleID:            a.RuleID,
		RuleName:          a.RuleName,
		Channel:           a.Channel,
		Recipient:         a.Recipient,
		ColumnName:        a.ColumnName,
		OldValue:          a.OldValue,
		NewValue:          a.NewValue,
		Success:           a.Success,
		FellBack:          a.FellBack,
		ProviderMessageID: a.ProviderMessageID,
		Error:             a.LastError,
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
	}
}

// ListAttemptsHandler handles GET /deliveries for the calling tenant.
// Query params: ruleId, channel, success, pageSize, pageToken.
func ListAttemptsHandler(store *AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := AttemptFilter{
			Tenant:  tenancy.TenantID(r.Context()),
			RuleID:  r.URL.Query().Get("ruleId"),
			Channel: r.URL.Query().Get("channel"),
		}
		if s := r.URL.Query().Get("success"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid success filter: %v", err))
				return
			}
			filter.Success = &v
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := r.URL.Query().Get("pageToken")

		records, nextToken, err := store.List(filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list deliveries: %v", err))
			return
		}

		attempts := make([]attemptResponse, len(records))
		for i := range records {
			attempts[i] = attemptToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"deliveries":    attempts,
			"nextPageToken": nextToken,
		})
	}
}

// Router creates a chi router for the delivery history API. Mount behind
// tenancy middleware.
func Router(store *AttemptStore) chi.Router {
	r := chi.NewRouter()
	r.Get("/", ListAttemptsHandler(store))
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
