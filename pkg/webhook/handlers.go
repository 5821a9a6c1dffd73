package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/dispatch"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/metrics"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/rules"
)

// triggerPayload mirrors the sheet-side edit trigger's POST body.
type triggerPayload struct {
	SheetName       string            `json:"sheetName"`
	SpreadsheetName string            `json:"spreadsheetName,omitempty"`
	SpreadsheetID   string            `json:"spreadsheetId,omitempty"`
	SheetDate       string            `json:"sheetDate,omitempty"`
	ColumnName      string            `json:"columnName"`
	RowIndex        int               `json:"rowIndex,omitempty"`
	ColumnIndex     int               `json:"columnIndex,omitempty"`
	OldValue        string            `json:"oldValue,omitempty"`
	NewValue        string            `json:"newValue,omitempty"`
	Timestamp       string            `json:"timestamp,omitempty"`
	RowData         map[string]string `json:"rowData"`
}

// validate rejects payloads missing any required field before any rule
// matching happens.
func (p *triggerPayload) validate() error {
	var missing []string
	if p.SheetName == "" {
		missing = append(missing, "sheetName")
	}
	if p.ColumnName == "" {
		missing = append(missing, "columnName")
	}
	if p.RowData == nil {
		missing = append(missing, "rowData")
	}
	if len(missing) > 0 {
		return errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func (p *triggerPayload) toEvent() TriggerEvent {
	return TriggerEvent{
		SheetName:       p.SheetName,
		SpreadsheetID:   p.SpreadsheetID,
		SpreadsheetName: p.SpreadsheetName,
		DateLabel:       p.SheetDate,
		ColumnName:      p.ColumnName,
		RowIndex:        p.RowIndex,
		OldValue:        p.OldValue,
		NewValue:        p.NewValue,
		RowData:         p.RowData,
	}
}

// webhookEcho is the payload summary echoed back in the response.
type webhookEcho struct {
	SheetName     string `json:"sheetName"`
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
	SheetDate     string `json:"sheetDate,omitempty"`
	ColumnName    string `json:"columnName"`
	RowIndex      int    `json:"rowIndex,omitempty"`
}

// TriggerHandler handles POST /webhook. A malformed payload is rejected
// with 400; everything else returns 200 with a results summary, even when
// individual dispatches failed, so the upstream edit trigger always sees a
// consistent acknowledgment.
func TriggerHandler(in *Ingestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p triggerPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := p.validate(); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		metrics.WebhookEventsTotal.WithLabelValues("accepted").Inc()

		results, err := in.HandleTriggerEvent(r.Context(), p.toEvent())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to process event: %v", err))
			return
		}
		if results == nil {
			// Keep the results field a JSON array even with zero matches.
			results = []dispatch.Result{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"processedRules": len(results),
			"results":        results,
			"webhook": webhookEcho{
				SheetName:     p.SheetName,
				SpreadsheetID: p.SpreadsheetID,
				SheetDate:     rules.NormalizeDate(p.SheetDate),
				ColumnName:    p.ColumnName,
				RowIndex:      p.RowIndex,
			},
		})
	}
}

// Router creates a chi router with the webhook route. The webhook is called
// by the spreadsheet's edit trigger, not by tenants, so it is not mounted
// behind tenancy middleware.
func Router(in *Ingestor) chi.Router {
	r := chi.NewRouter()
	r.Post("/", TriggerHandler(in))
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
