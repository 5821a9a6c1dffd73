package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/tenancy"
)

// ruleCondition is the API shape of a rule's condition block.
type ruleCondition struct {
	WatchedColumn string `json:"watchedColumn"`
	Operator      string `json:"operator"`
	TriggerValue  string `json:"triggerValue"`
}

// ruleAction is the API shape of a rule's action block.
type ruleAction struct {
	Channel         string `json:"channel"`
	SenderNumber    string `json:"senderNumber"`
	RecipientColumn string `json:"recipientColumn"`
	MessageTemplate string `json:"messageTemplate"`
}

// ruleResponse is the API representation of one automation rule.
type ruleResponse struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Enabled          bool          `json:"enabled"`
	ScopeSpreadsheet string        `json:"scopeSpreadsheet,omitempty"`
	ScopeDate        string        `json:"scopeDate,omitempty"`
	Condition        ruleCondition `json:"condition"`
	Action           ruleAction    `json:"action"`
	CreatedAt        string        `json:"createdAt"`
	UpdatedAt        string        `json:"updatedAt"`
}

func ruleToResponse(rule *AutomationRule) ruleResponse {
	return ruleResponse{
		ID:               rule.ID,
		Name:             rule.Name,
		Enabled:          rule.Enabled,
		ScopeSpreadsheet: rule.ScopeSpreadsheet,
		ScopeDate:        rule.ScopeDate,
		Condition: ruleCondition{
			WatchedColumn: rule.WatchedColumn,
			Operator:      string(rule.Operator),
			TriggerValue:  rule.TriggerValue,
		},
		Action: ruleAction{
			Channel:         string(rule.Channel),
			SenderNumber:    rule.SenderNumber,
			RecipientColumn: rule.RecipientColumn,
			MessageTemplate: rule.MessageTemplate,
		},
		CreatedAt: rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rule.UpdatedAt.Format(time.RFC3339),
	}
}

// createRuleRequest is the body for POST /rules.
type createRuleRequest struct {
	Name             string         `json:"name"`
	Enabled          *bool          `json:"enabled,omitempty"`
	ScopeSpreadsheet string         `json:"scopeSpreadsheet,omitempty"`
	ScopeDate        string         `json:"scopeDate,omitempty"`
	Condition        *ruleCondition `json:"condition"`
	Action           *ruleAction    `json:"action"`
}

// validate collects every problem with the request so the admin UI can show
// them all at once.
func (req *createRuleRequest) validate() error {
	var problems []string
	if req.Name == "" {
		problems = append(problems, "name is required")
	}
	if req.Condition == nil {
		problems = append(problems, "condition is required")
	} else {
		if req.Condition.WatchedColumn == "" {
			problems = append(problems, "condition.watchedColumn is required")
		}
		if !Operator(req.Condition.Operator).Valid() {
			problems = append(problems, fmt.Sprintf("condition.operator %q is not one of equals, contains, changes_to", req.Condition.Operator))
		}
		if req.Condition.TriggerValue == "" {
			problems = append(problems, "condition.triggerValue is required")
		}
	}
	if req.Action == nil {
		problems = append(problems, "action is required")
	} else {
		if !Channel(req.Action.Channel).Valid() {
			problems = append(problems, fmt.Sprintf("action.channel %q is not one of sms, chat", req.Action.Channel))
		}
		if req.Action.SenderNumber == "" {
			problems = append(problems, "action.senderNumber is required")
		}
		if req.Action.RecipientColumn == "" {
			problems = append(problems, "action.recipientColumn is required")
		}
		if req.Action.MessageTemplate == "" {
			problems = append(problems, "action.messageTemplate is required")
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// CreateRuleHandler handles POST /rules. Returns 409 when the tenant is at
// its rule quota.
func CreateRuleHandler(store *RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		var req createRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		rule := &AutomationRule{
			Tenant:           tenant,
			Name:             req.Name,
			Enabled:          enabled,
			ScopeSpreadsheet: req.ScopeSpreadsheet,
			ScopeDate:        req.ScopeDate,
			WatchedColumn:    req.Condition.WatchedColumn,
			Operator:         Operator(req.Condition.Operator),
			TriggerValue:     req.Condition.TriggerValue,
			Channel:          Channel(req.Action.Channel),
			SenderNumber:     req.Action.SenderNumber,
			RecipientColumn:  req.Action.RecipientColumn,
			MessageTemplate:  req.Action.MessageTemplate,
		}

		created, err := store.Create(rule)
		if err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				writeError(w, http.StatusConflict, fmt.Sprintf("rule quota exceeded: a tenant may hold at most %d rules", MaxRulesPerTenant))
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create rule: %v", err))
			return
		}

		writeJSON(w, http.StatusCreated, ruleToResponse(created))
	}
}

// ListRulesHandler handles GET /rules for the calling tenant.
func ListRulesHandler(store *RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())

		records, err := store.List(tenant)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list rules: %v", err))
			return
		}

		resp := make([]ruleResponse, len(records))
		for i := range records {
			resp[i] = ruleToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"rules":     resp,
			"totalSize": len(resp),
		})
	}
}

// GetRuleHandler handles GET /rules/{ruleId}.
func GetRuleHandler(store *RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		ruleID := chi.URLParam(r, "ruleId")

		rule, err := store.Get(tenant, ruleID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get rule: %v", err))
			return
		}
		if rule == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("rule %q not found", ruleID))
			return
		}

		writeJSON(w, http.StatusOK, ruleToResponse(rule))
	}
}

// updateRuleRequest is the body for PATCH /rules/{ruleId}. Every field is
// optional; condition and action may themselves be partial.
type updateRuleRequest struct {
	Name             *string         `json:"name,omitempty"`
	Enabled          *bool           `json:"enabled,omitempty"`
	ScopeSpreadsheet *string         `json:"scopeSpreadsheet,omitempty"`
	ScopeDate        *string         `json:"scopeDate,omitempty"`
	Condition        *conditionPatch `json:"condition,omitempty"`
	Action           *actionPatch    `json:"action,omitempty"`
}

type conditionPatch struct {
	WatchedColumn *string `json:"watchedColumn,omitempty"`
	Operator      *string `json:"operator,omitempty"`
	TriggerValue  *string `json:"triggerValue,omitempty"`
}

type actionPatch struct {
	Channel         *string `json:"channel,omitempty"`
	SenderNumber    *string `json:"senderNumber,omitempty"`
	RecipientColumn *string `json:"recipientColumn,omitempty"`
	MessageTemplate *string `json:"messageTemplate,omitempty"`
}

func (req *updateRuleRequest) toPatch() (RulePatch, error) {
	patch := RulePatch{
		Name:             req.Name,
		Enabled:          req.Enabled,
		ScopeSpreadsheet: req.ScopeSpreadsheet,
		ScopeDate:        req.ScopeDate,
	}
	if req.Condition != nil {
		patch.WatchedColumn = req.Condition.WatchedColumn
		patch.TriggerValue = req.Condition.TriggerValue
		if req.Condition.Operator != nil {
			op := Operator(*req.Condition.Operator)
			if !op.Valid() {
				return RulePatch{}, fmt.Errorf("condition.operator %q is not one of equals, contains, changes_to", *req.Condition.Operator)
			}
			patch.Operator = &op
		}
	}
	if req.Action != nil {
		patch.SenderNumber = req.Action.SenderNumber
		patch.RecipientColumn = req.Action.RecipientColumn
		patch.MessageTemplate = req.Action.MessageTemplate
		if req.Action.Channel != nil {
			ch := Channel(*req.Action.Channel)
			if !ch.Valid() {
				return RulePatch{}, fmt.Errorf("action.channel %q is not one of sms, chat", *req.Action.Channel)
			}
			patch.Channel = &ch
		}
	}
	return patch, nil
}

// UpdateRuleHandler handles PATCH /rules/{ruleId}. Only supplied fields are
// replaced; updatedAt is always bumped.
func UpdateRuleHandler(store *RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		ruleID := chi.URLParam(r, "ruleId")

		var req updateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		patch, err := req.toPatch()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		updated, err := store.Update(tenant, ruleID, patch)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("rule %q not found", ruleID))
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update rule: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, ruleToResponse(updated))
	}
}

// DeleteRuleHandler handles DELETE /rules/{ruleId}. Deletion is idempotent:
// deleting a missing rule still returns 200.
func DeleteRuleHandler(store *RuleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantID(r.Context())
		ruleID := chi.URLParam(r, "ruleId")

		if err := store.Delete(tenant, ruleID); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete rule: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "deleted",
			"ruleId": ruleID,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
