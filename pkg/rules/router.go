package rules

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi router with the rule management API routes. The
// caller is expected to mount it behind tenancy middleware.
func Router(store *RuleStore) chi.Router {
	r := chi.NewRouter()

	r.Get("/", ListRulesHandler(store))
	r.Post("/", CreateRuleHandler(store))
	r.Get("/{ruleId}", GetRuleHandler(store))
	r.Patch("/{ruleId}", UpdateRuleHandler(store))
	r.Delete("/{ruleId}", DeleteRuleHandler(store))

	return r
}
