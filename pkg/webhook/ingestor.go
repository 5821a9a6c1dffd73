package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/credentials"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/dispatch"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/metrics"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/rules"
)

// TriggerEvent is one normalized spreadsheet cell edit. Produced once per
// inbound webhook call and consumed exactly once.
type TriggerEvent struct {
	SheetName       string
	SpreadsheetID   string
	SpreadsheetName string
	DateLabel       string
	ColumnName      string
	RowIndex        int
	OldValue        string
	NewValue        string
	RowData         map[string]string
}

// Ingestor matches trigger events against every tenant's enabled rules and
// dispatches the matches.
type Ingestor struct {
	rules       *rules.RuleStore
	tokens      credentials.TokenSource
	dispatcher  *dispatch.Dispatcher
	concurrency int
	logger      *slog.Logger
}

// NewIngestor creates an Ingestor. concurrency bounds in-flight dispatches
// per event.
func NewIngestor(ruleStore *rules.RuleStore, tokens credentials.TokenSource, dispatcher *dispatch.Dispatcher, concurrency int, logger *slog.Logger) *Ingestor {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		rules:       ruleStore,
		tokens:      tokens,
		dispatcher:  dispatcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// matchedRule is one (rule, token) pair ready for dispatch.
type matchedRule struct {
	rule  rules.AutomationRule
	token string
}

// HandleTriggerEvent fans the event out over every tenant in the rule index
// and dispatches each matched rule. Dispatches for independent rules run
// concurrently on a bounded worker group, so one slow provider call cannot
// stall unrelated tenants. The returned result order is not meaningful.
func (in *Ingestor) HandleTriggerEvent(ctx context.Context, event TriggerEvent) ([]dispatch.Result, error) {
	eventDate := rules.NormalizeDate(event.DateLabel)

	tenants, err := in.rules.ListEnabledForAllTenants()
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}

	var matches []matchedRule
	for _, tr := range tenants {
		if len(tr.Rules) == 0 {
			continue
		}

		// Resolve the tenant's messaging token up front. A missing token
		// must not mask condition matching: the rules still evaluate, and
		// their dispatches fail individually.
		token, err := in.tokens.Token(ctx, tr.Tenant)
		if err != nil {
			in.logger.Warn("messaging token unavailable",
				"tenant", tr.Tenant,
				"error", err)
			token = ""
		}

		for _, rule := range tr.Rules {
			if rule.WatchedColumn != event.ColumnName {
				continue
			}
			if rule.ScopeSpreadsheet != "" && rule.ScopeSpreadsheet != event.SpreadsheetID {
				continue
			}
			if rule.ScopeDate != "" && rules.NormalizeDate(rule.ScopeDate) != eventDate {
				continue
			}
			if !rule.Matches(event.OldValue, event.NewValue) {
				continue
			}
			metrics.RulesMatchedTotal.Inc()
			matches = append(matches, matchedRule{rule: rule, token: token})
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	in.logger.Info("dispatching matched rules",
		"column", event.ColumnName,
		"sheet", event.SheetName,
		"matches", len(matches))

	results := make([]dispatch.Result, len(matches))
	sem := make(chan struct{}, in.concurrency)
	var wg sync.WaitGroup

	for i, m := range matches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, m matchedRule) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				// One misbehaving rule becomes one failed result, not an
				// aborted batch.
				if r := recover(); r != nil {
					in.logger.Error("dispatch panicked",
						"tenant", m.rule.Tenant,
						"ruleId", m.rule.ID,
						"panic", r)
					results[i] = dispatch.Result{
						Tenant:     m.rule.Tenant,
						RuleID:     m.rule.ID,
						RuleName:   m.rule.Name,
						ColumnName: event.ColumnName,
						OldValue:   event.OldValue,
						NewValue:   event.NewValue,
						Timestamp:  time.Now().Format(time.RFC3339),
					}
				}
			}()

			results[i] = in.dispatcher.Dispatch(ctx, dispatch.Request{
				Rule:       &m.rule,
				RowData:    event.RowData,
				Token:      m.token,
				ColumnName: event.ColumnName,
				OldValue:   event.OldValue,
				NewValue:   event.NewValue,
			})
		}(i, m)
	}
	wg.Wait()

	return results, nil
}
