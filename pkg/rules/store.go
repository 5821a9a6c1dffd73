package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxRulesPerTenant is the rule-count ceiling per tenant, enabled or not.
const MaxRulesPerTenant = 20

// ErrQuotaExceeded is returned when a tenant is at its rule-count ceiling.
var ErrQuotaExceeded = errors.New("rule quota exceeded")

// ErrNotFound is returned when a rule does not exist for the tenant.
var ErrNotFound = errors.New("rule not found")

// RuleStore provides tenant-scoped persistence for automation rules and
// maintains the tenant fan-out index.
type RuleStore struct {
	db *gorm.DB
}

// NewRuleStore creates a new RuleStore.
func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{db: db}
}

// AutoMigrate creates or updates the rule and tenant index tables.
func (s *RuleStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&AutomationRule{}); err != nil {
		return fmt.Errorf("auto-migrate automation_rules: %w", err)
	}
	if err := s.db.AutoMigrate(&TenantIndexEntry{}); err != nil {
		return fmt.Errorf("auto-migrate automation_tenant_index: %w", err)
	}
	return nil
}

// Create inserts a new rule for its tenant and registers the tenant in the
// fan-out index. The quota check and the insert run in one transaction so
// concurrent creates for the same tenant cannot overshoot the ceiling.
// Returns ErrQuotaExceeded when the tenant already holds MaxRulesPerTenant
// rules.
func (s *RuleStore) Create(rule *AutomationRule) (*AutomationRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.ScopeDate != "" {
		rule.ScopeDate = NormalizeDate(rule.ScopeDate)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&AutomationRule{}).Where("tenant = ?", rule.Tenant).Count(&count).Error; err != nil {
			return fmt.Errorf("count tenant rules: %w", err)
		}
		if count >= MaxRulesPerTenant {
			return ErrQuotaExceeded
		}
		if err := tx.Create(rule).Error; err != nil {
			return fmt.Errorf("create rule: %w", err)
		}
		return syncIndex(tx, rule.Tenant)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// Get retrieves one rule by tenant and id. Returns nil, nil if no such rule
// exists for the tenant.
func (s *RuleStore) Get(tenant, ruleID string) (*AutomationRule, error) {
	var rule AutomationRule
	err := s.db.Where("tenant = ? AND id = ?", tenant, ruleID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &rule, nil
}

// List returns all rules for a tenant, oldest first.
func (s *RuleStore) List(tenant string) ([]AutomationRule, error) {
	var rules []AutomationRule
	if err := s.db.Where("tenant = ?", tenant).Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// RulePatch carries a partial rule update. Only non-nil fields are applied.
type RulePatch struct {
	Name             *string
	Enabled          *bool
	ScopeSpreadsheet *string
	ScopeDate        *string
	WatchedColumn    *string
	Operator         *Operator
	TriggerValue     *string
	Channel          *Channel
	SenderNumber     *string
	RecipientColumn  *string
	MessageTemplate  *string
}

// Update applies a partial patch to a rule. UpdatedAt is always refreshed,
// even when the patch repeats the stored values. Returns ErrNotFound when
// the tenant holds no rule with the given id.
func (s *RuleStore) Update(tenant, ruleID string, patch RulePatch) (*AutomationRule, error) {
	var updated AutomationRule
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rule AutomationRule
		err := tx.Where("tenant = ? AND id = ?", tenant, ruleID).First(&rule).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load rule: %w", err)
		}

		applyPatch(&rule, patch)
		rule.UpdatedAt = time.Now()

		if err := tx.Save(&rule).Error; err != nil {
			return fmt.Errorf("save rule: %w", err)
		}
		updated = rule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a rule by tenant and id. Deleting a rule that does not
// exist is a no-op. When the tenant's last rule goes away, the tenant is
// dropped from the fan-out index.
func (s *RuleStore) Delete(tenant, ruleID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("tenant = ? AND id = ?", tenant, ruleID).Delete(&AutomationRule{})
		if result.Error != nil {
			return fmt.Errorf("delete rule: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return syncIndex(tx, tenant)
	})
}

// ListEnabledForAllTenants returns every indexed tenant paired with its
// enabled rules. Only tenants present in the fan-out index are consulted;
// accounts are never scanned exhaustively. Tenants whose rules are all
// disabled come back with an empty slice.
func (s *RuleStore) ListEnabledForAllTenants() ([]TenantRules, error) {
	var entries []TenantIndexEntry
	if err := s.db.Order("tenant ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list tenant index: %w", err)
	}

	out := make([]TenantRules, 0, len(entries))
	for _, e := range entries {
		var enabled []AutomationRule
		err := s.db.Where("tenant = ? AND enabled = ?", e.Tenant, true).
			Order("created_at ASC").Find(&enabled).Error
		if err != nil {
			return nil, fmt.Errorf("list enabled rules for %s: %w", e.Tenant, err)
		}
		out = append(out, TenantRules{Tenant: e.Tenant, Rules: enabled})
	}
	return out, nil
}

// applyPatch copies the non-nil patch fields onto the rule. A patched scope
// date is normalized the same way Create normalizes it.
func applyPatch(rule *AutomationRule, patch RulePatch) {
	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.ScopeSpreadsheet != nil {
		rule.ScopeSpreadsheet = *patch.ScopeSpreadsheet
	}
	if patch.ScopeDate != nil {
		rule.ScopeDate = *patch.ScopeDate
		if rule.ScopeDate != "" {
			rule.ScopeDate = NormalizeDate(rule.ScopeDate)
		}
	}
	if patch.WatchedColumn != nil {
		rule.WatchedColumn = *patch.WatchedColumn
	}
	if patch.Operator != nil {
		rule.Operator = *patch.Operator
	}
	if patch.TriggerValue != nil {
		rule.TriggerValue = *patch.TriggerValue
	}
	if patch.Channel != nil {
		rule.Channel = *patch.Channel
	}
	if patch.SenderNumber != nil {
		rule.SenderNumber = *patch.SenderNumber
	}
	if patch.RecipientColumn != nil {
		rule.RecipientColumn = *patch.RecipientColumn
	}
	if patch.MessageTemplate != nil {
		rule.MessageTemplate = *patch.MessageTemplate
	}
}

// syncIndex recounts a tenant's rules and upserts or removes its fan-out
// index entry accordingly. Runs inside the caller's transaction.
func syncIndex(tx *gorm.DB, tenant string) error {
	var count int64
	if err := tx.Model(&AutomationRule{}).Where("tenant = ?", tenant).Count(&count).Error; err != nil {
		return fmt.Errorf("recount tenant rules: %w", err)
	}

	if count == 0 {
		if err := tx.Delete(&TenantIndexEntry{Tenant: tenant}).Error; err != nil {
			return fmt.Errorf("remove tenant index entry: %w", err)
		}
		return nil
	}

	entry := TenantIndexEntry{Tenant: tenant, RuleCount: int(count), UpdatedAt: time.Now()}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}},
		DoUpdates: clause.AssignmentColumns([]string{"rule_count", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert tenant index entry: %w", err)
	}
	return nil
}
