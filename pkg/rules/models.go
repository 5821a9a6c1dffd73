// Package rules holds the automation rule model, the tenant-scoped rule
// store with its fan-out index, condition evaluation, and the rule
// management HTTP API.
package rules

import (
	"time"
)

// Operator selects how a rule's trigger value is compared against the
// edited cell.
type Operator string

const (
	// OperatorEquals fires when the new value matches the trigger value exactly.
	OperatorEquals Operator = "equals"
	// OperatorContains fires when the new value contains the trigger value.
	OperatorContains Operator = "contains"
	// OperatorChangesTo fires only on a transition into the trigger value.
	OperatorChangesTo Operator = "changes_to"
)

// Valid reports whether the operator is one of the known comparison modes.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorContains, OperatorChangesTo:
		return true
	}
	return false
}

// Channel is the outbound messaging transport for a rule's action.
type Channel string

const (
	// ChannelSMS sends a plain SMS/LMS text message.
	ChannelSMS Channel = "sms"
	// ChannelChat sends a KakaoTalk message, falling back to SMS on failure.
	ChannelChat Channel = "chat"
)

// Valid reports whether the channel is a known transport.
func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelChat
}

// AutomationRule is the GORM model for one persisted trigger rule.
// The condition fields decide whether a cell edit matches; the action
// fields describe the outbound message to send when it does.
type AutomationRule struct {
	ID      string `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant  string `gorm:"column:tenant;type:varchar(120);index:idx_rule_tenant;not null"`
	Name    string `gorm:"column:name;not null"`
	Enabled bool   `gorm:"column:enabled;not null;default:true"`

	// Optional scoping: restrict matching to one spreadsheet and/or one
	// date-named sheet. ScopeDate is stored in normalized 8-digit form
	// whenever the input format is recognized.
	ScopeSpreadsheet string `gorm:"column:scope_spreadsheet"`
	ScopeDate        string `gorm:"column:scope_date;type:varchar(32)"`

	WatchedColumn string   `gorm:"column:watched_column;not null"`
	Operator      Operator `gorm:"column:operator;type:varchar(16);not null"`
	TriggerValue  string   `gorm:"column:trigger_value"`

	Channel         Channel `gorm:"column:channel;type:varchar(8);not null"`
	SenderNumber    string  `gorm:"column:sender_number"`
	RecipientColumn string  `gorm:"column:recipient_column;not null"`
	MessageTemplate string  `gorm:"column:message_template;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the GORM table name.
func (AutomationRule) TableName() string { return "automation_rules" }

// TenantIndexEntry marks a tenant as owning at least one rule. The webhook
// fan-out walks this table instead of scanning every account, since the
// backing store has no cheap "list all tenants" primitive.
type TenantIndexEntry struct {
	Tenant    string    `gorm:"primaryKey;column:tenant;type:varchar(120)"`
	RuleCount int       `gorm:"column:rule_count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the GORM table name.
func (TenantIndexEntry) TableName() string { return "automation_tenant_index" }

// TenantRules pairs a tenant with its enabled rules for webhook fan-out.
type TenantRules struct {
	Tenant string
	Rules  []AutomationRule
}
