// Package dispatch executes the action side of a matched automation rule:
// it resolves the recipient from the row, expands the message template,
// sends through the provider with chat-to-SMS fallback, and records a
// delivery attempt for observability.
package dispatch

import (
	"time"
)

// Result is the per-rule outcome aggregated into the webhook response.
type Result struct {
	Tenant     string `json:"tenant"`
	RuleID     string `json:"ruleId"`
	RuleName   string `json:"ruleName"`
	Success    bool   `json:"success"`
	ColumnName string `json:"columnName"`
	OldValue   string `json:"oldValue"`
	NewValue   string `json:"newValue"`
	Timestamp  string `json:"timestamp"`
}

// DeliveryAttempt is the GORM model for one outbound dispatch attempt.
// One row per matched rule; a chat send that fell back to SMS is still one
// attempt with FellBack set.
type DeliveryAttempt struct {
	ID                string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant            string    `gorm:"column:tenant;type:varchar(120);index:idx_attempt_tenant;not null"`
	RuleID            string    `gorm:"column:rule_id;type:varchar(36);index:idx_attempt_rule;not null"`
	RuleName          string    `gorm:"column:rule_name"`
	Channel           string    `gorm:"column:channel;type:varchar(8);not null"`
	Recipient         string    `gorm:"column:recipient"`
	ColumnName        string    `gorm:"column:column_name"`
	OldValue          string    `gorm:"column:old_value"`
	NewValue          string    `gorm:"column:new_value"`
	Success           bool      `gorm:"column:success;not null"`
	FellBack          bool      `gorm:"column:fell_back;not null;default:false"`
	ProviderMessageID string    `gorm:"column:provider_message_id"`
	LastError         string    `gorm:"column:last_error"`
	CreatedAt         time.Time `gorm:"column:created_at;index:idx_attempt_created;not null"`
}

// TableName returns the GORM table name.
func (DeliveryAttempt) TableName() string { return "delivery_attempts" }
