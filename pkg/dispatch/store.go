package dispatch

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AttemptStore persists delivery attempts.
type AttemptStore struct {
	db *gorm.DB
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(db *gorm.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// AutoMigrate creates or updates the delivery_attempts table.
func (s *AttemptStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DeliveryAttempt{})
}

// Record inserts one delivery attempt.
func (s *AttemptStore) Record(attempt *DeliveryAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	if err := s.db.Create(attempt).Error; err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}
	return nil
}

// AttemptFilter defines filters for listing delivery attempts.
type AttemptFilter struct {
	Tenant  string
	RuleID  string
	Channel string
	Success *bool
}

// List returns paginated delivery attempts matching the filter, newest
// first. pageToken is the created_at of the last record from the previous
// page; pass "" for the first page.
func (s *AttemptStore) List(filter AttemptFilter, pageSize int, pageToken string) ([]DeliveryAttempt, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Model(&DeliveryAttempt{})
	if filter.Tenant != "" {
		query = query.Where("tenant = ?", filter.Tenant)
	}
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}

	query = query.Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []DeliveryAttempt
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list delivery attempts: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, nil
}

// DeleteOlderThan removes attempts older than the given cutoff; used by the
// retention sweep.
func (s *AttemptStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&DeliveryAttempt{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old attempts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
