// Package credentials exposes each tenant's messaging token as a narrow
// capability. How tokens are provisioned or refreshed is someone else's
// problem; the engine only needs "give me a valid bearer token for this
// tenant, or tell me there is none".
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoToken is returned when a tenant has no messaging credential on file.
var ErrNoToken = errors.New("no messaging token for tenant")

// TenantCredential is the GORM model for one tenant's provider credential.
type TenantCredential struct {
	Tenant    string    `gorm:"primaryKey;column:tenant;type:varchar(120)"`
	APIToken  string    `gorm:"column:api_token;not null"`
	SenderKey string    `gorm:"column:sender_key"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the GORM table name.
func (TenantCredential) TableName() string { return "tenant_credentials" }

// Store persists tenant credentials.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new credential Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the tenant_credentials table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&TenantCredential{})
}

// Get retrieves a tenant's credential. Returns nil, nil when none exists.
func (s *Store) Get(tenant string) (*TenantCredential, error) {
	var cred TenantCredential
	err := s.db.Where("tenant = ?", tenant).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}

// Put creates or replaces a tenant's credential.
func (s *Store) Put(cred *TenantCredential) error {
	cred.UpdatedAt = time.Now()
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_token", "sender_key", "updated_at"}),
	}).Create(cred).Error
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// Delete removes a tenant's credential. Idempotent.
func (s *Store) Delete(tenant string) error {
	if err := s.db.Where("tenant = ?", tenant).Delete(&TenantCredential{}).Error; err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// TokenSource yields a tenant's current messaging bearer token.
type TokenSource interface {
	Token(ctx context.Context, tenant string) (string, error)
}

// StoreTokenSource resolves tokens straight from the credential store.
type StoreTokenSource struct {
	store *Store
}

// NewStoreTokenSource creates a TokenSource backed by the given store.
func NewStoreTokenSource(store *Store) *StoreTokenSource {
	return &StoreTokenSource{store: store}
}

// Token returns the tenant's API token, or ErrNoToken when the tenant has
// no credential on file.
func (ts *StoreTokenSource) Token(_ context.Context, tenant string) (string, error) {
	cred, err := ts.store.Get(tenant)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.APIToken == "" {
		return "", ErrNoToken
	}
	return cred.APIToken, nil
}
