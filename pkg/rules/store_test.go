package rules

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewRuleStore(db)
	require.NoError(t, store.AutoMigrate())
	return db
}

func testRule(tenant, name string) *AutomationRule {
	return &AutomationRule{
		Tenant:          tenant,
		Name:            name,
		Enabled:         true,
		WatchedColumn:   "status",
		Operator:        OperatorEquals,
		TriggerValue:    "delivered",
		Channel:         ChannelSMS,
		SenderNumber:    "0212345678",
		RecipientColumn: "phone",
		MessageTemplate: "#{customer}, your order is out.",
	}
}

func TestRuleStoreCreate(t *testing.T) {
	db := setupTestDB(t)
	store := NewRuleStore(db)

	created, err := store.Create(testRule("shop@example.com", "delivered alert"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.Get("shop@example.com", created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "delivered alert", got.Name)
	assert.Equal(t, OperatorEquals, got.Operator)

	// The tenant must now appear in the fan-out index.
	var entry TenantIndexEntry
	require.NoError(t, db.First(&entry, "tenant = ?", "shop@example.com").Error)
	assert.Equal(t, 1, entry.RuleCount)
}

func TestRuleStoreCreateNormalizesScopeDate(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	rule := testRule("shop@example.com", "scoped")
	rule.ScopeDate = "2025-08-25"
	created, err := store.Create(rule)
	require.NoError(t, err)
	assert.Equal(t, "20250825", created.ScopeDate)
}

func TestRuleStoreQuota(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	for i := 0; i < MaxRulesPerTenant; i++ {
		_, err := store.Create(testRule("shop@example.com", fmt.Sprintf("rule %d", i)))
		require.NoError(t, err, "rule %d should fit under the quota", i)
	}

	_, err := store.Create(testRule("shop@example.com", "one too many"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Other tenants are unaffected.
	_, err = store.Create(testRule("other@example.com", "first rule"))
	assert.NoError(t, err)
}

func TestRuleStoreQuotaCountsDisabledRules(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	for i := 0; i < MaxRulesPerTenant; i++ {
		r := testRule("shop@example.com", fmt.Sprintf("rule %d", i))
		r.Enabled = false
		_, err := store.Create(r)
		require.NoError(t, err)
	}

	_, err := store.Create(testRule("shop@example.com", "still over"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestRuleStoreGetMissing(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	got, err := store.Get("shop@example.com", "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleStoreGetTenantIsolation(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	created, err := store.Create(testRule("shop@example.com", "mine"))
	require.NoError(t, err)

	got, err := store.Get("other@example.com", created.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "a rule must not be visible to another tenant")
}

func TestRuleStoreList(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	_, err := store.Create(testRule("shop@example.com", "first"))
	require.NoError(t, err)
	_, err = store.Create(testRule("shop@example.com", "second"))
	require.NoError(t, err)
	_, err = store.Create(testRule("other@example.com", "theirs"))
	require.NoError(t, err)

	rules, err := store.List("shop@example.com")
	require.NoError(t, err)
	require.Len(t, rules, 2)
}

func TestRuleStoreUpdate(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	created, err := store.Create(testRule("shop@example.com", "before"))
	require.NoError(t, err)
	before := created.UpdatedAt

	time.Sleep(5 * time.Millisecond)

	name := "after"
	enabled := false
	updated, err := store.Update("shop@example.com", created.ID, RulePatch{
		Name:    &name,
		Enabled: &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.False(t, updated.Enabled)
	// Untouched fields survive a partial patch.
	assert.Equal(t, "status", updated.WatchedColumn)
	assert.True(t, updated.UpdatedAt.After(before))
}

func TestRuleStoreUpdateNormalizesScopeDate(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	created, err := store.Create(testRule("shop@example.com", "scoped"))
	require.NoError(t, err)

	scopeDate := "2025/8/5"
	updated, err := store.Update("shop@example.com", created.ID, RulePatch{ScopeDate: &scopeDate})
	require.NoError(t, err)
	assert.Equal(t, "20250805", updated.ScopeDate)
}

func TestRuleStoreUpdateMissing(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	name := "nope"
	_, err := store.Update("shop@example.com", "no-such-id", RulePatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRuleStoreDelete(t *testing.T) {
	db := setupTestDB(t)
	store := NewRuleStore(db)

	first, err := store.Create(testRule("shop@example.com", "first"))
	require.NoError(t, err)
	second, err := store.Create(testRule("shop@example.com", "second"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("shop@example.com", first.ID))

	var entry TenantIndexEntry
	require.NoError(t, db.First(&entry, "tenant = ?", "shop@example.com").Error)
	assert.Equal(t, 1, entry.RuleCount)

	// Deleting the last rule drops the tenant from the index.
	require.NoError(t, store.Delete("shop@example.com", second.ID))
	err = db.First(&entry, "tenant = ?", "shop@example.com").Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRuleStoreDeleteIdempotent(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))
	assert.NoError(t, store.Delete("shop@example.com", "no-such-id"))
}

func TestRuleStoreDeleteFreesQuota(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	var lastID string
	for i := 0; i < MaxRulesPerTenant; i++ {
		created, err := store.Create(testRule("shop@example.com", fmt.Sprintf("rule %d", i)))
		require.NoError(t, err)
		lastID = created.ID
	}

	require.NoError(t, store.Delete("shop@example.com", lastID))

	_, err := store.Create(testRule("shop@example.com", "replacement"))
	assert.NoError(t, err)
}

func TestListEnabledForAllTenants(t *testing.T) {
	store := NewRuleStore(setupTestDB(t))

	_, err := store.Create(testRule("a@example.com", "a1"))
	require.NoError(t, err)
	_, err = store.Create(testRule("a@example.com", "a2"))
	require.NoError(t, err)

	disabled := testRule("b@example.com", "b1")
	disabled.Enabled = false
	_, err = store.Create(disabled)
	require.NoError(t, err)

	all, err := store.ListEnabledForAllTenants()
	require.NoError(t, err)
	require.Len(t, all, 2)

	byTenant := map[string][]AutomationRule{}
	for _, tr := range all {
		byTenant[tr.Tenant] = tr.Rules
	}
	assert.Len(t, byTenant["a@example.com"], 2)
	// Indexed tenant with only disabled rules yields an empty slice.
	assert.Len(t, byTenant["b@example.com"], 0)
}
