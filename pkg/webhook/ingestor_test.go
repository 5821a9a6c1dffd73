package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/credentials"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/dispatch"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/rules"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/solapi"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&rules.AutomationRule{}, &rules.TenantIndexEntry{}, &dispatch.DeliveryAttempt{}, &credentials.TenantCredential{}))
	return db
}

// recordingSender captures provider calls and optionally rejects them.
type recordingSender struct {
	mu    sync.Mutex
	calls []solapi.Message
	err   error
}

func (s *recordingSender) Send(_ context.Context, _ string, msg solapi.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msg)
	if s.err != nil {
		return "", s.err
	}
	return "provider-msg-id", nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type testEngine struct {
	db        *gorm.DB
	ruleStore *rules.RuleStore
	credStore *credentials.Store
	sender    *recordingSender
	ingestor  *Ingestor
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := setupTestDB(t)
	ruleStore := rules.NewRuleStore(db)
	credStore := credentials.NewStore(db)
	sender := &recordingSender{}
	dispatcher := dispatch.NewDispatcher(sender, dispatch.NewAttemptStore(db), time.Second, nil)
	tokens := credentials.NewStoreTokenSource(credStore)
	return &testEngine{
		db:        db,
		ruleStore: ruleStore,
		credStore: credStore,
		sender:    sender,
		ingestor:  NewIngestor(ruleStore, tokens, dispatcher, 4, nil),
	}
}

func deliveredRule(tenant string) *rules.AutomationRule {
	return &rules.AutomationRule{
		Tenant:          tenant,
		Name:            "notify on delivered",
		Enabled:         true,
		ScopeDate:       "20250825",
		WatchedColumn:   "status",
		Operator:        rules.OperatorChangesTo,
		TriggerValue:    "delivered",
		Channel:         rules.ChannelSMS,
		SenderNumber:    "0215771577",
		RecipientColumn: "phone",
		MessageTemplate: "#{name}, delivered",
	}
}

func deliveredEvent() TriggerEvent {
	return TriggerEvent{
		SheetName:  "orders",
		DateLabel:  "20250825",
		ColumnName: "status",
		OldValue:   "in_transit",
		NewValue:   "delivered",
		RowData:    map[string]string{"name": "Kim", "phone": "010-1111-2222"},
	}
}

func TestHandleTriggerEventEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ruleStore.Create(deliveredRule("depot-1"))
	require.NoError(t, err)
	require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: "depot-1", APIToken: "tok"}))

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), deliveredEvent())
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "depot-1", results[0].Tenant)
	assert.Equal(t, "status", results[0].ColumnName)
	assert.Equal(t, "in_transit", results[0].OldValue)
	assert.Equal(t, "delivered", results[0].NewValue)
	assert.Equal(t, 1, e.sender.count())
}

func TestHandleTriggerEventColumnMismatch(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ruleStore.Create(deliveredRule("depot-1"))
	require.NoError(t, err)

	event := deliveredEvent()
	event.ColumnName = "memo"

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, e.sender.count())
}

func TestHandleTriggerEventDateScope(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ruleStore.Create(deliveredRule("depot-1"))
	require.NoError(t, err)
	require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: "depot-1", APIToken: "tok"}))

	// Wrong date: no match.
	event := deliveredEvent()
	event.DateLabel = "20250826"
	results, err := e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, results)

	// ISO datetime normalizing to the scoped date: fires.
	event.DateLabel = "2025-08-25T00:00:00Z"
	results, err = e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestHandleTriggerEventSpreadsheetScope(t *testing.T) {
	e := newTestEngine(t)
	rule := deliveredRule("depot-1")
	rule.ScopeSpreadsheet = "sheet-abc"
	_, err := e.ruleStore.Create(rule)
	require.NoError(t, err)
	require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: "depot-1", APIToken: "tok"}))

	event := deliveredEvent()
	event.SpreadsheetID = "sheet-other"
	results, err := e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, results)

	event.SpreadsheetID = "sheet-abc"
	results, err = e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHandleTriggerEventMissingTokenStillMatches(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ruleStore.Create(deliveredRule("depot-1"))
	require.NoError(t, err)
	// No credential stored for depot-1.

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), deliveredEvent())
	require.NoError(t, err)

	require.Len(t, results, 1, "matching proceeds without a token")
	assert.False(t, results[0].Success, "dispatch fails without a token")
	assert.Zero(t, e.sender.count(), "provider is never called without a token")
}

func TestHandleTriggerEventDisabledRuleSkipped(t *testing.T) {
	e := newTestEngine(t)
	rule := deliveredRule("depot-1")
	rule.Enabled = false
	_, err := e.ruleStore.Create(rule)
	require.NoError(t, err)

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), deliveredEvent())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHandleTriggerEventMultiTenantFanOut(t *testing.T) {
	e := newTestEngine(t)
	for _, tenant := range []string{"depot-1", "depot-2", "depot-3"} {
		_, err := e.ruleStore.Create(deliveredRule(tenant))
		require.NoError(t, err)
		require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: tenant, APIToken: "tok-" + tenant}))
	}

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), deliveredEvent())
	require.NoError(t, err)

	require.Len(t, results, 3)
	tenants := map[string]bool{}
	for _, r := range results {
		assert.True(t, r.Success)
		tenants[r.Tenant] = true
	}
	assert.Len(t, tenants, 3, "each tenant's rule dispatched once")
	assert.Equal(t, 3, e.sender.count())
}

func TestHandleTriggerEventProviderFailureIsolated(t *testing.T) {
	e := newTestEngine(t)
	e.sender.err = errors.New("provider down")
	_, err := e.ruleStore.Create(deliveredRule("depot-1"))
	require.NoError(t, err)
	require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: "depot-1", APIToken: "tok"}))

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), deliveredEvent())
	require.NoError(t, err, "a provider failure never fails the batch")
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestHandleTriggerEventEqualsRefiresOnResave(t *testing.T) {
	e := newTestEngine(t)
	rule := deliveredRule("depot-1")
	rule.Operator = rules.OperatorEquals
	_, err := e.ruleStore.Create(rule)
	require.NoError(t, err)
	require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: "depot-1", APIToken: "tok"}))

	// Re-save of an already-matching value: equals fires, changes_to would not.
	event := deliveredEvent()
	event.OldValue = "delivered"
	event.NewValue = "delivered"

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHandleTriggerEventChangesToIgnoresResave(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ruleStore.Create(deliveredRule("depot-1"))
	require.NoError(t, err)
	require.NoError(t, e.credStore.Put(&credentials.TenantCredential{Tenant: "depot-1", APIToken: "tok"}))

	event := deliveredEvent()
	event.OldValue = "delivered"
	event.NewValue = "delivered"

	results, err := e.ingestor.HandleTriggerEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, results)
}
