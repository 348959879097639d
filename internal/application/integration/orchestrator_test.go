package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

type orchestratorHarness struct {
	tenantID  uuid.UUID
	cfg       *integration.ConnectorConfig
	states    *memStates
	ids       *memIDMappings
	failures  *memFailures
	conflicts *memConflicts
	configs   *memConfigs
	mappings  *memMappings
	local     *fakeConnector
	store     *fakeConnector
	queue     *recordingQueue
	notifier  *MockNotifier
	idMapper  *IDMapper
	orch      *Orchestrator
}

func newOrchestratorHarness(t *testing.T, configure ...func(*integration.ConnectorConfig)) *orchestratorHarness {
	t.Helper()
	tenantID := uuid.New()
	cfg, err := integration.NewConnectorConfig(tenantID, "local to storefront", integration.SystemLocal, integration.SystemStorefront)
	require.NoError(t, err)
	for _, fn := range configure {
		fn(cfg)
	}

	h := &orchestratorHarness{
		tenantID:  tenantID,
		cfg:       cfg,
		states:    newMemStates(),
		ids:       newMemIDMappings(),
		failures:  &memFailures{},
		conflicts: &memConflicts{},
		configs:   newMemConfigs(cfg),
		mappings:  newMemMappings(),
		local:     newFakeConnector(integration.SystemLocal),
		store:     newFakeConnector(integration.SystemStorefront),
		queue:     &recordingQueue{},
		notifier:  new(MockNotifier),
	}
	logger := zap.NewNop()
	h.idMapper = NewIDMapper(h.ids, logger)
	h.orch = NewOrchestrator(OrchestratorDeps{
		Connectors: newMemRegistry(h.local, h.store),
		Configs:    h.configs,
		Mappings:   h.mappings,
		States:     h.states,
		Failures:   h.failures,
		Conflicts:  h.conflicts,
		IDMapper:   h.idMapper,
		Resolver:   NewDependencyResolver(h.idMapper, logger),
		Queue:      h.queue,
		Locker:     newKeyLocker(),
		Notifier:   h.notifier,
	}, OrchestratorConfig{Workers: 2, PageSize: 2}, logger)
	return h
}

func (h *orchestratorHarness) trigger(t *testing.T, et integration.EntityType, mode integration.SyncMode) *integration.SyncState {
	t.Helper()
	state, err := h.orch.Trigger(context.Background(), TriggerCommand{
		TenantID:    h.tenantID,
		ConnectorID: h.cfg.ID,
		EntityType:  et,
		Mode:        mode,
	})
	require.NoError(t, err)
	return state
}

func (h *orchestratorHarness) run(t *testing.T, et integration.EntityType, mode integration.SyncMode) *integration.SyncState {
	t.Helper()
	state := h.trigger(t, et, mode)
	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, state.ID))
	return h.state(t, state.ID)
}

func (h *orchestratorHarness) state(t *testing.T, id uuid.UUID) *integration.SyncState {
	t.Helper()
	state, err := h.states.FindByID(context.Background(), h.tenantID, id)
	require.NoError(t, err)
	return state
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func customerData(email, firstName string, updated time.Time) map[string]any {
	return map[string]any{
		"email":      email,
		"first_name": firstName,
		"last_name":  "Doe",
		"updated_at": updated.Format(time.RFC3339),
	}
}

func seedCustomers(h *orchestratorHarness, n int) {
	for i := 1; i <= n; i++ {
		id := "c" + string(rune('0'+i))
		h.local.add(integration.EntityTypeCustomer, id, customerData(id+"@example.com", "Name"+id, baseTime))
	}
}

// ---------------------------------------------------------------------------
// Admission
// ---------------------------------------------------------------------------

func TestOrchestrator_Trigger_RejectsSecondActiveRun(t *testing.T) {
	h := newOrchestratorHarness(t)

	first := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusPending, first.Status)

	_, err := h.orch.Trigger(context.Background(), TriggerCommand{
		TenantID:    h.tenantID,
		ConnectorID: h.cfg.ID,
		EntityType:  integration.EntityTypeCustomer,
		Mode:        integration.SyncModeIncremental,
	})
	assert.ErrorIs(t, err, integration.ErrSyncInProgress)
	assert.Equal(t, 1, h.queue.count())
	assert.Equal(t, 1, h.states.nonTerminalCount(first.LockKey()))

	// Another entity type has its own slot
	other := h.trigger(t, integration.EntityTypeProduct, integration.SyncModeFull)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestOrchestrator_Trigger_ConcurrentCallsAdmitOneRun(t *testing.T) {
	h := newOrchestratorHarness(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Trigger(context.Background(), TriggerCommand{
				TenantID:    h.tenantID,
				ConnectorID: h.cfg.ID,
				EntityType:  integration.EntityTypeOrder,
				Mode:        integration.SyncModeFull,
			})
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, integration.ErrSyncInProgress)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, h.states.nonTerminalCount(integration.SyncKey(h.tenantID, h.cfg.ID, integration.EntityTypeOrder)))
}

func TestOrchestrator_Trigger_IdempotencyKeyReturnsExistingRun(t *testing.T) {
	h := newOrchestratorHarness(t)
	cmd := TriggerCommand{
		TenantID:       h.tenantID,
		ConnectorID:    h.cfg.ID,
		EntityType:     integration.EntityTypeCustomer,
		Mode:           integration.SyncModeFull,
		IdempotencyKey: "client-key-1",
	}

	first, err := h.orch.Trigger(context.Background(), cmd)
	require.NoError(t, err)
	second, err := h.orch.Trigger(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.queue.count())
}

func TestOrchestrator_Trigger_Validation(t *testing.T) {
	h := newOrchestratorHarness(t)

	t.Run("invalid entity type", func(t *testing.T) {
		_, err := h.orch.Trigger(context.Background(), TriggerCommand{
			TenantID: h.tenantID, ConnectorID: h.cfg.ID, EntityType: "invoice", Mode: integration.SyncModeFull,
		})
		assert.ErrorIs(t, err, integration.ErrInvalidEntityType)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := h.orch.Trigger(context.Background(), TriggerCommand{
			TenantID: h.tenantID, ConnectorID: h.cfg.ID, EntityType: integration.EntityTypeOrder, Mode: "partial",
		})
		assert.ErrorIs(t, err, integration.ErrInvalidSyncMode)
	})

	t.Run("unknown connector", func(t *testing.T) {
		_, err := h.orch.Trigger(context.Background(), TriggerCommand{
			TenantID: h.tenantID, ConnectorID: uuid.New(), EntityType: integration.EntityTypeOrder, Mode: integration.SyncModeFull,
		})
		assert.ErrorIs(t, err, integration.ErrConnectorNotFound)
	})

	t.Run("reverse on one-way connector", func(t *testing.T) {
		_, err := h.orch.Trigger(context.Background(), TriggerCommand{
			TenantID: h.tenantID, ConnectorID: h.cfg.ID, EntityType: integration.EntityTypeOrder,
			Mode: integration.SyncModeFull, Scope: integration.SyncScope{Reverse: true},
		})
		assert.ErrorIs(t, err, integration.ErrInvalidDirection)
	})
}

func TestOrchestrator_Trigger_DisabledConnector(t *testing.T) {
	h := newOrchestratorHarness(t, func(c *integration.ConnectorConfig) { c.Enabled = false })

	_, err := h.orch.Trigger(context.Background(), TriggerCommand{
		TenantID:    h.tenantID,
		ConnectorID: h.cfg.ID,
		EntityType:  integration.EntityTypeCustomer,
		Mode:        integration.SyncModeFull,
	})
	assert.ErrorIs(t, err, integration.ErrConnectorDisabled)
	assert.Equal(t, 0, h.queue.count())
}

func TestOrchestrator_Trigger_EnqueueFailureFailsRun(t *testing.T) {
	h := newOrchestratorHarness(t)
	h.queue.err = errors.New("queue full")

	_, err := h.orch.Trigger(context.Background(), TriggerCommand{
		TenantID:    h.tenantID,
		ConnectorID: h.cfg.ID,
		EntityType:  integration.EntityTypeCustomer,
		Mode:        integration.SyncModeFull,
	})
	require.Error(t, err)

	// The slot is released so the next trigger is admitted
	h.queue.err = nil
	h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

func TestOrchestrator_Execute_FullSyncIsIdempotent(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 3)

	first := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusSuccess, first.Status)
	assert.Equal(t, 3, first.Processed)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 3, h.ids.count())
	require.Len(t, h.store.pushed(), 3)
	require.NotNil(t, first.Checkpoint)
	assert.Equal(t, 2, first.Checkpoint.Page)

	second := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusSuccess, second.Status)
	assert.Equal(t, 3, second.Processed)
	assert.Equal(t, 3, second.Unchanged)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Len(t, h.store.pushed(), 3, "unchanged records are not written again")

	// A changed record is updated in place
	h.local.add(integration.EntityTypeCustomer, "c2", customerData("c2@example.com", "Renamed", baseTime.Add(time.Hour)))
	third := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, 1, third.Updated)
	assert.Equal(t, 2, third.Unchanged)
	pushes := h.store.pushed()
	require.Len(t, pushes, 4)
	assert.Equal(t, h.ids.get(h.tenantID, integration.SystemLocal, "c2", integration.SystemStorefront).TargetID, pushes[3].RemoteID)
}

func TestOrchestrator_Execute_IsNoopForFinishedRun(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 1)
	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)

	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, state.ID))
	assert.Len(t, h.local.fetchedPages(), 2)
}

func TestOrchestrator_Execute_ResumesAfterLastCheckpoint(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 6)

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	h.local.onFetch = func(page int) {
		if page == 3 {
			once.Do(cancel)
		}
	}

	state := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	err := h.orch.Execute(ctx, h.tenantID, state.ID)
	require.ErrorIs(t, err, context.Canceled)

	interrupted := h.state(t, state.ID)
	assert.Equal(t, integration.SyncStatusRunning, interrupted.Status)
	require.NotNil(t, interrupted.Checkpoint)
	assert.Equal(t, 2, interrupted.Checkpoint.Page)
	assert.Equal(t, "c4", interrupted.Checkpoint.LastExternalID)
	assert.Equal(t, 4, interrupted.Processed)

	resumed, err := h.orch.Resume(context.Background(), h.tenantID, state.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, resumed.ResumePage())

	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, state.ID))

	final := h.state(t, state.ID)
	assert.Equal(t, integration.SyncStatusSuccess, final.Status)
	assert.Equal(t, 6, final.Created)
	assert.Equal(t, []int{1, 2, 3, 3, 4}, h.local.fetchedPages(), "pages before the checkpoint are not fetched again")
	assert.Len(t, h.store.pushed(), 6)
}

func TestOrchestrator_RecoverInterrupted(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 1)
	pending := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	finished := h.run(t, integration.EntityTypeProduct, integration.SyncModeFull)
	require.True(t, finished.Status.IsTerminal())

	before := h.queue.count()
	n, err := h.orch.RecoverInterrupted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, before+1, h.queue.count())
	assert.Equal(t, pending.ID, h.queue.jobs[len(h.queue.jobs)-1])
}

func TestOrchestrator_Execute_CancelBetweenPages(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 6)

	state := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	h.local.onFetch = func(page int) {
		if page == 2 {
			_, err := h.orch.Cancel(context.Background(), h.tenantID, state.ID)
			assert.NoError(t, err)
		}
	}

	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, state.ID))

	final := h.state(t, state.ID)
	assert.Equal(t, integration.SyncStatusCancelled, final.Status)
	assert.Equal(t, 4, final.Processed, "the in-flight page completes")
	assert.Equal(t, []int{1, 2}, h.local.fetchedPages())
}

func TestOrchestrator_Cancel_RequiresRunningRun(t *testing.T) {
	h := newOrchestratorHarness(t)
	state := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)

	_, err := h.orch.Cancel(context.Background(), h.tenantID, state.ID)
	assert.ErrorIs(t, err, integration.ErrInvalidTransition)
}

func TestOrchestrator_Execute_OrderResolvesCustomerDependency(t *testing.T) {
	orderData := map[string]any{
		"number":         "1001",
		"customer_id":    "c-9",
		"customer_email": "Jane@Example.com",
		"customer_name":  "Jane Doe",
		"currency":       "USD",
		"total":          "25.00",
		"line_items": []any{
			map[string]any{"sku": "SKU-1", "qty": 1, "unit_price": "25.00"},
		},
		"updated_at": baseTime.Format(time.RFC3339),
	}

	t.Run("creates missing customer first", func(t *testing.T) {
		h := newOrchestratorHarness(t)
		h.local.put(integration.EntityTypeCustomer, "c-9", customerData("jane@example.com", "Jane", baseTime))
		h.local.add(integration.EntityTypeOrder, "123", orderData)

		state := h.run(t, integration.EntityTypeOrder, integration.SyncModeFull)
		assert.Equal(t, integration.SyncStatusSuccess, state.Status)

		customers := h.store.pushedOf(integration.EntityTypeCustomer)
		require.Len(t, customers, 1)
		assert.Equal(t, "jane@example.com", customers[0].Entity.(*integration.Customer).Email)

		orders := h.store.pushedOf(integration.EntityTypeOrder)
		require.Len(t, orders, 1)
		customerLink := h.ids.get(h.tenantID, integration.SystemLocal, "c-9", integration.SystemStorefront)
		require.NotNil(t, customerLink)
		assert.Equal(t, customerLink.TargetID, orders[0].Entity.(*integration.Order).CustomerID)

		orderLink := h.ids.get(h.tenantID, integration.SystemLocal, "123", integration.SystemStorefront)
		require.NotNil(t, orderLink)
		assert.NotEmpty(t, orderLink.LastSyncedHash)
	})

	t.Run("matches existing customer by email", func(t *testing.T) {
		h := newOrchestratorHarness(t)
		h.store.put(integration.EntityTypeCustomer, "cust-77", map[string]any{"email": "jane@example.com"})
		h.local.add(integration.EntityTypeOrder, "123", orderData)

		state := h.run(t, integration.EntityTypeOrder, integration.SyncModeFull)
		assert.Equal(t, integration.SyncStatusSuccess, state.Status)

		assert.Empty(t, h.store.pushedOf(integration.EntityTypeCustomer))
		orders := h.store.pushedOf(integration.EntityTypeOrder)
		require.Len(t, orders, 1)
		assert.Equal(t, "cust-77", orders[0].Entity.(*integration.Order).CustomerID)
		assert.Equal(t, "cust-77", h.ids.get(h.tenantID, integration.SystemLocal, "c-9", integration.SystemStorefront).TargetID)
	})

	t.Run("concurrent orders of one customer create it once", func(t *testing.T) {
		h := newOrchestratorHarness(t)
		h.store.noLookup = true
		for _, id := range []string{"201", "202"} {
			doc := make(map[string]any, len(orderData))
			for k, v := range orderData {
				doc[k] = v
			}
			doc["number"] = id
			h.local.add(integration.EntityTypeOrder, id, doc)
		}

		state := h.run(t, integration.EntityTypeOrder, integration.SyncModeFull)
		assert.Equal(t, 2, state.Created)
		assert.Len(t, h.store.pushedOf(integration.EntityTypeCustomer), 1)
	})
}

func TestOrchestrator_Execute_PartialFailureKeepsFailedRecords(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 3)
	h.store.pushErrs["c2"] = integration.NewValidationError("email rejected",
		integration.FieldError{Field: "email", Message: "domain not allowed"})

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusPartialFailure, state.Status)
	assert.Equal(t, 2, state.Created)
	assert.Equal(t, 1, state.Failed)
	require.Len(t, state.Errors, 1)
	assert.Equal(t, "c2", state.Errors[0].EntityID)
	assert.Equal(t, integration.ErrorKindValidation, state.Errors[0].Kind)
	assert.NotEmpty(t, state.Errors[0].Remediation)

	open, err := h.failures.FindUnresolved(context.Background(), h.tenantID, h.cfg.ID, integration.EntityTypeCustomer)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "c2", open[0].ExternalID)
	assert.False(t, open[0].Retryable)

	// Fix the cause and retry the single record
	delete(h.store.pushErrs, "c2")
	retry := NewRetryService(h.failures, h.orch, zap.NewNop())
	retried, err := retry.RetryRecord(context.Background(), h.tenantID, open[0].ID)
	require.NoError(t, err)
	assert.Equal(t, integration.TriggerRetry, retried.Trigger)
	assert.Equal(t, []string{"c2"}, retried.Scope.IDs)
	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, retried.ID))

	final := h.state(t, retried.ID)
	assert.Equal(t, integration.SyncStatusSuccess, final.Status)
	assert.Equal(t, 1, final.Processed)
	assert.Equal(t, 1, final.Created)

	open, err = h.failures.FindUnresolved(context.Background(), h.tenantID, h.cfg.ID, integration.EntityTypeCustomer)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestOrchestrator_Execute_SkipsTransientPageFailure(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 4)
	h.local.fetchErrs[1] = integration.NewNetworkError("connection reset", nil)

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusPartialFailure, state.Status)
	assert.Equal(t, 2, state.Created)
	assert.Equal(t, 1, state.Failed)
	require.NotEmpty(t, state.Errors)
	assert.Equal(t, "page:1", state.Errors[0].EntityID)
}

func TestOrchestrator_Execute_PersistentFetchFailureFailsRun(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 2)
	h.local.fetchErrs[1] = errors.New("unexpected response")
	h.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n integration.Notification) bool {
		return n.Kind == integration.NotificationRunFailed
	})).Return(nil).Once()

	state := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	err := h.orch.Execute(context.Background(), h.tenantID, state.ID)
	require.Error(t, err)

	final := h.state(t, state.ID)
	assert.Equal(t, integration.SyncStatusFailed, final.Status)
	h.notifier.AssertExpectations(t)
}

func TestOrchestrator_Execute_InvalidMappingFailsBeforeFetch(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 2)
	fm, err := integration.NewFieldMapping(h.tenantID, "broken", integration.SystemLocal, integration.SystemStorefront,
		integration.EntityTypeCustomer, []integration.FieldMap{
			{SourcePath: "email", TargetPath: "email", Transforms: []integration.Transformation{{Kind: "explode"}}},
		})
	require.NoError(t, err)
	require.NoError(t, h.mappings.Save(context.Background(), fm))

	h.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n integration.Notification) bool {
		return n.Kind == integration.NotificationRunFailed &&
			n.Details["kind"] == string(integration.ErrorKindMapping) &&
			n.Details["remediation"] != ""
	})).Return(nil).Once()

	state := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	err = h.orch.Execute(context.Background(), h.tenantID, state.ID)
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindMapping, integration.KindOf(err))

	final := h.state(t, state.ID)
	assert.Equal(t, integration.SyncStatusFailed, final.Status)
	assert.Empty(t, h.local.fetchedPages())
	assert.Empty(t, h.store.pushed())
	h.notifier.AssertExpectations(t)
}

func TestOrchestrator_Execute_AppliesFieldMapping(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 1)
	fm, err := integration.NewFieldMapping(h.tenantID, "customers", integration.SystemLocal, integration.SystemStorefront,
		integration.EntityTypeCustomer, []integration.FieldMap{
			{SourcePath: "email", TargetPath: "contact.email", Transforms: []integration.Transformation{{Kind: integration.TransformUppercase}}},
		})
	require.NoError(t, err)
	require.NoError(t, h.mappings.Save(context.Background(), fm))

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusSuccess, state.Status)

	pushes := h.store.pushed()
	require.Len(t, pushes, 1)
	contact, ok := pushes[0].Fields["contact"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "C1@EXAMPLE.COM", contact["email"])
}

func TestOrchestrator_Execute_PreflightRefreshesCredentials(t *testing.T) {
	t.Run("refresh recovers", func(t *testing.T) {
		h := newOrchestratorHarness(t)
		seedCustomers(h, 1)
		h.store.testErrs = []error{integration.NewAuthError("token expired", nil)}

		state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
		assert.Equal(t, integration.SyncStatusSuccess, state.Status)
		assert.Equal(t, 1, h.store.refreshes)
	})

	t.Run("still unauthorized", func(t *testing.T) {
		h := newOrchestratorHarness(t)
		seedCustomers(h, 1)
		h.store.testErrs = []error{
			integration.NewAuthError("token expired", nil),
			integration.NewAuthError("token revoked", nil),
		}
		h.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

		state := h.trigger(t, integration.EntityTypeCustomer, integration.SyncModeFull)
		err := h.orch.Execute(context.Background(), h.tenantID, state.ID)
		require.Error(t, err)
		assert.Equal(t, integration.ErrorKindAuth, integration.KindOf(err))
		assert.Equal(t, integration.SyncStatusFailed, h.state(t, state.ID).Status)
		assert.Empty(t, h.local.fetchedPages())
	})
}

func TestOrchestrator_Execute_IncrementalUsesLastCompletedStart(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 1)
	first := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	require.NotNil(t, first.StartedAt)

	capture := &capturingConnector{fakeConnector: h.local}
	h.orch.Connectors.Register(capture)

	h.run(t, integration.EntityTypeCustomer, integration.SyncModeIncremental)
	since := capture.lastSince()
	require.NotNil(t, since)
	assert.True(t, since.Equal(*first.StartedAt))
}

// capturingConnector records the ModifiedSince of every fetch
type capturingConnector struct {
	*fakeConnector
	mu    sync.Mutex
	since *time.Time
}

func (c *capturingConnector) FetchPage(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	c.mu.Lock()
	c.since = req.ModifiedSince
	c.mu.Unlock()
	return c.fakeConnector.FetchPage(ctx, req)
}

func (c *capturingConnector) lastSince() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.since
}

func TestOrchestrator_Execute_DryRunWritesNothing(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 3)

	state, err := h.orch.Trigger(context.Background(), TriggerCommand{
		TenantID:    h.tenantID,
		ConnectorID: h.cfg.ID,
		EntityType:  integration.EntityTypeCustomer,
		Mode:        integration.SyncModeFull,
		DryRun:      true,
	})
	require.NoError(t, err)
	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, state.ID))

	final := h.state(t, state.ID)
	assert.Equal(t, integration.SyncStatusSuccess, final.Status)
	assert.True(t, final.DryRun)
	assert.Empty(t, h.store.pushed())
	assert.Equal(t, 0, h.ids.count())
	require.Len(t, final.Preview, 3)
	for _, p := range final.Preview {
		assert.Equal(t, integration.PreviewCreate, p.Action)
		assert.NotEmpty(t, p.Payload["email"])
	}
}

// ---------------------------------------------------------------------------
// Two-way conflicts
// ---------------------------------------------------------------------------

func twoWay(strategy integration.ResolutionStrategy) func(*integration.ConnectorConfig) {
	return func(c *integration.ConnectorConfig) {
		c.Direction = integration.SyncDirectionTwoWay
		c.Policies[integration.EntityTypeCustomer] = integration.EntityPolicy{
			EntityType: integration.EntityTypeCustomer,
			Strategy:   strategy,
		}
	}
}

// divergeCustomer syncs c1 once and then edits it on both sides
func divergeCustomer(t *testing.T, h *orchestratorHarness, localAt, remoteAt time.Time) string {
	t.Helper()
	h.local.add(integration.EntityTypeCustomer, "c1", customerData("ann@example.com", "Ann", baseTime))
	h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	link := h.ids.get(h.tenantID, integration.SystemLocal, "c1", integration.SystemStorefront)
	require.NotNil(t, link)

	h.local.add(integration.EntityTypeCustomer, "c1", customerData("ann@example.com", "Ann-Local", localAt))
	h.store.put(integration.EntityTypeCustomer, link.TargetID, customerData("ann@example.com", "Ann-Remote", remoteAt))
	return link.TargetID
}

func TestOrchestrator_TwoWay_MostRecentWins(t *testing.T) {
	h := newOrchestratorHarness(t, twoWay(integration.ResolutionMostRecentWins))
	remoteID := divergeCustomer(t, h, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusSuccess, state.Status)
	assert.Equal(t, 1, state.Updated)

	// The newer remote copy is written back to the source
	writeBacks := h.local.pushed()
	require.Len(t, writeBacks, 1)
	assert.Equal(t, "c1", writeBacks[0].RemoteID)
	assert.Equal(t, "Ann-Remote", writeBacks[0].Entity.(*integration.Customer).FirstName)
	assert.Len(t, h.store.pushed(), 1, "target is not overwritten")

	conflicts := h.conflicts.all()
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "first_name", c.Field)
	assert.Equal(t, "Ann-Local", c.LocalValue)
	assert.Equal(t, "Ann-Remote", c.RemoteValue)
	assert.Equal(t, "Ann-Remote", c.ResolvedValue)
	assert.Equal(t, integration.ResolutionTargetWins, c.Strategy)
	assert.Equal(t, integration.ConflictStatusResolved, c.Status)
	assert.Equal(t, integration.SystemLocal, c.SourceSystem)
	assert.Equal(t, remoteID, c.TargetID)

	// Both sides now agree; the next run has nothing to do
	h.local.add(integration.EntityTypeCustomer, "c1", customerData("ann@example.com", "Ann-Remote", baseTime.Add(2*time.Hour)))
	next := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, 1, next.Unchanged)
}

func TestOrchestrator_TwoWay_SourceWinsPushesLocalCopy(t *testing.T) {
	h := newOrchestratorHarness(t, twoWay(integration.ResolutionSourceWins))
	remoteID := divergeCustomer(t, h, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, 1, state.Updated)

	pushes := h.store.pushed()
	require.Len(t, pushes, 2)
	assert.Equal(t, remoteID, pushes[1].RemoteID)
	assert.Equal(t, "Ann-Local", pushes[1].Entity.(*integration.Customer).FirstName)
	assert.Empty(t, h.local.pushed())
}

func TestOrchestrator_TwoWay_ManualDefersToReview(t *testing.T) {
	h := newOrchestratorHarness(t, twoWay(integration.ResolutionManual))
	divergeCustomer(t, h, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Equal(t, integration.SyncStatusSuccess, state.Status)
	assert.Equal(t, 1, state.Unchanged)
	assert.Len(t, h.store.pushed(), 1)
	assert.Empty(t, h.local.pushed())

	conflicts := h.conflicts.all()
	require.Len(t, conflicts, 1)
	assert.Equal(t, integration.ConflictStatusPendingReview, conflicts[0].Status)
	assert.Nil(t, conflicts[0].ResolvedValue)

	// A pending conflict is not detected twice
	h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	assert.Len(t, h.conflicts.all(), 1)
}

func TestOrchestrator_TwoWay_ReverseRunReadsTarget(t *testing.T) {
	h := newOrchestratorHarness(t, twoWay(integration.ResolutionSourceWins))
	h.store.add(integration.EntityTypeCustomer, "sf-1", customerData("bob@example.com", "Bob", baseTime))

	state, err := h.orch.Trigger(context.Background(), TriggerCommand{
		TenantID:    h.tenantID,
		ConnectorID: h.cfg.ID,
		EntityType:  integration.EntityTypeCustomer,
		Mode:        integration.SyncModeFull,
		Scope:       integration.SyncScope{Reverse: true},
	})
	require.NoError(t, err)
	require.NoError(t, h.orch.Execute(context.Background(), h.tenantID, state.ID))

	assert.Equal(t, integration.SyncStatusSuccess, h.state(t, state.ID).Status)
	require.Len(t, h.local.pushed(), 1)
	link := h.ids.get(h.tenantID, integration.SystemStorefront, "sf-1", integration.SystemLocal)
	require.NotNil(t, link)

	// The forward direction finds the same correlation
	found, err := h.idMapper.Find(context.Background(), h.tenantID, integration.SystemLocal, link.TargetID, integration.SystemStorefront)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "sf-1", found.CounterpartID())
}

func TestOrchestrator_Execute_NotifiesObservers(t *testing.T) {
	h := newOrchestratorHarness(t)
	seedCustomers(h, 1)
	obs := &recordingObserver{}
	h.orch.AddObserver(obs)

	state := h.run(t, integration.EntityTypeCustomer, integration.SyncModeFull)
	require.Len(t, obs.finished, 1)
	assert.Equal(t, state.ID, obs.finished[0].ID)
	assert.Equal(t, integration.SyncStatusSuccess, obs.finished[0].Status)
}

type recordingObserver struct {
	finished []integration.SyncState
}

func (o *recordingObserver) RunFinished(_ context.Context, state *integration.SyncState) {
	o.finished = append(o.finished, *state)
}
