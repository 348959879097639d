package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
)

// OrchestratorConfig holds run execution settings
type OrchestratorConfig struct {
	// Workers bounds concurrent record processing within a page
	Workers int
	// PageSize is requested from connectors on every fetch
	PageSize int
	// LockTTL bounds how long a crashed worker can hold a sync key
	LockTTL time.Duration
}

// DefaultOrchestratorConfig returns the default configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Workers:  5,
		PageSize: 50,
		LockTTL:  30 * time.Minute,
	}
}

// OrchestratorDeps groups the collaborators of the orchestrator
type OrchestratorDeps struct {
	Connectors integration.ConnectorRegistry
	Configs    integration.ConnectorConfigRepository
	Mappings   integration.FieldMappingRepository
	States     integration.SyncStateRepository
	Failures   integration.FailedRecordRepository
	Conflicts  integration.SyncConflictRepository
	IDMapper   *IDMapper
	Resolver   *DependencyResolver
	Engine     *mapping.Engine
	Queue      JobQueue
	Locker     SyncLocker
	Notifier   integration.Notifier
	Metrics    SyncMetrics
}

// Orchestrator coordinates sync runs: it admits one run per
// (tenant, connector, entity type), hands it to the worker pool and executes
// it page by page with checkpoints.
type Orchestrator struct {
	OrchestratorDeps
	config    OrchestratorConfig
	observers []RunObserver
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps OrchestratorDeps, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = 5
	}
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Minute
	}
	if deps.Engine == nil {
		deps.Engine = mapping.NewEngine(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics
	}
	return &Orchestrator{
		OrchestratorDeps: deps,
		config:           config,
		logger:           logger,
	}
}

// AddObserver registers a RunObserver
func (o *Orchestrator) AddObserver(obs RunObserver) {
	o.observers = append(o.observers, obs)
}

// ---------------------------------------------------------------------------
// Admission
// ---------------------------------------------------------------------------

// TriggerCommand requests a run
type TriggerCommand struct {
	TenantID       uuid.UUID
	ConnectorID    uuid.UUID
	EntityType     integration.EntityType
	Mode           integration.SyncMode
	DryRun         bool
	Scope          integration.SyncScope
	IdempotencyKey string
	Trigger        integration.TriggerSource
}

// Trigger admits a run and enqueues it. A second run for a key that already
// has a non-terminal run is rejected with ErrSyncInProgress. A repeated
// idempotency key returns the run it created first.
func (o *Orchestrator) Trigger(ctx context.Context, cmd TriggerCommand) (*integration.SyncState, error) {
	if !cmd.EntityType.IsValid() {
		return nil, integration.ErrInvalidEntityType
	}
	if !cmd.Mode.IsValid() {
		return nil, integration.ErrInvalidSyncMode
	}
	if cmd.Trigger == "" {
		cmd.Trigger = integration.TriggerAPI
	}

	if cmd.IdempotencyKey != "" {
		existing, err := o.States.FindByIdempotencyKey(ctx, cmd.TenantID, cmd.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, integration.ErrSyncNotFound) {
			return nil, err
		}
	}

	cfg, err := o.Configs.FindByID(ctx, cmd.TenantID, cmd.ConnectorID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, integration.ErrConnectorDisabled
	}
	if cmd.Scope.Reverse && !cfg.IsTwoWay() {
		return nil, fmt.Errorf("%w: reverse runs need a two-way connector", integration.ErrInvalidDirection)
	}

	key := integration.SyncKey(cmd.TenantID, cmd.ConnectorID, cmd.EntityType)
	release, acquired, err := o.Locker.TryLock(ctx, key, o.config.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, integration.ErrSyncInProgress
	}
	defer release()

	active, err := o.States.FindActive(ctx, cmd.TenantID, cmd.ConnectorID, cmd.EntityType)
	if err != nil && !errors.Is(err, integration.ErrSyncNotFound) {
		return nil, err
	}
	if active != nil {
		return nil, integration.ErrSyncInProgress
	}

	state, err := integration.NewSyncState(cmd.TenantID, cmd.ConnectorID, cmd.EntityType, cmd.Mode, cmd.Trigger)
	if err != nil {
		return nil, err
	}
	state.DryRun = cmd.DryRun
	state.Scope = cmd.Scope
	state.IdempotencyKey = cmd.IdempotencyKey
	if err := o.States.Create(ctx, state); err != nil {
		return nil, err
	}

	if err := o.Queue.Enqueue(ctx, state.TenantID, state.ID); err != nil {
		o.logger.Error("Failed to enqueue sync run",
			zap.String("sync_id", state.ID.String()),
			zap.Error(err),
		)
		_ = state.Fail(integration.NewRunError("", fmt.Errorf("enqueue: %w", err)))
		if saveErr := o.States.Save(ctx, state); saveErr != nil {
			o.logger.Error("Failed to save unqueued sync run", zap.Error(saveErr))
		}
		return nil, err
	}

	o.logger.Info("Sync run queued",
		zap.String("tenant_id", state.TenantID.String()),
		zap.String("sync_id", state.ID.String()),
		zap.String("connector_id", state.ConnectorID.String()),
		zap.String("entity_type", string(state.EntityType)),
		zap.String("mode", string(state.Mode)),
		zap.String("trigger", string(state.Trigger)),
		zap.Bool("dry_run", state.DryRun),
		zap.Int("scoped_ids", len(state.Scope.IDs)),
	)
	return state, nil
}

// Status returns one run
func (o *Orchestrator) Status(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error) {
	return o.States.FindByID(ctx, tenantID, syncID)
}

// List returns runs matching the filter
func (o *Orchestrator) List(ctx context.Context, tenantID uuid.UUID, filter integration.SyncStateFilter) ([]integration.SyncState, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return o.States.FindAll(ctx, tenantID, filter)
}

// Cancel asks a running run to stop. In-flight page work finishes, no new
// page is started and the run ends as cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error) {
	state, err := o.States.FindByID(ctx, tenantID, syncID)
	if err != nil {
		return nil, err
	}
	if err := state.RequestCancel(); err != nil {
		return nil, err
	}
	if err := o.States.MarkCancelRequested(ctx, tenantID, syncID); err != nil {
		return nil, err
	}
	o.logger.Info("Sync run cancel requested",
		zap.String("tenant_id", tenantID.String()),
		zap.String("sync_id", syncID.String()),
	)
	return state, nil
}

// Resume re-enqueues an interrupted run. It continues after its last
// checkpointed page.
func (o *Orchestrator) Resume(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error) {
	state, err := o.States.FindByID(ctx, tenantID, syncID)
	if err != nil {
		return nil, err
	}
	if !state.CanResume() {
		return nil, integration.ErrSyncNotResumable
	}
	if err := o.Queue.Enqueue(ctx, tenantID, syncID); err != nil {
		return nil, err
	}
	o.logger.Info("Sync run resume queued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("sync_id", syncID.String()),
		zap.Int("resume_page", state.ResumePage()),
	)
	return state, nil
}

// RecoverInterrupted re-enqueues every non-terminal run. Runs still executing
// on another worker keep their lock and are skipped by Execute.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) (int, error) {
	states, err := o.States.FindNonTerminal(ctx)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for i := range states {
		s := &states[i]
		if err := o.Queue.Enqueue(ctx, s.TenantID, s.ID); err != nil {
			o.logger.Warn("Failed to re-enqueue interrupted sync run",
				zap.String("sync_id", s.ID.String()),
				zap.Error(err),
			)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		o.logger.Info("Interrupted sync runs re-enqueued", zap.Int("count", recovered))
	}
	return recovered, nil
}
