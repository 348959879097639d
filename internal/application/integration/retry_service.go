package integration

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// RetryService re-runs failed records as targeted incremental runs
type RetryService struct {
	failures     integration.FailedRecordRepository
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewRetryService creates a RetryService
func NewRetryService(failures integration.FailedRecordRepository, orchestrator *Orchestrator, logger *zap.Logger) *RetryService {
	return &RetryService{failures: failures, orchestrator: orchestrator, logger: logger}
}

// ListUnresolved returns the open failures of a connector and entity type
func (s *RetryService) ListUnresolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) ([]integration.FailedRecord, error) {
	if !entityType.IsValid() {
		return nil, integration.ErrInvalidEntityType
	}
	return s.failures.FindUnresolved(ctx, tenantID, connectorID, entityType)
}

// RetryRecord retries one failed record
func (s *RetryService) RetryRecord(ctx context.Context, tenantID, failedRecordID uuid.UUID) (*integration.SyncState, error) {
	rec, err := s.failures.FindByID(ctx, tenantID, failedRecordID)
	if err != nil {
		return nil, err
	}
	if rec.ResolvedAt != nil {
		return nil, integration.NewDuplicateError("failed record is already resolved")
	}
	return s.trigger(ctx, tenantID, rec.ConnectorID, rec.EntityType, []string{rec.ExternalID})
}

// RetryAll retries every unresolved failure of a connector and entity type.
// Non-retryable failures are retried too: the operator asked for it after
// fixing the cause.
func (s *RetryService) RetryAll(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*integration.SyncState, error) {
	if !entityType.IsValid() {
		return nil, integration.ErrInvalidEntityType
	}
	recs, err := s.failures.FindUnresolved(ctx, tenantID, connectorID, entityType)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, integration.ErrFailedRecordNotFound
	}
	seen := make(map[string]struct{}, len(recs))
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.ExternalID]; ok {
			continue
		}
		seen[r.ExternalID] = struct{}{}
		ids = append(ids, r.ExternalID)
	}
	return s.trigger(ctx, tenantID, connectorID, entityType, ids)
}

func (s *RetryService) trigger(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType, ids []string) (*integration.SyncState, error) {
	state, err := s.orchestrator.Trigger(ctx, TriggerCommand{
		TenantID:    tenantID,
		ConnectorID: connectorID,
		EntityType:  entityType,
		Mode:        integration.SyncModeIncremental,
		Scope:       integration.SyncScope{IDs: ids},
		Trigger:     integration.TriggerRetry,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Retry run queued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("sync_id", state.ID.String()),
		zap.Int("records", len(ids)),
	)
	return state, nil
}
