package integration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
)

// ConflictService lists conflicts and applies manual decisions
type ConflictService struct {
	conflicts  integration.SyncConflictRepository
	connectors integration.ConnectorRegistry
	idMapper   *IDMapper
	logger     *zap.Logger
}

// NewConflictService creates a ConflictService
func NewConflictService(
	conflicts integration.SyncConflictRepository,
	connectors integration.ConnectorRegistry,
	idMapper *IDMapper,
	logger *zap.Logger,
) *ConflictService {
	return &ConflictService{
		conflicts:  conflicts,
		connectors: connectors,
		idMapper:   idMapper,
		logger:     logger,
	}
}

// List returns conflicts matching the filter
func (s *ConflictService) List(ctx context.Context, tenantID uuid.UUID, filter integration.ConflictFilter) ([]integration.SyncConflict, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.conflicts.FindAll(ctx, tenantID, filter)
}

// Get returns one conflict
func (s *ConflictService) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncConflict, error) {
	return s.conflicts.FindByID(ctx, tenantID, id)
}

// Resolve applies the operator's choice to a pending conflict. The chosen
// value is written to the side that lost, and once the record has no pending
// conflicts left its mapping is marked synced so the next run does not see a
// conflict again.
func (s *ConflictService) Resolve(ctx context.Context, tenantID, id uuid.UUID, choice integration.Side) (*integration.SyncConflict, error) {
	c, err := s.conflicts.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := c.ResolveManually(choice); err != nil {
		return nil, err
	}

	// The losing side receives the resolved value
	loser, loserID := c.TargetSystem, c.TargetID
	if choice == integration.SideTarget {
		loser, loserID = c.SourceSystem, c.SourceID
	}
	conn, err := s.connectors.Get(loser)
	if err != nil {
		return nil, err
	}
	hash, err := s.writeValue(ctx, c, conn, loserID)
	if err != nil {
		return nil, err
	}

	if err := s.conflicts.Save(ctx, c); err != nil {
		return nil, err
	}

	pending, err := s.conflicts.FindPendingForRecord(ctx, tenantID, c.SourceSystem, c.SourceID, c.TargetSystem)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		link, err := s.idMapper.Find(ctx, tenantID, c.SourceSystem, c.SourceID, c.TargetSystem)
		if err != nil {
			return nil, err
		}
		if link != nil && hash != "" {
			if err := s.idMapper.MarkSynced(ctx, link, hash); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("Conflict resolved manually",
		zap.String("tenant_id", tenantID.String()),
		zap.String("conflict_id", c.ID.String()),
		zap.String("field", c.Field),
		zap.String("choice", string(choice)),
		zap.String("written_to", string(loser)),
	)
	return c, nil
}

// writeValue patches the field on the losing record and pushes it. It returns
// the content hash of what was written.
func (s *ConflictService) writeValue(ctx context.Context, c *integration.SyncConflict, conn integration.Connector, remoteID string) (string, error) {
	getter, ok := conn.(integration.Getter)
	if !ok {
		return "", fmt.Errorf("%w: %s cannot read records", integration.ErrOperationUnsupported, conn.System())
	}
	rec, err := getter.Get(ctx, c.TenantID, c.EntityType, remoteID)
	if err != nil {
		return "", err
	}
	entity, err := conn.Codec().Decode(*rec)
	if err != nil {
		return "", err
	}
	doc, err := integration.ToDocument(entity)
	if err != nil {
		return "", err
	}
	path, err := mapping.ParsePath(c.Field)
	if err != nil {
		return "", err
	}
	if err := path.Set(doc, c.ResolvedValue); err != nil {
		return "", err
	}
	patched, err := integration.FromDocument(c.EntityType, doc)
	if err != nil {
		return "", err
	}
	if _, err := conn.Push(ctx, integration.PushRequest{
		TenantID:   c.TenantID,
		EntityType: c.EntityType,
		Entity:     patched,
		RemoteID:   remoteID,
	}); err != nil {
		return "", err
	}
	return integration.ContentHash(patched)
}
