package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// Link is a correlation found for a record. Reversed is set when the record
// was found on the target side of the stored row.
type Link struct {
	Mapping  *integration.IDMapping
	Reversed bool
}

// CounterpartID returns the identifier on the other system
func (l *Link) CounterpartID() string {
	if l.Reversed {
		return l.Mapping.SourceID
	}
	return l.Mapping.TargetID
}

// Oriented returns a copy of the row with SourceSystem == source
func (l *Link) Oriented(source integration.SystemCode) *integration.IDMapping {
	m := *l.Mapping
	if m.SourceSystem != source {
		m.SourceSystem, m.TargetSystem = m.TargetSystem, m.SourceSystem
		m.SourceID, m.TargetID = m.TargetID, m.SourceID
	}
	return &m
}

// IDMapper reads and writes cross-system ID correlations. A row created in
// one direction also serves lookups in the other.
type IDMapper struct {
	repo   integration.IDMappingRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewIDMapper creates an IDMapper
func NewIDMapper(repo integration.IDMappingRepository, logger *zap.Logger) *IDMapper {
	return &IDMapper{repo: repo, logger: logger, now: time.Now}
}

// Find returns the correlation of fromID in system from with system to, or nil
func (m *IDMapper) Find(ctx context.Context, tenantID uuid.UUID, from integration.SystemCode, fromID string, to integration.SystemCode) (*Link, error) {
	row, err := m.repo.FindBySource(ctx, tenantID, from, fromID, to)
	if err == nil {
		return &Link{Mapping: row}, nil
	}
	if !errors.Is(err, integration.ErrIDMappingNotFound) {
		return nil, err
	}
	row, err = m.repo.FindByTarget(ctx, tenantID, from, fromID, to)
	if err == nil {
		return &Link{Mapping: row, Reversed: true}, nil
	}
	if errors.Is(err, integration.ErrIDMappingNotFound) {
		return nil, nil
	}
	return nil, err
}

// ResolveID implements the mapping engine's lookup resolver. It never writes.
func (m *IDMapper) ResolveID(ctx context.Context, tenantID uuid.UUID, _ integration.EntityType, from integration.SystemCode, fromID string, to integration.SystemCode) (string, bool, error) {
	link, err := m.Find(ctx, tenantID, from, fromID, to)
	if err != nil || link == nil {
		return "", false, err
	}
	return link.CounterpartID(), true, nil
}

// Record persists a new correlation with the hash of the content written.
// When a concurrent writer created the same row first, that row wins and is
// returned.
func (m *IDMapper) Record(
	ctx context.Context,
	tenantID uuid.UUID,
	entityType integration.EntityType,
	from integration.SystemCode,
	fromID string,
	to integration.SystemCode,
	toID string,
	hash string,
) (*integration.IDMapping, error) {
	row, err := integration.NewIDMapping(tenantID, entityType, from, fromID, to, toID)
	if err != nil {
		return nil, err
	}
	row.MarkSynced(hash, m.now())

	err = m.repo.Create(ctx, row)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, integration.ErrIDMappingExists) {
		return nil, err
	}

	existing, findErr := m.repo.FindBySource(ctx, tenantID, from, fromID, to)
	if findErr != nil {
		return nil, findErr
	}
	if existing.TargetID != toID {
		m.logger.Warn("ID mapping created concurrently with a different target",
			zap.String("tenant_id", tenantID.String()),
			zap.String("entity_type", string(entityType)),
			zap.String("source_system", string(from)),
			zap.String("source_id", fromID),
			zap.String("kept_target_id", existing.TargetID),
			zap.String("dropped_target_id", toID),
		)
		return existing, nil
	}
	existing.MarkSynced(hash, m.now())
	if err := m.repo.UpdateSynced(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// MarkSynced stores the hash of the content that now exists on both sides
func (m *IDMapper) MarkSynced(ctx context.Context, link *Link, hash string) error {
	link.Mapping.MarkSynced(hash, m.now())
	return m.repo.UpdateSynced(ctx, link.Mapping)
}
