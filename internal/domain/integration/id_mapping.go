package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// IDMapping Entity
// ---------------------------------------------------------------------------

// IDMapping correlates a record's identifier in one system with its identifier
// in another. It is unique per (tenant, source system, source ID, target system).
type IDMapping struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	EntityType   EntityType
	SourceSystem SystemCode
	SourceID     string
	TargetSystem SystemCode
	TargetID     string
	// LastSyncedHash is the canonical content hash written on the last successful sync
	LastSyncedHash string
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewIDMapping creates a correlation row
func NewIDMapping(tenantID uuid.UUID, entityType EntityType, sourceSystem SystemCode, sourceID string, targetSystem SystemCode, targetID string) (*IDMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if !sourceSystem.IsValid() || !targetSystem.IsValid() || sourceID == "" || targetID == "" {
		return nil, ErrInvalidSystemCode
	}
	now := time.Now()
	return &IDMapping{
		ID:           uuid.New(),
		TenantID:     tenantID,
		EntityType:   entityType,
		SourceSystem: sourceSystem,
		SourceID:     sourceID,
		TargetSystem: targetSystem,
		TargetID:     targetID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MarkSynced stores the hash of the content that was just written
func (m *IDMapping) MarkSynced(hash string, at time.Time) {
	m.LastSyncedHash = hash
	m.LastSyncedAt = &at
	m.UpdatedAt = at
}

// Matches reports whether hash equals the last synced content. The hash is
// the only skip criterion: LastSyncedAt is informational.
func (m *IDMapping) Matches(hash string) bool {
	return m.LastSyncedHash != "" && m.LastSyncedHash == hash
}

// IDMappingFilter filters mapping listings
type IDMappingFilter struct {
	EntityType   *EntityType
	SourceSystem *SystemCode
	TargetSystem *SystemCode
	Page         int
	PageSize     int
}

// IDMappingRepository persists ID correlations
type IDMappingRepository interface {
	// FindBySource finds the row keyed by the unique source tuple
	FindBySource(ctx context.Context, tenantID uuid.UUID, sourceSystem SystemCode, sourceID string, targetSystem SystemCode) (*IDMapping, error)

	// FindByTarget finds a row by its target identifier
	FindByTarget(ctx context.Context, tenantID uuid.UUID, targetSystem SystemCode, targetID string, sourceSystem SystemCode) (*IDMapping, error)

	// FindAll lists rows for a tenant
	FindAll(ctx context.Context, tenantID uuid.UUID, filter IDMappingFilter) ([]IDMapping, int64, error)

	// Create inserts a row; returns ErrIDMappingExists on a uniqueness violation
	Create(ctx context.Context, m *IDMapping) error

	// UpdateSynced persists LastSyncedHash and LastSyncedAt
	UpdateSynced(ctx context.Context, m *IDMapping) error
}
