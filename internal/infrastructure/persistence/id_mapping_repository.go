package persistence

import (
	"context"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormIDMappingRepository implements integration.IDMappingRepository using GORM
type GormIDMappingRepository struct {
	db *gorm.DB
}

// NewGormIDMappingRepository creates a new GormIDMappingRepository
func NewGormIDMappingRepository(db *gorm.DB) *GormIDMappingRepository {
	return &GormIDMappingRepository{db: db}
}

// FindBySource finds the mapping keyed by the unique source tuple
func (r *GormIDMappingRepository) FindBySource(ctx context.Context, tenantID uuid.UUID, sourceSystem integration.SystemCode, sourceID string, targetSystem integration.SystemCode) (*integration.IDMapping, error) {
	var model models.IDMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_system = ? AND source_id = ? AND target_system = ?", tenantID, sourceSystem, sourceID, targetSystem).
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrIDMappingNotFound)
	}
	return model.ToDomain(), nil
}

// FindByTarget finds a mapping by its target identifier
func (r *GormIDMappingRepository) FindByTarget(ctx context.Context, tenantID uuid.UUID, targetSystem integration.SystemCode, targetID string, sourceSystem integration.SystemCode) (*integration.IDMapping, error) {
	var model models.IDMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND target_system = ? AND target_id = ? AND source_system = ?", tenantID, targetSystem, targetID, sourceSystem).
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrIDMappingNotFound)
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's mappings, newest first
func (r *GormIDMappingRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.IDMappingFilter) ([]integration.IDMapping, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IDMappingModel{}).Where("tenant_id = ?", tenantID)
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.SourceSystem != nil {
		query = query.Where("source_system = ?", *filter.SourceSystem)
	}
	if filter.TargetSystem != nil {
		query = query.Where("target_system = ?", *filter.TargetSystem)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.IDMappingModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("created_at DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	mappings := make([]integration.IDMapping, len(rows))
	for i := range rows {
		mappings[i] = *rows[i].ToDomain()
	}
	return mappings, total, nil
}

// Create inserts a mapping; the unique source tuple index turns a concurrent
// duplicate into ErrIDMappingExists
func (r *GormIDMappingRepository) Create(ctx context.Context, m *integration.IDMapping) error {
	if err := r.db.WithContext(ctx).Create(models.IDMappingModelFromDomain(m)).Error; err != nil {
		if isDuplicateKey(err) {
			return integration.ErrIDMappingExists
		}
		return err
	}
	return nil
}

// UpdateSynced persists the content hash and sync time of a mapping
func (r *GormIDMappingRepository) UpdateSynced(ctx context.Context, m *integration.IDMapping) error {
	result := r.db.WithContext(ctx).
		Model(&models.IDMappingModel{}).
		Where("id = ? AND tenant_id = ?", m.ID, m.TenantID).
		Updates(map[string]any{
			"target_id":        m.TargetID,
			"last_synced_hash": m.LastSyncedHash,
			"last_synced_at":   m.LastSyncedAt,
			"updated_at":       m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrIDMappingNotFound
	}
	return nil
}
