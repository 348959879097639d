package persistence

import (
	"context"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConnectorConfigRepository implements integration.ConnectorConfigRepository using GORM
type GormConnectorConfigRepository struct {
	db *gorm.DB
}

// NewGormConnectorConfigRepository creates a new GormConnectorConfigRepository
func NewGormConnectorConfigRepository(db *gorm.DB) *GormConnectorConfigRepository {
	return &GormConnectorConfigRepository{db: db}
}

// FindByID finds a connector config within a tenant
func (r *GormConnectorConfigRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.ConnectorConfig, error) {
	var model models.ConnectorConfigModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrConnectorNotFound)
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's connector configs ordered by name
func (r *GormConnectorConfigRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]integration.ConnectorConfig, error) {
	var rows []models.ConnectorConfigModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	configs := make([]integration.ConnectorConfig, len(rows))
	for i := range rows {
		configs[i] = *rows[i].ToDomain()
	}
	return configs, nil
}

// Save creates or updates a connector config
func (r *GormConnectorConfigRepository) Save(ctx context.Context, cfg *integration.ConnectorConfig) error {
	return r.db.WithContext(ctx).Save(models.ConnectorConfigModelFromDomain(cfg)).Error
}

// Delete removes a connector config
func (r *GormConnectorConfigRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.ConnectorConfigModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrConnectorNotFound
	}
	return nil
}

// GormFieldMappingRepository implements integration.FieldMappingRepository using GORM
type GormFieldMappingRepository struct {
	db *gorm.DB
}

// NewGormFieldMappingRepository creates a new GormFieldMappingRepository
func NewGormFieldMappingRepository(db *gorm.DB) *GormFieldMappingRepository {
	return &GormFieldMappingRepository{db: db}
}

// FindByID finds a field mapping within a tenant
func (r *GormFieldMappingRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.FieldMapping, error) {
	var model models.FieldMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrMappingNotFound)
	}
	return model.ToDomain(), nil
}

// FindFor finds the mapping of one system pair and entity type
func (r *GormFieldMappingRepository) FindFor(ctx context.Context, tenantID uuid.UUID, source, target integration.SystemCode, entityType integration.EntityType) (*integration.FieldMapping, error) {
	var model models.FieldMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_system = ? AND target_system = ? AND entity_type = ?", tenantID, source, target, entityType).
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrMappingNotFound)
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's field mappings
func (r *GormFieldMappingRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter) ([]integration.FieldMapping, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.SourceSystem != nil {
		query = query.Where("source_system = ?", *filter.SourceSystem)
	}
	if filter.TargetSystem != nil {
		query = query.Where("target_system = ?", *filter.TargetSystem)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}

	var rows []models.FieldMappingModel
	if err := query.Order("source_system ASC, target_system ASC, entity_type ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	mappings := make([]integration.FieldMapping, len(rows))
	for i := range rows {
		mappings[i] = *rows[i].ToDomain()
	}
	return mappings, nil
}

// Save creates or updates a field mapping. A second mapping for the same
// system pair and entity type is rejected with ErrMappingExists.
func (r *GormFieldMappingRepository) Save(ctx context.Context, m *integration.FieldMapping) error {
	if err := r.db.WithContext(ctx).Save(models.FieldMappingModelFromDomain(m)).Error; err != nil {
		if isDuplicateKey(err) {
			return integration.ErrMappingExists
		}
		return err
	}
	return nil
}

// Delete removes a field mapping
func (r *GormFieldMappingRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.FieldMappingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}
