package persistence

import (
	"context"
	"time"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSyncScheduleRepository implements integration.SyncScheduleRepository using GORM
type GormSyncScheduleRepository struct {
	db *gorm.DB
}

// NewGormSyncScheduleRepository creates a new GormSyncScheduleRepository
func NewGormSyncScheduleRepository(db *gorm.DB) *GormSyncScheduleRepository {
	return &GormSyncScheduleRepository{db: db}
}

// FindByID finds a schedule within a tenant
func (r *GormSyncScheduleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error) {
	var model models.SyncScheduleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrScheduleNotFound)
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's schedules
func (r *GormSyncScheduleRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]integration.SyncSchedule, error) {
	var rows []models.SyncScheduleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return schedulesToDomain(rows), nil
}

// FindEnabled lists enabled schedules of every tenant
func (r *GormSyncScheduleRepository) FindEnabled(ctx context.Context) ([]integration.SyncSchedule, error) {
	var rows []models.SyncScheduleModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return schedulesToDomain(rows), nil
}

// FindByKey finds the schedule of a connector and entity type
func (r *GormSyncScheduleRepository) FindByKey(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*integration.SyncSchedule, error) {
	var model models.SyncScheduleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND connector_id = ? AND entity_type = ?", tenantID, connectorID, entityType).
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrScheduleNotFound)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a schedule
func (r *GormSyncScheduleRepository) Save(ctx context.Context, s *integration.SyncSchedule) error {
	return r.db.WithContext(ctx).Save(models.SyncScheduleModelFromDomain(s)).Error
}

// RecordRun updates only the last-run columns, so a failure recorded by a
// run that already finished is kept
func (r *GormSyncScheduleRepository) RecordRun(ctx context.Context, tenantID, id, syncID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncScheduleModel{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]any{
			"last_run_at":  at,
			"last_sync_id": syncID,
			"updated_at":   at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrScheduleNotFound
	}
	return nil
}

// Delete removes a schedule
func (r *GormSyncScheduleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Delete(&models.SyncScheduleModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrScheduleNotFound
	}
	return nil
}

func schedulesToDomain(rows []models.SyncScheduleModel) []integration.SyncSchedule {
	schedules := make([]integration.SyncSchedule, len(rows))
	for i := range rows {
		schedules[i] = *rows[i].ToDomain()
	}
	return schedules
}
