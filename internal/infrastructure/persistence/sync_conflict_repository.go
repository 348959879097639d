package persistence

import (
	"context"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// conflictBatchSize bounds the rows per INSERT of CreateBatch
const conflictBatchSize = 100

// GormSyncConflictRepository implements integration.SyncConflictRepository using GORM
type GormSyncConflictRepository struct {
	db *gorm.DB
}

// NewGormSyncConflictRepository creates a new GormSyncConflictRepository
func NewGormSyncConflictRepository(db *gorm.DB) *GormSyncConflictRepository {
	return &GormSyncConflictRepository{db: db}
}

// FindByID finds a conflict within a tenant
func (r *GormSyncConflictRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncConflict, error) {
	var model models.SyncConflictModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrConflictNotFound)
	}
	return model.ToDomain(), nil
}

// FindAll lists a tenant's conflicts, newest first
func (r *GormSyncConflictRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.ConflictFilter) ([]integration.SyncConflict, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncConflictModel{}).Where("tenant_id = ?", tenantID)
	if filter.ConnectorID != nil {
		query = query.Where("connector_id = ?", *filter.ConnectorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SyncConflictModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("detected_at DESC, field ASC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return conflictsToDomain(rows), total, nil
}

// FindPendingForRecord lists the open conflicts of one mapped record
func (r *GormSyncConflictRepository) FindPendingForRecord(ctx context.Context, tenantID uuid.UUID, sourceSystem integration.SystemCode, sourceID string, targetSystem integration.SystemCode) ([]integration.SyncConflict, error) {
	var rows []models.SyncConflictModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_system = ? AND source_id = ? AND target_system = ? AND status = ?",
			tenantID, sourceSystem, sourceID, targetSystem, integration.ConflictStatusPendingReview).
		Order("field ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return conflictsToDomain(rows), nil
}

// CreateBatch inserts the conflicts of one record
func (r *GormSyncConflictRepository) CreateBatch(ctx context.Context, conflicts []*integration.SyncConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	rows := make([]*models.SyncConflictModel, len(conflicts))
	for i, c := range conflicts {
		rows[i] = models.SyncConflictModelFromDomain(c)
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, conflictBatchSize).Error
}

// Save updates a conflict
func (r *GormSyncConflictRepository) Save(ctx context.Context, c *integration.SyncConflict) error {
	return r.db.WithContext(ctx).Save(models.SyncConflictModelFromDomain(c)).Error
}

func conflictsToDomain(rows []models.SyncConflictModel) []integration.SyncConflict {
	conflicts := make([]integration.SyncConflict, len(rows))
	for i := range rows {
		conflicts[i] = *rows[i].ToDomain()
	}
	return conflicts
}
