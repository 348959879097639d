package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSyncStateRepository implements integration.SyncStateRepository using GORM.
// The unique active_key index admits one non-terminal run per
// (tenant, connector, entity type).
type GormSyncStateRepository struct {
	db *gorm.DB
}

// NewGormSyncStateRepository creates a new GormSyncStateRepository
func NewGormSyncStateRepository(db *gorm.DB) *GormSyncStateRepository {
	return &GormSyncStateRepository{db: db}
}

// FindByID finds a run within a tenant
func (r *GormSyncStateRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncState, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrSyncNotFound)
	}
	return model.ToDomain(), nil
}

// FindActive finds the non-terminal run of a key
func (r *GormSyncStateRepository) FindActive(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*integration.SyncState, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Where("active_key = ?", integration.SyncKey(tenantID, connectorID, entityType)).
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrSyncNotFound)
	}
	return model.ToDomain(), nil
}

// FindNonTerminal lists pending and running runs of every tenant, oldest first
func (r *GormSyncStateRepository) FindNonTerminal(ctx context.Context) ([]integration.SyncState, error) {
	var rows []models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Where("active_key IS NOT NULL").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return syncStatesToDomain(rows), nil
}

// FindAll lists a tenant's runs, newest first
func (r *GormSyncStateRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter integration.SyncStateFilter) ([]integration.SyncState, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncStateModel{}).Where("tenant_id = ?", tenantID)
	if filter.ConnectorID != nil {
		query = query.Where("connector_id = ?", *filter.ConnectorID)
	}
	if filter.EntityType != nil {
		query = query.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SyncStateModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return syncStatesToDomain(rows), total, nil
}

// LastCompletedStart returns the start time of the latest watermark run that
// ended in success or partial_failure
func (r *GormSyncStateRepository) LastCompletedStart(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*time.Time, error) {
	var model models.SyncStateModel
	err := r.db.WithContext(ctx).
		Select("started_at").
		Where("tenant_id = ? AND connector_id = ? AND entity_type = ?", tenantID, connectorID, entityType).
		Where("status IN ?", []integration.SyncStatus{integration.SyncStatusSuccess, integration.SyncStatusPartialFailure}).
		Where("advances_watermark = ? AND started_at IS NOT NULL", true).
		Order("started_at DESC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.StartedAt, nil
}

// FindByIdempotencyKey finds the run created with a caller-supplied key
func (r *GormSyncStateRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*integration.SyncState, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrSyncNotFound)
	}
	return model.ToDomain(), nil
}

// Create inserts a run; a second non-terminal run for the key is rejected
// with ErrSyncInProgress
func (r *GormSyncStateRepository) Create(ctx context.Context, s *integration.SyncState) error {
	if err := r.db.WithContext(ctx).Create(models.SyncStateModelFromDomain(s)).Error; err != nil {
		if isDuplicateKey(err) {
			return integration.ErrSyncInProgress
		}
		return err
	}
	return nil
}

// Save persists progress and status. cancel_requested is only ever raised
// here, so a cancel recorded by another process survives the write.
func (r *GormSyncStateRepository) Save(ctx context.Context, s *integration.SyncState) error {
	model := models.SyncStateModelFromDomain(s)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.SyncStateModel{}).
			Where("id = ? AND tenant_id = ?", s.ID, s.TenantID).
			Select("*").
			Omit("id", "tenant_id", "created_at", "cancel_requested").
			Updates(model)
		if result.Error != nil {
			if isDuplicateKey(result.Error) {
				return integration.ErrSyncInProgress
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return integration.ErrSyncNotFound
		}
		if s.CancelRequested {
			return tx.Model(&models.SyncStateModel{}).
				Where("id = ?", s.ID).
				Update("cancel_requested", true).Error
		}
		return nil
	})
}

// MarkCancelRequested flags a run for cancellation
func (r *GormSyncStateRepository) MarkCancelRequested(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncStateModel{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]any{"cancel_requested": true, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrSyncNotFound
	}
	return nil
}

// IsCancelRequested reads the cancel flag of a run
func (r *GormSyncStateRepository) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var model models.SyncStateModel
	if err := r.db.WithContext(ctx).
		Select("cancel_requested").
		Where("id = ?", id).
		Take(&model).Error; err != nil {
		return false, notFoundAs(err, integration.ErrSyncNotFound)
	}
	return model.CancelRequested, nil
}

func syncStatesToDomain(rows []models.SyncStateModel) []integration.SyncState {
	states := make([]integration.SyncState, len(rows))
	for i := range rows {
		states[i] = *rows[i].ToDomain()
	}
	return states
}

// GormFailedRecordRepository implements integration.FailedRecordRepository using GORM
type GormFailedRecordRepository struct {
	db *gorm.DB
}

// NewGormFailedRecordRepository creates a new GormFailedRecordRepository
func NewGormFailedRecordRepository(db *gorm.DB) *GormFailedRecordRepository {
	return &GormFailedRecordRepository{db: db}
}

// FindByID finds a failed record within a tenant
func (r *GormFailedRecordRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.FailedRecord, error) {
	var model models.FailedRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrFailedRecordNotFound)
	}
	return model.ToDomain(), nil
}

// FindUnresolved lists open failures of a connector and entity type
func (r *GormFailedRecordRepository) FindUnresolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) ([]integration.FailedRecord, error) {
	var rows []models.FailedRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND connector_id = ? AND entity_type = ? AND resolved_at IS NULL", tenantID, connectorID, entityType).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]integration.FailedRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

// Upsert inserts a failure, or bumps the attempt count of the open failure
// of the same record
func (r *GormFailedRecordRepository) Upsert(ctx context.Context, rec *integration.FailedRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.FailedRecordModel
		err := tx.Where("tenant_id = ? AND connector_id = ? AND entity_type = ? AND external_id = ? AND resolved_at IS NULL",
			rec.TenantID, rec.ConnectorID, rec.EntityType, rec.ExternalID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(models.FailedRecordModelFromDomain(rec)).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"kind":       rec.Kind,
			"message":    rec.Message,
			"sync_id":    rec.SyncID,
			"retryable":  rec.Retryable,
			"updated_at": time.Now(),
		}).Error
	})
}

// MarkResolved closes the open failures of the given records
func (r *GormFailedRecordRepository) MarkResolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.FailedRecordModel{}).
		Where("tenant_id = ? AND connector_id = ? AND entity_type = ? AND resolved_at IS NULL", tenantID, connectorID, entityType).
		Where("external_id IN ?", externalIDs).
		Updates(map[string]any{"resolved_at": now, "updated_at": now}).Error
}
