package persistence

import (
	"context"
	"time"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWebhookEventRepository implements integration.WebhookEventRepository using GORM.
// The unique (tenant_id, event_key) index is the dedup claim.
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Create claims an event key
func (r *GormWebhookEventRepository) Create(ctx context.Context, e *integration.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(models.WebhookEventModelFromDomain(e)).Error; err != nil {
		if isDuplicateKey(err) {
			return integration.ErrDuplicateWebhook
		}
		return err
	}
	return nil
}

// Save records the outcome of a processed event
func (r *GormWebhookEventRepository) Save(ctx context.Context, e *integration.WebhookEvent) error {
	return r.db.WithContext(ctx).Save(models.WebhookEventModelFromDomain(e)).Error
}

// Delete releases a claimed key
func (r *GormWebhookEventRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.WebhookEventModel{}, "id = ?", id).Error
}

// ExistsByKey reports whether an event key was already recorded
func (r *GormWebhookEventRepository) ExistsByKey(ctx context.Context, tenantID uuid.UUID, eventKey string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("tenant_id = ? AND event_key = ?", tenantID, eventKey).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindDeferred returns events still owing a run, in arrival order
func (r *GormWebhookEventRepository) FindDeferred(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType) ([]*integration.WebhookEvent, error) {
	var rows []models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND has_deferred = ?", tenantID, entityType, true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]*integration.WebhookEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events, nil
}

// PurgeBefore deletes events received before the cutoff
func (r *GormWebhookEventRepository) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("received_at < ?", before).
		Delete(&models.WebhookEventModel{})
	return result.RowsAffected, result.Error
}
