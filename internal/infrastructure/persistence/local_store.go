package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormLocalStore implements integration.LocalStore over the local_records
// table, one canonical JSON document per record
type GormLocalStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLocalStore creates a new GormLocalStore
func NewGormLocalStore(db *gorm.DB) *GormLocalStore {
	return &GormLocalStore{db: db, now: time.Now}
}

// ListChanged returns records modified after since, or the named ids, ordered
// by modification time
func (s *GormLocalStore) ListChanged(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, since *time.Time, ids []string, offset, limit int) ([]integration.RawRecord, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ? AND entity_type = ?", tenantID, entityType)
	switch {
	case len(ids) > 0:
		query = query.Where("record_id IN ?", ids)
	case since != nil:
		query = query.Where("updated_at > ?", *since)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.LocalRecordModel
	if err := query.Order("updated_at ASC, record_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]integration.RawRecord, 0, len(rows))
	for i := range rows {
		rec, err := localRecordToRaw(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Get returns one record, or nil when it does not exist
func (s *GormLocalStore) Get(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, id string) (*integration.RawRecord, error) {
	var model models.LocalRecordModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND record_id = ?", tenantID, entityType, id).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return localRecordToRaw(&model)
}

// Apply creates a record when id is empty, otherwise merges data into the
// existing document. Updating a missing record returns ErrEntityNotFound.
func (s *GormLocalStore) Apply(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, id string, data map[string]any) (string, bool, error) {
	now := s.now()
	if id == "" {
		id = uuid.NewString()
		raw, err := json.Marshal(data)
		if err != nil {
			return "", false, fmt.Errorf("encode local record: %w", err)
		}
		model := &models.LocalRecordModel{
			TenantID:   tenantID,
			EntityType: entityType,
			RecordID:   id,
			Data:       datatypes.JSON(raw),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
			return "", false, err
		}
		return id, true, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.LocalRecordModel
		if err := tx.Where("tenant_id = ? AND entity_type = ? AND record_id = ?", tenantID, entityType, id).
			Take(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integration.ErrEntityNotFound
			}
			return err
		}
		merged := make(map[string]any)
		if len(model.Data) > 0 {
			if err := json.Unmarshal(model.Data, &merged); err != nil {
				return fmt.Errorf("decode local record %s: %w", id, err)
			}
		}
		for k, v := range data {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode local record: %w", err)
		}
		return tx.Model(&models.LocalRecordModel{}).
			Where("tenant_id = ? AND entity_type = ? AND record_id = ?", tenantID, entityType, id).
			Updates(map[string]any{"data": datatypes.JSON(raw), "updated_at": now}).Error
	})
	if err != nil {
		return "", false, err
	}
	return id, false, nil
}

// FindBy returns the id of the record whose top-level field equals value
func (s *GormLocalStore) FindBy(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, field, value string) (string, bool, error) {
	var model models.LocalRecordModel
	err := s.db.WithContext(ctx).
		Select("record_id").
		Where("tenant_id = ? AND entity_type = ?", tenantID, entityType).
		Where(datatypes.JSONQuery("data").Equals(value, field)).
		Order("updated_at DESC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.RecordID, true, nil
}

func localRecordToRaw(m *models.LocalRecordModel) (*integration.RawRecord, error) {
	data := make(map[string]any)
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return nil, fmt.Errorf("decode local record %s: %w", m.RecordID, err)
		}
	}
	data["id"] = m.RecordID
	return &integration.RawRecord{
		ExternalID: m.RecordID,
		EntityType: m.EntityType,
		UpdatedAt:  m.UpdatedAt,
		Data:       data,
	}, nil
}
