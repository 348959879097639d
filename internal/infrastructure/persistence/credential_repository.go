package persistence

import (
	"context"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialRepository implements integration.CredentialRepository using
// GORM. It only ever sees ciphertext.
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// FindByPlatform finds the tenant's credential for a platform
func (r *GormCredentialRepository) FindByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) (*integration.SealedCredential, error) {
	var model models.CredentialModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		First(&model).Error; err != nil {
		return nil, notFoundAs(err, integration.ErrCredentialNotFound)
	}
	return model.ToDomain(), nil
}

// Save upserts the credential on (tenant_id, platform)
func (r *GormCredentialRepository) Save(ctx context.Context, cred *integration.SealedCredential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"secret", "access_token", "refresh_token", "expires_at", "metadata", "updated_at",
			}),
		}).
		Create(models.CredentialModelFromDomain(cred)).Error
}

// Delete removes the tenant's credential for a platform
func (r *GormCredentialRepository) Delete(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		Delete(&models.CredentialModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrCredentialNotFound
	}
	return nil
}
