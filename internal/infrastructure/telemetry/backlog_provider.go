package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBacklogProvider implements BacklogProvider with grouped counts over
// the integration tables.
type GormBacklogProvider struct {
	db *gorm.DB
}

// NewGormBacklogProvider creates a new GormBacklogProvider.
func NewGormBacklogProvider(db *gorm.DB) *GormBacklogProvider {
	return &GormBacklogProvider{db: db}
}

type tenantCount struct {
	TenantID uuid.UUID `gorm:"column:tenant_id"`
	Total    int64     `gorm:"column:total"`
}

// Backlog returns one entry per tenant that has any outstanding work
func (p *GormBacklogProvider) Backlog(ctx context.Context) ([]TenantBacklog, error) {
	db := p.db.WithContext(ctx)

	var failed, conflicts, suspended []tenantCount
	if err := db.Table("integration_failed_records").
		Select("tenant_id, COUNT(*) AS total").
		Where("resolved_at IS NULL").
		Group("tenant_id").
		Find(&failed).Error; err != nil {
		return nil, err
	}
	if err := db.Table("integration_conflicts").
		Select("tenant_id, COUNT(*) AS total").
		Where("status = ?", "pending_review").
		Group("tenant_id").
		Find(&conflicts).Error; err != nil {
		return nil, err
	}
	if err := db.Table("integration_schedules").
		Select("tenant_id, COUNT(*) AS total").
		Where("suspended = ?", true).
		Group("tenant_id").
		Find(&suspended).Error; err != nil {
		return nil, err
	}

	byTenant := make(map[uuid.UUID]*TenantBacklog)
	var order []uuid.UUID
	entry := func(id uuid.UUID) *TenantBacklog {
		b, ok := byTenant[id]
		if !ok {
			b = &TenantBacklog{TenantID: id}
			byTenant[id] = b
			order = append(order, id)
		}
		return b
	}
	for _, c := range failed {
		entry(c.TenantID).FailedRecordsOpen = c.Total
	}
	for _, c := range conflicts {
		entry(c.TenantID).ConflictsPending = c.Total
	}
	for _, c := range suspended {
		entry(c.TenantID).SchedulesSuspended = c.Total
	}

	out := make([]TenantBacklog, 0, len(order))
	for _, id := range order {
		out = append(out, *byTenant[id])
	}
	return out, nil
}
