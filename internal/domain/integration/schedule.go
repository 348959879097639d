package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncSchedule Entity
// ---------------------------------------------------------------------------

// SyncSchedule is a recurring incremental sync for (tenant, connector, entity type)
type SyncSchedule struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	ConnectorID         uuid.UUID
	EntityType          EntityType
	CronExpr            string
	Timezone            string
	Enabled             bool
	ConsecutiveFailures int
	Suspended           bool
	SuspendedAt         *time.Time
	LastRunAt           *time.Time
	LastSyncID          *uuid.UUID
	LastError           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewSyncSchedule creates an enabled schedule
func NewSyncSchedule(tenantID, connectorID uuid.UUID, entityType EntityType, cronExpr, timezone string) (*SyncSchedule, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if cronExpr == "" {
		return nil, ErrInvalidCronExpression
	}
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, err
	}
	now := time.Now()
	return &SyncSchedule{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ConnectorID: connectorID,
		EntityType:  entityType,
		CronExpr:    cronExpr,
		Timezone:    timezone,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Location returns the schedule's time zone, UTC when unset or unknown
func (s *SyncSchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsActive reports whether the schedule should fire
func (s *SyncSchedule) IsActive() bool {
	return s.Enabled && !s.Suspended
}

// RecordRun marks that the schedule triggered a sync
func (s *SyncSchedule) RecordRun(syncID uuid.UUID, at time.Time) {
	s.LastRunAt = &at
	s.LastSyncID = &syncID
	s.UpdatedAt = at
}

// RecordSuccess resets the failure streak
func (s *SyncSchedule) RecordSuccess() {
	s.ConsecutiveFailures = 0
	s.LastError = ""
	s.UpdatedAt = time.Now()
}

// RecordFailure increments the failure streak and reports whether it just
// reached threshold. When suspend is set the schedule stops firing until
// acknowledged.
func (s *SyncSchedule) RecordFailure(errMsg string, threshold int, suspend bool) bool {
	s.ConsecutiveFailures++
	s.LastError = errMsg
	now := time.Now()
	s.UpdatedAt = now
	if threshold <= 0 || s.ConsecutiveFailures != threshold {
		return false
	}
	if suspend {
		s.Suspended = true
		s.SuspendedAt = &now
	}
	return true
}

// Acknowledge clears a suspension and the failure streak
func (s *SyncSchedule) Acknowledge() {
	s.Suspended = false
	s.SuspendedAt = nil
	s.ConsecutiveFailures = 0
	s.LastError = ""
	s.UpdatedAt = time.Now()
}

// SyncScheduleRepository persists schedules
type SyncScheduleRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncSchedule, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]SyncSchedule, error)
	FindEnabled(ctx context.Context) ([]SyncSchedule, error)
	// FindByKey returns the schedule of one (tenant, connector, entity type)
	FindByKey(ctx context.Context, tenantID, connectorID uuid.UUID, entityType EntityType) (*SyncSchedule, error)
	Save(ctx context.Context, s *SyncSchedule) error
	// RecordRun stores the last fired run and leaves the failure streak alone
	RecordRun(ctx context.Context, tenantID, id, syncID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
