package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Sync run DTOs
// ---------------------------------------------------------------------------

// SyncStateResponse represents a sync run in API responses
type SyncStateResponse struct {
	ID               uuid.UUID                  `json:"sync_id"`
	TenantID         uuid.UUID                  `json:"tenant_id"`
	ConnectorID      uuid.UUID                  `json:"connector_id"`
	EntityType       integration.EntityType     `json:"entity_type"`
	Mode             integration.SyncMode       `json:"mode"`
	Status           integration.SyncStatus     `json:"status"`
	Trigger          integration.TriggerSource  `json:"trigger"`
	DryRun           bool                       `json:"dry_run"`
	Reverse          bool                       `json:"reverse,omitempty"`
	RecordsProcessed int                        `json:"records_processed"`
	RecordsCreated   int                        `json:"records_created"`
	RecordsUpdated   int                        `json:"records_updated"`
	RecordsUnchanged int                        `json:"records_unchanged"`
	RecordsFailed    int                        `json:"records_failed"`
	Checkpoint       *integration.Checkpoint    `json:"checkpoint,omitempty"`
	CancelRequested  bool                       `json:"cancel_requested,omitempty"`
	StartedAt        *time.Time                 `json:"started_at,omitempty"`
	CompletedAt      *time.Time                 `json:"completed_at,omitempty"`
	Errors           []integration.RunError     `json:"errors"`
	Preview          []integration.PreviewEntry `json:"preview,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// SyncStateListResponse represents a sync run in list responses (lighter)
type SyncStateListResponse struct {
	ID               uuid.UUID                 `json:"sync_id"`
	ConnectorID      uuid.UUID                 `json:"connector_id"`
	EntityType       integration.EntityType    `json:"entity_type"`
	Mode             integration.SyncMode      `json:"mode"`
	Status           integration.SyncStatus    `json:"status"`
	Trigger          integration.TriggerSource `json:"trigger"`
	DryRun           bool                      `json:"dry_run"`
	RecordsProcessed int                       `json:"records_processed"`
	RecordsFailed    int                       `json:"records_failed"`
	ErrorCount       int                       `json:"error_count"`
	StartedAt        *time.Time                `json:"started_at,omitempty"`
	CompletedAt      *time.Time                `json:"completed_at,omitempty"`
}

// ToSyncStateResponse converts a domain SyncState to a response DTO
func ToSyncStateResponse(s *integration.SyncState) SyncStateResponse {
	errs := s.Errors
	if errs == nil {
		errs = []integration.RunError{}
	}
	return SyncStateResponse{
		ID:               s.ID,
		TenantID:         s.TenantID,
		ConnectorID:      s.ConnectorID,
		EntityType:       s.EntityType,
		Mode:             s.Mode,
		Status:           s.Status,
		Trigger:          s.Trigger,
		DryRun:           s.DryRun,
		Reverse:          s.Scope.Reverse,
		RecordsProcessed: s.Processed,
		RecordsCreated:   s.Created,
		RecordsUpdated:   s.Updated,
		RecordsUnchanged: s.Unchanged,
		RecordsFailed:    s.Failed,
		Checkpoint:       s.Checkpoint,
		CancelRequested:  s.CancelRequested,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		Errors:           errs,
		Preview:          s.Preview,
		CreatedAt:        s.CreatedAt,
	}
}

// ToSyncStateListResponses converts domain SyncStates to list response DTOs
func ToSyncStateListResponses(states []integration.SyncState) []SyncStateListResponse {
	responses := make([]SyncStateListResponse, len(states))
	for i := range states {
		s := &states[i]
		responses[i] = SyncStateListResponse{
			ID:               s.ID,
			ConnectorID:      s.ConnectorID,
			EntityType:       s.EntityType,
			Mode:             s.Mode,
			Status:           s.Status,
			Trigger:          s.Trigger,
			DryRun:           s.DryRun,
			RecordsProcessed: s.Processed,
			RecordsFailed:    s.Failed,
			ErrorCount:       len(s.Errors),
			StartedAt:        s.StartedAt,
			CompletedAt:      s.CompletedAt,
		}
	}
	return responses
}

// ---------------------------------------------------------------------------
// Connector DTOs
// ---------------------------------------------------------------------------

// ConnectorResponse represents a connector configuration in API responses
type ConnectorResponse struct {
	ID           uuid.UUID                  `json:"id"`
	Name         string                     `json:"name"`
	SourceSystem integration.SystemCode     `json:"source_system"`
	TargetSystem integration.SystemCode     `json:"target_system"`
	Direction    integration.SyncDirection  `json:"direction"`
	Policies     []integration.EntityPolicy `json:"policies"`
	Filters      map[string]string          `json:"filters,omitempty"`
	Enabled      bool                       `json:"enabled"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// ToConnectorResponse converts a domain ConnectorConfig to a response DTO.
// Policies are reported for every entity type with defaults applied.
func ToConnectorResponse(c *integration.ConnectorConfig) ConnectorResponse {
	policies := []integration.EntityPolicy{
		c.PolicyFor(integration.EntityTypeCustomer),
		c.PolicyFor(integration.EntityTypeProduct),
		c.PolicyFor(integration.EntityTypeOrder),
	}
	return ConnectorResponse{
		ID:           c.ID,
		Name:         c.Name,
		SourceSystem: c.SourceSystem,
		TargetSystem: c.TargetSystem,
		Direction:    c.Direction,
		Policies:     policies,
		Filters:      c.Filters,
		Enabled:      c.Enabled,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ToConnectorResponses converts domain ConnectorConfigs to response DTOs
func ToConnectorResponses(cfgs []integration.ConnectorConfig) []ConnectorResponse {
	responses := make([]ConnectorResponse, len(cfgs))
	for i := range cfgs {
		responses[i] = ToConnectorResponse(&cfgs[i])
	}
	return responses
}

// ---------------------------------------------------------------------------
// Field mapping DTOs
// ---------------------------------------------------------------------------

// FieldMappingResponse represents a field mapping in API responses
type FieldMappingResponse struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name"`
	SourceSystem integration.SystemCode `json:"source_system"`
	TargetSystem integration.SystemCode `json:"target_system"`
	EntityType   integration.EntityType `json:"entity_type"`
	Fields       []integration.FieldMap `json:"fields"`
	Version      int64                  `json:"version"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// ToFieldMappingResponse converts a domain FieldMapping to a response DTO
func ToFieldMappingResponse(m *integration.FieldMapping) FieldMappingResponse {
	fields := m.Fields
	if fields == nil {
		fields = []integration.FieldMap{}
	}
	return FieldMappingResponse{
		ID:           m.ID,
		Name:         m.Name,
		SourceSystem: m.SourceSystem,
		TargetSystem: m.TargetSystem,
		EntityType:   m.EntityType,
		Fields:       fields,
		Version:      m.Version(),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ToFieldMappingResponses converts domain FieldMappings to response DTOs
func ToFieldMappingResponses(mappings []integration.FieldMapping) []FieldMappingResponse {
	responses := make([]FieldMappingResponse, len(mappings))
	for i := range mappings {
		responses[i] = ToFieldMappingResponse(&mappings[i])
	}
	return responses
}

// ---------------------------------------------------------------------------
// Conflict DTOs
// ---------------------------------------------------------------------------

// ConflictResponse represents a sync conflict in API responses
type ConflictResponse struct {
	ID            uuid.UUID                      `json:"id"`
	ConnectorID   uuid.UUID                      `json:"connector_id"`
	SyncID        uuid.UUID                      `json:"sync_id"`
	EntityType    integration.EntityType         `json:"entity_type"`
	SourceSystem  integration.SystemCode         `json:"source_system"`
	SourceID      string                         `json:"source_id"`
	TargetSystem  integration.SystemCode         `json:"target_system"`
	TargetID      string                         `json:"target_id"`
	Field         string                         `json:"field"`
	LocalValue    any                            `json:"local_value"`
	RemoteValue   any                            `json:"remote_value"`
	Strategy      integration.ResolutionStrategy `json:"resolution_strategy"`
	ResolvedValue any                            `json:"resolved_value,omitempty"`
	Status        integration.ConflictStatus     `json:"status"`
	DetectedAt    time.Time                      `json:"detected_at"`
	ResolvedAt    *time.Time                     `json:"resolved_at,omitempty"`
}

// ToConflictResponse converts a domain SyncConflict to a response DTO
func ToConflictResponse(c *integration.SyncConflict) ConflictResponse {
	return ConflictResponse{
		ID:            c.ID,
		ConnectorID:   c.ConnectorID,
		SyncID:        c.SyncID,
		EntityType:    c.EntityType,
		SourceSystem:  c.SourceSystem,
		SourceID:      c.SourceID,
		TargetSystem:  c.TargetSystem,
		TargetID:      c.TargetID,
		Field:         c.Field,
		LocalValue:    c.LocalValue,
		RemoteValue:   c.RemoteValue,
		Strategy:      c.Strategy,
		ResolvedValue: c.ResolvedValue,
		Status:        c.Status,
		DetectedAt:    c.DetectedAt,
		ResolvedAt:    c.ResolvedAt,
	}
}

// ToConflictResponses converts domain SyncConflicts to response DTOs
func ToConflictResponses(conflicts []integration.SyncConflict) []ConflictResponse {
	responses := make([]ConflictResponse, len(conflicts))
	for i := range conflicts {
		responses[i] = ToConflictResponse(&conflicts[i])
	}
	return responses
}

// ---------------------------------------------------------------------------
// Schedule DTOs
// ---------------------------------------------------------------------------

// ScheduleResponse represents a sync schedule in API responses
type ScheduleResponse struct {
	ID                  uuid.UUID              `json:"id"`
	ConnectorID         uuid.UUID              `json:"connector_id"`
	EntityType          integration.EntityType `json:"entity_type"`
	CronExpr            string                 `json:"cron"`
	Timezone            string                 `json:"timezone"`
	Enabled             bool                   `json:"enabled"`
	Suspended           bool                   `json:"suspended"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	LastRunAt           *time.Time             `json:"last_run_at,omitempty"`
	LastSyncID          *uuid.UUID             `json:"last_sync_id,omitempty"`
	LastError           string                 `json:"last_error,omitempty"`
	NextRunAt           *time.Time             `json:"next_run_at,omitempty"`
}

// ToScheduleResponse converts a domain SyncSchedule to a response DTO
func ToScheduleResponse(s *integration.SyncSchedule, now time.Time) ScheduleResponse {
	resp := ScheduleResponse{
		ID:                  s.ID,
		ConnectorID:         s.ConnectorID,
		EntityType:          s.EntityType,
		CronExpr:            s.CronExpr,
		Timezone:            s.Timezone,
		Enabled:             s.Enabled,
		Suspended:           s.Suspended,
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastRunAt:           s.LastRunAt,
		LastSyncID:          s.LastSyncID,
		LastError:           s.LastError,
	}
	if s.IsActive() {
		if next, err := NextRun(s, now); err == nil {
			resp.NextRunAt = &next
		}
	}
	return resp
}

// ToScheduleResponses converts domain SyncSchedules to response DTOs
func ToScheduleResponses(schedules []integration.SyncSchedule, now time.Time) []ScheduleResponse {
	responses := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		responses[i] = ToScheduleResponse(&schedules[i], now)
	}
	return responses
}

// ---------------------------------------------------------------------------
// Failed record DTOs
// ---------------------------------------------------------------------------

// FailedRecordResponse represents an entity-level failure in API responses
type FailedRecordResponse struct {
	ID          uuid.UUID              `json:"id"`
	ConnectorID uuid.UUID              `json:"connector_id"`
	SyncID      uuid.UUID              `json:"sync_id"`
	EntityType  integration.EntityType `json:"entity_type"`
	ExternalID  string                 `json:"external_id"`
	Kind        integration.ErrorKind  `json:"kind"`
	Message     string                 `json:"message"`
	Remediation string                 `json:"remediation"`
	Retryable   bool                   `json:"retryable"`
	Attempts    int                    `json:"attempts"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ToFailedRecordResponses converts domain FailedRecords to response DTOs
func ToFailedRecordResponses(recs []integration.FailedRecord) []FailedRecordResponse {
	responses := make([]FailedRecordResponse, len(recs))
	for i := range recs {
		r := &recs[i]
		responses[i] = FailedRecordResponse{
			ID:          r.ID,
			ConnectorID: r.ConnectorID,
			SyncID:      r.SyncID,
			EntityType:  r.EntityType,
			ExternalID:  r.ExternalID,
			Kind:        r.Kind,
			Message:     r.Message,
			Remediation: r.Remediation(),
			Retryable:   r.Retryable,
			Attempts:    r.Attempts,
			ResolvedAt:  r.ResolvedAt,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return responses
}
