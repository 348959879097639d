package models

import (
	"encoding/json"
	"time"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// toJSON serializes a value for a JSON column; nil values become SQL NULL
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// fromJSON decodes a JSON column, leaving v untouched when the column is empty
func fromJSON(data datatypes.JSON, v any) {
	if len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// CredentialModel stores a sealed platform credential. Secret columns hold
// ciphertext only.
type CredentialModel struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_credential_tenant_platform,priority:1"`
	Platform     integration.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_credential_tenant_platform,priority:2"`
	Secret       []byte
	AccessToken  []byte
	RefreshToken []byte
	ExpiresAt    *time.Time
	Metadata     datatypes.JSON
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "integration_credentials"
}

// ToDomain converts the model to a sealed credential
func (m *CredentialModel) ToDomain() *integration.SealedCredential {
	c := &integration.SealedCredential{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Platform:     m.Platform,
		Secret:       m.Secret,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    m.ExpiresAt,
		Metadata:     make(map[string]string),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	fromJSON(m.Metadata, &c.Metadata)
	return c
}

// CredentialModelFromDomain creates a model from a sealed credential
func CredentialModelFromDomain(c *integration.SealedCredential) *CredentialModel {
	return &CredentialModel{
		ID:           c.ID,
		TenantID:     c.TenantID,
		Platform:     c.Platform,
		Secret:       c.Secret,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		Metadata:     toJSON(c.Metadata),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Connector configs
// ---------------------------------------------------------------------------

// ConnectorConfigModel is the persistence model of ConnectorConfig
type ConnectorConfigModel struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Name         string                    `gorm:"type:varchar(100);not null"`
	SourceSystem integration.SystemCode    `gorm:"type:varchar(20);not null"`
	TargetSystem integration.SystemCode    `gorm:"type:varchar(20);not null"`
	Direction    integration.SyncDirection `gorm:"type:varchar(20);not null"`
	Policies     datatypes.JSON
	Filters      datatypes.JSON
	Enabled      bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectorConfigModel) TableName() string {
	return "integration_connectors"
}

// ToDomain converts the model to a ConnectorConfig
func (m *ConnectorConfigModel) ToDomain() *integration.ConnectorConfig {
	c := &integration.ConnectorConfig{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Name:         m.Name,
		SourceSystem: m.SourceSystem,
		TargetSystem: m.TargetSystem,
		Direction:    m.Direction,
		Policies:     make(map[integration.EntityType]integration.EntityPolicy),
		Filters:      make(map[string]string),
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	fromJSON(m.Policies, &c.Policies)
	fromJSON(m.Filters, &c.Filters)
	return c
}

// ConnectorConfigModelFromDomain creates a model from a ConnectorConfig
func ConnectorConfigModelFromDomain(c *integration.ConnectorConfig) *ConnectorConfigModel {
	return &ConnectorConfigModel{
		ID:           c.ID,
		TenantID:     c.TenantID,
		Name:         c.Name,
		SourceSystem: c.SourceSystem,
		TargetSystem: c.TargetSystem,
		Direction:    c.Direction,
		Policies:     toJSON(c.Policies),
		Filters:      toJSON(c.Filters),
		Enabled:      c.Enabled,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Field mappings
// ---------------------------------------------------------------------------

// FieldMappingModel is the persistence model of FieldMapping. One row per
// (tenant, source, target, entity type).
type FieldMappingModel struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_field_mapping_pair,priority:1"`
	Name         string                 `gorm:"type:varchar(100)"`
	SourceSystem integration.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_field_mapping_pair,priority:2"`
	TargetSystem integration.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_field_mapping_pair,priority:3"`
	EntityType   integration.EntityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_field_mapping_pair,priority:4"`
	Fields       datatypes.JSON         `gorm:"not null"`
	CreatedAt    time.Time              `gorm:"not null"`
	UpdatedAt    time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FieldMappingModel) TableName() string {
	return "integration_field_mappings"
}

// ToDomain converts the model to a FieldMapping
func (m *FieldMappingModel) ToDomain() *integration.FieldMapping {
	fm := &integration.FieldMapping{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Name:         m.Name,
		SourceSystem: m.SourceSystem,
		TargetSystem: m.TargetSystem,
		EntityType:   m.EntityType,
		Fields:       make([]integration.FieldMap, 0),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	fromJSON(m.Fields, &fm.Fields)
	return fm
}

// FieldMappingModelFromDomain creates a model from a FieldMapping
func FieldMappingModelFromDomain(fm *integration.FieldMapping) *FieldMappingModel {
	fields := fm.Fields
	if fields == nil {
		fields = []integration.FieldMap{}
	}
	return &FieldMappingModel{
		ID:           fm.ID,
		TenantID:     fm.TenantID,
		Name:         fm.Name,
		SourceSystem: fm.SourceSystem,
		TargetSystem: fm.TargetSystem,
		EntityType:   fm.EntityType,
		Fields:       toJSON(fields),
		CreatedAt:    fm.CreatedAt,
		UpdatedAt:    fm.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// ID mappings
// ---------------------------------------------------------------------------

// IDMappingModel is the persistence model of IDMapping
type IDMappingModel struct {
	ID             uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_id_mapping_source,priority:1;index:idx_id_mapping_target,priority:1"`
	EntityType     integration.EntityType `gorm:"type:varchar(20);not null"`
	SourceSystem   integration.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_id_mapping_source,priority:2"`
	SourceID       string                 `gorm:"type:varchar(100);not null;uniqueIndex:idx_id_mapping_source,priority:3"`
	TargetSystem   integration.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_id_mapping_source,priority:4;index:idx_id_mapping_target,priority:2"`
	TargetID       string                 `gorm:"type:varchar(100);not null;index:idx_id_mapping_target,priority:3"`
	LastSyncedHash string                 `gorm:"type:varchar(64)"`
	LastSyncedAt   *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IDMappingModel) TableName() string {
	return "integration_id_mappings"
}

// ToDomain converts the model to an IDMapping
func (m *IDMappingModel) ToDomain() *integration.IDMapping {
	return &integration.IDMapping{
		ID:             m.ID,
		TenantID:       m.TenantID,
		EntityType:     m.EntityType,
		SourceSystem:   m.SourceSystem,
		SourceID:       m.SourceID,
		TargetSystem:   m.TargetSystem,
		TargetID:       m.TargetID,
		LastSyncedHash: m.LastSyncedHash,
		LastSyncedAt:   m.LastSyncedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// IDMappingModelFromDomain creates a model from an IDMapping
func IDMappingModelFromDomain(m *integration.IDMapping) *IDMappingModel {
	return &IDMappingModel{
		ID:             m.ID,
		TenantID:       m.TenantID,
		EntityType:     m.EntityType,
		SourceSystem:   m.SourceSystem,
		SourceID:       m.SourceID,
		TargetSystem:   m.TargetSystem,
		TargetID:       m.TargetID,
		LastSyncedHash: m.LastSyncedHash,
		LastSyncedAt:   m.LastSyncedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Sync runs
// ---------------------------------------------------------------------------

// SyncStateModel is the persistence model of SyncState. ActiveKey carries the
// (tenant, connector, entity type) key while the run is non-terminal and is
// NULL afterwards; its unique index admits one active run per key.
type SyncStateModel struct {
	ID              uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_state_connector,priority:1;index:idx_sync_state_idempotency,priority:1"`
	ConnectorID     uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_state_connector,priority:2"`
	EntityType      integration.EntityType    `gorm:"type:varchar(20);not null;index:idx_sync_state_connector,priority:3"`
	Mode            integration.SyncMode      `gorm:"type:varchar(20);not null"`
	Status          integration.SyncStatus    `gorm:"type:varchar(20);not null;index"`
	Trigger         integration.TriggerSource `gorm:"column:trigger_source;type:varchar(20);not null"`
	ActiveKey       *string                   `gorm:"type:varchar(120);uniqueIndex:idx_sync_state_active_key"`
	DryRun          bool                      `gorm:"not null;default:false"`
	Scope           datatypes.JSON
	Watermark       bool   `gorm:"column:advances_watermark;not null"`
	IdempotencyKey  string `gorm:"type:varchar(100);index:idx_sync_state_idempotency,priority:2"`
	Processed       int    `gorm:"not null;default:0"`
	Created         int    `gorm:"column:created_count;not null;default:0"`
	Updated         int    `gorm:"column:updated_count;not null;default:0"`
	Unchanged       int    `gorm:"not null;default:0"`
	Failed          int    `gorm:"not null;default:0"`
	Checkpoint      datatypes.JSON
	Errors          datatypes.JSON
	Preview         datatypes.JSON
	CancelRequested bool `gorm:"not null;default:false"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncStateModel) TableName() string {
	return "integration_sync_states"
}

// ToDomain converts the model to a SyncState
func (m *SyncStateModel) ToDomain() *integration.SyncState {
	s := &integration.SyncState{
		ID:              m.ID,
		TenantID:        m.TenantID,
		ConnectorID:     m.ConnectorID,
		EntityType:      m.EntityType,
		Mode:            m.Mode,
		Status:          m.Status,
		Trigger:         m.Trigger,
		DryRun:          m.DryRun,
		IdempotencyKey:  m.IdempotencyKey,
		Processed:       m.Processed,
		Created:         m.Created,
		Updated:         m.Updated,
		Unchanged:       m.Unchanged,
		Failed:          m.Failed,
		CancelRequested: m.CancelRequested,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	fromJSON(m.Scope, &s.Scope)
	fromJSON(m.Errors, &s.Errors)
	fromJSON(m.Preview, &s.Preview)
	if len(m.Checkpoint) > 0 && string(m.Checkpoint) != "null" {
		s.Checkpoint = &integration.Checkpoint{}
		fromJSON(m.Checkpoint, s.Checkpoint)
	}
	return s
}

// SyncStateModelFromDomain creates a model from a SyncState
func SyncStateModelFromDomain(s *integration.SyncState) *SyncStateModel {
	m := &SyncStateModel{
		ID:              s.ID,
		TenantID:        s.TenantID,
		ConnectorID:     s.ConnectorID,
		EntityType:      s.EntityType,
		Mode:            s.Mode,
		Status:          s.Status,
		Trigger:         s.Trigger,
		DryRun:          s.DryRun,
		Scope:           toJSON(s.Scope),
		Watermark:       s.AdvancesWatermark(),
		IdempotencyKey:  s.IdempotencyKey,
		Processed:       s.Processed,
		Created:         s.Created,
		Updated:         s.Updated,
		Unchanged:       s.Unchanged,
		Failed:          s.Failed,
		Errors:          toJSON(s.Errors),
		Preview:         toJSON(s.Preview),
		CancelRequested: s.CancelRequested,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Checkpoint != nil {
		m.Checkpoint = toJSON(s.Checkpoint)
	}
	if !s.Status.IsTerminal() {
		key := s.LockKey()
		m.ActiveKey = &key
	}
	return m
}

// FailedRecordModel is the persistence model of FailedRecord
type FailedRecordModel struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID              `gorm:"type:uuid;not null;index:idx_failed_record_lookup,priority:1"`
	ConnectorID uuid.UUID              `gorm:"type:uuid;not null;index:idx_failed_record_lookup,priority:2"`
	SyncID      uuid.UUID              `gorm:"type:uuid;not null"`
	EntityType  integration.EntityType `gorm:"type:varchar(20);not null;index:idx_failed_record_lookup,priority:3"`
	ExternalID  string                 `gorm:"type:varchar(100);not null;index:idx_failed_record_lookup,priority:4"`
	Kind        integration.ErrorKind  `gorm:"type:varchar(20);not null"`
	Message     string                 `gorm:"type:text"`
	Retryable   bool                   `gorm:"not null"`
	Attempts    int                    `gorm:"not null;default:1"`
	ResolvedAt  *time.Time             `gorm:"index"`
	CreatedAt   time.Time              `gorm:"not null"`
	UpdatedAt   time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FailedRecordModel) TableName() string {
	return "integration_failed_records"
}

// ToDomain converts the model to a FailedRecord
func (m *FailedRecordModel) ToDomain() *integration.FailedRecord {
	return &integration.FailedRecord{
		ID:          m.ID,
		TenantID:    m.TenantID,
		ConnectorID: m.ConnectorID,
		SyncID:      m.SyncID,
		EntityType:  m.EntityType,
		ExternalID:  m.ExternalID,
		Kind:        m.Kind,
		Message:     m.Message,
		Retryable:   m.Retryable,
		Attempts:    m.Attempts,
		ResolvedAt:  m.ResolvedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FailedRecordModelFromDomain creates a model from a FailedRecord
func FailedRecordModelFromDomain(r *integration.FailedRecord) *FailedRecordModel {
	return &FailedRecordModel{
		ID:          r.ID,
		TenantID:    r.TenantID,
		ConnectorID: r.ConnectorID,
		SyncID:      r.SyncID,
		EntityType:  r.EntityType,
		ExternalID:  r.ExternalID,
		Kind:        r.Kind,
		Message:     r.Message,
		Retryable:   r.Retryable,
		Attempts:    r.Attempts,
		ResolvedAt:  r.ResolvedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Conflicts
// ---------------------------------------------------------------------------

// SyncConflictModel is the persistence model of SyncConflict. Field values
// are stored as {"v": value}: SQLite gives JSON columns numeric affinity and
// would hand a bare scalar back as an integer.
type SyncConflictModel struct {
	ID            uuid.UUID                      `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID                      `gorm:"type:uuid;not null;index:idx_conflict_record,priority:1"`
	ConnectorID   uuid.UUID                      `gorm:"type:uuid;not null;index"`
	SyncID        uuid.UUID                      `gorm:"type:uuid;not null"`
	EntityType    integration.EntityType         `gorm:"type:varchar(20);not null"`
	SourceSystem  integration.SystemCode         `gorm:"type:varchar(20);not null;index:idx_conflict_record,priority:2"`
	SourceID      string                         `gorm:"type:varchar(100);not null;index:idx_conflict_record,priority:3"`
	TargetSystem  integration.SystemCode         `gorm:"type:varchar(20);not null;index:idx_conflict_record,priority:4"`
	TargetID      string                         `gorm:"type:varchar(100);not null"`
	Field         string                         `gorm:"type:varchar(255);not null"`
	LocalValue    datatypes.JSON                 `gorm:"column:local_value"`
	RemoteValue   datatypes.JSON                 `gorm:"column:remote_value"`
	Strategy      integration.ResolutionStrategy `gorm:"type:varchar(30);not null"`
	ResolvedValue datatypes.JSON
	Status        integration.ConflictStatus `gorm:"type:varchar(20);not null;index"`
	DetectedAt    time.Time                  `gorm:"not null"`
	ResolvedAt    *time.Time
}

// TableName returns the table name for GORM
func (SyncConflictModel) TableName() string {
	return "integration_conflicts"
}

// ToDomain converts the model to a SyncConflict
func (m *SyncConflictModel) ToDomain() *integration.SyncConflict {
	c := &integration.SyncConflict{
		ID:           m.ID,
		TenantID:     m.TenantID,
		ConnectorID:  m.ConnectorID,
		SyncID:       m.SyncID,
		EntityType:   m.EntityType,
		SourceSystem: m.SourceSystem,
		SourceID:     m.SourceID,
		TargetSystem: m.TargetSystem,
		TargetID:     m.TargetID,
		Field:        m.Field,
		Strategy:     m.Strategy,
		Status:       m.Status,
		DetectedAt:   m.DetectedAt,
		ResolvedAt:   m.ResolvedAt,
	}
	c.LocalValue = unwrapValue(m.LocalValue)
	c.RemoteValue = unwrapValue(m.RemoteValue)
	c.ResolvedValue = unwrapValue(m.ResolvedValue)
	return c
}

type fieldValue struct {
	V any `json:"v"`
}

func wrapValue(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	return toJSON(fieldValue{V: v})
}

func unwrapValue(data datatypes.JSON) any {
	var fv fieldValue
	fromJSON(data, &fv)
	return fv.V
}

// SyncConflictModelFromDomain creates a model from a SyncConflict
func SyncConflictModelFromDomain(c *integration.SyncConflict) *SyncConflictModel {
	return &SyncConflictModel{
		ID:            c.ID,
		TenantID:      c.TenantID,
		ConnectorID:   c.ConnectorID,
		SyncID:        c.SyncID,
		EntityType:    c.EntityType,
		SourceSystem:  c.SourceSystem,
		SourceID:      c.SourceID,
		TargetSystem:  c.TargetSystem,
		TargetID:      c.TargetID,
		Field:         c.Field,
		LocalValue:    wrapValue(c.LocalValue),
		RemoteValue:   wrapValue(c.RemoteValue),
		Strategy:      c.Strategy,
		ResolvedValue: wrapValue(c.ResolvedValue),
		Status:        c.Status,
		DetectedAt:    c.DetectedAt,
		ResolvedAt:    c.ResolvedAt,
	}
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

// SyncScheduleModel is the persistence model of SyncSchedule
type SyncScheduleModel struct {
	ID                  uuid.UUID              `gorm:"type:uuid;primary_key"`
	TenantID            uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_schedule_key,priority:1"`
	ConnectorID         uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_schedule_key,priority:2"`
	EntityType          integration.EntityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_schedule_key,priority:3"`
	CronExpr            string                 `gorm:"type:varchar(100);not null"`
	Timezone            string                 `gorm:"type:varchar(64);not null;default:'UTC'"`
	Enabled             bool                   `gorm:"not null;index"`
	ConsecutiveFailures int                    `gorm:"not null;default:0"`
	Suspended           bool                   `gorm:"not null;default:false"`
	SuspendedAt         *time.Time
	LastRunAt           *time.Time
	LastSyncID          *uuid.UUID `gorm:"type:uuid"`
	LastError           string     `gorm:"type:text"`
	CreatedAt           time.Time  `gorm:"not null"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncScheduleModel) TableName() string {
	return "integration_schedules"
}

// ToDomain converts the model to a SyncSchedule
func (m *SyncScheduleModel) ToDomain() *integration.SyncSchedule {
	return &integration.SyncSchedule{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		ConnectorID:         m.ConnectorID,
		EntityType:          m.EntityType,
		CronExpr:            m.CronExpr,
		Timezone:            m.Timezone,
		Enabled:             m.Enabled,
		ConsecutiveFailures: m.ConsecutiveFailures,
		Suspended:           m.Suspended,
		SuspendedAt:         m.SuspendedAt,
		LastRunAt:           m.LastRunAt,
		LastSyncID:          m.LastSyncID,
		LastError:           m.LastError,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// SyncScheduleModelFromDomain creates a model from a SyncSchedule
func SyncScheduleModelFromDomain(s *integration.SyncSchedule) *SyncScheduleModel {
	return &SyncScheduleModel{
		ID:                  s.ID,
		TenantID:            s.TenantID,
		ConnectorID:         s.ConnectorID,
		EntityType:          s.EntityType,
		CronExpr:            s.CronExpr,
		Timezone:            s.Timezone,
		Enabled:             s.Enabled,
		ConsecutiveFailures: s.ConsecutiveFailures,
		Suspended:           s.Suspended,
		SuspendedAt:         s.SuspendedAt,
		LastRunAt:           s.LastRunAt,
		LastSyncID:          s.LastSyncID,
		LastError:           s.LastError,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Webhook events
// ---------------------------------------------------------------------------

// WebhookEventModel is the dedup record of an inbound event. The id is a
// snowflake, so rows sort by arrival.
type WebhookEventModel struct {
	ID             int64                  `gorm:"primaryKey;autoIncrement:false"`
	TenantID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_webhook_event_key,priority:1"`
	Platform       integration.SystemCode `gorm:"type:varchar(20);not null"`
	EventKey       string                 `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhook_event_key,priority:2"`
	Topic          string                 `gorm:"type:varchar(100)"`
	EntityType     integration.EntityType `gorm:"type:varchar(20)"`
	EntityID       string                 `gorm:"type:varchar(100)"`
	SignatureValid bool                   `gorm:"not null"`
	SyncIDs        datatypes.JSON
	Deferred       datatypes.JSON
	HasDeferred    bool      `gorm:"column:has_deferred;not null;index"`
	ReceivedAt     time.Time `gorm:"not null;index"`
	ProcessedAt    *time.Time
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "integration_webhook_events"
}

// ToDomain converts the model to a WebhookEvent
func (m *WebhookEventModel) ToDomain() *integration.WebhookEvent {
	e := &integration.WebhookEvent{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Platform:       m.Platform,
		EventKey:       m.EventKey,
		Topic:          m.Topic,
		EntityType:     m.EntityType,
		EntityID:       m.EntityID,
		SignatureValid: m.SignatureValid,
		ReceivedAt:     m.ReceivedAt,
		ProcessedAt:    m.ProcessedAt,
	}
	fromJSON(m.SyncIDs, &e.SyncIDs)
	fromJSON(m.Deferred, &e.Deferred)
	return e
}

// WebhookEventModelFromDomain creates a model from a WebhookEvent
func WebhookEventModelFromDomain(e *integration.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{
		ID:             e.ID,
		TenantID:       e.TenantID,
		Platform:       e.Platform,
		EventKey:       e.EventKey,
		Topic:          e.Topic,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		SignatureValid: e.SignatureValid,
		HasDeferred:    e.IsDeferred(),
		ReceivedAt:     e.ReceivedAt,
		ProcessedAt:    e.ProcessedAt,
	}
	if len(e.SyncIDs) > 0 {
		m.SyncIDs = toJSON(e.SyncIDs)
	}
	if e.IsDeferred() {
		m.Deferred = toJSON(e.Deferred)
	}
	return m
}

// ---------------------------------------------------------------------------
// Local business records
// ---------------------------------------------------------------------------

// LocalRecordModel holds one local business record as a canonical document
type LocalRecordModel struct {
	TenantID   uuid.UUID              `gorm:"type:uuid;primaryKey"`
	EntityType integration.EntityType `gorm:"type:varchar(20);primaryKey"`
	RecordID   string                 `gorm:"type:varchar(100);primaryKey"`
	Data       datatypes.JSON         `gorm:"not null"`
	CreatedAt  time.Time              `gorm:"not null"`
	UpdatedAt  time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LocalRecordModel) TableName() string {
	return "local_records"
}

// IntegrationModels lists every model of the sync engine, in creation order
func IntegrationModels() []any {
	return []any{
		&CredentialModel{},
		&ConnectorConfigModel{},
		&FieldMappingModel{},
		&IDMappingModel{},
		&SyncStateModel{},
		&FailedRecordModel{},
		&SyncConflictModel{},
		&SyncScheduleModel{},
		&WebhookEventModel{},
		&LocalRecordModel{},
	}
}
