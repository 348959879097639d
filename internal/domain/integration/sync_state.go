package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxRunErrors caps the error entries kept on a SyncState
	MaxRunErrors = 200
	// MaxPreviewEntries caps the dry-run preview kept on a SyncState
	MaxPreviewEntries = 100
)

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus is the lifecycle state of a sync run
type SyncStatus string

const (
	SyncStatusPending        SyncStatus = "pending"
	SyncStatusRunning        SyncStatus = "running"
	SyncStatusSuccess        SyncStatus = "success"
	SyncStatusPartialFailure SyncStatus = "partial_failure"
	SyncStatusFailed         SyncStatus = "failed"
	SyncStatusCancelled      SyncStatus = "cancelled"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusRunning, SyncStatusSuccess,
		SyncStatusPartialFailure, SyncStatusFailed, SyncStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for final states
func (s SyncStatus) IsTerminal() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartialFailure, SyncStatusFailed, SyncStatusCancelled:
		return true
	default:
		return false
	}
}

// NonTerminalSyncStatuses lists the states that hold the per-key slot
func NonTerminalSyncStatuses() []SyncStatus {
	return []SyncStatus{SyncStatusPending, SyncStatusRunning}
}

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// TriggerSource records what started a run
type TriggerSource string

const (
	TriggerAPI      TriggerSource = "api"
	TriggerSchedule TriggerSource = "schedule"
	TriggerWebhook  TriggerSource = "webhook"
	TriggerRetry    TriggerSource = "retry"
)

// Checkpoint is the resume position persisted after each fully processed page
type Checkpoint struct {
	Page           int    `json:"page"`
	LastExternalID string `json:"last_external_id,omitempty"`
	NextCursor     string `json:"next_cursor,omitempty"`
}

// SyncScope narrows what a run reads
type SyncScope struct {
	IDs           []string          `json:"ids,omitempty"`
	Filters       map[string]string `json:"filters,omitempty"`
	ModifiedSince *time.Time        `json:"modified_since,omitempty"`
	// Reverse reads from the connector's target and writes to its source.
	// Only valid for two-way connectors.
	Reverse bool `json:"reverse,omitempty"`
}

// IsTargeted reports whether the scope names specific records
func (s SyncScope) IsTargeted() bool {
	return len(s.IDs) > 0
}

// IsFull reports whether the scope reads every forward change of the key
func (s SyncScope) IsFull() bool {
	return len(s.IDs) == 0 && len(s.Filters) == 0 && s.ModifiedSince == nil && !s.Reverse
}

// RunError is a structured error entry reported on a run
type RunError struct {
	EntityID    string       `json:"entity_id,omitempty"`
	Kind        ErrorKind    `json:"kind"`
	Message     string       `json:"message"`
	Remediation string       `json:"remediation"`
	Fields      []FieldError `json:"fields,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// NewRunError builds a RunError from an error
func NewRunError(entityID string, err error) RunError {
	kind := KindOf(err)
	return RunError{
		EntityID:    entityID,
		Kind:        kind,
		Message:     err.Error(),
		Remediation: kind.Remediation(),
		Fields:      FieldErrorsOf(err),
		OccurredAt:  time.Now(),
	}
}

// PreviewAction is what a dry run would have done with a record
type PreviewAction string

const (
	PreviewCreate   PreviewAction = "create"
	PreviewUpdate   PreviewAction = "update"
	PreviewSkip     PreviewAction = "skip"
	PreviewConflict PreviewAction = "conflict"
	PreviewInvalid  PreviewAction = "invalid"
)

// PreviewEntry describes one record of a dry run
type PreviewEntry struct {
	ExternalID string         `json:"external_id"`
	Action     PreviewAction  `json:"action"`
	RemoteID   string         `json:"remote_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Errors     []FieldError   `json:"errors,omitempty"`
}

// EntityOutcome is the result of syncing one record
type EntityOutcome string

const (
	OutcomeCreated   EntityOutcome = "created"
	OutcomeUpdated   EntityOutcome = "updated"
	OutcomeUnchanged EntityOutcome = "unchanged"
	OutcomeDeferred  EntityOutcome = "deferred"
	OutcomeFailed    EntityOutcome = "failed"
)

// ---------------------------------------------------------------------------
// SyncState Entity
// ---------------------------------------------------------------------------

// SyncState is one orchestrated run for (tenant, connector, entity type).
// At most one non-terminal SyncState exists per key.
type SyncState struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ConnectorID     uuid.UUID
	EntityType      EntityType
	Mode            SyncMode
	Status          SyncStatus
	Trigger         TriggerSource
	DryRun          bool
	Scope           SyncScope
	IdempotencyKey  string
	Processed       int
	Created         int
	Updated         int
	Unchanged       int
	Failed          int
	Checkpoint      *Checkpoint
	Errors          []RunError
	Preview         []PreviewEntry
	CancelRequested bool
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSyncState creates a pending run
func NewSyncState(tenantID, connectorID uuid.UUID, entityType EntityType, mode SyncMode, trigger TriggerSource) (*SyncState, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	if !mode.IsValid() {
		return nil, ErrInvalidSyncMode
	}
	now := time.Now()
	return &SyncState{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ConnectorID: connectorID,
		EntityType:  entityType,
		Mode:        mode,
		Status:      SyncStatusPending,
		Trigger:     trigger,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SyncKey returns the exclusive key for a (tenant, connector, entity type)
func SyncKey(tenantID, connectorID uuid.UUID, entityType EntityType) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, connectorID, entityType)
}

// AdvancesWatermark reports whether a completed run may serve as the start
// point of later incremental runs. Dry, targeted, filtered and reverse runs
// leave records behind them unread.
func (s *SyncState) AdvancesWatermark() bool {
	return !s.DryRun && s.Scope.IsFull()
}

// LockKey returns the exclusive key of this run
func (s *SyncState) LockKey() string {
	return SyncKey(s.TenantID, s.ConnectorID, s.EntityType)
}

// Start moves a pending run to running
func (s *SyncState) Start() error {
	if s.Status != SyncStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, SyncStatusRunning)
	}
	now := time.Now()
	s.Status = SyncStatusRunning
	s.StartedAt = &now
	s.UpdatedAt = now
	return nil
}

// CanResume reports whether an interrupted run can be picked up again
func (s *SyncState) CanResume() bool {
	return !s.Status.IsTerminal()
}

// ResumePage returns the page a resumed run starts from
func (s *SyncState) ResumePage() int {
	if s.Checkpoint == nil {
		return 1
	}
	return s.Checkpoint.Page + 1
}

// SaveCheckpoint records a fully processed page
func (s *SyncState) SaveCheckpoint(page int, lastExternalID, nextCursor string) {
	s.Checkpoint = &Checkpoint{Page: page, LastExternalID: lastExternalID, NextCursor: nextCursor}
	s.UpdatedAt = time.Now()
}

// RecordOutcome updates the counters for one processed record
func (s *SyncState) RecordOutcome(o EntityOutcome) {
	s.Processed++
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged, OutcomeDeferred:
		s.Unchanged++
	case OutcomeFailed:
		s.Failed++
	}
	s.UpdatedAt = time.Now()
}

// RecordPageFailure marks a page that could not be fetched after retries.
// It counts as one failure so the run cannot end as success.
func (s *SyncState) RecordPageFailure(page int, err error) {
	s.Failed++
	s.AddError(NewRunError(fmt.Sprintf("page:%d", page), err))
	s.UpdatedAt = time.Now()
}

// AddError appends an error entry, keeping at most MaxRunErrors
func (s *SyncState) AddError(e RunError) {
	if len(s.Errors) >= MaxRunErrors {
		return
	}
	s.Errors = append(s.Errors, e)
}

// AddPreview appends a dry-run entry, keeping at most MaxPreviewEntries
func (s *SyncState) AddPreview(p PreviewEntry) {
	if len(s.Preview) >= MaxPreviewEntries {
		return
	}
	s.Preview = append(s.Preview, p)
}

// Complete finishes a running run: success with no entity failures,
// partial_failure otherwise.
func (s *SyncState) Complete() error {
	if s.Status != SyncStatusRunning {
		return fmt.Errorf("%w: %s -> complete", ErrInvalidTransition, s.Status)
	}
	if s.Failed == 0 {
		s.finish(SyncStatusSuccess)
	} else {
		s.finish(SyncStatusPartialFailure)
	}
	return nil
}

// Fail ends the run because of a run-level error. Once records were
// processed the run keeps their results and ends as partial_failure.
func (s *SyncState) Fail(runErr RunError) error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, SyncStatusFailed)
	}
	s.AddError(runErr)
	if s.Processed > 0 {
		s.finish(SyncStatusPartialFailure)
	} else {
		s.finish(SyncStatusFailed)
	}
	return nil
}

// RequestCancel flags a running run for cancellation
func (s *SyncState) RequestCancel() error {
	if s.Status != SyncStatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, SyncStatusCancelled)
	}
	s.CancelRequested = true
	s.UpdatedAt = time.Now()
	return nil
}

// Cancel moves a running run to cancelled
func (s *SyncState) Cancel() error {
	if s.Status != SyncStatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, SyncStatusCancelled)
	}
	s.finish(SyncStatusCancelled)
	return nil
}

func (s *SyncState) finish(status SyncStatus) {
	now := time.Now()
	s.Status = status
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// Duration returns the wall time of the run so far
func (s *SyncState) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return end.Sub(*s.StartedAt)
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// SyncStateFilter filters run listings
type SyncStateFilter struct {
	ConnectorID *uuid.UUID
	EntityType  *EntityType
	Status      *SyncStatus
	Page        int
	PageSize    int
}

// SyncStateRepository persists runs. Create must reject a second
// non-terminal run for the same key with ErrSyncInProgress.
type SyncStateRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncState, error)
	FindActive(ctx context.Context, tenantID, connectorID uuid.UUID, entityType EntityType) (*SyncState, error)
	FindNonTerminal(ctx context.Context) ([]SyncState, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter SyncStateFilter) ([]SyncState, int64, error)
	// LastCompletedStart returns the start time of the latest watermark run
	// (see AdvancesWatermark) that reached success or partial_failure
	LastCompletedStart(ctx context.Context, tenantID, connectorID uuid.UUID, entityType EntityType) (*time.Time, error)
	// FindByIdempotencyKey returns the run created with the caller's key
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*SyncState, error)
	Create(ctx context.Context, s *SyncState) error
	// Save persists progress and status. It never clears a cancel request.
	Save(ctx context.Context, s *SyncState) error
	// MarkCancelRequested flags a running run; the executing worker observes it between pages
	MarkCancelRequested(ctx context.Context, tenantID, id uuid.UUID) error
	IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

// ---------------------------------------------------------------------------
// FailedRecord
// ---------------------------------------------------------------------------

// FailedRecord is an entity-level failure kept for retry
type FailedRecord struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ConnectorID uuid.UUID
	SyncID      uuid.UUID
	EntityType  EntityType
	ExternalID  string
	Kind        ErrorKind
	Message     string
	Retryable   bool
	Attempts    int
	ResolvedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewFailedRecord builds a FailedRecord from a run error
func NewFailedRecord(state *SyncState, externalID string, err error) *FailedRecord {
	kind := KindOf(err)
	now := time.Now()
	return &FailedRecord{
		ID:          uuid.New(),
		TenantID:    state.TenantID,
		ConnectorID: state.ConnectorID,
		SyncID:      state.ID,
		EntityType:  state.EntityType,
		ExternalID:  externalID,
		Kind:        kind,
		Message:     err.Error(),
		Retryable:   kind != ErrorKindValidation && kind != ErrorKindMapping,
		Attempts:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Remediation returns the suggested remediation for the failure kind
func (r *FailedRecord) Remediation() string {
	return r.Kind.Remediation()
}

// FailedRecordRepository persists entity-level failures
type FailedRecordRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FailedRecord, error)
	FindUnresolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType EntityType) ([]FailedRecord, error)
	// Upsert inserts the failure or bumps Attempts of the existing unresolved row
	Upsert(ctx context.Context, r *FailedRecord) error
	MarkResolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType EntityType, externalIDs []string) error
}
