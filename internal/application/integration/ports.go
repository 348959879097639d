package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
)

// JobQueue hands runs to the worker pool. Triggers never execute inline.
type JobQueue interface {
	Enqueue(ctx context.Context, tenantID, syncID uuid.UUID) error
}

// SyncLocker provides the exclusive (tenant, connector, entity type) key.
// TryLock never blocks: a held key returns acquired=false.
type SyncLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// SyncTrigger admits runs. Implemented by Orchestrator.
type SyncTrigger interface {
	Trigger(ctx context.Context, cmd TriggerCommand) (*integration.SyncState, error)
}

// CredentialStore is the write side of the credential vault
type CredentialStore interface {
	integration.CredentialProvider
	Store(ctx context.Context, cred *integration.Credential) error
	Delete(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) error
}

// RunObserver is told about every run that reaches a terminal status
type RunObserver interface {
	RunFinished(ctx context.Context, state *integration.SyncState)
}

// SyncMetrics records run and record level counters
type SyncMetrics interface {
	RecordRun(ctx context.Context, status integration.SyncStatus, entityType integration.EntityType, duration time.Duration)
	RecordEntity(ctx context.Context, outcome integration.EntityOutcome, entityType integration.EntityType)
	RecordWebhook(ctx context.Context, platform integration.SystemCode, result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(context.Context, integration.SyncStatus, integration.EntityType, time.Duration) {
}
func (noopMetrics) RecordEntity(context.Context, integration.EntityOutcome, integration.EntityType) {}
func (noopMetrics) RecordWebhook(context.Context, integration.SystemCode, string)                 {}

// NoopMetrics discards all measurements
var NoopMetrics SyncMetrics = noopMetrics{}
