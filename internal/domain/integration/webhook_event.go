package integration

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Inbound webhook events
// ---------------------------------------------------------------------------

// WebhookFormat is the detected payload shape
type WebhookFormat string

const (
	// WebhookFormatLegacy is the proprietary notification format
	WebhookFormatLegacy WebhookFormat = "legacy"
	// WebhookFormatStructured is the structured-event format
	WebhookFormatStructured WebhookFormat = "structured"
)

// InboundEvent is the normalized form of both webhook payload shapes
type InboundEvent struct {
	Platform   SystemCode
	Format     WebhookFormat
	EventID    string
	AccountID  string
	Topic      string
	EntityType EntityType
	EntityID   string
	Action     string
	OccurredAt time.Time
}

// DedupKey returns the platform-specific deduplication key: the explicit
// event ID when present, otherwise account + entity + timestamp.
func (e InboundEvent) DedupKey() string {
	if e.EventID != "" {
		return fmt.Sprintf("%s:id:%s", e.Platform, e.EventID)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%d",
		e.Platform, strings.ToLower(e.AccountID), e.EntityType, e.EntityID, e.OccurredAt.UTC().UnixMilli())
}

// Validate checks the event carries enough to target a sync
func (e InboundEvent) Validate() error {
	if !e.Platform.IsValid() {
		return ErrInvalidSystemCode
	}
	if !e.EntityType.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPayload, e.EntityType)
	}
	if e.EntityID == "" {
		return fmt.Errorf("%w: missing entity id", ErrUnsupportedPayload)
	}
	return nil
}

// WebhookEvent is the dedup record of an accepted inbound event. It is kept
// for the idempotency window and then purged.
type WebhookEvent struct {
	ID             int64
	TenantID       uuid.UUID
	Platform       SystemCode
	EventKey       string
	Topic          string
	EntityType     EntityType
	EntityID       string
	SignatureValid bool
	SyncIDs        []uuid.UUID
	// Deferred lists connectors whose run was busy when the event arrived
	Deferred       []WebhookDeferral
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}

// WebhookDeferral is a targeted run still owed to one connector
type WebhookDeferral struct {
	ConnectorID uuid.UUID `json:"connector_id"`
	Reverse     bool      `json:"reverse,omitempty"`
}

// MarkProcessed records the syncs enqueued for this event
func (e *WebhookEvent) MarkProcessed(syncIDs []uuid.UUID) {
	now := time.Now()
	e.SyncIDs = syncIDs
	e.ProcessedAt = &now
}

// Defer records that the connector's run must be started later
func (e *WebhookEvent) Defer(connectorID uuid.UUID, reverse bool) {
	if _, ok := e.DeferredFor(connectorID); ok {
		return
	}
	e.Deferred = append(e.Deferred, WebhookDeferral{ConnectorID: connectorID, Reverse: reverse})
}

// DeferredFor returns the pending deferral of a connector
func (e *WebhookEvent) DeferredFor(connectorID uuid.UUID) (WebhookDeferral, bool) {
	for _, d := range e.Deferred {
		if d.ConnectorID == connectorID {
			return d, true
		}
	}
	return WebhookDeferral{}, false
}

// ResolveDeferral drops the connector's deferral. A non-nil syncID is the
// run that picked the change up.
func (e *WebhookEvent) ResolveDeferral(connectorID uuid.UUID, syncID *uuid.UUID) {
	e.Deferred = slices.DeleteFunc(e.Deferred, func(d WebhookDeferral) bool {
		return d.ConnectorID == connectorID
	})
	if syncID != nil && !slices.Contains(e.SyncIDs, *syncID) {
		e.SyncIDs = append(e.SyncIDs, *syncID)
	}
}

// IsDeferred reports whether any connector still owes a run for this event
func (e *WebhookEvent) IsDeferred() bool {
	return len(e.Deferred) > 0
}

// WebhookEventRepository persists dedup records
type WebhookEventRepository interface {
	// Create inserts the event; returns ErrDuplicateWebhook when the key exists
	Create(ctx context.Context, e *WebhookEvent) error
	Save(ctx context.Context, e *WebhookEvent) error
	// Delete releases a claimed key so the platform may redeliver the event
	Delete(ctx context.Context, id int64) error
	ExistsByKey(ctx context.Context, tenantID uuid.UUID, eventKey string) (bool, error)
	// FindDeferred returns events of the entity type with pending deferrals, oldest first
	FindDeferred(ctx context.Context, tenantID uuid.UUID, entityType EntityType) ([]*WebhookEvent, error)
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

// ErrDuplicateWebhook is returned when an event key was already recorded
var ErrDuplicateWebhook = NewDuplicateError("webhook event already processed")
