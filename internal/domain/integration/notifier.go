package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies why an alert fired
type NotificationKind string

const (
	NotificationRunFailed         NotificationKind = "sync.run_failed"
	NotificationScheduleThreshold NotificationKind = "sync.schedule_failure_threshold"
)

// Notification is an alert handed to delivery channels outside the core
type Notification struct {
	Kind        NotificationKind  `json:"kind"`
	TenantID    uuid.UUID         `json:"tenant_id"`
	ConnectorID uuid.UUID         `json:"connector_id"`
	EntityType  EntityType        `json:"entity_type"`
	SyncID      *uuid.UUID        `json:"sync_id,omitempty"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Details     map[string]string `json:"details,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Notifier delivers notifications (email, chat, webhook)
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
