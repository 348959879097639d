package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LocalStore is the accessor contract of the local business-data layer.
// It supplies changed entities to sync and receives mapped updates back in
// two-way mode.
type LocalStore interface {
	// ListChanged returns records modified after since (all when nil), or the
	// named ids when ids is non-empty, ordered by modification time
	ListChanged(ctx context.Context, tenantID uuid.UUID, entityType EntityType, since *time.Time, ids []string, offset, limit int) ([]RawRecord, error)

	// Get returns one record
	Get(ctx context.Context, tenantID uuid.UUID, entityType EntityType, id string) (*RawRecord, error)

	// Apply creates or updates a record and returns its id
	Apply(ctx context.Context, tenantID uuid.UUID, entityType EntityType, id string, data map[string]any) (string, bool, error)

	// FindBy returns the id of the record whose top-level field equals value
	FindBy(ctx context.Context, tenantID uuid.UUID, entityType EntityType, field, value string) (string, bool, error)
}
