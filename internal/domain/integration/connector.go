package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Connector Port
// ---------------------------------------------------------------------------

// RawRecord is a record as returned by a platform, before decoding
type RawRecord struct {
	ExternalID string
	EntityType EntityType
	UpdatedAt  time.Time
	Data       map[string]any
}

// FetchRequest asks a connector for one page of records
type FetchRequest struct {
	TenantID   uuid.UUID
	EntityType EntityType
	// Page is 1-indexed
	Page     int
	PageSize int
	// Cursor is an opaque continuation token for cursor-paginated platforms
	Cursor string
	// ModifiedSince restricts an incremental fetch
	ModifiedSince *time.Time
	// IDs restricts the fetch to specific external IDs
	IDs     []string
	Filters map[string]string
}

// Page is one page of fetched records. An empty page ends pagination.
type Page struct {
	Records    []RawRecord
	NextCursor string
}

// PushRequest writes one canonical entity to a platform
type PushRequest struct {
	TenantID   uuid.UUID
	EntityType EntityType
	Entity     Entity
	// Fields holds the output of the field mapping for this entity, if any
	Fields map[string]any
	// RemoteID is set for updates and empty for creates
	RemoteID string
}

// PushResult is the outcome of a push
type PushResult struct {
	RemoteID string
	Created  bool
}

// Connector is the capability interface implemented once per platform.
// The orchestrator is written against this interface only.
type Connector interface {
	// System identifies the platform
	System() SystemCode

	// Codec returns the platform's canonical encoder/decoder
	Codec() Codec

	// FetchPage returns one page of records
	FetchPage(ctx context.Context, req FetchRequest) (*Page, error)

	// Push creates or updates one record and returns its remote ID
	Push(ctx context.Context, req PushRequest) (*PushResult, error)

	// RefreshAuth refreshes the tenant's access token
	RefreshAuth(ctx context.Context, tenantID uuid.UUID) error

	// TestConnection verifies credentials and reachability
	TestConnection(ctx context.Context, tenantID uuid.UUID) error
}

// Lookuper is implemented by connectors that can search records by a natural key
type Lookuper interface {
	// Lookup returns the remote ID of the record whose field equals value
	Lookup(ctx context.Context, tenantID uuid.UUID, entityType EntityType, field, value string) (remoteID string, found bool, err error)
}

// Getter is implemented by connectors that can read a single record by ID
type Getter interface {
	Get(ctx context.Context, tenantID uuid.UUID, entityType EntityType, remoteID string) (*RawRecord, error)
}

// Codec converts between a platform's wire shape and canonical entities.
// Implementations are pure: output depends only on the input and the codec's
// immutable configuration.
type Codec interface {
	// Decode converts a platform record to a canonical entity
	Decode(rec RawRecord) (Entity, error)

	// Encode converts a canonical entity to the platform's payload, overlaying
	// mapped fields
	Encode(e Entity, fields map[string]any) (map[string]any, error)
}

// ---------------------------------------------------------------------------
// ConnectorRegistry
// ---------------------------------------------------------------------------

// ConnectorRegistry resolves connectors by system code
type ConnectorRegistry interface {
	Register(c Connector)
	Get(system SystemCode) (Connector, error)
	Systems() []SystemCode
}
