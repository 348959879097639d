package connector

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
)

const defaultLocalPageSize = 100

// Local exposes the local retail store as a connector
type Local struct {
	store integration.LocalStore
	codec DocumentCodec
}

var (
	_ integration.Connector = (*Local)(nil)
	_ integration.Lookuper  = (*Local)(nil)
	_ integration.Getter    = (*Local)(nil)
)

// NewLocal creates the local connector
func NewLocal(store integration.LocalStore) *Local {
	return &Local{store: store}
}

// System implements integration.Connector
func (l *Local) System() integration.SystemCode { return integration.SystemLocal }

// Codec implements integration.Connector
func (l *Local) Codec() integration.Codec { return l.codec }

// FetchPage implements integration.Connector
func (l *Local) FetchPage(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	if !req.EntityType.IsValid() {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, req.EntityType)
	}
	size := req.PageSize
	if size <= 0 {
		size = defaultLocalPageSize
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	records, err := l.store.ListChanged(ctx, req.TenantID, req.EntityType, req.ModifiedSince, req.IDs, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return &integration.Page{Records: records}, nil
}

// Push implements integration.Connector
func (l *Local) Push(ctx context.Context, req integration.PushRequest) (*integration.PushResult, error) {
	payload, err := l.codec.Encode(req.Entity, req.Fields)
	if err != nil {
		return nil, err
	}
	id, created, err := l.store.Apply(ctx, req.TenantID, req.EntityType, req.RemoteID, payload)
	if err != nil {
		return nil, err
	}
	return &integration.PushResult{RemoteID: id, Created: created}, nil
}

// Lookup implements integration.Lookuper
func (l *Local) Lookup(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, field, value string) (string, bool, error) {
	return l.store.FindBy(ctx, tenantID, entityType, field, value)
}

// Get implements integration.Getter
func (l *Local) Get(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, id string) (*integration.RawRecord, error) {
	rec, err := l.store.Get(ctx, tenantID, entityType, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: local %s %s", integration.ErrEntityNotFound, entityType, id)
	}
	return rec, nil
}

// RefreshAuth implements integration.Connector; the local store needs no credential
func (l *Local) RefreshAuth(context.Context, uuid.UUID) error { return nil }

// TestConnection implements integration.Connector
func (l *Local) TestConnection(ctx context.Context, tenantID uuid.UUID) error {
	_, err := l.store.ListChanged(ctx, tenantID, integration.EntityTypeCustomer, nil, nil, 0, 1)
	return err
}
