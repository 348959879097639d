package connector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/syncengine/internal/domain/integration"
)

type mockLocalStore struct {
	mock.Mock
}

func (m *mockLocalStore) ListChanged(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, since *time.Time, ids []string, offset, limit int) ([]integration.RawRecord, error) {
	args := m.Called(ctx, tenantID, entityType, since, ids, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RawRecord), args.Error(1)
}

func (m *mockLocalStore) Get(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, id string) (*integration.RawRecord, error) {
	args := m.Called(ctx, tenantID, entityType, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RawRecord), args.Error(1)
}

func (m *mockLocalStore) Apply(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, id string, data map[string]any) (string, bool, error) {
	args := m.Called(ctx, tenantID, entityType, id, data)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockLocalStore) FindBy(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, field, value string) (string, bool, error) {
	args := m.Called(ctx, tenantID, entityType, field, value)
	return args.String(0), args.Bool(1), args.Error(2)
}

func TestLocal_FetchPageTranslatesPagesToOffsets(t *testing.T) {
	store := new(mockLocalStore)
	conn := NewLocal(store)
	tenantID := uuid.New()
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []integration.RawRecord{{ExternalID: "c-3", EntityType: integration.EntityTypeCustomer}}

	store.On("ListChanged", mock.Anything, tenantID, integration.EntityTypeCustomer, &since, []string(nil), 50, 25).Return(records, nil).Once()

	page, err := conn.FetchPage(context.Background(), integration.FetchRequest{
		TenantID: tenantID, EntityType: integration.EntityTypeCustomer, Page: 3, PageSize: 25, ModifiedSince: &since,
	})
	require.NoError(t, err)
	assert.Equal(t, records, page.Records)
	store.AssertExpectations(t)

	_, err = conn.FetchPage(context.Background(), integration.FetchRequest{TenantID: tenantID, EntityType: "invoice"})
	assert.ErrorIs(t, err, integration.ErrInvalidEntityType)
}

func TestLocal_PushDropsTheSourceID(t *testing.T) {
	store := new(mockLocalStore)
	conn := NewLocal(store)
	tenantID := uuid.New()

	store.On("Apply", mock.Anything, tenantID, integration.EntityTypeCustomer, "", mock.MatchedBy(func(doc map[string]any) bool {
		_, hasID := doc["id"]
		return !hasID && doc["email"] == "ana@example.com" && doc["tier"] == "gold"
	})).Return("c-10", true, nil).Once()

	res, err := conn.Push(context.Background(), integration.PushRequest{
		TenantID:   tenantID,
		EntityType: integration.EntityTypeCustomer,
		Entity:     &integration.Customer{ID: "7012", Email: "ana@example.com"},
		Fields:     map[string]any{"tier": "gold"},
	})
	require.NoError(t, err)
	assert.Equal(t, &integration.PushResult{RemoteID: "c-10", Created: true}, res)
	store.AssertExpectations(t)
}

func TestLocal_LookupAndGet(t *testing.T) {
	store := new(mockLocalStore)
	conn := NewLocal(store)
	tenantID := uuid.New()
	ctx := context.Background()

	store.On("FindBy", ctx, tenantID, integration.EntityTypeProduct, "sku", "MUG-01").Return("p-4", true, nil)
	store.On("Get", ctx, tenantID, integration.EntityTypeProduct, "p-4").Return(&integration.RawRecord{ExternalID: "p-4"}, nil)
	store.On("Get", ctx, tenantID, integration.EntityTypeProduct, "p-5").Return(nil, nil)

	id, found, err := conn.Lookup(ctx, tenantID, integration.EntityTypeProduct, "sku", "MUG-01")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "p-4", id)

	rec, err := conn.Get(ctx, tenantID, integration.EntityTypeProduct, "p-4")
	require.NoError(t, err)
	assert.Equal(t, "p-4", rec.ExternalID)

	_, err = conn.Get(ctx, tenantID, integration.EntityTypeProduct, "p-5")
	assert.ErrorIs(t, err, integration.ErrEntityNotFound)
}
