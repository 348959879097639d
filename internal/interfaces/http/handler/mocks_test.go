package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
	"github.com/erp/syncengine/internal/interfaces/http/middleware"
)

var testTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// setupTestRouter returns an engine whose requests carry the test tenant
func setupTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, testTenantID.String())
		c.Next()
	})
	return router
}

func doJSON(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	return doJSONWithHeader(router, method, target, body, "", "")
}

func doJSONWithHeader(router http.Handler, method, target string, body any, header, value string) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ret unpacks a (value, error) mock return; a nil value stays the zero T.
func ret[T any](args mock.Arguments) (T, error) {
	v, _ := args.Get(0).(T)
	return v, args.Error(1)
}

// MockConnectorManager implements ConnectorManager for testing
type MockConnectorManager struct {
	mock.Mock
}

func (m *MockConnectorManager) Upsert(ctx context.Context, tenantID, id uuid.UUID, cmd syncapp.ConnectorCommand) (*integration.ConnectorConfig, error) {
	return ret[*integration.ConnectorConfig](m.Called(ctx, tenantID, id, cmd))
}

func (m *MockConnectorManager) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.ConnectorConfig, error) {
	return ret[*integration.ConnectorConfig](m.Called(ctx, tenantID, id))
}

func (m *MockConnectorManager) List(ctx context.Context, tenantID uuid.UUID) ([]integration.ConnectorConfig, error) {
	return ret[[]integration.ConnectorConfig](m.Called(ctx, tenantID))
}

func (m *MockConnectorManager) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockConnectorManager) Test(ctx context.Context, tenantID, id uuid.UUID) ([]syncapp.ConnectionCheck, error) {
	return ret[[]syncapp.ConnectionCheck](m.Called(ctx, tenantID, id))
}

// MockCredentialManager implements CredentialManager for testing
type MockCredentialManager struct {
	mock.Mock
}

func (m *MockCredentialManager) Store(ctx context.Context, tenantID uuid.UUID, cmd syncapp.StoreCredentialCommand) (*syncapp.CredentialView, error) {
	return ret[*syncapp.CredentialView](m.Called(ctx, tenantID, cmd))
}

func (m *MockCredentialManager) Get(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) (*syncapp.CredentialView, error) {
	return ret[*syncapp.CredentialView](m.Called(ctx, tenantID, platform))
}

func (m *MockCredentialManager) Delete(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) error {
	return m.Called(ctx, tenantID, platform).Error(0)
}

// MockSyncRunner implements SyncRunner for testing
type MockSyncRunner struct {
	mock.Mock
}

func (m *MockSyncRunner) Trigger(ctx context.Context, cmd syncapp.TriggerCommand) (*integration.SyncState, error) {
	return ret[*integration.SyncState](m.Called(ctx, cmd))
}

func (m *MockSyncRunner) Status(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error) {
	return ret[*integration.SyncState](m.Called(ctx, tenantID, syncID))
}

func (m *MockSyncRunner) List(ctx context.Context, tenantID uuid.UUID, filter integration.SyncStateFilter) ([]integration.SyncState, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]integration.SyncState), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncRunner) Cancel(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error) {
	return ret[*integration.SyncState](m.Called(ctx, tenantID, syncID))
}

func (m *MockSyncRunner) Resume(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error) {
	return ret[*integration.SyncState](m.Called(ctx, tenantID, syncID))
}

// MockFailedRecordRetrier implements FailedRecordRetrier for testing
type MockFailedRecordRetrier struct {
	mock.Mock
}

func (m *MockFailedRecordRetrier) ListUnresolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) ([]integration.FailedRecord, error) {
	return ret[[]integration.FailedRecord](m.Called(ctx, tenantID, connectorID, entityType))
}

func (m *MockFailedRecordRetrier) RetryRecord(ctx context.Context, tenantID, failedRecordID uuid.UUID) (*integration.SyncState, error) {
	return ret[*integration.SyncState](m.Called(ctx, tenantID, failedRecordID))
}

func (m *MockFailedRecordRetrier) RetryAll(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*integration.SyncState, error) {
	return ret[*integration.SyncState](m.Called(ctx, tenantID, connectorID, entityType))
}

// MockConflictReviewer implements ConflictReviewer for testing
type MockConflictReviewer struct {
	mock.Mock
}

func (m *MockConflictReviewer) List(ctx context.Context, tenantID uuid.UUID, filter integration.ConflictFilter) ([]integration.SyncConflict, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]integration.SyncConflict), args.Get(1).(int64), args.Error(2)
}

func (m *MockConflictReviewer) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncConflict, error) {
	return ret[*integration.SyncConflict](m.Called(ctx, tenantID, id))
}

func (m *MockConflictReviewer) Resolve(ctx context.Context, tenantID, id uuid.UUID, choice integration.Side) (*integration.SyncConflict, error) {
	return ret[*integration.SyncConflict](m.Called(ctx, tenantID, id, choice))
}

// MockScheduleManager implements ScheduleManager for testing
type MockScheduleManager struct {
	mock.Mock
}

func (m *MockScheduleManager) Upsert(ctx context.Context, tenantID uuid.UUID, cmd syncapp.ScheduleCommand) (*integration.SyncSchedule, error) {
	return ret[*integration.SyncSchedule](m.Called(ctx, tenantID, cmd))
}

func (m *MockScheduleManager) List(ctx context.Context, tenantID uuid.UUID) ([]integration.SyncSchedule, error) {
	return ret[[]integration.SyncSchedule](m.Called(ctx, tenantID))
}

func (m *MockScheduleManager) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error) {
	return ret[*integration.SyncSchedule](m.Called(ctx, tenantID, id))
}

func (m *MockScheduleManager) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockScheduleManager) Acknowledge(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error) {
	return ret[*integration.SyncSchedule](m.Called(ctx, tenantID, id))
}

// MockMappingManager implements MappingManager for testing
type MockMappingManager struct {
	mock.Mock
}

func (m *MockMappingManager) List(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter) ([]integration.FieldMapping, error) {
	return ret[[]integration.FieldMapping](m.Called(ctx, tenantID, filter))
}

func (m *MockMappingManager) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.FieldMapping, error) {
	return ret[*integration.FieldMapping](m.Called(ctx, tenantID, id))
}

func (m *MockMappingManager) Create(ctx context.Context, tenantID uuid.UUID, cmd syncapp.MappingCommand) (*integration.FieldMapping, error) {
	return ret[*integration.FieldMapping](m.Called(ctx, tenantID, cmd))
}

func (m *MockMappingManager) Update(ctx context.Context, tenantID, id uuid.UUID, name string, fields []integration.FieldMap) (*integration.FieldMapping, error) {
	return ret[*integration.FieldMapping](m.Called(ctx, tenantID, id, name, fields))
}

func (m *MockMappingManager) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockMappingManager) Preview(ctx context.Context, tenantID uuid.UUID, cmd syncapp.PreviewCommand) (*mapping.PreviewResult, error) {
	return ret[*mapping.PreviewResult](m.Called(ctx, tenantID, cmd))
}

func (m *MockMappingManager) Export(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter, format syncapp.MappingFormat) ([]byte, error) {
	return ret[[]byte](m.Called(ctx, tenantID, filter, format))
}

func (m *MockMappingManager) Import(ctx context.Context, tenantID uuid.UUID, data []byte, format syncapp.MappingFormat) (*syncapp.ImportResult, error) {
	return ret[*syncapp.ImportResult](m.Called(ctx, tenantID, data, format))
}

// MockWebhookIngester implements WebhookIngester for testing
type MockWebhookIngester struct {
	mock.Mock
}

func (m *MockWebhookIngester) Ingest(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode, body []byte, signature string) (*syncapp.WebhookResult, error) {
	return ret[*syncapp.WebhookResult](m.Called(ctx, tenantID, platform, body, signature))
}
