package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/syncengine/internal/domain/integration"
)

type storefrontHarness struct {
	tenantID uuid.UUID
	creds    *memCredentials
	server   *httptest.Server
	conn     *Storefront
	metrics  *countingMetrics
}

func newStorefrontHarness(t *testing.T, expiresAt time.Time, handler http.HandlerFunc) *storefrontHarness {
	t.Helper()
	h := &storefrontHarness{tenantID: uuid.New(), metrics: &countingMetrics{}}
	h.creds = newMemCredentials(testCredential(h.tenantID, integration.SystemStorefront, "at-1", expiresAt))
	h.server = httptest.NewServer(handler)
	t.Cleanup(h.server.Close)

	conn, err := NewStorefront(StorefrontConfig{
		HTTP: HTTPConfig{BaseURL: h.server.URL + "/api", Timeout: 2 * time.Second, Retry: fastRetry()},
	}, h.creds, WithRequestMetrics(h.metrics))
	require.NoError(t, err)
	h.conn = conn
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStorefront_FetchPage(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var query map[string]string
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/customers", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"customers": []map[string]any{
				{"id": 7012345678901, "email": "ana@example.com", "first_name": "Ana", "updated_at": "2026-03-02T10:00:00Z"},
				{"id": "c-2", "email": "ben@example.com", "updated_at": "2026-03-02T11:00:00Z"},
			},
		})
	})

	page, err := h.conn.FetchPage(context.Background(), integration.FetchRequest{
		TenantID:      h.tenantID,
		EntityType:    integration.EntityTypeCustomer,
		Page:          2,
		PageSize:      50,
		ModifiedSince: &since,
		Filters:       map[string]string{"state": "enabled"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"page":           "2",
		"limit":          "50",
		"updated_at_min": "2026-03-01T00:00:00Z",
		"state":          "enabled",
	}, query)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "7012345678901", page.Records[0].ExternalID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), page.Records[0].UpdatedAt)
	assert.Empty(t, page.NextCursor)

	entity, err := h.conn.Codec().Decode(page.Records[0])
	require.NoError(t, err)
	cust := entity.(*integration.Customer)
	assert.Equal(t, "7012345678901", cust.ID)
	assert.Equal(t, "ana@example.com", cust.Email)
	assert.Equal(t, 1, h.metrics.outcomes["success"])
}

func TestStorefront_Push(t *testing.T) {
	var mu sync.Mutex
	var got []string
	var body map[string]any
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Method+" "+r.URL.Path)
		body = nil
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, map[string]any{"product": map[string]any{"id": 991}})
		case http.MethodPut:
			writeJSON(w, http.StatusOK, map[string]any{"product": map[string]any{"id": 991}})
		}
	})

	product := &integration.Product{ID: "local-p1", SKU: "MUG-01", Name: "Mug", Price: decimal.RequireFromString("12.5"), Active: true}
	res, err := h.conn.Push(context.Background(), integration.PushRequest{
		TenantID:   h.tenantID,
		EntityType: integration.EntityTypeProduct,
		Entity:     product,
		Fields:     map[string]any{"metafields": map[string]any{"origin": "pos"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &integration.PushResult{RemoteID: "991", Created: true}, res)

	wire := body["product"].(map[string]any)
	assert.Equal(t, "MUG-01", wire["sku"])
	assert.Equal(t, "12.50", wire["price"])
	assert.Equal(t, "active", wire["status"])
	assert.Equal(t, "USD", wire["currency"])
	assert.NotContains(t, wire, "id")
	assert.Equal(t, map[string]any{"origin": "pos"}, wire["metafields"])

	res, err = h.conn.Push(context.Background(), integration.PushRequest{
		TenantID:   h.tenantID,
		EntityType: integration.EntityTypeProduct,
		Entity:     product,
		RemoteID:   "991",
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"POST /api/products", "PUT /api/products/991"}, got)
}

func TestStorefront_ExpiredTokenIsRefreshedBeforeTheCall(t *testing.T) {
	var tokenCalls atomic.Int32
	h := newStorefrontHarness(t, time.Now().Add(-time.Minute), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/oauth/token":
			tokenCalls.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			assert.Equal(t, "client-42", r.PostForm.Get("client_id"))
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-2", "refresh_token": "refresh-2", "expires_in": 3600})
		case "/api/shop":
			assert.Equal(t, "Bearer at-2", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"name": "Corner Shop"})
		}
	})

	require.NoError(t, h.conn.TestConnection(context.Background(), h.tenantID))
	assert.EqualValues(t, 1, tokenCalls.Load())
	assert.Equal(t, "at-2", h.creds.accessToken(integration.SystemStorefront))
}

func TestStorefront_UnauthorizedRefreshesOnce(t *testing.T) {
	var shopCalls, tokenCalls atomic.Int32
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/oauth/token":
			tokenCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-2", "expires_in": 3600})
		case "/api/shop":
			shopCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer at-2" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token revoked"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{})
		}
	})

	require.NoError(t, h.conn.TestConnection(context.Background(), h.tenantID))
	assert.EqualValues(t, 2, shopCalls.Load())
	assert.EqualValues(t, 1, tokenCalls.Load())
}

func TestStorefront_RevokedRefreshIsAnAuthError(t *testing.T) {
	h := newStorefrontHarness(t, time.Now().Add(-time.Minute), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
	})

	err := h.conn.RefreshAuth(context.Background(), h.tenantID)
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindAuth, integration.KindOf(err))
}

func TestStorefront_RateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": []any{}})
	})

	page, err := h.conn.FetchPage(context.Background(), integration.FetchRequest{
		TenantID: h.tenantID, EntityType: integration.EntityTypeOrder, Page: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.EqualValues(t, 2, calls.Load())
}

func TestStorefront_ValidationErrorsCarryFields(t *testing.T) {
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "invalid customer",
			"errors":  []map[string]string{{"field": "email", "message": "is invalid"}},
		})
	})

	_, err := h.conn.Push(context.Background(), integration.PushRequest{
		TenantID:   h.tenantID,
		EntityType: integration.EntityTypeCustomer,
		Entity:     &integration.Customer{ID: "c1", Email: "nope"},
	})
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))
	assert.Equal(t, []integration.FieldError{{Field: "email", Message: "is invalid"}}, integration.FieldErrorsOf(err))
}

func TestStorefront_LookupAndGet(t *testing.T) {
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/customers":
			assert.Equal(t, "Ana@Example.com", r.URL.Query().Get("email"))
			writeJSON(w, http.StatusOK, map[string]any{"customers": []map[string]any{{"id": "c-9", "email": "ana@example.com"}}})
		case "/api/customers/c-9":
			writeJSON(w, http.StatusOK, map[string]any{"customer": map[string]any{"id": "c-9", "email": "ana@example.com"}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		}
	})
	ctx := context.Background()

	id, found, err := h.conn.Lookup(ctx, h.tenantID, integration.EntityTypeCustomer, "email", "Ana@Example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "c-9", id)

	_, _, err = h.conn.Lookup(ctx, h.tenantID, integration.EntityTypeOrder, "email", "x")
	assert.ErrorIs(t, err, integration.ErrOperationUnsupported)

	rec, err := h.conn.Get(ctx, h.tenantID, integration.EntityTypeCustomer, "c-9")
	require.NoError(t, err)
	assert.Equal(t, "c-9", rec.ExternalID)

	_, err = h.conn.Get(ctx, h.tenantID, integration.EntityTypeCustomer, "gone")
	assert.ErrorIs(t, err, integration.ErrEntityNotFound)
}

func TestStorefront_MissingCredential(t *testing.T) {
	h := newStorefrontHarness(t, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call %s", r.URL.Path)
	})
	err := h.conn.TestConnection(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindAuth, integration.KindOf(err))
	assert.ErrorIs(t, err, integration.ErrCredentialNotFound)
}

func TestStorefrontCodec_Order(t *testing.T) {
	codec := StorefrontCodec{DefaultCurrency: "USD"}
	rec := integration.RawRecord{
		ExternalID: "5001",
		EntityType: integration.EntityTypeOrder,
		Data: map[string]any{
			"id":               json.Number("5001"),
			"name":             "#1001",
			"email":            "ana@example.com",
			"customer":         map[string]any{"id": "c-9", "first_name": "Ana", "last_name": "Lima"},
			"financial_status": "paid",
			"total_price":      "55.00",
			"total_tax":        "5.00",
			"line_items": []any{
				map[string]any{"sku": "MUG-01", "title": "Mug", "quantity": json.Number("2"), "price": "20.00"},
			},
			"shipping_lines": []any{map[string]any{"title": "Ground", "price": "10.00"}},
			"created_at":     "2026-03-01T09:00:00Z",
			"updated_at":     "2026-03-01T09:30:00Z",
		},
	}

	entity, err := codec.Decode(rec)
	require.NoError(t, err)
	order := entity.(*integration.Order)
	assert.Equal(t, "1001", order.Number)
	assert.Equal(t, "c-9", order.CustomerID)
	assert.Equal(t, "Ana Lima", order.CustomerName)
	assert.Equal(t, "USD", order.Currency)
	assert.True(t, order.Shipping.Equal(decimal.NewFromInt(10)))
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, 2, order.LineItems[0].Quantity)

	payload, err := codec.Encode(order, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"title": "Shipping", "price": "10.00"}}, payload["shipping_lines"])
	assert.Equal(t, map[string]any{"id": "c-9"}, payload["customer"])

	_, err = codec.Decode(integration.RawRecord{EntityType: integration.EntityTypeOrder, Data: map[string]any{"updated_at": "yesterday"}})
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))

	_, err = codec.Decode(integration.RawRecord{EntityType: "invoice"})
	assert.ErrorIs(t, err, integration.ErrInvalidEntityType)
}
