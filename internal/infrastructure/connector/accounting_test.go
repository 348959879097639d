package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/syncengine/internal/domain/integration"
)

func newTestAccounting(t *testing.T, tenantID uuid.UUID, expiresAt time.Time, handler http.HandlerFunc) (*Accounting, *memCredentials) {
	t.Helper()
	creds := newMemCredentials(testCredential(tenantID, integration.SystemAccounting, "acc-1", expiresAt))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	conn, err := NewAccounting(AccountingConfig{
		HTTP: HTTPConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, Retry: fastRetry()},
	}, creds)
	require.NoError(t, err)
	return conn, creds
}

func TestAccounting_CursorPagination(t *testing.T) {
	tenantID := uuid.New()
	conn, _ := newTestAccounting(t, tenantID, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts", r.URL.Path)
		switch r.URL.Query().Get("cursor") {
		case "":
			writeJSON(w, http.StatusOK, map[string]any{
				"data":        []map[string]any{{"contact_id": "ct-1", "email_address": "a@example.com"}, {"contact_id": "ct-2", "email_address": "b@example.com"}},
				"next_cursor": "abc",
			})
		case "abc":
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"contact_id": "ct-3", "email_address": "c@example.com"}},
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})
	ctx := context.Background()

	first, err := conn.FetchPage(ctx, integration.FetchRequest{TenantID: tenantID, EntityType: integration.EntityTypeCustomer, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.Equal(t, "ct-1", first.Records[0].ExternalID)
	assert.Equal(t, "abc", first.NextCursor)

	second, err := conn.FetchPage(ctx, integration.FetchRequest{TenantID: tenantID, EntityType: integration.EntityTypeCustomer, Page: 2, PageSize: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.Empty(t, second.NextCursor)

	done, err := conn.FetchPage(ctx, integration.FetchRequest{TenantID: tenantID, EntityType: integration.EntityTypeCustomer, Page: 3})
	require.NoError(t, err)
	assert.Empty(t, done.Records)
}

func TestAccounting_JWTBearerRefresh(t *testing.T) {
	tenantID := uuid.New()
	var tokenURL string
	conn, creds := newTestAccounting(t, tenantID, time.Now().Add(-time.Minute), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, jwtBearerGrant, r.PostForm.Get("grant_type"))

			claims := &assertionClaims{}
			_, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(token *jwt.Token) (any, error) {
				return []byte("client-secret-0123456789"), nil
			}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithAudience(tokenURL))
			if !assert.NoError(t, err) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "bad assertion"})
				return
			}
			assert.Equal(t, "client-42", claims.Issuer)
			assert.Equal(t, "acct-7", claims.AccountID)
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "acc-2", "expires_in": 1800})
		case "/organisation":
			assert.Equal(t, "Bearer acc-2", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"name": "Books Ltd"})
		}
	})
	tokenURL = conn.cfg.HTTP.BaseURL + conn.cfg.TokenPath

	require.NoError(t, conn.TestConnection(context.Background(), tenantID))
	assert.Equal(t, "acc-2", creds.accessToken(integration.SystemAccounting))
}

func TestAccounting_RefreshNeedsClientID(t *testing.T) {
	tenantID := uuid.New()
	conn, creds := newTestAccounting(t, tenantID, time.Now().Add(-time.Minute), func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call %s", r.URL.Path)
	})
	creds.creds[integration.SystemAccounting].Metadata = nil

	err := conn.RefreshAuth(context.Background(), tenantID)
	assert.Equal(t, integration.ErrorKindAuth, integration.KindOf(err))
}

func TestAccounting_PushAndLookup(t *testing.T) {
	tenantID := uuid.New()
	var pushed map[string]any
	conn, _ := newTestAccounting(t, tenantID, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/invoices":
			pushed = decodeBody(t, r)
			writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"invoice_id": 3301}})
		case r.Method == http.MethodGet && r.URL.Path == "/contacts":
			assert.Equal(t, "ana@example.com", r.URL.Query().Get("email_address"))
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"contact_id": "ct-9", "email_address": "ana@example.com"}}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{})
		}
	})
	ctx := context.Background()

	id, found, err := conn.Lookup(ctx, tenantID, integration.EntityTypeCustomer, "email", "ana@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ct-9", id)

	res, err := conn.Push(ctx, integration.PushRequest{
		TenantID:   tenantID,
		EntityType: integration.EntityTypeOrder,
		Entity: &integration.Order{
			ID: "5001", Number: "1001", CustomerID: id, CustomerEmail: "ana@example.com", Status: "paid",
			Shipping: decimal.NewFromInt(10), Tax: decimal.NewFromInt(5), Total: decimal.NewFromInt(55),
			LineItems: []integration.LineItem{{SKU: "MUG-01", Quantity: 2, UnitPrice: decimal.NewFromInt(20)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "3301", res.RemoteID)
	assert.True(t, res.Created)

	assert.Equal(t, "PAID", pushed["status"])
	assert.Equal(t, map[string]any{"contact_id": "ct-9", "email_address": "ana@example.com"}, pushed["contact"])
	lines := pushed["line_items"].([]any)
	require.Len(t, lines, 2)
	assert.Equal(t, "SHIPPING", lines[1].(map[string]any)["item_code"])
	assert.Equal(t, "TAX001", lines[0].(map[string]any)["tax_code"])
}

func TestAccountingCodec_CustomFieldCap(t *testing.T) {
	codec := NewAccountingCodec("", "", "")
	cust := &integration.Customer{
		ID:           "c1",
		Email:        "ana@example.com",
		CustomFields: map[string]string{"loyalty": "gold", "region": "north", "source": "pos"},
	}
	payload, err := codec.Encode(cust, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"name": "loyalty", "value": "gold"},
		map[string]any{"name": "region", "value": "north"},
		map[string]any{"name": "source", "value": "pos"},
	}, payload["custom_fields"])

	cust.CustomFields["segment"] = "b2b"
	_, err = codec.Encode(cust, nil)
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))
	assert.Equal(t, "custom_fields", integration.FieldErrorsOf(err)[0].Field)
}

func TestAccountingCodec_MappedCustomFieldsMerge(t *testing.T) {
	codec := NewAccountingCodec("", "", "")
	cust := &integration.Customer{
		ID:           "c1",
		Email:        "ana@example.com",
		CustomFields: map[string]string{"tier": "silver", "region": "north"},
	}
	fields := map[string]any{
		"custom_fields": map[string]any{"tier": "gold"},
		"phone":         "+1 555 0100",
	}

	payload, err := codec.Encode(cust, fields)
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"name": "region", "value": "north"},
		map[string]any{"name": "tier", "value": "gold"},
	}, payload["custom_fields"])
	assert.Equal(t, "+1 555 0100", payload["phone"])
	assert.Contains(t, fields, "custom_fields", "caller's mapped fields are left alone")

	payload, err = codec.Encode(cust, map[string]any{
		"custom_fields": []any{map[string]any{"name": "channel", "value": "web"}},
	})
	require.NoError(t, err)
	assert.Len(t, payload["custom_fields"], 3)

	_, err = codec.Encode(cust, map[string]any{
		"custom_fields": map[string]any{"channel": "web", "segment": "b2b"},
	})
	require.Error(t, err, "the cap applies to the merged set")
	assert.Equal(t, "custom_fields", integration.FieldErrorsOf(err)[0].Field)

	_, err = codec.Encode(cust, map[string]any{"custom_fields": "gold"})
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))
}

func TestAccountingCodec_InvoiceRoundTrip(t *testing.T) {
	codec := NewAccountingCodec("EUR", "VAT20", "")
	order := &integration.Order{
		ID: "o1", Number: "1001", CustomerID: "ct-9", CustomerEmail: "ana@example.com", CustomerName: "Ana Lima",
		Status: "pending", Currency: "EUR",
		Shipping: decimal.RequireFromString("4.99"), Tax: decimal.RequireFromString("8.00"), Total: decimal.RequireFromString("52.99"),
		LineItems: []integration.LineItem{
			{SKU: "MUG-01", Name: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("20")},
		},
		PlacedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	payload, err := codec.Encode(order, map[string]any{"reference": "POS-77"})
	require.NoError(t, err)
	assert.Equal(t, "AUTHORISED", payload["status"])
	assert.Equal(t, "POS-77", payload["reference"])

	payload["invoice_id"] = "inv-1"
	decoded, err := codec.Decode(integration.RawRecord{ExternalID: "inv-1", EntityType: integration.EntityTypeOrder, Data: payload})
	require.NoError(t, err)
	got := decoded.(*integration.Order)
	assert.Equal(t, "inv-1", got.ID)
	assert.Equal(t, "pending", got.Status)
	assert.True(t, got.Shipping.Equal(order.Shipping))
	require.Len(t, got.LineItems, 1)

	hashIn, err := integration.ContentHash(order)
	require.NoError(t, err)
	hashOut, err := integration.ContentHash(got)
	require.NoError(t, err)
	assert.Equal(t, hashIn, hashOut)
}

func TestAccounting_ServerErrorsAreTransient(t *testing.T) {
	tenantID := uuid.New()
	calls := 0
	conn, _ := newTestAccounting(t, tenantID, time.Now().Add(time.Hour), func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream " + strconv.Itoa(calls)})
	})

	_, err := conn.FetchPage(context.Background(), integration.FetchRequest{TenantID: tenantID, EntityType: integration.EntityTypeProduct, Page: 1})
	require.Error(t, err)
	assert.True(t, integration.IsTransient(err))
	assert.Equal(t, 3, calls)
}
