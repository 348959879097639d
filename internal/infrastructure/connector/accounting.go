package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
)

// jwtBearerGrant is the OAuth grant type for signed assertions
const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// AccountingConfig configures the accounting connector
type AccountingConfig struct {
	HTTP             HTTPConfig
	TokenPath        string
	DefaultCurrency  string
	DefaultTaxCode   string
	ShippingItemCode string
	// AssertionTTL is the lifetime of the signed token request
	AssertionTTL time.Duration
}

// Validate checks the configuration and applies defaults
func (c *AccountingConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if c.TokenPath == "" {
		c.TokenPath = "/oauth/token"
	}
	if c.AssertionTTL <= 0 {
		c.AssertionTTL = 5 * time.Minute
	}
	return nil
}

var accountingResources = map[integration.EntityType]resourceNames{
	integration.EntityTypeCustomer: {"contacts", "contact"},
	integration.EntityTypeProduct:  {"items", "item"},
	integration.EntityTypeOrder:    {"invoices", "invoice"},
}

var accountingLookupFields = map[integration.EntityType]string{
	integration.EntityTypeCustomer: "email",
	integration.EntityTypeProduct:  "sku",
}

// accountingQueryField is the API filter name for each canonical lookup field
var accountingQueryField = map[string]string{
	"email": "email_address",
	"sku":   "code",
}

// Accounting is the accounting platform connector. Lists are cursor
// paginated, tokens come from a signed JWT-bearer assertion and every record
// carries at most three custom fields.
type Accounting struct {
	cfg    AccountingConfig
	client *restClient
	tokens *TokenSource
	codec  AccountingCodec
	now    func() time.Time
}

var (
	_ integration.Connector = (*Accounting)(nil)
	_ integration.Lookuper  = (*Accounting)(nil)
	_ integration.Getter    = (*Accounting)(nil)
)

// NewAccounting creates the accounting connector
func NewAccounting(cfg AccountingConfig, creds integration.CredentialProvider, opts ...Option) (*Accounting, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	a := &Accounting{
		cfg:   cfg,
		codec: NewAccountingCodec(cfg.DefaultCurrency, cfg.DefaultTaxCode, cfg.ShippingItemCode),
		now:   o.now,
	}
	a.tokens = NewTokenSource(integration.SystemAccounting, creds, a.requestToken, o.logger)
	a.tokens.now = o.now
	a.client = newRESTClient(integration.SystemAccounting, cfg.HTTP, a.tokens, o.httpClient, o.metrics, o.logger)
	return a, nil
}

// System implements integration.Connector
func (a *Accounting) System() integration.SystemCode { return integration.SystemAccounting }

// Codec implements integration.Connector
func (a *Accounting) Codec() integration.Codec { return a.codec }

// FetchPage implements integration.Connector. Pages after the first need the
// cursor of the previous page; without one the listing is exhausted.
func (a *Accounting) FetchPage(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	res, ok := accountingResources[req.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, req.EntityType)
	}
	if req.Page > 1 && req.Cursor == "" {
		return &integration.Page{}, nil
	}

	q := url.Values{}
	for k, v := range req.Filters {
		q.Set(k, v)
	}
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	}
	if req.PageSize > 0 {
		q.Set("limit", strconv.Itoa(req.PageSize))
	}
	if req.ModifiedSince != nil {
		q.Set("modified_since", req.ModifiedSince.UTC().Format(time.RFC3339))
	}
	if len(req.IDs) > 0 {
		q.Set("ids", strings.Join(req.IDs, ","))
	}

	var env rawEnvelope
	if err := a.client.do(ctx, req.TenantID, apiRequest{method: http.MethodGet, path: "/" + res.plural, query: q}, &env); err != nil {
		return nil, err
	}
	records, err := env.records("data", req.EntityType)
	if err != nil {
		return nil, integration.NewValidationError("malformed accounting page: " + err.Error())
	}
	page := &integration.Page{Records: records}
	if raw, ok := env["next_cursor"]; ok {
		var cursor string
		if err := json.Unmarshal(raw, &cursor); err == nil {
			page.NextCursor = cursor
		}
	}
	return page, nil
}

// Push implements integration.Connector
func (a *Accounting) Push(ctx context.Context, req integration.PushRequest) (*integration.PushResult, error) {
	res, ok := accountingResources[req.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, req.EntityType)
	}
	payload, err := a.codec.Encode(req.Entity, req.Fields)
	if err != nil {
		return nil, err
	}

	call := apiRequest{method: http.MethodPost, path: "/" + res.plural, body: payload}
	if req.RemoteID != "" {
		call.method = http.MethodPut
		call.path = "/" + res.plural + "/" + url.PathEscape(req.RemoteID)
	}

	var env rawEnvelope
	if err := a.client.do(ctx, req.TenantID, call, &env); err != nil {
		return nil, err
	}
	rec, err := env.record("data", req.EntityType)
	if err != nil {
		return nil, integration.NewValidationError("malformed accounting response: " + err.Error())
	}
	remoteID := req.RemoteID
	if rec != nil && rec.ExternalID != "" {
		remoteID = rec.ExternalID
	}
	if remoteID == "" {
		return nil, integration.NewValidationError("accounting did not return an id for the written " + string(req.EntityType))
	}
	return &integration.PushResult{RemoteID: remoteID, Created: req.RemoteID == ""}, nil
}

// Lookup implements integration.Lookuper
func (a *Accounting) Lookup(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, field, value string) (string, bool, error) {
	if accountingLookupFields[entityType] != field {
		return "", false, fmt.Errorf("%w: accounting lookup of %s by %s", integration.ErrOperationUnsupported, entityType, field)
	}
	res := accountingResources[entityType]
	param := accountingQueryField[field]
	q := url.Values{}
	q.Set(param, value)
	q.Set("limit", "1")

	var env rawEnvelope
	if err := a.client.do(ctx, tenantID, apiRequest{method: http.MethodGet, path: "/" + res.plural, query: q}, &env); err != nil {
		return "", false, err
	}
	records, err := env.records("data", entityType)
	if err != nil {
		return "", false, integration.NewValidationError("malformed accounting search: " + err.Error())
	}
	for _, rec := range records {
		if strings.EqualFold(stringValue(rec.Data[param]), value) {
			return rec.ExternalID, true, nil
		}
	}
	return "", false, nil
}

// Get implements integration.Getter
func (a *Accounting) Get(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, remoteID string) (*integration.RawRecord, error) {
	res, ok := accountingResources[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, entityType)
	}
	var env rawEnvelope
	if err := a.client.do(ctx, tenantID, apiRequest{method: http.MethodGet, path: "/" + res.plural + "/" + url.PathEscape(remoteID)}, &env); err != nil {
		return nil, err
	}
	rec, err := env.record("data", entityType)
	if err != nil {
		return nil, integration.NewValidationError("malformed accounting record: " + err.Error())
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: accounting %s %s", integration.ErrEntityNotFound, entityType, remoteID)
	}
	return rec, nil
}

// RefreshAuth implements integration.Connector
func (a *Accounting) RefreshAuth(ctx context.Context, tenantID uuid.UUID) error {
	_, err := a.tokens.Refresh(ctx, tenantID)
	return err
}

// TestConnection implements integration.Connector
func (a *Accounting) TestConnection(ctx context.Context, tenantID uuid.UUID) error {
	return a.client.do(ctx, tenantID, apiRequest{method: http.MethodGet, path: "/organisation"}, nil)
}

// assertionClaims are the claims of the JWT-bearer token request
type assertionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id,omitempty"`
}

// requestToken signs an assertion with the tenant's client secret and
// exchanges it for an access token
func (a *Accounting) requestToken(ctx context.Context, cred *integration.Credential) (*TokenGrant, error) {
	clientID := cred.MetadataValue("client_id", "")
	if clientID == "" || cred.Secret == "" {
		return nil, integration.NewAuthError("accounting credential needs a client_id and a client secret", nil)
	}
	assertion, err := a.signAssertion(cred, clientID)
	if err != nil {
		return nil, integration.NewAuthError("failed to sign token assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	var tok tokenResponse
	call := apiRequest{method: http.MethodPost, path: a.cfg.TokenPath, form: form, anonymous: true}
	if err := a.client.do(ctx, cred.TenantID, call, &tok); err != nil {
		return nil, err
	}
	return grantFrom(tok, a.now())
}

func (a *Accounting) signAssertion(cred *integration.Credential, clientID string) (string, error) {
	now := a.now()
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    clientID,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{a.cfg.HTTP.BaseURL + a.cfg.TokenPath},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.AssertionTTL)),
		},
		AccountID: cred.MetadataValue("account_id", ""),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cred.Secret))
}
