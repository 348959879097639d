package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
)

// StorefrontConfig configures the storefront connector
type StorefrontConfig struct {
	HTTP HTTPConfig
	// TokenPath is the OAuth token endpoint relative to the base URL
	TokenPath       string
	DefaultCurrency string
}

// Validate checks the configuration and applies defaults
func (c *StorefrontConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if c.TokenPath == "" {
		c.TokenPath = "/oauth/token"
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	return nil
}

type resourceNames struct {
	plural   string
	singular string
}

var storefrontResources = map[integration.EntityType]resourceNames{
	integration.EntityTypeCustomer: {"customers", "customer"},
	integration.EntityTypeProduct:  {"products", "product"},
	integration.EntityTypeOrder:    {"orders", "order"},
}

// storefrontLookupFields are the natural keys the storefront can search by
var storefrontLookupFields = map[integration.EntityType]string{
	integration.EntityTypeCustomer: "email",
	integration.EntityTypeProduct:  "sku",
}

// Storefront is the e-commerce storefront connector. It pages with 1-based
// page numbers and authenticates with refreshable OAuth bearer tokens.
type Storefront struct {
	cfg    StorefrontConfig
	client *restClient
	tokens *TokenSource
	codec  StorefrontCodec
	now    func() time.Time
}

var (
	_ integration.Connector = (*Storefront)(nil)
	_ integration.Lookuper  = (*Storefront)(nil)
	_ integration.Getter    = (*Storefront)(nil)
)

// NewStorefront creates the storefront connector
func NewStorefront(cfg StorefrontConfig, creds integration.CredentialProvider, opts ...Option) (*Storefront, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	s := &Storefront{cfg: cfg, codec: StorefrontCodec{DefaultCurrency: cfg.DefaultCurrency}, now: o.now}
	s.tokens = NewTokenSource(integration.SystemStorefront, creds, s.refreshToken, o.logger)
	s.tokens.now = o.now
	s.client = newRESTClient(integration.SystemStorefront, cfg.HTTP, s.tokens, o.httpClient, o.metrics, o.logger)
	return s, nil
}

// System implements integration.Connector
func (s *Storefront) System() integration.SystemCode { return integration.SystemStorefront }

// Codec implements integration.Connector
func (s *Storefront) Codec() integration.Codec { return s.codec }

// FetchPage implements integration.Connector
func (s *Storefront) FetchPage(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	res, ok := storefrontResources[req.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, req.EntityType)
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	for k, v := range req.Filters {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(page))
	if req.PageSize > 0 {
		q.Set("limit", strconv.Itoa(req.PageSize))
	}
	if req.ModifiedSince != nil {
		q.Set("updated_at_min", req.ModifiedSince.UTC().Format(time.RFC3339))
	}
	if len(req.IDs) > 0 {
		q.Set("ids", strings.Join(req.IDs, ","))
	}

	var env rawEnvelope
	if err := s.client.do(ctx, req.TenantID, apiRequest{method: http.MethodGet, path: "/" + res.plural, query: q}, &env); err != nil {
		return nil, err
	}
	records, err := env.records(res.plural, req.EntityType)
	if err != nil {
		return nil, integration.NewValidationError("malformed storefront page: " + err.Error())
	}
	return &integration.Page{Records: records}, nil
}

// Push implements integration.Connector
func (s *Storefront) Push(ctx context.Context, req integration.PushRequest) (*integration.PushResult, error) {
	res, ok := storefrontResources[req.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, req.EntityType)
	}
	payload, err := s.codec.Encode(req.Entity, req.Fields)
	if err != nil {
		return nil, err
	}

	call := apiRequest{method: http.MethodPost, path: "/" + res.plural, body: map[string]any{res.singular: payload}}
	if req.RemoteID != "" {
		call.method = http.MethodPut
		call.path = "/" + res.plural + "/" + url.PathEscape(req.RemoteID)
	}

	var env rawEnvelope
	if err := s.client.do(ctx, req.TenantID, call, &env); err != nil {
		return nil, err
	}
	rec, err := env.record(res.singular, req.EntityType)
	if err != nil {
		return nil, integration.NewValidationError("malformed storefront response: " + err.Error())
	}
	remoteID := req.RemoteID
	if rec != nil && rec.ExternalID != "" {
		remoteID = rec.ExternalID
	}
	if remoteID == "" {
		return nil, integration.NewValidationError("storefront did not return an id for the written " + string(req.EntityType))
	}
	return &integration.PushResult{RemoteID: remoteID, Created: req.RemoteID == ""}, nil
}

// Lookup implements integration.Lookuper
func (s *Storefront) Lookup(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, field, value string) (string, bool, error) {
	if storefrontLookupFields[entityType] != field {
		return "", false, fmt.Errorf("%w: storefront lookup of %s by %s", integration.ErrOperationUnsupported, entityType, field)
	}
	res := storefrontResources[entityType]
	q := url.Values{}
	q.Set(field, value)
	q.Set("limit", "1")

	var env rawEnvelope
	if err := s.client.do(ctx, tenantID, apiRequest{method: http.MethodGet, path: "/" + res.plural, query: q}, &env); err != nil {
		return "", false, err
	}
	records, err := env.records(res.plural, entityType)
	if err != nil {
		return "", false, integration.NewValidationError("malformed storefront search: " + err.Error())
	}
	for _, rec := range records {
		if strings.EqualFold(stringValue(rec.Data[field]), value) {
			return rec.ExternalID, true, nil
		}
	}
	return "", false, nil
}

// Get implements integration.Getter
func (s *Storefront) Get(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, remoteID string) (*integration.RawRecord, error) {
	res, ok := storefrontResources[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, entityType)
	}
	var env rawEnvelope
	if err := s.client.do(ctx, tenantID, apiRequest{method: http.MethodGet, path: "/" + res.plural + "/" + url.PathEscape(remoteID)}, &env); err != nil {
		return nil, err
	}
	rec, err := env.record(res.singular, entityType)
	if err != nil {
		return nil, integration.NewValidationError("malformed storefront record: " + err.Error())
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: storefront %s %s", integration.ErrEntityNotFound, entityType, remoteID)
	}
	return rec, nil
}

// RefreshAuth implements integration.Connector
func (s *Storefront) RefreshAuth(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.tokens.Refresh(ctx, tenantID)
	return err
}

// TestConnection implements integration.Connector
func (s *Storefront) TestConnection(ctx context.Context, tenantID uuid.UUID) error {
	return s.client.do(ctx, tenantID, apiRequest{method: http.MethodGet, path: "/shop"}, nil)
}

// refreshToken runs the OAuth refresh_token grant
func (s *Storefront) refreshToken(ctx context.Context, cred *integration.Credential) (*TokenGrant, error) {
	if cred.RefreshToken == "" {
		return nil, integration.NewAuthError("storefront credential has no refresh token", nil)
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", cred.MetadataValue("client_id", ""))
	form.Set("client_secret", cred.Secret)

	var tok tokenResponse
	call := apiRequest{method: http.MethodPost, path: s.cfg.TokenPath, form: form, anonymous: true}
	if err := s.client.do(ctx, cred.TenantID, call, &tok); err != nil {
		return nil, err
	}
	return grantFrom(tok, s.now())
}

func grantFrom(tok tokenResponse, now time.Time) (*TokenGrant, error) {
	if tok.AccessToken == "" {
		return nil, integration.NewAuthError("token endpoint returned no access token", nil)
	}
	grant := &TokenGrant{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if tok.ExpiresIn > 0 {
		grant.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return grant, nil
}
