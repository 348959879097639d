package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/syncengine/internal/domain/integration"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// RequestMetrics records outbound request outcomes per platform
type RequestMetrics interface {
	RecordRequest(ctx context.Context, platform integration.SystemCode, outcome string)
}

// HTTPConfig configures the shared REST client
type HTTPConfig struct {
	BaseURL string
	// Timeout bounds every single attempt
	Timeout time.Duration
	// RateLimit is the sustained requests per second; 0 disables limiting
	RateLimit float64
	Burst     int
	Retry     RetryPolicy
	UserAgent string
}

// Validate checks the configuration and applies defaults
func (c *HTTPConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("connector: base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("connector: invalid base URL %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetryPolicy()
	}
	if c.UserAgent == "" {
		c.UserAgent = "syncengine/1.0"
	}
	return nil
}

// apiRequest describes one REST call
type apiRequest struct {
	method string
	path   string
	query  url.Values
	body   any
	// form is sent as application/x-www-form-urlencoded instead of body
	form url.Values
	// anonymous requests carry no bearer token
	anonymous bool
	header    http.Header
}

// tokenProvider is the slice of TokenSource the client needs
type tokenProvider interface {
	Token(ctx context.Context, tenantID uuid.UUID) (string, error)
	Refresh(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// restClient performs authenticated, rate limited, retried JSON calls and
// maps HTTP failures onto the sync error taxonomy
type restClient struct {
	platform   integration.SystemCode
	cfg        HTTPConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     tokenProvider
	metrics    RequestMetrics
	logger     *zap.Logger
}

func newRESTClient(platform integration.SystemCode, cfg HTTPConfig, tokens tokenProvider, httpClient *http.Client, metrics RequestMetrics, logger *zap.Logger) *restClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return &restClient{
		platform:   platform,
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    limiter,
		tokens:     tokens,
		metrics:    metrics,
		logger:     logger.With(zap.String("platform", string(platform))),
	}
}

// do runs req under the retry policy and decodes the JSON response into out
func (c *restClient) do(ctx context.Context, tenantID uuid.UUID, req apiRequest, out any) error {
	err := c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		return c.attempt(ctx, tenantID, req, out)
	}, func(err error, wait time.Duration) {
		c.logger.Warn("Retrying platform request",
			zap.String("tenant_id", tenantID.String()),
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	c.record(ctx, err)
	return err
}

func (c *restClient) record(ctx context.Context, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(integration.KindOf(err))
	}
	c.metrics.RecordRequest(ctx, c.platform, outcome)
}

// attempt performs a single call. A 401 triggers one token refresh and one
// immediate replay before it is reported as an auth error.
func (c *restClient) attempt(ctx context.Context, tenantID uuid.UUID, req apiRequest, out any) error {
	token := ""
	if !req.anonymous && c.tokens != nil {
		t, err := c.tokens.Token(ctx, tenantID)
		if err != nil {
			return err
		}
		token = t
	}

	resp, body, err := c.send(ctx, req, token)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && !req.anonymous && c.tokens != nil {
		c.logger.Info("Access token rejected, refreshing", zap.String("tenant_id", tenantID.String()))
		t, err := c.tokens.Refresh(ctx, tenantID)
		if err != nil {
			return err
		}
		resp, body, err = c.send(ctx, req, t)
		if err != nil {
			return err
		}
	}

	if err := classifyResponse(c.platform, resp, body); err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", c.platform, err)
	}
	return nil
}

func (c *restClient) send(ctx context.Context, req apiRequest, token string) (*http.Response, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, integration.NewTimeoutError("rate limiter wait aborted", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := c.cfg.BaseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var reader io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		reader = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to encode request: %w", c.platform, err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to create request: %w", c.platform, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, classifyTransportError(c.platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, classifyTransportError(c.platform, err)
	}
	return resp, body, nil
}

func classifyTransportError(platform integration.SystemCode, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return integration.NewTimeoutError(string(platform)+" request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return integration.NewNetworkError(string(platform)+" unreachable", err)
}

// apiErrorBody is the error envelope the REST platforms share
type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (b apiErrorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

// classifyResponse maps an HTTP status onto the sync error taxonomy
func classifyResponse(platform integration.SystemCode, resp *http.Response, body []byte) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var detail apiErrorBody
	_ = json.Unmarshal(body, &detail)
	msg := fmt.Sprintf("%s returned HTTP %d", platform, resp.StatusCode)
	if t := detail.text(); t != "" {
		msg += ": " + t
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return integration.NewAuthError(msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return integration.NewRateLimitError(msg, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return integration.NewTimeoutError(msg, nil)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", integration.ErrEntityNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		return integration.NewConflictError(msg)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		fields := make([]integration.FieldError, 0, len(detail.Errors))
		for _, fe := range detail.Errors {
			fields = append(fields, integration.FieldError{Field: fe.Field, Message: fe.Message})
		}
		return integration.NewValidationError(msg, fields...)
	case resp.StatusCode >= 500:
		return integration.NewNetworkError(msg, nil)
	default:
		return &integration.SyncError{Kind: integration.ErrorKindInternal, Message: msg}
	}
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
