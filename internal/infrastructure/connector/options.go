package connector

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

type options struct {
	httpClient *http.Client
	metrics    RequestMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a connector
type Option func(*options)

// WithHTTPClient sets the HTTP client used by REST connectors
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRequestMetrics records request outcomes
func WithRequestMetrics(m RequestMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithConnectorLogger sets the logger
func WithConnectorLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// rawEnvelope is a response whose payload sits under a resource key
type rawEnvelope map[string]json.RawMessage

// records decodes the array under key into raw records
func (e rawEnvelope) records(key string, entityType integration.EntityType) ([]integration.RawRecord, error) {
	raw, ok := e[key]
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var items []map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	out := make([]integration.RawRecord, 0, len(items))
	for _, item := range items {
		out = append(out, toRawRecord(item, entityType))
	}
	return out, nil
}

// record decodes the object under key into one raw record
func (e rawEnvelope) record(key string, entityType integration.EntityType) (*integration.RawRecord, error) {
	raw, ok := e[key]
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var item map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&item); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	rec := toRawRecord(item, entityType)
	return &rec, nil
}

// toRawRecord picks the id and modification time out of a platform document.
// Platforms name their id field after the resource, so several keys are tried.
func toRawRecord(item map[string]any, entityType integration.EntityType) integration.RawRecord {
	rec := integration.RawRecord{EntityType: entityType, Data: item}
	for _, key := range []string{"id", "contact_id", "item_id", "invoice_id"} {
		if v := stringValue(item[key]); v != "" {
			rec.ExternalID = v
			break
		}
	}
	if t, err := parseTime(stringValue(item["updated_at"])); err == nil {
		rec.UpdatedAt = t
	}
	return rec
}
