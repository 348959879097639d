package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/storage"
)

const defaultWarehousePageSize = 100

// WarehouseConfig configures the warehouse connector
type WarehouseConfig struct {
	// Prefix is the key prefix under which records are staged
	Prefix string
	// Timeout bounds each object store call
	Timeout time.Duration
	Retry   RetryPolicy
}

// Warehouse stages canonical documents as JSON objects for the analytics
// warehouse loader. Keys are {prefix}/{tenant}/{entity_type}/{id}.json.
type Warehouse struct {
	store   storage.ObjectStore
	cfg     WarehouseConfig
	codec   DocumentCodec
	metrics RequestMetrics
	logger  *zap.Logger
	newID   func() string
}

var (
	_ integration.Connector = (*Warehouse)(nil)
	_ integration.Getter    = (*Warehouse)(nil)
)

// NewWarehouse creates the warehouse connector over an object store
func NewWarehouse(store storage.ObjectStore, cfg WarehouseConfig, opts ...Option) *Warehouse {
	o := applyOptions(opts)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.Prefix == "" {
		cfg.Prefix = "records"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Warehouse{
		store:   store,
		cfg:     cfg,
		metrics: o.metrics,
		logger:  o.logger.With(zap.String("platform", string(integration.SystemWarehouse))),
		newID:   uuid.NewString,
	}
}

// System implements integration.Connector
func (w *Warehouse) System() integration.SystemCode { return integration.SystemWarehouse }

// Codec implements integration.Connector
func (w *Warehouse) Codec() integration.Codec { return w.codec }

func (w *Warehouse) prefix(tenantID uuid.UUID, entityType integration.EntityType) string {
	return path.Join(w.cfg.Prefix, tenantID.String(), string(entityType)) + "/"
}

func (w *Warehouse) key(tenantID uuid.UUID, entityType integration.EntityType, id string) string {
	return w.prefix(tenantID, entityType) + id + ".json"
}

// FetchPage implements integration.Connector. The object listing token is the
// page cursor; ModifiedSince compares against the object's staging time.
func (w *Warehouse) FetchPage(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	if !req.EntityType.IsValid() {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, req.EntityType)
	}
	if len(req.IDs) > 0 {
		if req.Page > 1 {
			return &integration.Page{}, nil
		}
		return w.fetchIDs(ctx, req)
	}
	if req.Page > 1 && req.Cursor == "" {
		return &integration.Page{}, nil
	}

	size := req.PageSize
	if size <= 0 {
		size = defaultWarehousePageSize
	}
	prefix := w.prefix(req.TenantID, req.EntityType)
	token := req.Cursor
	page := &integration.Page{}

	// Filtered listings may yield nothing on one store page; keep going so
	// an empty result really means the listing is exhausted
	for {
		var listing *storage.ObjectPage
		err := w.call(ctx, func(ctx context.Context) error {
			var err error
			listing, err = w.store.List(ctx, prefix, token, size)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range listing.Objects {
			if req.ModifiedSince != nil && !obj.LastModified.After(*req.ModifiedSince) {
				continue
			}
			rec, err := w.read(ctx, obj.Key, req.EntityType)
			if err != nil {
				if errors.Is(err, integration.ErrEntityNotFound) {
					continue
				}
				return nil, err
			}
			if rec.UpdatedAt.IsZero() {
				rec.UpdatedAt = obj.LastModified
			}
			page.Records = append(page.Records, *rec)
		}
		token = listing.NextToken
		if len(page.Records) > 0 || token == "" {
			break
		}
	}
	page.NextCursor = token
	return page, nil
}

func (w *Warehouse) fetchIDs(ctx context.Context, req integration.FetchRequest) (*integration.Page, error) {
	page := &integration.Page{}
	for _, id := range req.IDs {
		rec, err := w.Get(ctx, req.TenantID, req.EntityType, id)
		if err != nil {
			if errors.Is(err, integration.ErrEntityNotFound) {
				continue
			}
			return nil, err
		}
		page.Records = append(page.Records, *rec)
	}
	return page, nil
}

// Push implements integration.Connector. New records get a fresh id; the
// id the entity had in its source system is kept as source_id.
func (w *Warehouse) Push(ctx context.Context, req integration.PushRequest) (*integration.PushResult, error) {
	doc, err := w.codec.Encode(req.Entity, req.Fields)
	if err != nil {
		return nil, err
	}
	id := req.RemoteID
	if id == "" {
		id = w.newID()
	}
	doc["id"] = id
	doc["source_id"] = req.Entity.ExternalID()

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("warehouse: encode %s: %w", req.EntityType, err)
	}
	key := w.key(req.TenantID, req.EntityType, id)
	if err := w.call(ctx, func(ctx context.Context) error {
		return w.store.Put(ctx, key, raw, "application/json")
	}); err != nil {
		return nil, err
	}
	return &integration.PushResult{RemoteID: id, Created: req.RemoteID == ""}, nil
}

// Get implements integration.Getter
func (w *Warehouse) Get(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, id string) (*integration.RawRecord, error) {
	return w.read(ctx, w.key(tenantID, entityType, id), entityType)
}

func (w *Warehouse) read(ctx context.Context, key string, entityType integration.EntityType) (*integration.RawRecord, error) {
	var raw []byte
	err := w.call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = w.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	doc := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, integration.NewValidationError(fmt.Sprintf("malformed warehouse object %s: %v", key, err))
	}
	rec := integration.RawRecord{
		ExternalID: strings.TrimSuffix(path.Base(key), ".json"),
		EntityType: entityType,
		Data:       doc,
	}
	if t, err := parseTime(stringValue(doc["updated_at"])); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

// RefreshAuth implements integration.Connector; the object store uses static keys
func (w *Warehouse) RefreshAuth(context.Context, uuid.UUID) error { return nil }

// TestConnection implements integration.Connector
func (w *Warehouse) TestConnection(ctx context.Context, _ uuid.UUID) error {
	return w.call(ctx, w.store.Ping)
}

// call runs one object store operation under the timeout and retry policy,
// classifying failures like the REST connectors do
func (w *Warehouse) call(ctx context.Context, op func(ctx context.Context) error) error {
	err := w.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, storage.ErrObjectNotFound):
			return fmt.Errorf("%w: %v", integration.ErrEntityNotFound, err)
		case errors.Is(err, context.DeadlineExceeded):
			return integration.NewTimeoutError("warehouse store timed out", err)
		case errors.Is(err, context.Canceled):
			return err
		default:
			return integration.NewNetworkError("warehouse store call failed", err)
		}
	}, func(err error, wait time.Duration) {
		w.logger.Warn("Retrying warehouse store call", zap.Duration("wait", wait), zap.Error(err))
	})
	if w.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = string(integration.KindOf(err))
		}
		w.metrics.RecordRequest(ctx, integration.SystemWarehouse, outcome)
	}
	return err
}
