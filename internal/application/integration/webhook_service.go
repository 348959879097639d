package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/shared"
	"github.com/erp/syncengine/internal/infrastructure/telemetry"
)

// WebhookOutcome is what happened to an inbound event
type WebhookOutcome string

const (
	// WebhookAccepted means the event was valid but no connector reads from the platform
	WebhookAccepted  WebhookOutcome = "accepted"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookQueued    WebhookOutcome = "queued"
	// WebhookDeferred means a run was busy; a follow-up starts when it finishes
	WebhookDeferred WebhookOutcome = "deferred"
)

// WebhookResult is returned by Ingest
type WebhookResult struct {
	Outcome  WebhookOutcome `json:"outcome"`
	EventKey string         `json:"event_key"`
	SyncIDs  []uuid.UUID    `json:"sync_ids,omitempty"`
}

// WebhookServiceConfig configures WebhookService
type WebhookServiceConfig struct {
	// Secrets holds the shared HMAC secret per platform
	Secrets map[integration.SystemCode]string
	// IdempotencyTTL is how long an event key is remembered
	IdempotencyTTL time.Duration
	// NodeID identifies this instance in generated event ids
	NodeID int64
}

// WebhookService verifies, normalizes and deduplicates inbound platform
// events and turns them into targeted incremental runs
type WebhookService struct {
	configs integration.ConnectorConfigRepository
	events  integration.WebhookEventRepository
	dedup   shared.IdempotencyStore
	trigger SyncTrigger
	metrics SyncMetrics
	ids     *snowflake.Node
	secrets map[integration.SystemCode]string
	ttl     time.Duration
	logger  *zap.Logger
}

// NewWebhookService creates a WebhookService
func NewWebhookService(
	cfg WebhookServiceConfig,
	configs integration.ConnectorConfigRepository,
	events integration.WebhookEventRepository,
	dedup shared.IdempotencyStore,
	trigger SyncTrigger,
	metrics SyncMetrics,
	logger *zap.Logger,
) (*WebhookService, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("webhook id generator: %w", err)
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if metrics == nil {
		metrics = NoopMetrics
	}
	return &WebhookService{
		configs: configs,
		events:  events,
		dedup:   dedup,
		trigger: trigger,
		metrics: metrics,
		ids:     node,
		secrets: cfg.Secrets,
		ttl:     cfg.IdempotencyTTL,
		logger:  logger,
	}, nil
}

// IdempotencyTTL returns the dedup window, used to purge old event rows
func (s *WebhookService) IdempotencyTTL() time.Duration {
	return s.ttl
}

// Ingest handles one delivery. The signature is checked before anything else;
// a bad signature returns ErrInvalidSignature with no side effects.
func (s *WebhookService) Ingest(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode, body []byte, signature string) (*WebhookResult, error) {
	if !platform.IsValid() {
		return nil, integration.ErrInvalidSystemCode
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "ingest",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, string(platform)),
	)
	defer span.End()

	result, err := s.ingest(ctx, tenantID, platform, body, signature)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrEventKey, result.EventKey)
	telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, string(result.Outcome))
	return result, nil
}

func (s *WebhookService) ingest(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode, body []byte, signature string) (*WebhookResult, error) {
	if !VerifySignature(s.secrets[platform], body, signature) {
		s.metrics.RecordWebhook(ctx, platform, "unauthorized")
		s.logger.Warn("Webhook signature rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(platform)),
			zap.Int("body_bytes", len(body)),
		)
		return nil, integration.ErrInvalidSignature
	}

	event, err := ParseWebhook(platform, body)
	if err != nil {
		s.metrics.RecordWebhook(ctx, platform, "invalid")
		return nil, err
	}
	key := event.DedupKey()
	storeKey := fmt.Sprintf("webhook:%s:%s", tenantID, key)
	log := s.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", string(platform)),
		zap.String("event_key", key),
		zap.String("format", string(event.Format)),
	)

	if s.dedup != nil {
		seen, err := s.dedup.IsProcessed(ctx, storeKey)
		if err != nil {
			log.Warn("Idempotency store unavailable, relying on event table", zap.Error(err))
		} else if seen {
			return s.duplicate(ctx, platform, key, log), nil
		}
	}

	record := &integration.WebhookEvent{
		ID:             s.ids.Generate().Int64(),
		TenantID:       tenantID,
		Platform:       platform,
		EventKey:       key,
		Topic:          event.Topic,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		SignatureValid: true,
		ReceivedAt:     time.Now(),
	}
	if err := s.events.Create(ctx, record); err != nil {
		if errors.Is(err, integration.ErrDuplicateWebhook) {
			return s.duplicate(ctx, platform, key, log), nil
		}
		return nil, err
	}

	syncIDs, err := s.enqueue(ctx, tenantID, event, record, log)
	if err != nil {
		// Release the claim so the platform's redelivery is processed
		if delErr := s.events.Delete(context.WithoutCancel(ctx), record.ID); delErr != nil {
			log.Error("Failed to release webhook event claim", zap.Error(delErr))
		}
		s.metrics.RecordWebhook(ctx, platform, "error")
		return nil, err
	}

	record.MarkProcessed(syncIDs)
	if err := s.events.Save(ctx, record); err != nil {
		log.Warn("Failed to mark webhook event processed", zap.Error(err))
	}
	// The busy run may have finished before the deferral was stored
	for _, d := range record.Deferred {
		s.drainDeferred(ctx, tenantID, d.ConnectorID, event.EntityType)
	}
	if s.dedup != nil {
		if _, err := s.dedup.MarkProcessed(ctx, storeKey, s.ttl); err != nil {
			log.Warn("Failed to record webhook event key", zap.Error(err))
		}
	}

	result := &WebhookResult{Outcome: WebhookAccepted, EventKey: key, SyncIDs: syncIDs}
	switch {
	case len(syncIDs) > 0:
		result.Outcome = WebhookQueued
	case record.IsDeferred():
		result.Outcome = WebhookDeferred
	}
	s.metrics.RecordWebhook(ctx, platform, string(result.Outcome))
	log.Info("Webhook event ingested",
		zap.String("entity_type", string(event.EntityType)),
		zap.String("entity_id", event.EntityID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("syncs", len(syncIDs)),
	)
	return result, nil
}

func (s *WebhookService) duplicate(ctx context.Context, platform integration.SystemCode, key string, log *zap.Logger) *WebhookResult {
	s.metrics.RecordWebhook(ctx, platform, string(WebhookDuplicate))
	log.Debug("Duplicate webhook event ignored")
	return &WebhookResult{Outcome: WebhookDuplicate, EventKey: key}
}

// enqueue starts one targeted incremental run per enabled connector that
// reads from the platform. A two-way connector whose target is the platform
// runs in reverse. Busy connectors are deferred on the record.
func (s *WebhookService) enqueue(ctx context.Context, tenantID uuid.UUID, event integration.InboundEvent, record *integration.WebhookEvent, log *zap.Logger) ([]uuid.UUID, error) {
	cfgs, err := s.configs.FindAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	syncIDs := make([]uuid.UUID, 0, 1)
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		scope := integration.SyncScope{IDs: []string{event.EntityID}}
		switch {
		case cfg.SourceSystem == event.Platform:
		case cfg.TargetSystem == event.Platform && cfg.IsTwoWay():
			scope.Reverse = true
		default:
			continue
		}

		state, err := s.trigger.Trigger(ctx, TriggerCommand{
			TenantID:       tenantID,
			ConnectorID:    cfg.ID,
			EntityType:     event.EntityType,
			Mode:           integration.SyncModeIncremental,
			Scope:          scope,
			IdempotencyKey: fmt.Sprintf("webhook:%s:%s", cfg.ID, event.DedupKey()),
			Trigger:        integration.TriggerWebhook,
		})
		if errors.Is(err, integration.ErrSyncInProgress) {
			record.Defer(cfg.ID, scope.Reverse)
			log.Info("Sync already running, webhook change deferred",
				zap.String("connector_id", cfg.ID.String()),
				zap.String("entity_type", string(event.EntityType)),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		syncIDs = append(syncIDs, state.ID)
	}
	return syncIDs, nil
}

// RunFinished implements RunObserver. Events deferred while the connector was
// busy are batched into one targeted run per direction. A run that cannot
// start because another took the key stays deferred for the next finish.
func (s *WebhookService) RunFinished(ctx context.Context, state *integration.SyncState) {
	s.drainDeferred(ctx, state.TenantID, state.ConnectorID, state.EntityType)
}

func (s *WebhookService) drainDeferred(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) {
	log := s.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("connector_id", connectorID.String()),
		zap.String("entity_type", string(entityType)),
	)
	pending, err := s.events.FindDeferred(ctx, tenantID, entityType)
	if err != nil {
		log.Warn("Failed to load deferred webhook events", zap.Error(err))
		return
	}

	var forward, reverse []*integration.WebhookEvent
	for _, e := range pending {
		d, ok := e.DeferredFor(connectorID)
		switch {
		case !ok:
		case d.Reverse:
			reverse = append(reverse, e)
		default:
			forward = append(forward, e)
		}
	}
	if len(forward) == 0 && len(reverse) == 0 {
		return
	}

	cfg, err := s.configs.FindByID(ctx, tenantID, connectorID)
	if err != nil && !errors.Is(err, integration.ErrConnectorNotFound) {
		log.Warn("Failed to load connector for deferred webhook events", zap.Error(err))
		return
	}
	if cfg == nil || !cfg.Enabled {
		log.Info("Connector gone or disabled, dropping deferred webhook events",
			zap.Int("events", len(forward)+len(reverse)))
		s.resolveDeferred(ctx, connectorID, append(forward, reverse...), nil, log)
		return
	}

	for _, batch := range []struct {
		events  []*integration.WebhookEvent
		reverse bool
	}{{forward, false}, {reverse, true}} {
		if len(batch.events) == 0 {
			continue
		}
		run, err := s.trigger.Trigger(ctx, TriggerCommand{
			TenantID:    tenantID,
			ConnectorID: connectorID,
			EntityType:  entityType,
			Mode:        integration.SyncModeIncremental,
			Scope:       integration.SyncScope{IDs: entityIDs(batch.events), Reverse: batch.reverse},
			Trigger:     integration.TriggerWebhook,
		})
		if errors.Is(err, integration.ErrSyncInProgress) {
			log.Debug("Deferred webhook run still blocked", zap.Bool("reverse", batch.reverse))
			return
		}
		if err != nil {
			log.Warn("Failed to start deferred webhook run", zap.Bool("reverse", batch.reverse), zap.Error(err))
			return
		}
		syncID := run.ID
		s.resolveDeferred(ctx, connectorID, batch.events, &syncID, log)
		log.Info("Deferred webhook run queued",
			zap.String("sync_id", syncID.String()),
			zap.Int("events", len(batch.events)),
			zap.Bool("reverse", batch.reverse),
		)
	}
}

func (s *WebhookService) resolveDeferred(ctx context.Context, connectorID uuid.UUID, events []*integration.WebhookEvent, syncID *uuid.UUID, log *zap.Logger) {
	for _, e := range events {
		e.ResolveDeferral(connectorID, syncID)
		if err := s.events.Save(ctx, e); err != nil {
			log.Warn("Failed to update deferred webhook event", zap.Int64("event_id", e.ID), zap.Error(err))
		}
	}
}

// entityIDs returns the distinct entity ids of events in arrival order
func entityIDs(events []*integration.WebhookEvent) []string {
	seen := make(map[string]struct{}, len(events))
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e.EntityID]; ok {
			continue
		}
		seen[e.EntityID] = struct{}{}
		ids = append(ids, e.EntityID)
	}
	return ids
}

// PurgeExpired deletes event rows older than the dedup window
func (s *WebhookService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.events.PurgeBefore(ctx, time.Now().Add(-s.ttl))
}
