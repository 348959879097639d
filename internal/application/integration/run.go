package integration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
	"github.com/erp/syncengine/internal/infrastructure/telemetry"
)

// maxConsecutivePageFailures aborts a run whose pages keep failing
const maxConsecutivePageFailures = 3

// diffIgnoredKeys are system-specific and never reported as conflicts
var diffIgnoredKeys = []string{"id", "updated_at", "customer_id", "product_id"}

// run is the execution context of one SyncState
type run struct {
	state   *integration.SyncState
	cfg     *integration.ConnectorConfig
	policy  integration.EntityPolicy
	source  integration.Connector
	target  integration.Connector
	mapping *integration.FieldMapping
	reverse bool
	since   *time.Time
	filters map[string]string
	logger  *zap.Logger

	mu       sync.Mutex
	failures []*integration.FailedRecord
	resolved []string
	authErr  error
}

func (r *run) twoWay() bool {
	return r.cfg.IsTwoWay()
}

// record applies one record's outcome to the run. Called concurrently.
func (r *run) record(externalID string, outcome integration.EntityOutcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil && integration.KindOf(err) == integration.ErrorKindDuplicate {
		outcome, err = integration.OutcomeUnchanged, nil
	}
	if err != nil {
		outcome = integration.OutcomeFailed
		r.state.AddError(integration.NewRunError(externalID, err))
		r.failures = append(r.failures, integration.NewFailedRecord(r.state, externalID, err))
		if integration.KindOf(err) == integration.ErrorKindAuth && r.authErr == nil {
			r.authErr = err
		}
	} else {
		r.resolved = append(r.resolved, externalID)
	}
	r.state.RecordOutcome(outcome)
}

func (r *run) preview(entry integration.PreviewEntry) {
	if !r.state.DryRun {
		return
	}
	r.mu.Lock()
	r.state.AddPreview(entry)
	r.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Execute runs a queued SyncState to a terminal status. It is the worker
// pool's entry point and is safe to call for runs that are already executing
// elsewhere or already finished: both are no-ops.
func (o *Orchestrator) Execute(ctx context.Context, tenantID, syncID uuid.UUID) error {
	state, err := o.States.FindByID(ctx, tenantID, syncID)
	if err != nil {
		return err
	}
	if state.Status.IsTerminal() {
		return nil
	}

	release, acquired, err := o.Locker.TryLock(ctx, state.LockKey(), o.config.LockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		o.logger.Debug("Sync run is executing elsewhere", zap.String("sync_id", syncID.String()))
		return nil
	}
	// The run may have finished between the first read and the lock
	state, err = o.States.FindByID(ctx, tenantID, syncID)
	if err != nil {
		release()
		return err
	}
	if state.Status.IsTerminal() {
		release()
		return nil
	}
	// Observers run once the key is free, so they may trigger follow-up runs
	defer func() {
		release()
		if state.Status.IsTerminal() {
			for _, obs := range o.observers {
				obs.RunFinished(context.WithoutCancel(ctx), state)
			}
		}
	}()

	log := o.logger.With(
		zap.String("tenant_id", state.TenantID.String()),
		zap.String("sync_id", state.ID.String()),
		zap.String("connector_id", state.ConnectorID.String()),
		zap.String("entity_type", string(state.EntityType)),
	)

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "execute",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, state.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSyncID, state.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrConnectorID, state.ConnectorID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrEntityType, string(state.EntityType)),
	)
	defer span.End()

	if state.Status == integration.SyncStatusPending {
		if err := state.Start(); err != nil {
			return err
		}
		if err := o.States.Save(ctx, state); err != nil {
			return err
		}
		log.Info("Sync run started", zap.String("mode", string(state.Mode)), zap.Bool("dry_run", state.DryRun))
	} else {
		log.Info("Sync run resumed", zap.Int("resume_page", state.ResumePage()))
	}

	r, err := o.prepare(ctx, state, log)
	if err != nil {
		telemetry.RecordError(span, err)
		return o.failRun(ctx, state, err, log)
	}

	cancelled, err := o.runPages(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: the run stays running and is picked up by recovery
			saveCtx := context.WithoutCancel(ctx)
			if saveErr := o.States.Save(saveCtx, state); saveErr != nil {
				log.Error("Failed to save interrupted sync run", zap.Error(saveErr))
			}
			log.Warn("Sync run interrupted", zap.Int("checkpoint_page", state.ResumePage()-1))
			return ctx.Err()
		}
		telemetry.RecordError(span, err)
		return o.failRun(ctx, state, err, log)
	}

	if cancelled {
		if err := state.Cancel(); err != nil {
			return err
		}
	} else if err := state.Complete(); err != nil {
		return err
	}
	if err := o.States.Save(ctx, state); err != nil {
		return err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrSyncStatus, string(state.Status))
	o.finish(ctx, state, log)
	return nil
}

// prepare resolves the connectors and the mapping and runs the preflight
// checks. Everything that can fail the run before a record is touched
// happens here.
func (o *Orchestrator) prepare(ctx context.Context, state *integration.SyncState, log *zap.Logger) (*run, error) {
	cfg, err := o.Configs.FindByID(ctx, state.TenantID, state.ConnectorID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, integration.ErrConnectorDisabled
	}

	srcSys, tgtSys := cfg.SourceSystem, cfg.TargetSystem
	if state.Scope.Reverse {
		if !cfg.IsTwoWay() {
			return nil, integration.ErrInvalidDirection
		}
		srcSys, tgtSys = tgtSys, srcSys
	}
	source, err := o.Connectors.Get(srcSys)
	if err != nil {
		return nil, err
	}
	target, err := o.Connectors.Get(tgtSys)
	if err != nil {
		return nil, err
	}

	fm, err := o.Mappings.FindFor(ctx, state.TenantID, srcSys, tgtSys, state.EntityType)
	switch {
	case errors.Is(err, integration.ErrMappingNotFound):
		fm = nil
	case err != nil:
		return nil, err
	default:
		if err := o.Engine.Validate(fm); err != nil {
			return nil, err
		}
	}

	for _, c := range []integration.Connector{source, target} {
		if err := o.testConnection(ctx, state.TenantID, c, log); err != nil {
			return nil, err
		}
	}

	r := &run{
		state:   state,
		cfg:     cfg,
		policy:  cfg.PolicyFor(state.EntityType),
		source:  source,
		target:  target,
		mapping: fm,
		reverse: state.Scope.Reverse,
		filters: make(map[string]string, len(cfg.Filters)+len(state.Scope.Filters)),
		logger:  log,
	}
	maps.Copy(r.filters, cfg.Filters)
	maps.Copy(r.filters, state.Scope.Filters)

	if state.Mode == integration.SyncModeIncremental {
		switch {
		case state.Scope.ModifiedSince != nil:
			r.since = state.Scope.ModifiedSince
		case !state.Scope.IsTargeted():
			since, err := o.States.LastCompletedStart(ctx, state.TenantID, state.ConnectorID, state.EntityType)
			if err != nil {
				return nil, err
			}
			r.since = since
		}
	}
	return r, nil
}

// testConnection checks a connector, refreshing its token once on an auth error
func (o *Orchestrator) testConnection(ctx context.Context, tenantID uuid.UUID, c integration.Connector, log *zap.Logger) error {
	err := c.TestConnection(ctx, tenantID)
	if err == nil || integration.KindOf(err) != integration.ErrorKindAuth {
		return err
	}
	log.Info("Refreshing credentials before sync", zap.String("platform", string(c.System())))
	if refreshErr := c.RefreshAuth(ctx, tenantID); refreshErr != nil {
		return integration.NewAuthError(fmt.Sprintf("%s credentials are invalid and could not be refreshed", c.System()), refreshErr)
	}
	return c.TestConnection(ctx, tenantID)
}

// runPages fetches and processes pages from the resume point until an empty
// page. The checkpoint is saved after every fully processed page.
func (o *Orchestrator) runPages(ctx context.Context, r *run) (bool, error) {
	page := r.state.ResumePage()
	cursor := ""
	if cp := r.state.Checkpoint; cp != nil {
		cursor = cp.NextCursor
	}
	pageFailures := 0

	for {
		cancelled, err := o.States.IsCancelRequested(ctx, r.state.ID)
		if err != nil {
			return false, err
		}
		if cancelled {
			r.logger.Info("Sync run cancelled", zap.Int("next_page", page))
			return true, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		result, err := r.source.FetchPage(ctx, integration.FetchRequest{
			TenantID:      r.state.TenantID,
			EntityType:    r.state.EntityType,
			Page:          page,
			PageSize:      o.config.PageSize,
			Cursor:        cursor,
			ModifiedSince: r.since,
			IDs:           r.state.Scope.IDs,
			Filters:       r.filters,
		})
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// A numbered page can be skipped; a cursor cannot be advanced past a failure
			if integration.IsTransient(err) && cursor == "" && pageFailures+1 < maxConsecutivePageFailures {
				pageFailures++
				r.logger.Warn("Page fetch failed, continuing with next page",
					zap.Int("page", page),
					zap.Error(err),
				)
				r.state.RecordPageFailure(page, err)
				r.state.SaveCheckpoint(page, "", "")
				if err := o.States.Save(ctx, r.state); err != nil {
					return false, err
				}
				page++
				continue
			}
			return false, fmt.Errorf("fetch page %d: %w", page, err)
		}
		pageFailures = 0

		if len(result.Records) == 0 {
			return false, nil
		}

		o.processPage(ctx, r, result.Records)

		last := result.Records[len(result.Records)-1].ExternalID
		r.state.SaveCheckpoint(page, last, result.NextCursor)
		if err := o.States.Save(ctx, r.state); err != nil {
			return false, err
		}
		o.flushPage(ctx, r)
		telemetry.AddEvent(telemetry.SpanFromContext(ctx), "page_committed",
			telemetry.SpanAttrPage, page,
			"records", len(result.Records),
		)

		r.logger.Debug("Page processed",
			zap.Int("page", page),
			zap.Int("records", len(result.Records)),
			zap.Int("processed", r.state.Processed),
			zap.Int("failed", r.state.Failed),
		)

		if r.authErr != nil {
			return false, r.authErr
		}
		// A cursor-paginated source that stops handing out cursors is exhausted
		if cursor != "" && result.NextCursor == "" {
			return false, nil
		}
		page++
		cursor = result.NextCursor
	}
}

// processPage processes the records of one page with bounded concurrency.
// Each record's outcome is recorded independently.
func (o *Orchestrator) processPage(ctx context.Context, r *run, records []integration.RawRecord) {
	var g errgroup.Group
	g.SetLimit(o.config.Workers)
	for _, rec := range records {
		g.Go(func() error {
			outcome, err := o.processRecord(ctx, r, rec)
			r.record(rec.ExternalID, outcome, err)
			if err != nil {
				r.logger.Warn("Record sync failed",
					zap.String("external_id", rec.ExternalID),
					zap.String("kind", string(integration.KindOf(err))),
					zap.Error(err),
				)
			}
			o.Metrics.RecordEntity(ctx, outcomeOf(outcome, err), r.state.EntityType)
			return nil
		})
	}
	_ = g.Wait()
}

func outcomeOf(outcome integration.EntityOutcome, err error) integration.EntityOutcome {
	if err != nil && integration.KindOf(err) != integration.ErrorKindDuplicate {
		return integration.OutcomeFailed
	}
	return outcome
}

// flushPage persists the page's failed records and resolves records that
// succeeded this time
func (o *Orchestrator) flushPage(ctx context.Context, r *run) {
	r.mu.Lock()
	failures, resolved := r.failures, r.resolved
	r.failures, r.resolved = nil, nil
	r.mu.Unlock()

	if r.state.DryRun {
		return
	}
	for _, f := range failures {
		if err := o.Failures.Upsert(ctx, f); err != nil {
			r.logger.Error("Failed to persist failed record", zap.String("external_id", f.ExternalID), zap.Error(err))
		}
	}
	if len(resolved) > 0 {
		if err := o.Failures.MarkResolved(ctx, r.state.TenantID, r.state.ConnectorID, r.state.EntityType, resolved); err != nil {
			r.logger.Error("Failed to resolve failed records", zap.Error(err))
		}
	}
}

// failRun ends a run because of a run-level error
func (o *Orchestrator) failRun(ctx context.Context, state *integration.SyncState, cause error, log *zap.Logger) error {
	ctx = context.WithoutCancel(ctx)
	if err := state.Fail(integration.NewRunError("", cause)); err != nil {
		return err
	}
	if err := o.States.Save(ctx, state); err != nil {
		log.Error("Failed to save failed sync run", zap.Error(err))
		return err
	}
	log.Error("Sync run failed",
		zap.String("status", string(state.Status)),
		zap.String("kind", string(integration.KindOf(cause))),
		zap.Error(cause),
	)

	if o.Notifier != nil {
		syncID := state.ID
		n := integration.Notification{
			Kind:        integration.NotificationRunFailed,
			TenantID:    state.TenantID,
			ConnectorID: state.ConnectorID,
			EntityType:  state.EntityType,
			SyncID:      &syncID,
			Title:       fmt.Sprintf("%s sync failed", state.EntityType),
			Message:     cause.Error(),
			Details: map[string]string{
				"kind":        string(integration.KindOf(cause)),
				"remediation": integration.KindOf(cause).Remediation(),
				"status":      string(state.Status),
			},
			OccurredAt: time.Now(),
		}
		if err := o.Notifier.Notify(ctx, n); err != nil {
			log.Warn("Failed to deliver run failure notification", zap.Error(err))
		}
	}
	o.finish(ctx, state, log)
	return cause
}

func (o *Orchestrator) finish(ctx context.Context, state *integration.SyncState, log *zap.Logger) {
	o.Metrics.RecordRun(ctx, state.Status, state.EntityType, state.Duration())
	if state.Status != integration.SyncStatusFailed {
		log.Info("Sync run finished",
			zap.String("status", string(state.Status)),
			zap.Int("processed", state.Processed),
			zap.Int("created", state.Created),
			zap.Int("updated", state.Updated),
			zap.Int("unchanged", state.Unchanged),
			zap.Int("failed", state.Failed),
			zap.Duration("duration", state.Duration()),
		)
	}
}

// ---------------------------------------------------------------------------
// Record processing
// ---------------------------------------------------------------------------

// processRecord syncs one record from the run's source to its target
func (o *Orchestrator) processRecord(ctx context.Context, r *run, rec integration.RawRecord) (integration.EntityOutcome, error) {
	entity, err := r.source.Codec().Decode(rec)
	if err != nil {
		r.preview(integration.PreviewEntry{ExternalID: rec.ExternalID, Action: integration.PreviewInvalid, Errors: fieldErrorsOrMessage(err)})
		return integration.OutcomeFailed, err
	}
	hash, err := integration.ContentHash(entity)
	if err != nil {
		return integration.OutcomeFailed, err
	}
	link, err := o.IDMapper.Find(ctx, r.state.TenantID, r.source.System(), entity.ExternalID(), r.target.System())
	if err != nil {
		return integration.OutcomeFailed, err
	}

	if link != nil && link.Mapping.Matches(hash) {
		r.preview(integration.PreviewEntry{ExternalID: rec.ExternalID, Action: integration.PreviewSkip, RemoteID: link.CounterpartID()})
		return integration.OutcomeUnchanged, nil
	}
	if link != nil && r.twoWay() {
		outcome, handled, err := o.reconcile(ctx, r, entity, hash, link)
		if handled {
			return outcome, err
		}
	}
	return o.push(ctx, r, entity, hash, link)
}

// reconcile handles a mapped record in two-way mode whose source side
// changed. handled is false when nothing on the target changed and the
// normal push applies.
func (o *Orchestrator) reconcile(ctx context.Context, r *run, entity integration.Entity, hash string, link *Link) (integration.EntityOutcome, bool, error) {
	getter, ok := r.target.(integration.Getter)
	if !ok {
		return "", false, nil
	}
	remoteRec, err := getter.Get(ctx, r.state.TenantID, r.state.EntityType, link.CounterpartID())
	if errors.Is(err, integration.ErrEntityNotFound) {
		return "", false, nil
	}
	if err != nil {
		return integration.OutcomeFailed, true, err
	}
	remote, err := r.target.Codec().Decode(*remoteRec)
	if err != nil {
		return integration.OutcomeFailed, true, err
	}
	remoteHash, err := integration.ContentHash(remote)
	if err != nil {
		return integration.OutcomeFailed, true, err
	}

	changes := integration.DetectChanges(link.Mapping, hash, remoteHash)
	if !changes.IsConflict() {
		return "", false, nil
	}
	if remoteHash == hash {
		// Both sides converged on the same content
		if !r.state.DryRun {
			if err := o.IDMapper.MarkSynced(ctx, link, hash); err != nil {
				return integration.OutcomeFailed, true, err
			}
		}
		return integration.OutcomeUnchanged, true, nil
	}

	// Conflicts are kept from the connector's point of view
	oriented := link.Oriented(r.cfg.SourceSystem)
	pending, err := o.Conflicts.FindPendingForRecord(ctx, r.state.TenantID, oriented.SourceSystem, oriented.SourceID, oriented.TargetSystem)
	if err != nil {
		return integration.OutcomeFailed, true, err
	}
	if len(pending) > 0 {
		r.preview(integration.PreviewEntry{ExternalID: entity.ExternalID(), Action: integration.PreviewConflict, RemoteID: link.CounterpartID()})
		return integration.OutcomeDeferred, true, nil
	}

	connSource, connTarget := entity, remote
	if r.reverse {
		connSource, connTarget = remote, entity
	}
	decision := integration.DecideConflict(r.policy.Strategy, connSource.ModifiedAt(), connTarget.ModifiedAt())

	localDoc, err := integration.ToDocument(connSource)
	if err != nil {
		return integration.OutcomeFailed, true, err
	}
	remoteDoc, err := integration.ToDocument(connTarget)
	if err != nil {
		return integration.OutcomeFailed, true, err
	}
	diffs := integration.DiffDocuments(localDoc, remoteDoc, diffIgnoredKeys...)
	conflicts := make([]*integration.SyncConflict, 0, len(diffs))
	for _, d := range diffs {
		conflicts = append(conflicts, integration.NewSyncConflict(r.state, oriented, d, decision))
	}

	r.logger.Info("Conflict detected",
		zap.String("source_id", oriented.SourceID),
		zap.String("target_id", oriented.TargetID),
		zap.String("strategy", string(r.policy.Strategy)),
		zap.String("effective_strategy", string(decision.Effective)),
		zap.Int("fields", len(diffs)),
	)

	if r.state.DryRun {
		r.preview(integration.PreviewEntry{ExternalID: entity.ExternalID(), Action: integration.PreviewConflict, RemoteID: link.CounterpartID()})
		return integration.OutcomeDeferred, true, nil
	}
	if len(conflicts) > 0 {
		if err := o.Conflicts.CreateBatch(ctx, conflicts); err != nil {
			return integration.OutcomeFailed, true, err
		}
	}
	if decision.Deferred() {
		return integration.OutcomeDeferred, true, nil
	}

	winnerIsRunSource := (decision.Winner == integration.SideSource) != r.reverse
	if winnerIsRunSource {
		outcome, err := o.push(ctx, r, entity, hash, link)
		return outcome, true, err
	}

	// The target copy wins: write it back to the run's source
	if _, err := r.source.Push(ctx, integration.PushRequest{
		TenantID:   r.state.TenantID,
		EntityType: r.state.EntityType,
		Entity:     remote,
		RemoteID:   entity.ExternalID(),
	}); err != nil {
		return integration.OutcomeFailed, true, err
	}
	if err := o.IDMapper.MarkSynced(ctx, link, remoteHash); err != nil {
		return integration.OutcomeFailed, true, err
	}
	return integration.OutcomeUpdated, true, nil
}

// push writes the entity to the target, resolving dependencies first, and
// persists the correlation with the hash of what was written
func (o *Orchestrator) push(ctx context.Context, r *run, entity integration.Entity, hash string, link *Link) (integration.EntityOutcome, error) {
	remoteID := ""
	if link != nil {
		remoteID = link.CounterpartID()
	}
	action := integration.PreviewCreate
	if remoteID != "" {
		action = integration.PreviewUpdate
	}

	var resolver mapping.IDResolver = o.IDMapper
	if r.state.DryRun {
		resolver = &previewResolver{next: o.IDMapper}
	}

	outgoing := entity
	if order, ok := entity.(*integration.Order); ok {
		dep, err := o.Resolver.ResolveCustomer(ctx, CustomerDependency{
			TenantID: r.state.TenantID,
			Source:   r.source,
			Target:   r.target,
			SourceID: order.CustomerID,
			Email:    order.CustomerEmail,
			Name:     order.CustomerName,
			DryRun:   r.state.DryRun,
		})
		if err != nil {
			r.preview(integration.PreviewEntry{ExternalID: entity.ExternalID(), Action: integration.PreviewInvalid, Errors: fieldErrorsOrMessage(err)})
			return integration.OutcomeFailed, fmt.Errorf("resolve customer: %w", err)
		}
		clone := *order
		clone.CustomerID = dep.TargetID
		outgoing = &clone
	}

	fields, err := o.mapFields(ctx, r, entity, resolver)
	if err != nil {
		r.preview(integration.PreviewEntry{ExternalID: entity.ExternalID(), Action: integration.PreviewInvalid, Errors: fieldErrorsOrMessage(err)})
		return integration.OutcomeFailed, err
	}

	if r.state.DryRun {
		payload, err := r.target.Codec().Encode(outgoing, fields)
		if err != nil {
			r.preview(integration.PreviewEntry{ExternalID: entity.ExternalID(), Action: integration.PreviewInvalid, Errors: fieldErrorsOrMessage(err)})
			return integration.OutcomeFailed, err
		}
		r.preview(integration.PreviewEntry{ExternalID: entity.ExternalID(), Action: action, RemoteID: remoteID, Payload: payload})
		if action == integration.PreviewCreate {
			return integration.OutcomeCreated, nil
		}
		return integration.OutcomeUpdated, nil
	}

	res, err := r.target.Push(ctx, integration.PushRequest{
		TenantID:   r.state.TenantID,
		EntityType: r.state.EntityType,
		Entity:     outgoing,
		Fields:     fields,
		RemoteID:   remoteID,
	})
	if err != nil {
		return integration.OutcomeFailed, err
	}

	if link == nil {
		if _, err := o.IDMapper.Record(ctx, r.state.TenantID, r.state.EntityType,
			r.source.System(), entity.ExternalID(), r.target.System(), res.RemoteID, hash); err != nil {
			r.logger.Error("Record written but its ID mapping was not persisted",
				zap.String("external_id", entity.ExternalID()),
				zap.String("remote_id", res.RemoteID),
				zap.Error(err),
			)
			return integration.OutcomeFailed, err
		}
	} else if err := o.IDMapper.MarkSynced(ctx, link, hash); err != nil {
		return integration.OutcomeFailed, err
	}

	if res.Created {
		return integration.OutcomeCreated, nil
	}
	return integration.OutcomeUpdated, nil
}

// mapFields applies the run's field mapping to the canonical document. The
// document keeps source-side references so lookup transforms can resolve them.
func (o *Orchestrator) mapFields(ctx context.Context, r *run, entity integration.Entity, resolver mapping.IDResolver) (map[string]any, error) {
	if r.mapping == nil {
		return nil, nil
	}
	doc, err := integration.ToDocument(entity)
	if err != nil {
		return nil, err
	}
	return o.Engine.Apply(ctx, mapping.ApplyInput{
		TenantID: r.state.TenantID,
		Mapping:  r.mapping,
		Document: doc,
		Resolver: resolver,
	})
}

// previewResolver lets dry runs map references to records the run would
// create
type previewResolver struct {
	next mapping.IDResolver
}

func (p *previewResolver) ResolveID(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, from integration.SystemCode, fromID string, to integration.SystemCode) (string, bool, error) {
	id, found, err := p.next.ResolveID(ctx, tenantID, entityType, from, fromID, to)
	if err != nil || found {
		return id, found, err
	}
	return "pending:" + fromID, true, nil
}

func fieldErrorsOrMessage(err error) []integration.FieldError {
	if fe := integration.FieldErrorsOf(err); len(fe) > 0 {
		return fe
	}
	return []integration.FieldError{{Message: err.Error()}}
}
