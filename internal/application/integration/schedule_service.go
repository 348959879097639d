package integration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// ScheduleServiceConfig configures failure tracking
type ScheduleServiceConfig struct {
	// FailureThreshold is the number of consecutive failed runs that raises an alert
	FailureThreshold int
	// SuspendOnThreshold stops the schedule until acknowledged
	SuspendOnThreshold bool
}

// ScheduleCommand creates or replaces a schedule
type ScheduleCommand struct {
	ConnectorID uuid.UUID
	EntityType  integration.EntityType
	CronExpr    string
	Timezone    string
	Enabled     bool
}

// ScheduleService manages recurring incremental runs and their failure streaks
type ScheduleService struct {
	schedules integration.SyncScheduleRepository
	configs   integration.ConnectorConfigRepository
	trigger   SyncTrigger
	notifier  integration.Notifier
	threshold atomic.Int64
	suspend   atomic.Bool
	logger    *zap.Logger
}

// NewScheduleService creates a ScheduleService
func NewScheduleService(
	cfg ScheduleServiceConfig,
	schedules integration.SyncScheduleRepository,
	configs integration.ConnectorConfigRepository,
	trigger SyncTrigger,
	notifier integration.Notifier,
	logger *zap.Logger,
) *ScheduleService {
	s := &ScheduleService{
		schedules: schedules,
		configs:   configs,
		trigger:   trigger,
		notifier:  notifier,
		logger:    logger,
	}
	s.SetFailurePolicy(cfg.FailureThreshold, cfg.SuspendOnThreshold)
	return s
}

// SetFailurePolicy changes the threshold at runtime
func (s *ScheduleService) SetFailurePolicy(threshold int, suspend bool) {
	if threshold <= 0 {
		threshold = 3
	}
	s.threshold.Store(int64(threshold))
	s.suspend.Store(suspend)
}

// ParseCron parses a standard 5-field expression in the schedule's time zone
func ParseCron(expr, timezone string) (cron.Schedule, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s %s", timezone, expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrInvalidCronExpression, err)
	}
	return sched, nil
}

// NextRun returns the next fire time of a schedule after now
func NextRun(s *integration.SyncSchedule, now time.Time) (time.Time, error) {
	sched, err := ParseCron(s.CronExpr, s.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}

// ---------------------------------------------------------------------------
// Management
// ---------------------------------------------------------------------------

// Upsert creates the schedule of a (connector, entity type) or replaces its
// expression. A replaced schedule keeps its failure streak.
func (s *ScheduleService) Upsert(ctx context.Context, tenantID uuid.UUID, cmd ScheduleCommand) (*integration.SyncSchedule, error) {
	if _, err := ParseCron(cmd.CronExpr, cmd.Timezone); err != nil {
		return nil, err
	}
	if _, err := s.configs.FindByID(ctx, tenantID, cmd.ConnectorID); err != nil {
		return nil, err
	}

	sched, err := s.schedules.FindByKey(ctx, tenantID, cmd.ConnectorID, cmd.EntityType)
	switch {
	case errors.Is(err, integration.ErrScheduleNotFound):
		sched, err = integration.NewSyncSchedule(tenantID, cmd.ConnectorID, cmd.EntityType, cmd.CronExpr, cmd.Timezone)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if cmd.Timezone == "" {
			cmd.Timezone = "UTC"
		}
		sched.CronExpr = cmd.CronExpr
		sched.Timezone = cmd.Timezone
		sched.UpdatedAt = time.Now()
	}
	sched.Enabled = cmd.Enabled

	if err := s.schedules.Save(ctx, sched); err != nil {
		return nil, err
	}
	s.logger.Info("Sync schedule saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("schedule_id", sched.ID.String()),
		zap.String("connector_id", sched.ConnectorID.String()),
		zap.String("entity_type", string(sched.EntityType)),
		zap.String("cron", sched.CronExpr),
		zap.String("timezone", sched.Timezone),
	)
	return sched, nil
}

// List returns the tenant's schedules
func (s *ScheduleService) List(ctx context.Context, tenantID uuid.UUID) ([]integration.SyncSchedule, error) {
	return s.schedules.FindAll(ctx, tenantID)
}

// Get returns one schedule
func (s *ScheduleService) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error) {
	return s.schedules.FindByID(ctx, tenantID, id)
}

// Delete removes a schedule
func (s *ScheduleService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.schedules.FindByID(ctx, tenantID, id); err != nil {
		return err
	}
	return s.schedules.Delete(ctx, tenantID, id)
}

// Acknowledge clears a suspension and the failure streak
func (s *ScheduleService) Acknowledge(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error) {
	sched, err := s.schedules.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	sched.Acknowledge()
	if err := s.schedules.Save(ctx, sched); err != nil {
		return nil, err
	}
	s.logger.Info("Sync schedule acknowledged",
		zap.String("tenant_id", tenantID.String()),
		zap.String("schedule_id", id.String()),
	)
	return sched, nil
}

// ---------------------------------------------------------------------------
// Firing
// ---------------------------------------------------------------------------

// Fire triggers the incremental run of a schedule. A run already in progress
// for the key is not a failure: the tick is skipped.
func (s *ScheduleService) Fire(ctx context.Context, sched *integration.SyncSchedule) error {
	if !sched.IsActive() {
		return nil
	}
	log := s.logger.With(
		zap.String("tenant_id", sched.TenantID.String()),
		zap.String("schedule_id", sched.ID.String()),
		zap.String("entity_type", string(sched.EntityType)),
	)

	state, err := s.trigger.Trigger(ctx, TriggerCommand{
		TenantID:    sched.TenantID,
		ConnectorID: sched.ConnectorID,
		EntityType:  sched.EntityType,
		Mode:        integration.SyncModeIncremental,
		Trigger:     integration.TriggerSchedule,
	})
	if errors.Is(err, integration.ErrSyncInProgress) {
		log.Debug("Scheduled sync skipped, previous run still active")
		return nil
	}
	if err != nil {
		log.Warn("Scheduled sync could not be started", zap.Error(err))
		if fresh, findErr := s.schedules.FindByID(ctx, sched.TenantID, sched.ID); findErr == nil {
			sched = fresh
		}
		s.recordFailure(ctx, sched, err.Error(), nil)
		return err
	}

	// The run may already have finished and moved the failure streak
	now := time.Now()
	if err := s.schedules.RecordRun(ctx, sched.TenantID, sched.ID, state.ID, now); err != nil {
		return err
	}
	sched.RecordRun(state.ID, now)
	log.Info("Scheduled sync queued", zap.String("sync_id", state.ID.String()))
	return nil
}

// RunFinished implements RunObserver. Only runs started by a schedule move
// its failure streak; a failed run counts, any other terminal status resets it.
func (s *ScheduleService) RunFinished(ctx context.Context, state *integration.SyncState) {
	if state.Trigger != integration.TriggerSchedule || state.Status == integration.SyncStatusCancelled {
		return
	}
	sched, err := s.schedules.FindByKey(ctx, state.TenantID, state.ConnectorID, state.EntityType)
	if err != nil {
		if !errors.Is(err, integration.ErrScheduleNotFound) {
			s.logger.Warn("Failed to load schedule for finished run",
				zap.String("sync_id", state.ID.String()),
				zap.Error(err),
			)
		}
		return
	}

	if state.Status != integration.SyncStatusFailed {
		if sched.ConsecutiveFailures == 0 {
			return
		}
		sched.RecordSuccess()
		if err := s.schedules.Save(ctx, sched); err != nil {
			s.logger.Warn("Failed to reset schedule failure count", zap.Error(err))
		}
		return
	}

	msg := "sync run failed"
	if n := len(state.Errors); n > 0 {
		msg = state.Errors[n-1].Message
	}
	syncID := state.ID
	s.recordFailure(ctx, sched, msg, &syncID)
}

func (s *ScheduleService) recordFailure(ctx context.Context, sched *integration.SyncSchedule, msg string, syncID *uuid.UUID) {
	threshold := int(s.threshold.Load())
	reached := sched.RecordFailure(msg, threshold, s.suspend.Load())
	if err := s.schedules.Save(ctx, sched); err != nil {
		s.logger.Warn("Failed to record schedule failure", zap.Error(err))
	}
	if !reached {
		return
	}

	s.logger.Error("Sync schedule reached failure threshold",
		zap.String("tenant_id", sched.TenantID.String()),
		zap.String("schedule_id", sched.ID.String()),
		zap.Int("consecutive_failures", sched.ConsecutiveFailures),
		zap.Bool("suspended", sched.Suspended),
	)
	if s.notifier == nil {
		return
	}
	n := integration.Notification{
		Kind:        integration.NotificationScheduleThreshold,
		TenantID:    sched.TenantID,
		ConnectorID: sched.ConnectorID,
		EntityType:  sched.EntityType,
		SyncID:      syncID,
		Title:       fmt.Sprintf("%s sync failed %d times in a row", sched.EntityType, sched.ConsecutiveFailures),
		Message:     msg,
		Details: map[string]string{
			"schedule_id": sched.ID.String(),
			"suspended":   fmt.Sprintf("%t", sched.Suspended),
		},
		OccurredAt: time.Now(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to deliver schedule threshold notification", zap.Error(err))
	}
}
