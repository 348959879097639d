package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appintegration "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
)

// ScheduleSource lists the schedules the trigger evaluates
type ScheduleSource interface {
	FindEnabled(ctx context.Context) ([]integration.SyncSchedule, error)
}

// ScheduleFirer starts the run of a due schedule. Implemented by ScheduleService.
type ScheduleFirer interface {
	Fire(ctx context.Context, sched *integration.SyncSchedule) error
}

// EventPurger deletes webhook event rows older than the dedup window
type EventPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CronTriggerConfig sets how often schedules are evaluated and how often
// expired webhook events are purged. A zero PurgeInterval disables purging.
type CronTriggerConfig struct {
	TickInterval  time.Duration
	PurgeInterval time.Duration
}

func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{TickInterval: 30 * time.Second, PurgeInterval: time.Hour}
}

// CronTrigger fires sync schedules whose cron expression came due since
// their last run
type CronTrigger struct {
	cfg    CronTriggerConfig
	source ScheduleSource
	firer  ScheduleFirer
	purger EventPurger
	logger *zap.Logger
	clock  func() time.Time

	mu   sync.Mutex
	halt context.CancelFunc
	done chan struct{} // nil while stopped
}

// NewCronTrigger creates a stopped trigger. purger may be nil.
func NewCronTrigger(cfg CronTriggerConfig, source ScheduleSource, firer ScheduleFirer, purger EventPurger, logger *zap.Logger) *CronTrigger {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultCronTriggerConfig().TickInterval
	}
	if purger == nil {
		cfg.PurgeInterval = 0
	}
	return &CronTrigger{cfg: cfg, source: source, firer: firer, purger: purger, logger: logger, clock: time.Now}
}

// Start launches the evaluation loop. Starting a running trigger does nothing.
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}
	ctx, c.halt = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)

	c.logger.Info("Sync schedule trigger started",
		zap.Duration("tick_interval", c.cfg.TickInterval),
		zap.Duration("purge_interval", c.cfg.PurgeInterval),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight tick until ctx expires.
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	halt, done := c.halt, c.done
	c.halt, c.done = nil, nil
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	halt()
	select {
	case <-done:
		c.logger.Info("Sync schedule trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	tick := time.NewTicker(c.cfg.TickInterval)
	defer tick.Stop()

	// a nil channel never fires
	var purge <-chan time.Time
	if c.cfg.PurgeInterval > 0 {
		t := time.NewTicker(c.cfg.PurgeInterval)
		defer t.Stop()
		purge = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.Tick(ctx)
		case <-purge:
			c.purgeEvents(ctx)
		}
	}
}

// Tick fires every enabled schedule that is due. Exported so the loop can be
// driven directly.
func (c *CronTrigger) Tick(ctx context.Context) int {
	schedules, err := c.source.FindEnabled(ctx)
	if err != nil {
		c.logger.Error("Failed to load sync schedules", zap.Error(err))
		return 0
	}

	now := c.clock()
	fired := 0
	for i := range schedules {
		sched := &schedules[i]
		if !isDue(sched, now, c.logger) {
			continue
		}
		if err := c.firer.Fire(ctx, sched); err != nil {
			c.logger.Warn("Failed to fire sync schedule",
				zap.String("tenant_id", sched.TenantID.String()),
				zap.String("schedule_id", sched.ID.String()),
				zap.Error(err),
			)
			continue
		}
		fired++
	}
	if fired > 0 {
		c.logger.Debug("Sync schedules fired", zap.Int("count", fired))
	}
	return fired
}

// isDue reports whether a fire time lies between the last run (or creation)
// and now. Missed fire times collapse into one run.
func isDue(sched *integration.SyncSchedule, now time.Time, logger *zap.Logger) bool {
	if !sched.IsActive() {
		return false
	}
	from := sched.CreatedAt
	if sched.LastRunAt != nil {
		from = *sched.LastRunAt
	}
	next, err := appintegration.NextRun(sched, from)
	if err != nil {
		logger.Warn("Sync schedule has an invalid cron expression",
			zap.String("schedule_id", sched.ID.String()),
			zap.String("cron", sched.CronExpr),
			zap.Error(err),
		)
		return false
	}
	return !next.After(now)
}

func (c *CronTrigger) purgeEvents(ctx context.Context) {
	n, err := c.purger.PurgeExpired(ctx)
	if err != nil {
		c.logger.Warn("Failed to purge expired webhook events", zap.Error(err))
		return
	}
	if n > 0 {
		c.logger.Info("Expired webhook events purged", zap.Int64("count", n))
	}
}
