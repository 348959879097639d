package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("run queue is not running")
	ErrJobQueueFull        = errors.New("run queue is full")
	ErrInvalidConfig       = errors.New("invalid run queue configuration")
)

// Job is one queued sync run
type Job struct {
	TenantID   uuid.UUID
	SyncID     uuid.UUID
	EnqueuedAt time.Time
}

// RunExecutor executes a queued run. Implemented by the orchestrator.
type RunExecutor interface {
	Execute(ctx context.Context, tenantID, syncID uuid.UUID) error
}

// RunQueueConfig holds worker pool configuration
type RunQueueConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultRunQueueConfig returns default worker pool configuration
func DefaultRunQueueConfig() RunQueueConfig {
	return RunQueueConfig{
		Workers:    4,
		QueueSize:  256,
		JobTimeout: time.Hour,
	}
}

// RunQueue is a bounded in-process worker pool for sync runs. Enqueue never
// blocks: a full queue is reported to the caller.
type RunQueue struct {
	config   RunQueueConfig
	executor RunExecutor
	logger   *zap.Logger

	jobs      chan Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// NewRunQueue creates a worker pool. The executor may be set later with
// SetExecutor, before Start.
func NewRunQueue(config RunQueueConfig, executor RunExecutor, logger *zap.Logger) (*RunQueue, error) {
	if config.Workers <= 0 || config.QueueSize <= 0 {
		return nil, fmt.Errorf("%w: workers and queue size must be positive", ErrInvalidConfig)
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultRunQueueConfig().JobTimeout
	}
	return &RunQueue{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan Job, config.QueueSize),
	}, nil
}

// SetExecutor wires the executor. The orchestrator needs the queue at
// construction time, so the two are connected after both exist.
func (q *RunQueue) SetExecutor(executor RunExecutor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.executor = executor
}

// Start starts the worker pool
func (q *RunQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return nil
	}
	if q.executor == nil {
		q.mu.Unlock()
		return fmt.Errorf("%w: no executor", ErrInvalidConfig)
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Sync run queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
		zap.Duration("job_timeout", q.config.JobTimeout),
	)
	return nil
}

// Stop cancels in-flight runs and waits for the workers. Interrupted runs
// keep their checkpoint and are picked up by startup recovery.
func (q *RunQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Sync run queue stopped gracefully", zap.Int("dropped", len(q.jobs)))
		return nil
	case <-ctx.Done():
		q.logger.Warn("Sync run queue stop timed out")
		return ctx.Err()
	}
}

// Enqueue implements the application JobQueue port
func (q *RunQueue) Enqueue(_ context.Context, tenantID, syncID uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case q.jobs <- Job{TenantID: tenantID, SyncID: syncID, EnqueuedAt: time.Now()}:
		q.logger.Debug("Sync run enqueued",
			zap.String("tenant_id", tenantID.String()),
			zap.String("sync_id", syncID.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Pending returns the number of queued runs not yet picked up
func (q *RunQueue) Pending() int {
	return len(q.jobs)
}

func (q *RunQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job, workerID)
		}
	}
}

func (q *RunQueue) process(ctx context.Context, job Job, workerID int) {
	q.mu.RLock()
	executor := q.executor
	q.mu.RUnlock()

	log := q.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("sync_id", job.SyncID.String()),
	)
	log.Debug("Processing sync run", zap.Duration("queued_for", time.Since(job.EnqueuedAt)))

	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Sync run panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if err := executor.Execute(jobCtx, job.TenantID, job.SyncID); err != nil {
		log.Warn("Sync run finished with error", zap.Error(err))
	}
}
