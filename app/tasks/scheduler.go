package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/news-comb/app/indexsync"
	"github.com/lysyi3m/news-comb/app/metrics"
	"github.com/robfig/cron/v3"
)

const (
	DefaultQueueSize   = 300
	DefaultTaskTimeout = 5 * time.Minute
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Config struct {
	WorkerCount int
	QueueSize   int
	// FetchSchedule is a cron spec for fetching every source; empty disables it.
	FetchSchedule   string
	FetchRetryDelay time.Duration
	SyncRetryDelay  time.Duration
	BulkRetryDelay  time.Duration
	TaskTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.FetchRetryDelay <= 0 {
		c.FetchRetryDelay = DefaultFetchRetryDelay
	}
	if c.SyncRetryDelay <= 0 {
		c.SyncRetryDelay = DefaultSyncRetryDelay
	}
	if c.BulkRetryDelay <= 0 {
		c.BulkRetryDelay = DefaultBulkRetryDelay
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	return c
}

type SourceLister interface {
	Slugs() []string
}

// Scheduler runs tasks on a worker pool. Failed tasks are re-enqueued after their
// fixed retry delay until they run out of retries, then dropped.
type Scheduler struct {
	config    Config
	ingester  Ingester
	syncer    ArticleSyncer
	sources   SourceLister
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	// pending counts queued, running and retry-waiting tasks
	pending atomic.Int64
}

func NewScheduler(config Config, ingester Ingester, syncer ArticleSyncer, sources SourceLister) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	config = config.withDefaults()

	return &Scheduler{
		config:    config,
		ingester:  ingester,
		syncer:    syncer,
		sources:   sources,
		cron:      cron.New(),
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, config.QueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	if s.config.FetchSchedule != "" {
		if _, err := s.cron.AddFunc(s.config.FetchSchedule, s.enqueueScheduledFetches); err != nil {
			slog.Error("Invalid fetch schedule, scheduled fetching disabled", "schedule", s.config.FetchSchedule, "error", err)
		} else {
			s.cron.Start()
			slog.Info("Scheduled fetching enabled", "schedule", s.config.FetchSchedule)
		}
	}
}

// Stop halts scheduling and waits for running tasks. Queued tasks are discarded.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	// Counted before the send so a worker finishing the task can never drive pending below zero.
	s.pending.Add(1)
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		s.pending.Add(-1)
		return s.ctx.Err()
	default:
		s.pending.Add(-1)
		return fmt.Errorf("task queue is full")
	}
}

// Drain blocks until no task is queued, running or waiting for a retry.
func (s *Scheduler) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Scheduler) EnqueueFetch(slug, query, category string) error {
	return s.EnqueueTask(NewFetchSourceTask(slug, query, category, s.ingester, s.config.FetchRetryDelay))
}

func (s *Scheduler) EnqueueSync(articleID int64, op indexsync.Operation) error {
	return s.EnqueueTask(NewSyncArticleTask(articleID, op, s.syncer, s.config.SyncRetryDelay))
}

func (s *Scheduler) EnqueueBulkSync(ids []int64) error {
	return s.EnqueueTask(NewBulkSyncTask(ids, s.syncer, s.config.BulkRetryDelay))
}

func (s *Scheduler) enqueueScheduledFetches() {
	slugs := s.sources.Slugs()
	slog.Debug("Enqueueing scheduled fetches", "count", len(slugs))

	for _, slug := range slugs {
		if err := s.EnqueueFetch(slug, "", ""); err != nil {
			slog.Warn("Failed to enqueue FetchSourceTask", "source", slug, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	defer s.pending.Add(-1)
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.config.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	metrics.TaskDuration.WithLabelValues(string(task.GetType())).Observe(task.GetDuration().Seconds())

	if err == nil {
		metrics.TaskRuns.WithLabelValues(string(task.GetType()), "succeeded").Inc()
		slog.Debug("Task completed", "type", string(task.GetType()), "subject", task.GetSubject(), "duration", task.GetDuration())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "error", err)

	if isTerminal(err) || !task.CanRetry() {
		metrics.TaskRuns.WithLabelValues(string(task.GetType()), "dropped").Inc()
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "terminal", isTerminal(err), "last_error", err)
		return
	}

	metrics.TaskRuns.WithLabelValues(string(task.GetType()), "retried").Inc()
	task.IncrementRetryCount()
	retryDelay := task.GetRetryDelay()

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.pending.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pending.Add(-1)

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
