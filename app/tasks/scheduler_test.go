package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/indexsync"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/news"
)

// MockIngester records fetch runs and fails the first failures of them.
type MockIngester struct {
	mu       sync.Mutex
	runs     []string
	failures int
	err      error
}

func (m *MockIngester) Run(_ context.Context, slug, _, _ string) (*news.FetchLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, slug)
	if m.err != nil {
		return nil, m.err
	}
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("database unavailable")
	}
	return &news.FetchLog{Source: slug, Status: news.FetchStatusSuccess}, nil
}

func (m *MockIngester) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// MockSyncer records synced article IDs.
type MockSyncer struct {
	mu       sync.Mutex
	synced   []int64
	bulk     [][]int64
	failures int
}

func (m *MockSyncer) SyncArticle(_ context.Context, id int64, _ indexsync.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 {
		m.failures--
		return errors.New("search engine unavailable")
	}
	m.synced = append(m.synced, id)
	return nil
}

func (m *MockSyncer) BulkSync(_ context.Context, ids []int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulk = append(m.bulk, ids)
	return len(ids), nil
}

func (m *MockSyncer) Synced() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.synced...)
}

type staticSources []string

func (s staticSources) Slugs() []string { return s }

func testConfig() Config {
	return Config{
		WorkerCount:     2,
		FetchRetryDelay: time.Millisecond,
		SyncRetryDelay:  time.Millisecond,
		BulkRetryDelay:  time.Millisecond,
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestNewTask(t *testing.T) {
	a := NewTask(TaskTypeSyncArticle, "1", time.Second)
	b := NewTask(TaskTypeSyncArticle, "1", time.Second)

	if a.ID == b.ID {
		t.Error("Expected unique task IDs")
	}
	if a.MaxRetries != DefaultMaxRetries || a.RetryDelay != time.Second {
		t.Errorf("Unexpected retry policy %d/%v", a.MaxRetries, a.RetryDelay)
	}
	if a.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	for range DefaultMaxRetries {
		if !a.CanRetry() {
			t.Fatal("Expected task to allow retry")
		}
		a.IncrementRetryCount()
	}
	if a.CanRetry() {
		t.Error("Expected retries exhausted")
	}
}

func TestScheduler_SyncTaskRetriesUntilSuccess(t *testing.T) {
	syncer := &MockSyncer{failures: 2}
	scheduler := NewScheduler(testConfig(), &MockIngester{}, syncer, staticSources{})
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueSync(42, indexsync.OperationUpsert); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, func() bool { return len(syncer.Synced()) == 1 })
	if syncer.Synced()[0] != 42 {
		t.Errorf("Expected article 42 synced, got %v", syncer.Synced())
	}
}

func TestScheduler_DropsTaskAfterMaxRetries(t *testing.T) {
	ingester := &MockIngester{failures: 10}
	scheduler := NewScheduler(testConfig(), ingester, &MockSyncer{}, staticSources{})
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueFetch("guardian", "", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, func() bool { return ingester.Runs() == DefaultMaxRetries+1 })
	time.Sleep(20 * time.Millisecond)
	if ingester.Runs() != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, ingester.Runs())
	}
}

func TestScheduler_UnknownSourceIsNotRetried(t *testing.T) {
	ingester := &MockIngester{err: fmt.Errorf("%w: bogus", ingest.ErrUnknownSource)}
	scheduler := NewScheduler(testConfig(), ingester, &MockSyncer{}, staticSources{})
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueFetch("bogus", "", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, func() bool { return ingester.Runs() == 1 })
	time.Sleep(20 * time.Millisecond)
	if ingester.Runs() != 1 {
		t.Errorf("Expected a single attempt, got %d", ingester.Runs())
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	config := testConfig()
	config.QueueSize = 1
	scheduler := NewScheduler(config, &MockIngester{}, &MockSyncer{}, staticSources{})

	if err := scheduler.EnqueueBulkSync([]int64{1, 2}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := scheduler.EnqueueBulkSync([]int64{3}); err == nil {
		t.Error("Expected error when queue is full")
	}
	if got := scheduler.pending.Load(); got != 1 {
		t.Errorf("Expected rejected task not to be counted as pending, got %d", got)
	}
}

func TestScheduler_ScheduledFetchesCoverEverySource(t *testing.T) {
	ingester := &MockIngester{}
	scheduler := NewScheduler(testConfig(), ingester, &MockSyncer{}, staticSources{"guardian", "newsapi", "nytimes"})
	scheduler.Start()
	defer scheduler.Stop()

	scheduler.enqueueScheduledFetches()

	waitFor(t, func() bool { return ingester.Runs() == 3 })
}

func TestScheduler_InvalidScheduleDoesNotPreventStart(t *testing.T) {
	config := testConfig()
	config.FetchSchedule = "not a cron spec"
	syncer := &MockSyncer{}
	scheduler := NewScheduler(config, &MockIngester{}, syncer, staticSources{})
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueSync(1, indexsync.OperationRemove); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	waitFor(t, func() bool { return len(syncer.Synced()) == 1 })
}

func TestScheduler_DrainWaitsForRetries(t *testing.T) {
	syncer := &MockSyncer{failures: 2}
	config := testConfig()
	config.SyncRetryDelay = 30 * time.Millisecond
	scheduler := NewScheduler(config, &MockIngester{}, syncer, staticSources{})
	scheduler.Start()
	defer scheduler.Stop()

	for _, id := range []int64{1, 2} {
		if err := scheduler.EnqueueSync(id, indexsync.OperationUpsert); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := scheduler.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if got := len(syncer.Synced()); got != 2 {
		t.Errorf("Expected both articles synced after drain, got %d", got)
	}
}

func TestScheduler_PendingNeverNegativeUnderLoad(t *testing.T) {
	config := testConfig()
	config.WorkerCount = 4
	config.QueueSize = 512
	syncer := &MockSyncer{}
	scheduler := NewScheduler(config, &MockIngester{}, syncer, staticSources{})
	scheduler.Start()
	defer scheduler.Stop()

	var negative atomic.Bool
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				if scheduler.pending.Load() < 0 {
					negative.Store(true)
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for producer := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				if err := scheduler.EnqueueSync(int64(producer*100+i+1), indexsync.OperationUpsert); err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := scheduler.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	close(done)

	if negative.Load() {
		t.Error("Expected pending count to stay non-negative")
	}
	if got := len(syncer.Synced()); got != 400 {
		t.Errorf("Expected 400 synced articles after drain, got %d", got)
	}
}
