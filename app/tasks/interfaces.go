package tasks

import (
	"context"

	"github.com/lysyi3m/news-comb/app/indexsync"
)

// TaskSchedulerInterface is the background task runner used by the server and CLI.
// Example usage:
//
//	scheduler := NewScheduler(Config{WorkerCount: 5}, coordinator, syncer, registry)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueFetch("guardian", "", "")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Drain(ctx context.Context) error
	EnqueueTask(task TaskInterface) error
	EnqueueFetch(slug, query, category string) error
	EnqueueBulkSync(ids []int64) error
	indexsync.Queue
}
