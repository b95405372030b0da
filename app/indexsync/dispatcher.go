package indexsync

import (
	"log/slog"

	"github.com/lysyi3m/news-comb/app/news"
)

// Queue accepts one propagation unit for asynchronous execution.
type Queue interface {
	EnqueueSync(articleID int64, op Operation) error
}

// Dispatcher turns article lifecycle events into queued index propagations.
type Dispatcher struct {
	queue Queue
}

func NewDispatcher(queue Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

func (d *Dispatcher) ArticleChanged(articleID int64, event news.Lifecycle) {
	op := OperationFor(event)
	if err := d.queue.EnqueueSync(articleID, op); err != nil {
		// Drift left behind here is repaired by a reindex.
		slog.Error("Failed to enqueue index sync", "article_id", articleID, "event", event, "operation", op, "error", err)
	}
}

var _ news.ArticleObserver = (*Dispatcher)(nil)
