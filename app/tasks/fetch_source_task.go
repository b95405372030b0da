package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/news"
)

type Ingester interface {
	Run(ctx context.Context, slug, query, category string) (*news.FetchLog, error)
}

var _ Ingester = (*ingest.Coordinator)(nil)

type FetchSourceTask struct {
	Task
	Query    string
	Category string
	ingester Ingester
}

func NewFetchSourceTask(slug, query, category string, ingester Ingester, retryDelay time.Duration) *FetchSourceTask {
	return &FetchSourceTask{
		Task:     NewTask(TaskTypeFetchSource, slug, retryDelay),
		Query:    query,
		Category: category,
		ingester: ingester,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	log, err := t.ingester.Run(ctx, t.Subject, t.Query, t.Category)
	if errors.Is(err, ingest.ErrUnknownSource) {
		return terminal(err)
	}
	if err != nil {
		return fmt.Errorf("failed to ingest source: %w", err)
	}

	if log != nil {
		slog.Debug("Fetch task finished", "source", t.Subject, "status", log.Status, "created", log.ArticlesCreated, "updated", log.ArticlesUpdated)
	}
	return nil
}
