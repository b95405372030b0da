package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/metrics"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/sources"
	"golang.org/x/sync/errgroup"
)

const DefaultParallelism = 4

var ErrUnknownSource = errors.New("unknown source")

type AdapterRegistry interface {
	Get(slug string) (sources.Adapter, bool)
	Slugs() []string
}

// Coordinator runs adapters, routes their articles through the merger and
// writes one fetch log per run.
type Coordinator struct {
	registry    AdapterRegistry
	merger      *Merger
	fetchLogs   database.FetchLogRepository
	parallelism int
	now         func() time.Time
}

func NewCoordinator(registry AdapterRegistry, store *database.Store) *Coordinator {
	return &Coordinator{
		registry:    registry,
		merger:      NewMerger(store),
		fetchLogs:   store.FetchLogs,
		parallelism: DefaultParallelism,
		now:         time.Now,
	}
}

func (c *Coordinator) WithParallelism(n int) *Coordinator {
	if n > 0 {
		c.parallelism = n
	}
	return c
}

// Run ingests one source. It returns the written fetch log, or nil when the source
// is disabled. Source failures are audited and absorbed; ErrUnknownSource and
// storage failures are returned so a task runner can decide whether to retry.
func (c *Coordinator) Run(ctx context.Context, slug, query, category string) (*news.FetchLog, error) {
	adapter, ok := c.registry.Get(slug)
	if !ok {
		log, err := c.audit(ctx, slug, news.FetchFailed(fmt.Sprintf("no adapter registered for source %q", slug)))
		if err != nil {
			return nil, err
		}
		return log, fmt.Errorf("%w: %s", ErrUnknownSource, slug)
	}

	if !adapter.IsEnabled() {
		slog.Debug("Source disabled, skipping ingestion", "source", slug)
		return nil, nil
	}

	articles, err := adapter.Fetch(ctx, query, category)
	if err != nil {
		return c.audit(ctx, slug, news.FetchFailed(err.Error()))
	}

	created, updated := 0, 0
	for _, article := range articles {
		_, isNew, err := c.merger.Upsert(ctx, article)
		if err != nil {
			result := news.FetchFailed(err.Error())
			if created+updated > 0 {
				result = news.FetchPartial(len(articles), created, updated, err.Error())
			} else {
				result.ArticlesFetched = len(articles)
			}

			log, auditErr := c.audit(ctx, slug, result)
			if auditErr != nil {
				return nil, errors.Join(err, auditErr)
			}
			return log, fmt.Errorf("ingestion of %s aborted after %d articles: %w", slug, created+updated, err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	return c.audit(ctx, slug, news.FetchSucceeded(len(articles), created, updated))
}

// RunAll ingests every registered source in parallel. A failing source never
// stops its siblings; their errors are joined.
func (c *Coordinator) RunAll(ctx context.Context, query, category string) ([]*news.FetchLog, error) {
	slugs := c.registry.Slugs()
	logs := make([]*news.FetchLog, len(slugs))
	errs := make([]error, len(slugs))

	var g errgroup.Group
	g.SetLimit(c.parallelism)

	for i, slug := range slugs {
		g.Go(func() error {
			logs[i], errs[i] = c.Run(ctx, slug, query, category)
			return nil
		})
	}
	_ = g.Wait()

	written := make([]*news.FetchLog, 0, len(logs))
	for _, log := range logs {
		if log != nil {
			written = append(written, log)
		}
	}
	return written, errors.Join(errs...)
}

func (c *Coordinator) audit(ctx context.Context, slug string, result news.FetchResult) (*news.FetchLog, error) {
	log := &news.FetchLog{
		Source:          slug,
		Status:          result.Status,
		ArticlesFetched: result.ArticlesFetched,
		ArticlesCreated: result.ArticlesCreated,
		ArticlesUpdated: result.ArticlesUpdated,
		ErrorMessage:    result.ErrorMessage,
		FetchedAt:       c.now().UTC(),
	}

	metrics.FetchRuns.WithLabelValues(slug, string(result.Status)).Inc()

	attrs := []any{
		"source", slug,
		"status", result.Status,
		"fetched", result.ArticlesFetched,
		"created", result.ArticlesCreated,
		"updated", result.ArticlesUpdated,
	}
	if result.Status == news.FetchStatusSuccess {
		slog.Info("Ingestion completed", attrs...)
	} else {
		slog.Warn("Ingestion failed", append(attrs, "error", result.ErrorMessage)...)
	}

	if err := c.fetchLogs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to write fetch log for %s: %w", slug, err)
	}
	return log, nil
}
