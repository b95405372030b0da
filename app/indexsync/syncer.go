// Package indexsync keeps the search index consistent with the article store.
// Propagation carries only article IDs and re-reads current state when it runs,
// so duplicated or reordered deliveries converge on the latest stored version.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/metrics"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/search"
)

const DefaultChunkSize = 500

type Operation string

const (
	OperationUpsert Operation = "upsert"
	OperationRemove Operation = "remove"
)

// OperationFor maps a lifecycle event to the index operation it requires.
func OperationFor(event news.Lifecycle) Operation {
	switch event {
	case news.LifecycleDeleted, news.LifecycleForceDeleted:
		return OperationRemove
	default:
		return OperationUpsert
	}
}

// IndexObserver is told which articles changed in the index after each successful write.
// Observers are called synchronously and must not block.
type IndexObserver interface {
	IndexChanged(ids []int64)
}

type Syncer struct {
	engine   search.Engine
	articles database.ArticleRepository

	mu        sync.RWMutex
	observers []IndexObserver
}

func NewSyncer(engine search.Engine, articles database.ArticleRepository, observers ...IndexObserver) *Syncer {
	return &Syncer{engine: engine, articles: articles, observers: observers}
}

func (s *Syncer) Observe(observer IndexObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

func (s *Syncer) notify(ids []int64) {
	if len(ids) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, observer := range s.observers {
		observer.IndexChanged(ids)
	}
}

// SyncArticle brings the index entry for one article in line with the store.
// A live article is indexed and a trashed one removed whatever op says; a missing
// article is removed for OperationRemove and ignored for OperationUpsert.
func (s *Syncer) SyncArticle(ctx context.Context, id int64, op Operation) error {
	if !s.engine.Ping(ctx) {
		metrics.IndexSyncs.WithLabelValues(string(op), "unavailable").Inc()
		return fmt.Errorf("sync of article %d: %w", id, search.ErrEngineUnavailable)
	}

	article, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load article %d: %w", id, err)
	}

	switch {
	case article != nil && !article.IsTrashed():
		err = s.engine.Put(ctx, search.NewDocument(article))
	case article != nil || op == OperationRemove:
		err = s.engine.Delete(ctx, id)
	default:
		slog.Debug("Article no longer exists, skipping index upsert", "article_id", id)
		metrics.IndexSyncs.WithLabelValues(string(op), "skipped").Inc()
		return nil
	}

	if err != nil {
		metrics.IndexSyncs.WithLabelValues(string(op), "failed").Inc()
		return fmt.Errorf("failed to sync article %d: %w", id, err)
	}

	metrics.IndexSyncs.WithLabelValues(string(op), "succeeded").Inc()
	slog.Debug("Article synced to search index", "article_id", id, "operation", op)
	s.notify([]int64{id})
	return nil
}

// BulkSync indexes the live articles among ids in one batch and returns how many
// were indexed. A rejected batch counts as zero.
func (s *Syncer) BulkSync(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !s.engine.Ping(ctx) {
		metrics.IndexSyncs.WithLabelValues("bulk", "unavailable").Inc()
		return 0, fmt.Errorf("bulk sync of %d articles: %w", len(ids), search.ErrEngineUnavailable)
	}

	articles, err := s.articles.FindByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load articles for bulk sync: %w", err)
	}

	docs := make([]search.Document, 0, len(articles))
	for i := range articles {
		docs = append(docs, search.NewDocument(&articles[i]))
	}

	n, err := s.engine.BulkPut(ctx, docs)
	if err != nil {
		metrics.IndexSyncs.WithLabelValues("bulk", "failed").Inc()
		return 0, fmt.Errorf("bulk sync failed: %w", err)
	}

	metrics.IndexSyncs.WithLabelValues("bulk", "succeeded").Inc()
	slog.Info("Bulk synced articles", "requested", len(ids), "indexed", n)

	indexed := make([]int64, 0, len(docs))
	for _, doc := range docs {
		indexed = append(indexed, doc.ID)
	}
	s.notify(indexed)
	return n, nil
}

// Reindex walks every live article ID in chunks and hands each chunk to dispatch,
// which either syncs it inline or queues it. It returns the number of IDs dispatched.
func (s *Syncer) Reindex(ctx context.Context, chunkSize int, dispatch func(ctx context.Context, ids []int64) error) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := s.engine.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("failed to prepare search index: %w", err)
	}

	total := 0
	var afterID int64
	var errs []error
	for {
		ids, err := s.articles.ListIDs(ctx, afterID, chunkSize)
		if err != nil {
			return total, fmt.Errorf("failed to list article IDs after %d: %w", afterID, err)
		}
		if len(ids) == 0 {
			break
		}

		if err := dispatch(ctx, ids); err != nil {
			slog.Error("Reindex chunk failed", "first_id", ids[0], "count", len(ids), "error", err)
			errs = append(errs, err)
		} else {
			total += len(ids)
		}
		afterID = ids[len(ids)-1]

		if len(ids) < chunkSize {
			break
		}
	}

	slog.Info("Reindex dispatched", "articles", total, "failed_chunks", len(errs))
	return total, errors.Join(errs...)
}

// CleanIndex removes soft-deleted articles from the index and returns their IDs.
// With dryRun set, it only lists them.
func (s *Syncer) CleanIndex(ctx context.Context, dryRun bool) ([]int64, error) {
	ids, err := s.articles.ListTrashedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trashed articles: %w", err)
	}
	if dryRun || len(ids) == 0 {
		return ids, nil
	}

	for i, id := range ids {
		if err := s.engine.Delete(ctx, id); err != nil {
			s.notify(ids[:i])
			return nil, fmt.Errorf("failed to remove article %d from index: %w", id, err)
		}
	}
	s.notify(ids)

	slog.Info("Removed trashed articles from index", "count", len(ids))
	return ids, nil
}
