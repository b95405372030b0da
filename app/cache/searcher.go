package cache

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/metrics"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/search"
)

// Searcher serves a filter and reports which backend answered.
type Searcher interface {
	Search(ctx context.Context, f search.Filter) (news.Page, string, error)
}

type PageStore interface {
	GetPage(ctx context.Context, filterKey string) (*CachedPage, bool, error)
	SetPage(ctx context.Context, filterKey string, page CachedPage) error
}

var _ PageStore = (*Cache)(nil)

// CachedSearcher is a read-through cache in front of a Searcher.
// Cache failures degrade to uncached reads.
type CachedSearcher struct {
	next  Searcher
	pages PageStore
}

func NewCachedSearcher(next Searcher, pages PageStore) *CachedSearcher {
	return &CachedSearcher{next: next, pages: pages}
}

func (s *CachedSearcher) Search(ctx context.Context, f search.Filter) (news.Page, string, error) {
	key := f.Key()

	cached, ok, err := s.pages.GetPage(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("Search cache lookup failed", "error", err)
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached.Page, cached.Backend, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	page, backend, err := s.next.Search(ctx, f)
	if err != nil {
		return news.Page{}, backend, err
	}

	if err := s.pages.SetPage(ctx, key, CachedPage{Page: page, Backend: backend}); err != nil {
		slog.Warn("Failed to store search page in cache", "error", err)
	}
	return page, backend, nil
}
