package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/metrics"
	"github.com/lysyi3m/news-comb/app/news"
)

const (
	BackendPrimary  = "elasticsearch"
	BackendFallback = "database"

	DefaultProbeTimeout = 2 * time.Second
)

// Backend serves one filter as an ordered page of stored articles.
type Backend interface {
	Name() string
	Search(ctx context.Context, f Filter) (news.Page, error)
}

// PrimaryBackend queries the search engine for IDs and hydrates them from the store.
type PrimaryBackend struct {
	engine   Engine
	articles database.ArticleRepository
}

func NewPrimaryBackend(engine Engine, articles database.ArticleRepository) *PrimaryBackend {
	return &PrimaryBackend{engine: engine, articles: articles}
}

func (b *PrimaryBackend) Name() string {
	return BackendPrimary
}

func (b *PrimaryBackend) Search(ctx context.Context, f Filter) (news.Page, error) {
	f = f.Normalize()

	result, err := b.engine.Query(ctx, BuildQuery(f))
	if err != nil {
		return news.Page{}, err
	}

	found, err := b.articles.FindByIDs(ctx, result.IDs)
	if err != nil {
		return news.Page{}, fmt.Errorf("failed to hydrate search results: %w", err)
	}

	byID := make(map[int64]news.StoredArticle, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	// Engine order is authoritative. IDs the store no longer serves are dropped.
	articles := make([]news.StoredArticle, 0, len(result.IDs))
	for _, id := range result.IDs {
		if a, ok := byID[id]; ok {
			articles = append(articles, a)
		}
	}

	return news.Page{Articles: articles, Total: result.Total, PerPage: f.PerPage, Page: f.Page}, nil
}

// FallbackBackend runs the same filter as a relational query.
type FallbackBackend struct {
	articles database.ArticleRepository
}

func NewFallbackBackend(articles database.ArticleRepository) *FallbackBackend {
	return &FallbackBackend{articles: articles}
}

func (b *FallbackBackend) Name() string {
	return BackendFallback
}

func (b *FallbackBackend) Search(ctx context.Context, f Filter) (news.Page, error) {
	f = f.Normalize()

	articles, total, err := b.articles.Search(ctx, BuildCriteria(f))
	if err != nil {
		return news.Page{}, err
	}

	return news.Page{Articles: articles, Total: total, PerPage: f.PerPage, Page: f.Page}, nil
}

// Selector picks the backend per request from a liveness probe.
// It holds no mutable state, so concurrent requests never share a decision.
type Selector struct {
	probe        func(ctx context.Context) bool
	primary      Backend
	fallback     Backend
	probeTimeout time.Duration
}

func NewSelector(probe func(ctx context.Context) bool, primary, fallback Backend) *Selector {
	return &Selector{
		probe:        probe,
		primary:      primary,
		fallback:     fallback,
		probeTimeout: DefaultProbeTimeout,
	}
}

// NewEngineSelector wires the engine-backed primary and relational fallback over one store.
func NewEngineSelector(engine Engine, articles database.ArticleRepository) *Selector {
	return NewSelector(engine.Ping, NewPrimaryBackend(engine, articles), NewFallbackBackend(articles))
}

func (s *Selector) WithProbeTimeout(timeout time.Duration) *Selector {
	s.probeTimeout = timeout
	return s
}

// Select returns the backend that should serve the next read.
func (s *Selector) Select(ctx context.Context) Backend {
	if s.primary == nil || s.probe == nil {
		return s.fallback
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if s.probe(probeCtx) {
		return s.primary
	}
	return s.fallback
}

// Search serves the filter from the selected backend and reports which one answered.
// A primary failure after a successful probe is retried once on the fallback.
func (s *Selector) Search(ctx context.Context, f Filter) (news.Page, string, error) {
	backend := s.Select(ctx)

	page, err := backend.Search(ctx, f)
	if err != nil && backend != s.fallback {
		slog.Warn("Primary search failed, using fallback", "error", err)
		backend = s.fallback
		page, err = backend.Search(ctx, f)
	}

	if err != nil {
		return news.Page{}, backend.Name(), fmt.Errorf("search via %s failed: %w", backend.Name(), err)
	}

	metrics.BackendSelections.WithLabelValues(backend.Name()).Inc()
	return page, backend.Name(), nil
}
