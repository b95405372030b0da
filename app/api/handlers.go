package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/news-comb/app/cache"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/indexsync"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/search"
)

const defaultFetchLogLimit = 50

type Handler struct {
	store    *database.Store
	searcher cache.Searcher
	ingester Ingester
	indexer  Indexer
	queue    Queue
	sources  SourceLister
	probe    func(ctx context.Context) bool
	cache    HealthReporter
}

func NewHandler(store *database.Store, searcher cache.Searcher, ingester Ingester,
	indexer Indexer, queue Queue, sources SourceLister, probe func(ctx context.Context) bool) *Handler {
	return &Handler{
		store:    store,
		searcher: searcher,
		ingester: ingester,
		indexer:  indexer,
		queue:    queue,
		sources:  sources,
		probe:    probe,
	}
}

// WithCacheHealth adds the search cache to the health report.
func (h *Handler) WithCacheHealth(cache HealthReporter) *Handler {
	h.cache = cache
	return h
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.store.Articles.Count(c.Request.Context()); err == nil {
		health["articles"] = count
	} else {
		slog.Error("Database error", "operation", "count_articles", "error", err)
		health["status"] = "degraded"
	}

	backend := search.BackendFallback
	if h.probe != nil && h.probe(c.Request.Context()) {
		backend = search.BackendPrimary
	}
	health["search_backend"] = backend

	if h.sources != nil {
		health["loaded_sources"] = len(h.sources.Slugs())
	}

	if h.cache != nil {
		cacheHealth := h.cache.Health(c.Request.Context())
		if cacheHealth["status"] != "healthy" {
			health["status"] = "degraded"
		}
		health["cache"] = cacheHealth
	}

	c.JSON(http.StatusOK, health)
}

// ListArticles pages live articles straight from the relational store.
func (h *Handler) ListArticles(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, total, err := h.store.Articles.Search(c.Request.Context(), search.BuildCriteria(f))
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	page := newPageResponse(pageOf(articles, total, f), search.BackendFallback)
	c.JSON(http.StatusOK, page)
}

func (h *Handler) SearchArticles(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, backend, err := h.searcher.Search(c.Request.Context(), f)
	if err != nil {
		slog.Error("Search failed", "backend", backend, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.Header("X-Search-Backend", backend)
	c.JSON(http.StatusOK, newPageResponse(page, backend))
}

func (h *Handler) GetArticle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	article, err := h.store.Articles.FindByID(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil || article.IsTrashed() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, newArticleResponse(*article))
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.store.Sources.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	data := make([]map[string]interface{}, 0, len(sources))
	for _, s := range sources {
		data = append(data, map[string]interface{}{
			"id":        s.ID,
			"slug":      s.Slug,
			"name":      s.Name,
			"base_url":  s.BaseURL,
			"is_active": s.IsActive,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": data, "total": len(data)})
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.store.Categories.List(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	data := make([]map[string]interface{}, 0, len(categories))
	for _, cat := range categories {
		data = append(data, map[string]interface{}{
			"id":          cat.ID,
			"slug":        cat.Slug,
			"name":        cat.Name,
			"description": cat.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": data, "total": len(data)})
}

// ListAuthors lists authors by name, optionally limited to one source via ?source_id=.
func (h *Handler) ListAuthors(c *gin.Context) {
	var sourceID *int64
	if raw := c.Query("source_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source_id must be a positive integer"})
			return
		}
		sourceID = &id
	}

	authors, err := h.store.Authors.List(c.Request.Context(), sourceID)
	if err != nil {
		slog.Error("Database error", "operation", "list_authors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	data := make([]map[string]interface{}, 0, len(authors))
	for _, a := range authors {
		data = append(data, map[string]interface{}{
			"id":        a.ID,
			"name":      a.Name,
			"source_id": a.SourceID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": data, "total": len(data)})
}

func (h *Handler) ListFetchLogs(c *gin.Context) {
	limit := defaultFetchLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	logs, err := h.store.FetchLogs.List(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_fetch_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	data := make([]FetchLogResponse, 0, len(logs))
	for _, l := range logs {
		data = append(data, newFetchLogResponse(l))
	}

	c.JSON(http.StatusOK, gin.H{"data": data, "total": len(data)})
}

// TriggerFetch runs ingestion inline when sync is set, otherwise queues it.
func (h *Handler) TriggerFetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if (req.Source == "") == !req.All {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Specify either source or all"})
		return
	}

	if !req.Sync {
		slugs := []string{req.Source}
		if req.All {
			slugs = h.sources.Slugs()
		}
		for _, slug := range slugs {
			if err := h.queue.EnqueueFetch(slug, req.Query, req.Category); err != nil {
				slog.Error("Failed to enqueue fetch", "source", slug, "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full"})
				return
			}
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": slugs})
		return
	}

	ctx := c.Request.Context()
	if req.All {
		logs, err := h.ingester.RunAll(ctx, req.Query, req.Category)
		data := make([]FetchLogResponse, 0, len(logs))
		for _, l := range logs {
			if l != nil {
				data = append(data, newFetchLogResponse(*l))
			}
		}
		if err != nil {
			slog.Error("Fetch failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Fetch failed", "data": data})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
		return
	}

	log, err := h.ingester.Run(ctx, req.Source, req.Query, req.Category)
	switch {
	case errors.Is(err, ingest.ErrUnknownSource):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown source"})
	case err != nil:
		slog.Error("Fetch failed", "source", req.Source, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Fetch failed"})
	case log == nil:
		c.JSON(http.StatusOK, gin.H{"data": nil, "message": "Source is disabled"})
	default:
		c.JSON(http.StatusOK, gin.H{"data": newFetchLogResponse(*log)})
	}
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	h.mutateArticle(c, "soft_delete", h.store.Articles.SoftDelete, http.StatusNoContent)
}

func (h *Handler) ForceDeleteArticle(c *gin.Context) {
	h.mutateArticle(c, "force_delete", h.store.Articles.ForceDelete, http.StatusNoContent)
}

func (h *Handler) RestoreArticle(c *gin.Context) {
	h.mutateArticle(c, "restore", h.store.Articles.Restore, http.StatusOK)
}

func (h *Handler) mutateArticle(c *gin.Context, operation string, mutate func(ctx context.Context, id int64) error, status int) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := mutate(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", operation, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Article updated", "operation", operation, "id", id)
	if status == http.StatusNoContent {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"id": id, "operation": operation})
}

// Reindex walks every live article. Chunks are indexed inline when sync is set,
// otherwise each chunk becomes a bulk sync task.
func (h *Handler) Reindex(c *gin.Context) {
	if h.indexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Search engine not configured"})
		return
	}

	req := ReindexRequest{Chunk: indexsync.DefaultChunkSize}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	if req.Chunk <= 0 {
		req.Chunk = indexsync.DefaultChunkSize
	}

	indexed := 0
	dispatch := func(_ context.Context, ids []int64) error {
		return h.queue.EnqueueBulkSync(ids)
	}
	if req.Sync {
		dispatch = func(ctx context.Context, ids []int64) error {
			n, err := h.indexer.BulkSync(ctx, ids)
			indexed += n
			return err
		}
	}

	total, err := h.indexer.Reindex(c.Request.Context(), req.Chunk, dispatch)
	if err != nil {
		slog.Error("Reindex failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reindex failed", "dispatched": total})
		return
	}

	if req.Sync {
		c.JSON(http.StatusOK, gin.H{"dispatched": total, "indexed": indexed})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"dispatched": total})
}
