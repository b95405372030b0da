package api

import (
	"context"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/search"
)

type Ingester interface {
	Run(ctx context.Context, slug, query, category string) (*news.FetchLog, error)
	RunAll(ctx context.Context, query, category string) ([]*news.FetchLog, error)
}

type Indexer interface {
	Reindex(ctx context.Context, chunkSize int, dispatch func(ctx context.Context, ids []int64) error) (int, error)
	BulkSync(ctx context.Context, ids []int64) (int, error)
}

// Queue submits work to the background workers.
type Queue interface {
	EnqueueFetch(slug, query, category string) error
	EnqueueBulkSync(ids []int64) error
}

type HealthReporter interface {
	Health(ctx context.Context) map[string]any
}

type SourceLister interface {
	Slugs() []string
}

type ArticleResponse struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	URL         string         `json:"url"`
	ImageURL    string         `json:"image_url,omitempty"`
	SourceID    *int64         `json:"source_id"`
	CategoryID  *int64         `json:"category_id"`
	AuthorID    *int64         `json:"author_id"`
	PublishedAt *time.Time     `json:"published_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newArticleResponse(a news.StoredArticle) ArticleResponse {
	return ArticleResponse{
		ID:          a.ID,
		Title:       a.Title,
		Content:     a.Content,
		Summary:     a.Summary,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		SourceID:    a.SourceID,
		CategoryID:  a.CategoryID,
		AuthorID:    a.AuthorID,
		PublishedAt: a.PublishedAt,
		Metadata:    a.Metadata,
		DeletedAt:   a.DeletedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type PageMeta struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type PageResponse struct {
	Data    []ArticleResponse `json:"data"`
	Meta    PageMeta          `json:"meta"`
	Backend string            `json:"backend,omitempty"`
}

func newPageResponse(page news.Page, backend string) PageResponse {
	data := make([]ArticleResponse, 0, len(page.Articles))
	for _, a := range page.Articles {
		data = append(data, newArticleResponse(a))
	}

	lastPage := 1
	if page.PerPage > 0 && page.Total > 0 {
		lastPage = (page.Total + page.PerPage - 1) / page.PerPage
	}

	return PageResponse{
		Data: data,
		Meta: PageMeta{
			Total:       page.Total,
			PerPage:     page.PerPage,
			CurrentPage: page.Page,
			LastPage:    lastPage,
		},
		Backend: backend,
	}
}

type FetchLogResponse struct {
	ID              int64     `json:"id"`
	Source          string    `json:"source"`
	Status          string    `json:"status"`
	ArticlesFetched int       `json:"articles_fetched"`
	ArticlesCreated int       `json:"articles_created"`
	ArticlesUpdated int       `json:"articles_updated"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}

func newFetchLogResponse(l news.FetchLog) FetchLogResponse {
	return FetchLogResponse{
		ID:              l.ID,
		Source:          l.Source,
		Status:          string(l.Status),
		ArticlesFetched: l.ArticlesFetched,
		ArticlesCreated: l.ArticlesCreated,
		ArticlesUpdated: l.ArticlesUpdated,
		ErrorMessage:    l.ErrorMessage,
		FetchedAt:       l.FetchedAt,
	}
}

type FetchRequest struct {
	Source   string `json:"source"`
	All      bool   `json:"all"`
	Query    string `json:"query"`
	Category string `json:"category"`
	Sync     bool   `json:"sync"`
}

type ReindexRequest struct {
	Chunk int  `json:"chunk"`
	Sync  bool `json:"sync"`
}

func pageOf(articles []news.StoredArticle, total int, f search.Filter) news.Page {
	return news.Page{Articles: articles, Total: total, PerPage: f.PerPage, Page: f.Page}
}
