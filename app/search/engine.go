package search

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/news-comb/app/news"
)

const IndexName = "news_articles"

var ErrEngineUnavailable = errors.New("search engine unavailable")

// Engine is the primary full-text search service.
// Delete of an absent document succeeds.
type Engine interface {
	Put(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id int64) error
	// BulkPut indexes all documents in one request and returns how many were indexed:
	// len(docs) on success, zero if any item of the batch failed.
	BulkPut(ctx context.Context, docs []Document) (int, error)
	Query(ctx context.Context, q Query) (Result, error)
	Ping(ctx context.Context) bool
	EnsureIndex(ctx context.Context) error
}

type Result struct {
	IDs   []int64
	Total int
}

// Document is the indexed shape of a stored article.
// Renaming a field requires a full reindex.
type Document struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image_url,omitempty"`
	SourceID    *int64     `json:"source_id"`
	CategoryID  *int64     `json:"category_id"`
	AuthorID    *int64     `json:"author_id"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewDocument(a *news.StoredArticle) Document {
	return Document{
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
		CreatedAt:   a.CreatedAt,
	}
}

// IndexMapping is the index definition created when the index is missing.
const IndexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":           {"type": "long"},
      "title":        {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "content":      {"type": "text"},
      "summary":      {"type": "text"},
      "url":          {"type": "keyword"},
      "image_url":    {"type": "keyword", "index": false},
      "source_id":    {"type": "long"},
      "category_id":  {"type": "long"},
      "author_id":    {"type": "long"},
      "published_at": {"type": "date"},
      "created_at":   {"type": "date"}
    }
  }
}`
