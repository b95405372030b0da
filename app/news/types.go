package news

import (
	"time"
)

// Article is the source-agnostic shape every adapter normalizes into.
type Article struct {
	Title        string
	Content      string
	Summary      string
	URL          string // natural dedup key, unique across all sources
	ImageURL     string
	AuthorName   string
	CategorySlug string
	SourceSlug   string
	PublishedAt  *time.Time
	Metadata     map[string]any
}

// IsValid reports whether the article carries the fields required to be stored.
func (a Article) IsValid() bool {
	return a.URL != "" && a.Title != "" && a.SourceSlug != ""
}

type StoredArticle struct {
	ID          int64
	Title       string
	Content     string
	Summary     string
	URL         string
	ImageURL    string
	SourceID    *int64
	CategoryID  *int64
	AuthorID    *int64
	PublishedAt *time.Time
	Metadata    map[string]any
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *StoredArticle) IsTrashed() bool {
	return a.DeletedAt != nil
}

type Source struct {
	ID       int64
	Slug     string
	Name     string
	BaseURL  string
	IsActive bool
}

type Category struct {
	ID          int64
	Slug        string
	Name        string
	Description string
}

// Author is keyed by (Name, SourceID): bylines are not disambiguated across sources.
type Author struct {
	ID       int64
	Name     string
	SourceID *int64
}

type FetchStatus string

const (
	FetchStatusSuccess FetchStatus = "success"
	FetchStatusFailed  FetchStatus = "failed"
	FetchStatusPartial FetchStatus = "partial"
)

// FetchLog is the append-only audit record of one ingestion run for one source.
type FetchLog struct {
	ID              int64
	Source          string
	Status          FetchStatus
	ArticlesFetched int
	ArticlesCreated int
	ArticlesUpdated int
	ErrorMessage    string
	FetchedAt       time.Time
}

type FetchResult struct {
	Status          FetchStatus
	ArticlesFetched int
	ArticlesCreated int
	ArticlesUpdated int
	ErrorMessage    string
}

func FetchSucceeded(fetched, created, updated int) FetchResult {
	return FetchResult{
		Status:          FetchStatusSuccess,
		ArticlesFetched: fetched,
		ArticlesCreated: created,
		ArticlesUpdated: updated,
	}
}

func FetchFailed(message string) FetchResult {
	return FetchResult{Status: FetchStatusFailed, ErrorMessage: message}
}

func FetchPartial(fetched, created, updated int, message string) FetchResult {
	return FetchResult{
		Status:          FetchStatusPartial,
		ArticlesFetched: fetched,
		ArticlesCreated: created,
		ArticlesUpdated: updated,
		ErrorMessage:    message,
	}
}

// Page is one ordered, paginated slice of stored articles plus the total match count.
type Page struct {
	Articles []StoredArticle
	Total    int
	PerPage  int
	Page     int
}

// Lifecycle event emitted by the article store after a committed write.
type Lifecycle string

const (
	LifecycleCreated      Lifecycle = "created"
	LifecycleUpdated      Lifecycle = "updated"
	LifecycleDeleted      Lifecycle = "deleted"
	LifecycleForceDeleted Lifecycle = "force_deleted"
	LifecycleRestored     Lifecycle = "restored"
)

// ArticleObserver receives lifecycle events for stored articles.
type ArticleObserver interface {
	ArticleChanged(articleID int64, event Lifecycle)
}
