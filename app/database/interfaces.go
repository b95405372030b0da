package database

import (
	"context"
	"errors"

	"github.com/lysyi3m/news-comb/app/news"
)

var (
	// ErrDuplicateURL is returned by Create when another writer already stored the URL.
	ErrDuplicateURL = errors.New("article with this URL already exists")
	ErrNotFound     = errors.New("record not found")
)

// ArticleRepository is the canonical article store.
// FindByID and FindByURL include soft-deleted rows; FindByIDs, ListIDs and Search do not.
type ArticleRepository interface {
	Create(ctx context.Context, article *news.StoredArticle) error
	Update(ctx context.Context, article *news.StoredArticle) error
	FindByID(ctx context.Context, id int64) (*news.StoredArticle, error)
	FindByURL(ctx context.Context, url string) (*news.StoredArticle, error)
	FindByIDs(ctx context.Context, ids []int64) ([]news.StoredArticle, error)
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	ForceDelete(ctx context.Context, id int64) error
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	ListTrashedIDs(ctx context.Context) ([]int64, error)
	Search(ctx context.Context, criteria Criteria) ([]news.StoredArticle, int, error)
	Count(ctx context.Context) (int, error)
}

type SourceRepository interface {
	UpsertSource(ctx context.Context, source news.Source) (int64, error)
	FindBySlug(ctx context.Context, slug string) (*news.Source, error)
	List(ctx context.Context) ([]news.Source, error)
}

type CategoryRepository interface {
	UpsertCategory(ctx context.Context, category news.Category) (int64, error)
	FindBySlug(ctx context.Context, slug string) (*news.Category, error)
	List(ctx context.Context) ([]news.Category, error)
}

type AuthorRepository interface {
	FirstOrCreate(ctx context.Context, name string, sourceID *int64) (int64, error)
	// List returns authors ordered by name, restricted to one source when sourceID is set.
	List(ctx context.Context, sourceID *int64) ([]news.Author, error)
}

// FetchLogRepository is append-only.
type FetchLogRepository interface {
	Create(ctx context.Context, log *news.FetchLog) error
	List(ctx context.Context, source string, limit int) ([]news.FetchLog, error)
}
