// Package memory provides in-process implementations of the database repositories.
// It backs the memory driver and the tests of packages built on top of the store.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/news"
)

// NewStore returns an empty store with every repository held in memory.
func NewStore() *database.Store {
	return &database.Store{
		Articles:   NewArticleRepository(),
		Sources:    NewSourceRepository(),
		Categories: NewCategoryRepository(),
		Authors:    NewAuthorRepository(),
		FetchLogs:  NewFetchLogRepository(),
	}
}

type ArticleRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*news.StoredArticle
	byURL  map[string]int64
	now    func() time.Time
}

func NewArticleRepository() *ArticleRepository {
	return &ArticleRepository{
		byID:  make(map[int64]*news.StoredArticle),
		byURL: make(map[string]int64),
		now:   time.Now,
	}
}

func (r *ArticleRepository) Create(_ context.Context, a *news.StoredArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byURL[a.URL]; exists {
		return database.ErrDuplicateURL
	}

	r.nextID++
	now := r.now()
	a.ID = r.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	a.DeletedAt = nil

	r.byID[a.ID] = cloneArticle(a)
	r.byURL[a.URL] = a.ID
	return nil
}

func (r *ArticleRepository) Update(_ context.Context, a *news.StoredArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[a.ID]
	if !ok {
		return database.ErrNotFound
	}

	a.URL = existing.URL
	a.CreatedAt = existing.CreatedAt
	a.DeletedAt = existing.DeletedAt
	a.UpdatedAt = r.now()

	r.byID[a.ID] = cloneArticle(a)
	return nil
}

func (r *ArticleRepository) FindByID(_ context.Context, id int64) (*news.StoredArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.byID[id]; ok {
		return cloneArticle(a), nil
	}
	return nil, nil
}

func (r *ArticleRepository) FindByURL(_ context.Context, url string) (*news.StoredArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byURL[url]; ok {
		return cloneArticle(r.byID[id]), nil
	}
	return nil, nil
}

func (r *ArticleRepository) FindByIDs(_ context.Context, ids []int64) ([]news.StoredArticle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []news.StoredArticle
	for _, id := range ids {
		if a, ok := r.byID[id]; ok && !a.IsTrashed() {
			result = append(result, *cloneArticle(a))
		}
	}
	return result, nil
}

func (r *ArticleRepository) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.IsTrashed() {
		return database.ErrNotFound
	}
	now := r.now()
	a.DeletedAt = &now
	a.UpdatedAt = now
	return nil
}

func (r *ArticleRepository) Restore(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || !a.IsTrashed() {
		return database.ErrNotFound
	}
	a.DeletedAt = nil
	a.UpdatedAt = r.now()
	return nil
}

func (r *ArticleRepository) ForceDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	delete(r.byURL, a.URL)
	delete(r.byID, id)
	return nil
}

func (r *ArticleRepository) ListIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for _, id := range r.sortedIDs() {
		if id <= afterID || r.byID[id].IsTrashed() {
			continue
		}
		ids = append(ids, id)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (r *ArticleRepository) ListTrashedIDs(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []int64
	for _, id := range r.sortedIDs() {
		if r.byID[id].IsTrashed() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *ArticleRepository) Search(_ context.Context, c database.Criteria) ([]news.StoredArticle, int, error) {
	r.mu.RLock()
	var matched []*news.StoredArticle
	for _, a := range r.byID {
		if c.Matches(a) {
			matched = append(matched, cloneArticle(a))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, c.Compare)

	total := len(matched)
	start := min(c.Offset, total)
	end := total
	if c.Limit > 0 {
		end = min(start+c.Limit, total)
	}

	result := make([]news.StoredArticle, 0, end-start)
	for _, a := range matched[start:end] {
		result = append(result, *a)
	}
	return result, total, nil
}

func (r *ArticleRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.byID {
		if !a.IsTrashed() {
			count++
		}
	}
	return count, nil
}

func (r *ArticleRepository) sortedIDs() []int64 {
	return slices.Sorted(maps.Keys(r.byID))
}

func cloneArticle(a *news.StoredArticle) *news.StoredArticle {
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		c.PublishedAt = &t
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

type SourceRepository struct {
	mu      sync.RWMutex
	nextID  int64
	sources map[string]news.Source
}

func NewSourceRepository() *SourceRepository {
	return &SourceRepository{sources: make(map[string]news.Source)}
}

func (r *SourceRepository) UpsertSource(_ context.Context, source news.Source) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sources[source.Slug]; ok {
		source.ID = existing.ID
	} else {
		r.nextID++
		source.ID = r.nextID
	}
	r.sources[source.Slug] = source
	return source.ID, nil
}

func (r *SourceRepository) FindBySlug(_ context.Context, slug string) (*news.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sources[slug]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *SourceRepository) List(_ context.Context) ([]news.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := slices.Collect(maps.Values(r.sources))
	slices.SortFunc(sources, func(a, b news.Source) int {
		return strings.Compare(a.Name, b.Name)
	})
	return sources, nil
}

type CategoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	categories map[string]news.Category
}

func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{categories: make(map[string]news.Category)}
}

func (r *CategoryRepository) UpsertCategory(_ context.Context, category news.Category) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.categories[category.Slug]; ok {
		category.ID = existing.ID
	} else {
		r.nextID++
		category.ID = r.nextID
	}
	r.categories[category.Slug] = category
	return category.ID, nil
}

func (r *CategoryRepository) FindBySlug(_ context.Context, slug string) (*news.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.categories[slug]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *CategoryRepository) List(_ context.Context) ([]news.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := slices.Collect(maps.Values(r.categories))
	slices.SortFunc(categories, func(a, b news.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

type authorKey struct {
	name     string
	sourceID int64
	hasSrc   bool
}

type AuthorRepository struct {
	mu      sync.RWMutex
	nextID  int64
	authors map[authorKey]news.Author
}

func NewAuthorRepository() *AuthorRepository {
	return &AuthorRepository{authors: make(map[authorKey]news.Author)}
}

func (r *AuthorRepository) FirstOrCreate(_ context.Context, name string, sourceID *int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := authorKey{name: name}
	if sourceID != nil {
		key.sourceID = *sourceID
		key.hasSrc = true
	}

	if author, ok := r.authors[key]; ok {
		return author.ID, nil
	}
	r.nextID++
	author := news.Author{ID: r.nextID, Name: name}
	if sourceID != nil {
		src := *sourceID
		author.SourceID = &src
	}
	r.authors[key] = author
	return r.nextID, nil
}

func (r *AuthorRepository) List(_ context.Context, sourceID *int64) ([]news.Author, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var authors []news.Author
	for key, author := range r.authors {
		if sourceID != nil && (!key.hasSrc || key.sourceID != *sourceID) {
			continue
		}
		authors = append(authors, author)
	}
	slices.SortFunc(authors, func(a, b news.Author) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return authors, nil
}

// Len reports the number of distinct authors.
func (r *AuthorRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.authors)
}

type FetchLogRepository struct {
	mu     sync.RWMutex
	nextID int64
	logs   []news.FetchLog
}

func NewFetchLogRepository() *FetchLogRepository {
	return &FetchLogRepository{}
}

func (r *FetchLogRepository) Create(_ context.Context, log *news.FetchLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	log.ID = r.nextID
	r.logs = append(r.logs, *log)
	return nil
}

func (r *FetchLogRepository) List(_ context.Context, source string, limit int) ([]news.FetchLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var logs []news.FetchLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if source != "" && r.logs[i].Source != source {
			continue
		}
		logs = append(logs, r.logs[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}

var (
	_ database.ArticleRepository  = (*ArticleRepository)(nil)
	_ database.SourceRepository   = (*SourceRepository)(nil)
	_ database.CategoryRepository = (*CategoryRepository)(nil)
	_ database.AuthorRepository   = (*AuthorRepository)(nil)
	_ database.FetchLogRepository = (*FetchLogRepository)(nil)
)
