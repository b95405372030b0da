package database

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lysyi3m/news-comb/app/news"
)

// ObservedArticleRepository notifies observers after each committed write.
// Observers are called synchronously and must not block.
type ObservedArticleRepository struct {
	ArticleRepository

	mu        sync.RWMutex
	observers []news.ArticleObserver
}

func NewObservedArticleRepository(repo ArticleRepository, observers ...news.ArticleObserver) *ObservedArticleRepository {
	return &ObservedArticleRepository{
		ArticleRepository: repo,
		observers:         observers,
	}
}

func (r *ObservedArticleRepository) Observe(observer news.ArticleObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
}

func (r *ObservedArticleRepository) Create(ctx context.Context, article *news.StoredArticle) error {
	if err := r.ArticleRepository.Create(ctx, article); err != nil {
		return err
	}
	r.notify(article.ID, news.LifecycleCreated)
	return nil
}

func (r *ObservedArticleRepository) Update(ctx context.Context, article *news.StoredArticle) error {
	if err := r.ArticleRepository.Update(ctx, article); err != nil {
		return err
	}
	r.notify(article.ID, news.LifecycleUpdated)
	return nil
}

func (r *ObservedArticleRepository) SoftDelete(ctx context.Context, id int64) error {
	if err := r.ArticleRepository.SoftDelete(ctx, id); err != nil {
		return err
	}
	r.notify(id, news.LifecycleDeleted)
	return nil
}

func (r *ObservedArticleRepository) Restore(ctx context.Context, id int64) error {
	if err := r.ArticleRepository.Restore(ctx, id); err != nil {
		return err
	}
	r.notify(id, news.LifecycleRestored)
	return nil
}

func (r *ObservedArticleRepository) ForceDelete(ctx context.Context, id int64) error {
	if err := r.ArticleRepository.ForceDelete(ctx, id); err != nil {
		return err
	}
	r.notify(id, news.LifecycleForceDeleted)
	return nil
}

func (r *ObservedArticleRepository) notify(id int64, event news.Lifecycle) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()

	slog.Debug("Article lifecycle event", "article_id", id, "event", event)
	for _, o := range observers {
		o.ArticleChanged(id, event)
	}
}
