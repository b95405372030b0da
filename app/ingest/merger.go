package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/metrics"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/sources"
)

// Merger stores canonical articles, deduplicating by URL.
type Merger struct {
	store *database.Store
}

func NewMerger(store *database.Store) *Merger {
	return &Merger{store: store}
}

// Upsert creates the article or overwrites the stored record with the same URL.
// Overwrites replace every mutable field, so optional fields missing from a later
// fetch are cleared. created reports whether a new record was stored.
func (m *Merger) Upsert(ctx context.Context, article news.Article) (*news.StoredArticle, bool, error) {
	sourceID, err := m.resolveSource(ctx, article.SourceSlug)
	if err != nil {
		return nil, false, err
	}

	categoryID, err := m.resolveCategory(ctx, article.CategorySlug)
	if err != nil {
		return nil, false, err
	}

	var authorID *int64
	if article.AuthorName != "" {
		id, err := m.store.Authors.FirstOrCreate(ctx, article.AuthorName, sourceID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve author %q: %w", article.AuthorName, err)
		}
		authorID = &id
	}

	record := &news.StoredArticle{
		Title:       article.Title,
		Content:     article.Content,
		Summary:     article.Summary,
		URL:         article.URL,
		ImageURL:    article.ImageURL,
		SourceID:    sourceID,
		CategoryID:  categoryID,
		AuthorID:    authorID,
		PublishedAt: article.PublishedAt,
		Metadata:    article.Metadata,
	}

	existing, err := m.store.Articles.FindByURL(ctx, article.URL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up article by URL: %w", err)
	}

	if existing == nil {
		err := m.store.Articles.Create(ctx, record)
		if err == nil {
			metrics.ArticlesUpserted.WithLabelValues("created").Inc()
			return record, true, nil
		}
		if !errors.Is(err, database.ErrDuplicateURL) {
			return nil, false, fmt.Errorf("failed to create article: %w", err)
		}

		// A concurrent writer stored the URL first; its row becomes ours to update.
		existing, err = m.store.Articles.FindByURL(ctx, article.URL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to re-read article after duplicate: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("article %s vanished after duplicate insert", article.URL)
		}
	}

	record.ID = existing.ID
	if err := m.store.Articles.Update(ctx, record); err != nil {
		return nil, false, fmt.Errorf("failed to update article %d: %w", existing.ID, err)
	}

	metrics.ArticlesUpserted.WithLabelValues("updated").Inc()
	return record, false, nil
}

// resolveSource returns nil for an unknown slug; the article is stored unassociated.
func (m *Merger) resolveSource(ctx context.Context, slug string) (*int64, error) {
	source, err := m.store.Sources.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source %s: %w", slug, err)
	}
	if source == nil {
		return nil, nil
	}
	return &source.ID, nil
}

// resolveCategory falls back to the generic category for empty or unknown slugs.
func (m *Merger) resolveCategory(ctx context.Context, slug string) (*int64, error) {
	for _, candidate := range []string{slug, sources.FallbackCategory} {
		if candidate == "" {
			continue
		}
		category, err := m.store.Categories.FindBySlug(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve category %s: %w", candidate, err)
		}
		if category != nil {
			return &category.ID, nil
		}
	}
	return nil, nil
}
