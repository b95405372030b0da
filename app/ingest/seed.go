package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/sources"
)

// Categories is the canonical taxonomy every source maps into.
var Categories = []news.Category{
	{Slug: "business", Name: "Business"},
	{Slug: "entertainment", Name: "Entertainment"},
	{Slug: sources.FallbackCategory, Name: "General"},
	{Slug: "health", Name: "Health"},
	{Slug: "science", Name: "Science"},
	{Slug: "sports", Name: "Sports"},
	{Slug: "technology", Name: "Technology"},
	{Slug: "politics", Name: "Politics"},
	{Slug: "world", Name: "World"},
	{Slug: "environment", Name: "Environment"},
	{Slug: "lifestyle", Name: "Lifestyle"},
	{Slug: "travel", Name: "Travel"},
	{Slug: "education", Name: "Education"},
	{Slug: "uk", Name: "UK News"},
	{Slug: "us", Name: "US News"},
}

// Seed upserts the canonical categories and one source row per configured source.
// It is safe to run on every start-up.
func Seed(ctx context.Context, store *database.Store, configs []*sources.Config) error {
	for _, category := range Categories {
		if _, err := store.Categories.UpsertCategory(ctx, category); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", category.Slug, err)
		}
	}

	for _, config := range configs {
		source := news.Source{
			Slug:     config.Slug,
			Name:     config.Name,
			BaseURL:  config.BaseURL,
			IsActive: config.Settings.Enabled,
		}
		if _, err := store.Sources.UpsertSource(ctx, source); err != nil {
			return fmt.Errorf("failed to seed source %s: %w", config.Slug, err)
		}
	}

	slog.Info("Seeded sources and categories", "sources", len(configs), "categories", len(Categories))
	return nil
}
