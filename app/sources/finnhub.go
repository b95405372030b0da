package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/lysyi3m/news-comb/app/news"
)

const finnhubDefaultCategory = "general"

// FinnhubAdapter fetches market news through the Finnhub SDK.
// The category selects the Finnhub news feed; the query filters headlines and summaries.
type FinnhubAdapter struct {
	base
	client *finnhub.DefaultApiService
}

func NewFinnhubAdapter(config *Config, apiKey string) *FinnhubAdapter {
	b := newBase(config, apiKey)

	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	cfg.HTTPClient = b.client
	if config.BaseURL != "" {
		cfg.Servers = finnhub.ServerConfigurations{{URL: config.BaseURL}}
	}

	return &FinnhubAdapter{
		base:   b,
		client: finnhub.NewAPIClient(cfg).DefaultApi,
	}
}

func (a *FinnhubAdapter) Fetch(ctx context.Context, query, category string) ([]news.Article, error) {
	return a.fetch(ctx, query, category, a.request)
}

func (a *FinnhubAdapter) request(ctx context.Context, query, category string) ([]news.Article, error) {
	feed := finnhubDefaultCategory
	if category != "" {
		feed = category
	}

	var items []finnhub.MarketNews
	err := a.retry(ctx, func() error {
		res, resp, err := a.client.MarketNews(ctx).Category(feed).Execute()
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(fmt.Errorf("market news request failed with status %d: %w", resp.StatusCode, err))
			}
			return fmt.Errorf("market news request failed: %w", err)
		}
		items = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	articles := make([]news.Article, 0, len(items))
	for _, item := range items {
		article := news.Article{
			Title:        item.GetHeadline(),
			Summary:      item.GetSummary(),
			URL:          item.GetUrl(),
			ImageURL:     item.GetImage(),
			CategorySlug: a.config.MapCategory(item.GetCategory()),
			SourceSlug:   a.config.Slug,
		}

		if item.Datetime != nil && *item.Datetime > 0 {
			t := time.Unix(*item.Datetime, 0).UTC()
			article.PublishedAt = &t
		}

		var id string
		if item.Id != nil {
			id = strconv.FormatInt(*item.Id, 10)
		}
		article.Metadata = metadata(
			"external_id", id,
			"publisher", item.GetSource(),
			"related", item.GetRelated(),
		)

		if query != "" && !containsFold(article.Title+" "+article.Summary, query) {
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}
