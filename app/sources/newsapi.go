package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lysyi3m/news-comb/app/news"
)

type NewsAPIAdapter struct {
	base
}

func NewNewsAPIAdapter(config *Config, apiKey string) *NewsAPIAdapter {
	return &NewsAPIAdapter{base: newBase(config, apiKey)}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

func (a *NewsAPIAdapter) Fetch(ctx context.Context, query, category string) ([]news.Article, error) {
	return a.fetch(ctx, query, category, a.request)
}

func (a *NewsAPIAdapter) request(ctx context.Context, query, category string) ([]news.Article, error) {
	endpoint := a.config.BaseURL + "/everything"
	if category != "" {
		endpoint = a.config.BaseURL + "/top-headlines"
	}

	params := url.Values{}
	params.Set("apiKey", a.apiKey)
	params.Set("pageSize", strconv.Itoa(a.config.Settings.MaxItems))
	params.Set("language", "en")
	if query != "" {
		params.Set("q", query)
	}
	if category != "" {
		params.Set("category", category)
	}
	if query == "" && category == "" {
		params.Set("q", "news")
	}

	body, err := a.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("unexpected response status %q: %s", resp.Status, resp.Message)
	}

	articles := make([]news.Article, 0, len(resp.Articles))
	for _, item := range resp.Articles {
		articles = append(articles, news.Article{
			Title:        item.Title,
			Content:      item.Content,
			Summary:      item.Description,
			URL:          item.URL,
			ImageURL:     item.URLToImage,
			AuthorName:   item.Author,
			CategorySlug: a.config.MapCategory(item.Source.Category),
			SourceSlug:   a.config.Slug,
			PublishedAt:  parseTime(item.PublishedAt),
			Metadata: metadata(
				"original_source", item.Source.Name,
				"original_source_id", item.Source.ID,
			),
		})
	}

	return articles, nil
}
