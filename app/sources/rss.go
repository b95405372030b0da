package sources

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/lysyi3m/news-comb/app/news"
	"github.com/mmcdole/gofeed"
)

// RSSAdapter reads any RSS/Atom/JSON feed declared in the sources directory.
// The query narrows items by keyword; the category is matched against item categories.
type RSSAdapter struct {
	base
	parser *gofeed.Parser
}

func NewRSSAdapter(config *Config) *RSSAdapter {
	b := newBase(config, "")
	b.keyless = true
	return &RSSAdapter{base: b, parser: gofeed.NewParser()}
}

func (a *RSSAdapter) Fetch(ctx context.Context, query, category string) ([]news.Article, error) {
	return a.fetch(ctx, query, category, a.request)
}

func (a *RSSAdapter) request(ctx context.Context, query, category string) ([]news.Article, error) {
	body, err := a.get(ctx, a.config.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := a.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	articles := make([]news.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		article := a.normalizeItem(item)
		if query != "" && !containsFold(article.Title+" "+article.Summary+" "+article.Content, query) {
			continue
		}
		if category != "" && article.CategorySlug != category && article.CategorySlug != a.config.MapCategory(category) {
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

func (a *RSSAdapter) normalizeItem(item *gofeed.Item) news.Article {
	article := news.Article{
		Title:      item.Title,
		Content:    htmlToText(item.Content),
		Summary:    htmlToText(item.Description),
		URL:        cmp.Or(item.Link, item.GUID),
		AuthorName: extractAuthor(item),
		SourceSlug: a.config.Slug,
		Metadata:   metadata("guid", item.GUID),
	}

	var term string
	if len(item.Categories) > 0 {
		term = item.Categories[0]
	}
	article.CategorySlug = a.config.MapCategory(term)

	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		article.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		article.PublishedAt = &t
	}

	if item.Image != nil {
		article.ImageURL = item.Image.URL
	} else {
		for _, enclosure := range item.Enclosures {
			if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
				article.ImageURL = enclosure.URL
				break
			}
		}
	}

	return article
}

func extractAuthor(item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}
