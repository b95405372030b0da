package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/lysyi3m/news-comb/app/news"
)

const nytimesImageHost = "https://www.nytimes.com/"

var bylinePrefix = regexp.MustCompile(`(?i)^By\s+`)

type NYTimesAdapter struct {
	base
}

func NewNYTimesAdapter(config *Config, apiKey string) *NYTimesAdapter {
	return &NYTimesAdapter{base: newBase(config, apiKey)}
}

type nytimesResponse struct {
	Status   string `json:"status"`
	Response struct {
		Docs []struct {
			WebURL        string `json:"web_url"`
			Abstract      string `json:"abstract"`
			LeadParagraph string `json:"lead_paragraph"`
			PubDate       string `json:"pub_date"`
			DocumentType  string `json:"document_type"`
			NewsDesk      string `json:"news_desk"`
			SectionName   string `json:"section_name"`
			Subsection    string `json:"subsection_name"`
			Headline      struct {
				Main string `json:"main"`
			} `json:"headline"`
			Byline struct {
				Original string `json:"original"`
			} `json:"byline"`
			Multimedia []struct {
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"multimedia"`
		} `json:"docs"`
	} `json:"response"`
}

func (a *NYTimesAdapter) Fetch(ctx context.Context, query, category string) ([]news.Article, error) {
	return a.fetch(ctx, query, category, a.request)
}

func (a *NYTimesAdapter) request(ctx context.Context, query, category string) ([]news.Article, error) {
	params := url.Values{}
	params.Set("api-key", a.apiKey)
	params.Set("sort", "newest")
	params.Set("q", "news")
	if query != "" {
		params.Set("q", query)
	}
	if category != "" {
		params.Set("fq", fmt.Sprintf(`section_name:("%s")`, category))
	}

	body, err := a.get(ctx, a.config.BaseURL+"/search/v2/articlesearch.json", params)
	if err != nil {
		return nil, err
	}

	var resp nytimesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("unexpected response status %q", resp.Status)
	}

	articles := make([]news.Article, 0, len(resp.Response.Docs))
	for _, item := range resp.Response.Docs {
		var imageURL string
		for _, media := range item.Multimedia {
			if media.Type == "image" {
				imageURL = nytimesImageHost + media.URL
				break
			}
		}

		articles = append(articles, news.Article{
			Title:        item.Headline.Main,
			Content:      item.LeadParagraph,
			Summary:      item.Abstract,
			URL:          item.WebURL,
			ImageURL:     imageURL,
			AuthorName:   bylinePrefix.ReplaceAllString(item.Byline.Original, ""),
			CategorySlug: a.config.MapCategory(item.SectionName),
			SourceSlug:   a.config.Slug,
			PublishedAt:  parseTime(item.PubDate),
			Metadata: metadata(
				"document_type", item.DocumentType,
				"news_desk", item.NewsDesk,
				"section_name", item.SectionName,
				"subsection_name", item.Subsection,
			),
		})
	}

	return articles, nil
}
