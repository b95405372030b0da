package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lysyi3m/news-comb/app/news"
)

const guardianMaxPageSize = 200

type GuardianAdapter struct {
	base
}

func NewGuardianAdapter(config *Config, apiKey string) *GuardianAdapter {
	return &GuardianAdapter{base: newBase(config, apiKey)}
}

type guardianResponse struct {
	Response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Results []struct {
			SectionID          string `json:"sectionId"`
			SectionName        string `json:"sectionName"`
			WebPublicationDate string `json:"webPublicationDate"`
			WebTitle           string `json:"webTitle"`
			WebURL             string `json:"webUrl"`
			PillarID           string `json:"pillarId"`
			PillarName         string `json:"pillarName"`
			Fields             struct {
				Headline  string `json:"headline"`
				Body      string `json:"body"`
				TrailText string `json:"trailText"`
				Thumbnail string `json:"thumbnail"`
				Byline    string `json:"byline"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

func (a *GuardianAdapter) Fetch(ctx context.Context, query, category string) ([]news.Article, error) {
	return a.fetch(ctx, query, category, a.request)
}

func (a *GuardianAdapter) request(ctx context.Context, query, category string) ([]news.Article, error) {
	params := url.Values{}
	params.Set("api-key", a.apiKey)
	params.Set("page-size", strconv.Itoa(min(a.config.Settings.MaxItems, guardianMaxPageSize)))
	params.Set("show-fields", "headline,body,trailText,thumbnail,byline")
	params.Set("order-by", "newest")
	if query != "" {
		params.Set("q", query)
	}
	if category != "" {
		params.Set("section", category)
	}

	body, err := a.get(ctx, a.config.BaseURL+"/search", params)
	if err != nil {
		return nil, err
	}

	var resp guardianResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Response.Status != "ok" {
		return nil, fmt.Errorf("unexpected response status %q: %s", resp.Response.Status, resp.Response.Message)
	}

	articles := make([]news.Article, 0, len(resp.Response.Results))
	for _, item := range resp.Response.Results {
		articles = append(articles, news.Article{
			Title:        item.WebTitle,
			Content:      htmlToText(item.Fields.Body),
			Summary:      htmlToText(item.Fields.TrailText),
			URL:          item.WebURL,
			ImageURL:     item.Fields.Thumbnail,
			AuthorName:   item.Fields.Byline,
			CategorySlug: a.config.MapCategory(item.SectionID),
			SourceSlug:   a.config.Slug,
			PublishedAt:  parseTime(item.WebPublicationDate),
			Metadata: metadata(
				"section_id", item.SectionID,
				"section_name", item.SectionName,
				"pillar_id", item.PillarID,
				"pillar_name", item.PillarName,
			),
		})
	}

	return articles, nil
}
