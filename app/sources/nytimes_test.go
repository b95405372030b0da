package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestNYTimesAdapter_Fetch(t *testing.T) {
	var gotPath string
	var gotQuery url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`{
			"status": "OK",
			"response": {
				"docs": [
					{
						"web_url": "https://www.nytimes.com/2024/01/15/arts/show.html",
						"abstract": "A show opens.",
						"lead_paragraph": "The curtain rose on Monday.",
						"pub_date": "2024-01-15T10:00:00+0000",
						"document_type": "article",
						"news_desk": "Culture",
						"section_name": "Arts",
						"subsection_name": "Theater",
						"headline": {"main": "Opening Night"},
						"byline": {"original": "By Alex Critic"},
						"multimedia": [
							{"type": "video", "url": "video.mp4"},
							{"type": "image", "url": "images/2024/01/15/show.jpg"}
						]
					},
					{"web_url": "https://www.nytimes.com/no-headline", "headline": {"main": ""}}
				]
			}
		}`))
	}))
	defer srv.Close()

	adapter := NewNYTimesAdapter(testConfig(KindNYTimes, srv.URL), "ny-key")
	articles, err := adapter.Fetch(context.Background(), "", "Arts")

	assert.Equal(t, nil, err)
	assert.Equal(t, "/search/v2/articlesearch.json", gotPath)
	assert.Equal(t, "ny-key", gotQuery.Get("api-key"))
	assert.Equal(t, "newest", gotQuery.Get("sort"))
	assert.Equal(t, "news", gotQuery.Get("q"))
	assert.Equal(t, `section_name:("Arts")`, gotQuery.Get("fq"))

	assert.Equal(t, 1, len(articles))
	a := articles[0]
	assert.Equal(t, "Opening Night", a.Title)
	assert.Equal(t, "The curtain rose on Monday.", a.Content)
	assert.Equal(t, "A show opens.", a.Summary)
	assert.Equal(t, "Alex Critic", a.AuthorName)
	assert.Equal(t, "https://www.nytimes.com/images/2024/01/15/show.jpg", a.ImageURL)
	assert.Equal(t, "entertainment", a.CategorySlug)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), *a.PublishedAt)
	assert.Equal(t, "Theater", a.Metadata["subsection_name"])
}

func TestNYTimesAdapter_WrongStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fault":{"faultstring":"Invalid ApiKey"}}`))
	}))
	defer srv.Close()

	articles, err := NewNYTimesAdapter(testConfig(KindNYTimes, srv.URL), "ny-key").Fetch(context.Background(), "", "")

	assert.NotEqual(t, nil, err)
	assert.Equal(t, 0, len(articles))
}
