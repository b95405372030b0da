package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestFinnhubAdapter_Fetch(t *testing.T) {
	var gotToken, gotCategory string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Finnhub-Token")
		gotCategory = r.URL.Query().Get("category")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"category": "top news",
				"datetime": 1705309200,
				"headline": "Fed Holds Rates Steady",
				"id": 7,
				"image": "https://example.com/fed.jpg",
				"related": "SPY",
				"source": "Reuters",
				"summary": "The Federal Reserve kept rates unchanged.",
				"url": "https://example.com/fed"
			},
			{
				"category": "top news",
				"datetime": 1705309300,
				"headline": "Oil Slides",
				"id": 8,
				"summary": "Crude prices fell.",
				"url": "https://example.com/oil"
			}
		]`))
	}))
	defer srv.Close()

	adapter := NewFinnhubAdapter(testConfig(KindFinnhub, srv.URL), "fh-key")
	articles, err := adapter.Fetch(context.Background(), "fed", "")

	assert.Equal(t, nil, err)
	assert.Equal(t, "fh-key", gotToken)
	assert.Equal(t, "general", gotCategory)
	assert.Equal(t, 1, len(articles))

	a := articles[0]
	assert.Equal(t, "Fed Holds Rates Steady", a.Title)
	assert.Equal(t, "https://example.com/fed", a.URL)
	assert.Equal(t, "business", a.CategorySlug)
	assert.Equal(t, "finnhub", a.SourceSlug)
	assert.Equal(t, time.Unix(1705309200, 0).UTC(), *a.PublishedAt)
	assert.Equal(t, "7", a.Metadata["external_id"])
	assert.Equal(t, "Reuters", a.Metadata["publisher"])
}
