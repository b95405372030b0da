package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-playground/assert/v2"
)

func testConfig(kind, baseURL string) *Config {
	config := DefaultConfigs()[kind]
	if config == nil {
		config = &Config{Slug: kind, Kind: kind, Settings: defaultSettings()}
	}
	config.BaseURL = baseURL
	config.Settings.RetryDelay = 1
	return config
}

func TestBase_DisabledSourceSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	noKey := NewNewsAPIAdapter(testConfig(KindNewsAPI, srv.URL), "")
	articles, err := noKey.Fetch(context.Background(), "", "")

	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(articles))
	assert.Equal(t, false, noKey.IsEnabled())

	config := testConfig(KindNewsAPI, srv.URL)
	config.Settings.Enabled = false
	switchedOff := NewNewsAPIAdapter(config, "key")
	articles, err = switchedOff.Fetch(context.Background(), "", "")

	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(articles))
	assert.Equal(t, int32(0), hits.Load())
}

func TestBase_RetriesServerErrorsWithFixedAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewNewsAPIAdapter(testConfig(KindNewsAPI, srv.URL), "key")
	articles, err := adapter.Fetch(context.Background(), "", "")

	assert.Equal(t, true, errors.Is(err, ErrSourceUnavailable))
	assert.Equal(t, 0, len(articles))
	assert.Equal(t, int32(DefaultAttempts), hits.Load())
}

func TestBase_RecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok","articles":[{"title":"Hello","url":"https://example.com/hello"}]}`))
	}))
	defer srv.Close()

	adapter := NewNewsAPIAdapter(testConfig(KindNewsAPI, srv.URL), "key")
	articles, err := adapter.Fetch(context.Background(), "", "")

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(articles))
	assert.Equal(t, int32(2), hits.Load())
}

func TestBase_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := NewGuardianAdapter(testConfig(KindGuardian, srv.URL), "bad-key")
	_, err := adapter.Fetch(context.Background(), "", "")

	assert.Equal(t, true, errors.Is(err, ErrSourceUnavailable))
	assert.Equal(t, int32(1), hits.Load())
}

func TestBase_TruncatesToMaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"One","url":"https://example.com/1"},
			{"title":"Two","url":"https://example.com/2"},
			{"title":"Three","url":"https://example.com/3"}
		]}`))
	}))
	defer srv.Close()

	config := testConfig(KindNewsAPI, srv.URL)
	config.Settings.MaxItems = 2
	articles, err := NewNewsAPIAdapter(config, "key").Fetch(context.Background(), "", "")

	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(articles))
}

func TestRegistry_BuildFromConfigs(t *testing.T) {
	configs := []*Config{
		testConfig(KindNewsAPI, "http://localhost"),
		testConfig(KindGuardian, "http://localhost"),
		{Slug: "hn", Kind: KindRSS, BaseURL: "http://localhost/rss", Settings: defaultSettings()},
	}

	registry, err := BuildRegistry(configs, Keys{KindNewsAPI: "key"})

	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"guardian", "hn", "newsapi"}, registry.Slugs())

	newsapi, _ := registry.Get("newsapi")
	guardian, _ := registry.Get("guardian")
	rss, _ := registry.Get("hn")
	assert.Equal(t, true, newsapi.IsEnabled())
	assert.Equal(t, false, guardian.IsEnabled())
	assert.Equal(t, true, rss.IsEnabled())

	_, ok := registry.Get("unknown")
	assert.Equal(t, false, ok)
}

func TestRegistry_RejectsUnknownKind(t *testing.T) {
	_, err := BuildRegistry([]*Config{{Slug: "x", Kind: "carrier-pigeon"}}, nil)
	assert.NotEqual(t, nil, err)
}
