package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lysyi3m/news-comb/app/news"
)

// ErrSourceUnavailable marks a whole-request failure of one source.
var ErrSourceUnavailable = errors.New("source unavailable")

// Adapter fetches articles from one external news API and normalizes them.
// A failed request yields no articles and an error wrapping ErrSourceUnavailable;
// callers treat it as an empty, audited result rather than aborting sibling sources.
type Adapter interface {
	Fetch(ctx context.Context, query, category string) ([]news.Article, error)
	SourceSlug() string
	IsEnabled() bool
}

// requester performs the source-specific request and response mapping.
type requester func(ctx context.Context, query, category string) ([]news.Article, error)

// base carries what every adapter shares: configuration, credential and HTTP client.
type base struct {
	config  *Config
	apiKey  string
	keyless bool
	client  *http.Client
}

func newBase(config *Config, apiKey string) base {
	return base{
		config: config,
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Settings.TimeoutDuration()},
	}
}

func (b *base) SourceSlug() string {
	return b.config.Slug
}

func (b *base) IsEnabled() bool {
	return b.config.Settings.Enabled && (b.keyless || b.apiKey != "")
}

func (b *base) fetch(ctx context.Context, query, category string, request requester) ([]news.Article, error) {
	if !b.IsEnabled() {
		slog.Debug("Source disabled, skipping fetch", "source", b.config.Slug)
		return nil, nil
	}

	start := time.Now()
	slog.Info("Fetching articles", "source", b.config.Slug, "query", query, "category", category)

	articles, err := request(ctx, query, category)
	if err != nil {
		slog.Error("Fetch failed", "source", b.config.Slug, "query", query, "category", category, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, b.config.Slug, err)
	}

	valid := articles[:0]
	for _, a := range articles {
		if !a.IsValid() {
			continue
		}
		valid = append(valid, a)
	}
	if limit := b.config.Settings.MaxItems; limit > 0 && len(valid) > limit {
		valid = valid[:limit]
	}

	slog.Info("Fetch completed", "source", b.config.Slug, "count", len(valid), "skipped", len(articles)-len(valid), "duration", time.Since(start))
	return valid, nil
}

// get performs a GET with the source's fixed-interval retry policy.
// 4xx responses are not retried, except 429.
func (b *base) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("request failed with status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	if err := b.retry(ctx, operation); err != nil {
		return nil, err
	}
	return body, nil
}

// retry runs operation up to Attempts times with a fixed delay in between.
// Errors wrapped with backoff.Permanent stop immediately.
func (b *base) retry(ctx context.Context, operation backoff.Operation) error {
	retries := max(b.config.Settings.Attempts-1, 0)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.config.Settings.RetryDelayDuration()), uint64(retries)),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

// Registry maps source slugs to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.SourceSlug()] = adapter
}

func (r *Registry) Get(slug string) (Adapter, bool) {
	a, ok := r.adapters[slug]
	return a, ok
}

// Slugs returns the registered slugs in lexical order.
func (r *Registry) Slugs() []string {
	return slices.Sorted(maps.Keys(r.adapters))
}

// Keys holds API credentials by source kind.
type Keys map[string]string

// BuildRegistry creates one adapter per configured source.
func BuildRegistry(configs []*Config, keys Keys) (*Registry, error) {
	registry := NewRegistry()
	for _, config := range configs {
		adapter, err := NewAdapter(config, keys[config.Kind])
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	}
	return registry, nil
}

func NewAdapter(config *Config, apiKey string) (Adapter, error) {
	switch config.Kind {
	case KindNewsAPI:
		return NewNewsAPIAdapter(config, apiKey), nil
	case KindGuardian:
		return NewGuardianAdapter(config, apiKey), nil
	case KindNYTimes:
		return NewNYTimesAdapter(config, apiKey), nil
	case KindFinnhub:
		return NewFinnhubAdapter(config, apiKey), nil
	case KindRSS:
		return NewRSSAdapter(config), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q for source %s", config.Kind, config.Slug)
	}
}
