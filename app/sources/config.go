package sources

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

const (
	FallbackCategory = "general"

	DefaultTimeout    = 30 // seconds
	DefaultMaxItems   = 100
	DefaultAttempts   = 3
	DefaultRetryDelay = 100 // milliseconds
)

// Kinds of adapter a source configuration can select.
const (
	KindNewsAPI  = "newsapi"
	KindGuardian = "guardian"
	KindNYTimes  = "nytimes"
	KindFinnhub  = "finnhub"
	KindRSS      = "rss"
)

type Config struct {
	Slug       string            // Derived from filename (without .yml extension)
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	BaseURL    string            `yaml:"base_url"`
	Settings   ConfigSettings    `yaml:"settings"`
	Categories map[string]string `yaml:"categories"` // native term -> canonical category slug
}

type ConfigSettings struct {
	Enabled    bool `yaml:"enabled"`
	Timeout    int  `yaml:"timeout"`     // seconds
	MaxItems   int  `yaml:"max_items"`   // per fetch
	Attempts   int  `yaml:"attempts"`    // total tries per request
	RetryDelay int  `yaml:"retry_delay"` // milliseconds, fixed between attempts
}

func (s ConfigSettings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s ConfigSettings) RetryDelayDuration() time.Duration {
	return time.Duration(s.RetryDelay) * time.Millisecond
}

// MapCategory translates a source's native taxonomy term to a canonical category slug.
// Unknown and empty terms resolve to FallbackCategory.
func (c *Config) MapCategory(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return FallbackCategory
	}

	folder := cases.Fold()
	folded := folder.String(term)
	for native, canonical := range c.Categories {
		if folder.String(native) == folded {
			return canonical
		}
	}
	return FallbackCategory
}

// DefaultConfigs returns the built-in configuration of the sources the aggregator ships with.
func DefaultConfigs() map[string]*Config {
	return map[string]*Config{
		KindNewsAPI: {
			Slug:     KindNewsAPI,
			Name:     "NewsAPI.org",
			Kind:     KindNewsAPI,
			BaseURL:  "https://newsapi.org/v2",
			Settings: defaultSettings(),
			Categories: map[string]string{
				"business":      "business",
				"entertainment": "entertainment",
				"general":       "general",
				"health":        "health",
				"science":       "science",
				"sports":        "sports",
				"technology":    "technology",
			},
		},
		KindGuardian: {
			Slug:     KindGuardian,
			Name:     "The Guardian",
			Kind:     KindGuardian,
			BaseURL:  "https://content.guardianapis.com",
			Settings: defaultSettings(),
			Categories: map[string]string{
				"world":       "world",
				"uk-news":     "uk",
				"politics":    "politics",
				"sport":       "sports",
				"football":    "sports",
				"culture":     "entertainment",
				"business":    "business",
				"technology":  "technology",
				"science":     "science",
				"environment": "environment",
				"money":       "business",
				"education":   "education",
			},
		},
		KindNYTimes: {
			Slug:     KindNYTimes,
			Name:     "New York Times",
			Kind:     KindNYTimes,
			BaseURL:  "https://api.nytimes.com/svc",
			Settings: defaultSettings(),
			Categories: map[string]string{
				"world":      "world",
				"us":         "us",
				"politics":   "politics",
				"business":   "business",
				"technology": "technology",
				"science":    "science",
				"health":     "health",
				"sports":     "sports",
				"arts":       "entertainment",
				"fashion":    "lifestyle",
				"food":       "lifestyle",
				"travel":     "travel",
			},
		},
		KindFinnhub: {
			Slug:     KindFinnhub,
			Name:     "Finnhub Market News",
			Kind:     KindFinnhub,
			BaseURL:  "https://finnhub.io/api/v1",
			Settings: defaultSettings(),
			Categories: map[string]string{
				"general":  "business",
				"top news": "business",
				"business": "business",
				"company":  "business",
				"forex":    "business",
				"crypto":   "technology",
				"merger":   "business",
			},
		},
	}
}

func defaultSettings() ConfigSettings {
	return ConfigSettings{
		Enabled:    true,
		Timeout:    DefaultTimeout,
		MaxItems:   DefaultMaxItems,
		Attempts:   DefaultAttempts,
		RetryDelay: DefaultRetryDelay,
	}
}

// ConfigCache holds source configurations: the built-in defaults overlaid by *.yml files from a directory.
type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      DefaultConfigs(),
	}
}

func (cc *ConfigCache) Run() error {
	if cc.sourcesDir == "" {
		return nil
	}
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		slug := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(slug)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", slug, "kind", config.Kind, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(slug string) (*Config, error) {
	configFile := filepath.Join(cc.sourcesDir, slug+".yml")
	config, err := cc.parseConfig(configFile, slug)
	if err != nil {
		return nil, err
	}

	config.Slug = slug

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Slug] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(slug string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[slug]
	if !ok {
		return nil, fmt.Errorf("source config with slug '%s' not found", slug)
	}
	return config, nil
}

// GetConfigs returns every configuration ordered by slug.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, slug := range slices.Sorted(maps.Keys(cc.cache)) {
		configs = append(configs, cc.cache[slug])
	}
	return configs
}

// parseConfig reads a YAML file on top of the built-in defaults for the same slug, if any.
func (cc *ConfigCache) parseConfig(configFile, slug string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	config := &Config{Kind: slug}
	if defaults, ok := DefaultConfigs()[slug]; ok {
		config = defaults
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Name == "" {
		config.Name = slug
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = DefaultTimeout
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = DefaultMaxItems
	}
	if config.Settings.Attempts == 0 {
		config.Settings.Attempts = DefaultAttempts
	}
	if config.Settings.RetryDelay == 0 {
		config.Settings.RetryDelay = DefaultRetryDelay
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	switch config.Kind {
	case KindNewsAPI, KindGuardian, KindNYTimes, KindFinnhub:
	case KindRSS:
		if config.BaseURL == "" {
			return fmt.Errorf("base_url is required for rss sources")
		}
	default:
		return fmt.Errorf("unknown source kind: %q", config.Kind)
	}

	nonNegativeFields := map[string]int{
		"timeout":     config.Settings.Timeout,
		"max items":   config.Settings.MaxItems,
		"attempts":    config.Settings.Attempts,
		"retry delay": config.Settings.RetryDelay,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}
