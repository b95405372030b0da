package cfg

import (
	"slices"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgs_DefaultsToServe(t *testing.T) {
	cfg, err := LoadArgs([]string{"--db-driver", "memory"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Command != CommandServe {
		t.Errorf("Expected command '%s', got '%s'", CommandServe, cfg.Command)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.ElasticIndex != "news_articles" {
		t.Errorf("Expected index 'news_articles', got '%s'", cfg.ElasticIndex)
	}
	if cfg.FetchSchedule != "0 * * * *" {
		t.Errorf("Expected hourly fetch schedule, got '%s'", cfg.FetchSchedule)
	}
	if len(cfg.ElasticURLs) != 0 {
		t.Errorf("Expected search engine disabled by default, got %v", cfg.ElasticURLs)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("Expected 5m cache TTL, got %s", cfg.CacheTTL)
	}
	if cfg.FetchParallelism != 4 {
		t.Errorf("Expected fetch parallelism 4, got %d", cfg.FetchParallelism)
	}
}

func TestLoadArgs_FetchCommand(t *testing.T) {
	cfg, err := LoadArgs([]string{"--db-driver=memory", "fetch", "--source", "guardian", "--query", "climate", "--sync"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Command != CommandFetch {
		t.Errorf("Expected command '%s', got '%s'", CommandFetch, cfg.Command)
	}
	if cfg.Fetch.Source != "guardian" || cfg.Fetch.Query != "climate" || !cfg.Fetch.Sync {
		t.Errorf("Unexpected fetch options %+v", cfg.Fetch)
	}
}

func TestLoadArgs_ReindexAndCleanIndex(t *testing.T) {
	cfg, err := LoadArgs([]string{"--db-driver=memory", "reindex", "--chunk", "100"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Command != CommandReindex || cfg.Reindex.Chunk != 100 {
		t.Errorf("Unexpected reindex configuration %s %+v", cfg.Command, cfg.Reindex)
	}

	cfg, err = LoadArgs([]string{"--db-driver=memory", "clean-index", "--dry-run"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Command != CommandCleanIndex || !cfg.CleanIndex.DryRun {
		t.Errorf("Unexpected clean-index configuration %s %+v", cfg.Command, cfg.CleanIndex)
	}
}

func TestLoadArgs_ElasticURLsRepeat(t *testing.T) {
	cfg, err := LoadArgs([]string{"--db-driver=memory", "--elastic-url", "http://es1:9200", "--elastic-url", "http://es2:9200"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !slices.Equal(cfg.ElasticURLs, []string{"http://es1:9200", "http://es2:9200"}) {
		t.Errorf("Unexpected addresses %v", cfg.ElasticURLs)
	}
}

func TestLoadArgs_Validation(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")

	tests := []struct {
		name string
		args []string
	}{
		{"postgres without password", []string{"--db-driver=postgres"}},
		{"fetch without target", []string{"--db-driver=memory", "fetch"}},
		{"fetch with both targets", []string{"--db-driver=memory", "fetch", "--source", "guardian", "--all"}},
		{"unknown driver", []string{"--db-driver=sqlite"}},
		{"zero workers", []string{"--db-driver=memory", "--worker-count", "0"}},
		{"zero fetch parallelism", []string{"--db-driver=memory", "--fetch-parallelism", "0"}},
		{"non-positive cache TTL", []string{"--db-driver=memory", "--cache-ttl", "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadArgs(tt.args); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}
