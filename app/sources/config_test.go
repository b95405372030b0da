package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_MapCategory(t *testing.T) {
	guardian := DefaultConfigs()[KindGuardian]

	tests := []struct {
		term     string
		expected string
	}{
		{"uk-news", "uk"},
		{"UK-News", "uk"},
		{"football", "sports"},
		{"money", "business"},
		{"crossword", FallbackCategory},
		{"", FallbackCategory},
		{"   ", FallbackCategory},
	}

	for _, tt := range tests {
		if got := guardian.MapCategory(tt.term); got != tt.expected {
			t.Errorf("MapCategory(%q) = '%s', expected '%s'", tt.term, got, tt.expected)
		}
	}
}

func TestConfigCache_DefaultsWithoutDirectory(t *testing.T) {
	cache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := cache.Run(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	configs := cache.GetConfigs()
	if len(configs) != 4 {
		t.Fatalf("Expected 4 built-in sources, got %d", len(configs))
	}
	if configs[0].Slug != "finnhub" || configs[3].Slug != "nytimes" {
		t.Errorf("Expected configs ordered by slug, got %s..%s", configs[0].Slug, configs[3].Slug)
	}
}

func TestConfigCache_LoadsYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()

	guardianYAML := `
name: Guardian (EU edition)
settings:
  enabled: true
  timeout: 10
categories:
  lifeandstyle: lifestyle
`
	rssYAML := `
name: Tech Wire
kind: rss
base_url: https://wire.example.com/feed.xml
settings:
  enabled: true
categories:
  technology: technology
`
	writeFile(t, filepath.Join(dir, "guardian.yml"), guardianYAML)
	writeFile(t, filepath.Join(dir, "techwire.yml"), rssYAML)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	guardian, err := cache.GetConfig("guardian")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if guardian.Name != "Guardian (EU edition)" {
		t.Errorf("Expected overridden name, got '%s'", guardian.Name)
	}
	if guardian.Settings.Timeout != 10 {
		t.Errorf("Expected timeout 10, got %d", guardian.Settings.Timeout)
	}
	if guardian.BaseURL != "https://content.guardianapis.com" {
		t.Errorf("Expected default base URL to survive, got '%s'", guardian.BaseURL)
	}
	if guardian.MapCategory("lifeandstyle") != "lifestyle" || guardian.MapCategory("football") != "sports" {
		t.Error("Expected YAML categories merged into default mapping")
	}

	rss, err := cache.GetConfig("techwire")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rss.Kind != KindRSS {
		t.Errorf("Expected kind rss, got '%s'", rss.Kind)
	}
	if rss.Settings.Attempts != DefaultAttempts || rss.Settings.RetryDelay != DefaultRetryDelay {
		t.Errorf("Expected retry defaults, got %d/%d", rss.Settings.Attempts, rss.Settings.RetryDelay)
	}
}

func TestConfigCache_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown kind", "kind: telegraph\n"},
		{"rss without url", "kind: rss\n"},
		{"negative timeout", "kind: rss\nbase_url: http://x\nsettings:\n  timeout: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "broken.yml"), tt.yaml)

			if err := NewConfigCache(dir).Run(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
