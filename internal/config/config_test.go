package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"newsdesk/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALLOWED_USERS", "1,2")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.DBPath != "news.db" {
		t.Fatalf("expected default DB path, got %q", cfg.DBPath)
	}

	if len(cfg.AllowedUsers) != 2 || cfg.AllowedUsers[0] != 1 || cfg.AllowedUsers[1] != 2 {
		t.Fatalf("unexpected allowed users %v", cfg.AllowedUsers)
	}

	if cfg.RelevanceThreshold != 0.6 {
		t.Fatalf("expected default threshold 0.6, got %v", cfg.RelevanceThreshold)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("RELEVANCE_THRESHOLD", "1.5")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for threshold outside [0, 1]")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}

	for raw, want := range tests {
		if got := (config.Config{LogLevel: raw}).SlogLevel(); got != want {
			t.Errorf("level %q: got %v want %v", raw, got, want)
		}
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	seed, err := config.LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected missing seed to be ignored, got %v", err)
	}

	if len(seed.Sources) != 0 || len(seed.Interests.Topics) != 0 {
		t.Fatalf("expected empty seed, got %+v", seed)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
interests:
  topics: [AI, " Go ", rust]
  priorities:
    high: [AI]
    low: [rust]
sources:
  - name: hn
    url: https://news.ycombinator.com/rss
  - name: lwn
    url: https://lwn.net/headlines/rss
    max_articles: 10
    deep_analysis: true
    analysis_instruction: Focus on kernel changes
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	seed, err := config.LoadSeed(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}

	interests := seed.DomainInterests()
	if len(interests.Topics) != 3 || interests.Topics[1] != "Go" {
		t.Fatalf("unexpected topics %v", interests.Topics)
	}

	sources := seed.DomainSources(50)
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	if sources[0].MaxArticles != 50 {
		t.Fatalf("expected default max articles, got %d", sources[0].MaxArticles)
	}

	if !sources[1].DeepAnalysis || sources[1].MaxArticles != 10 {
		t.Fatalf("unexpected second source %+v", sources[1])
	}
}
