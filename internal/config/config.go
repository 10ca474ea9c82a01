package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token                string  `env:"TELEGRAM_TOKEN"`
	AllowedUsers         []int64 `env:"ALLOWED_USERS"`
	DBPath               string  `env:"DB_PATH"                 envDefault:"news.db"`
	OpenAIAPIKey         string  `env:"OPENAI_API_KEY"`
	SeedPath             string  `env:"SEED_PATH"               envDefault:"newsdesk.yaml"`
	FetchSchedule        string  `env:"FETCH_SCHEDULE"          envDefault:"*/30 * * * *"`
	HTTPAddr             string  `env:"HTTP_ADDR"               envDefault:"127.0.0.1:8080"`
	AnalysisRPM          int     `env:"ANALYSIS_RPM"            envDefault:"30"`
	RelevanceThreshold   float64 `env:"RELEVANCE_THRESHOLD"     envDefault:"0.6"`
	MaxArticlesPerSource int     `env:"MAX_ARTICLES_PER_SOURCE" envDefault:"50"`
	LogLevel             string  `env:"LOG_LEVEL"               envDefault:"info"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}

	if c.AnalysisRPM <= 0 {
		return fmt.Errorf("ANALYSIS_RPM must be positive, got %d", c.AnalysisRPM)
	}

	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be within [0, 1], got %v", c.RelevanceThreshold)
	}

	if c.MaxArticlesPerSource <= 0 {
		return fmt.Errorf("MAX_ARTICLES_PER_SOURCE must be positive, got %d", c.MaxArticlesPerSource)
	}

	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, falling back to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}

	return level
}
