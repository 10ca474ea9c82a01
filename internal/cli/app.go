package cli

import (
	"context"
	"fmt"
	"log/slog"

	"newsdesk/internal/analysis"
	"newsdesk/internal/catalog"
	"newsdesk/internal/config"
	"newsdesk/internal/database"
	"newsdesk/internal/feed"
	"newsdesk/internal/feedback"
	"newsdesk/internal/profile"
	"newsdesk/internal/registry"
	"newsdesk/internal/scheduler"
	"newsdesk/internal/tools"
)

// app holds the wired components for one process.
type app struct {
	cfg       config.Config
	db        *database.Database
	catalog   *catalog.Catalog
	registry  *registry.Registry
	engine    *profile.Engine
	ledger    *feedback.Ledger
	reader    *feed.Reader
	ingestor  *feed.Ingestor
	pipeline  *analysis.Pipeline
	scheduler *scheduler.Scheduler
	svc       *tools.Service
	log       *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	a := &app{
		cfg:      cfg,
		db:       db,
		catalog:  catalog.New(db, log),
		engine:   profile.NewEngine(db, log),
		ledger:   feedback.New(db, log),
		reader:   feed.NewReader(log),
		ingestor: feed.NewIngestor(db, log),
		log:      log,
	}

	a.registry = registry.New(db, a.reader, cfg.MaxArticlesPerSource, log)
	a.pipeline = analysis.NewPipeline(a.catalog, a.engine, newAnalyzer(ctx, cfg, log), cfg.AnalysisRPM, log)
	a.scheduler = scheduler.New(ctx, cfg.FetchSchedule, a.registry, a.ingestor, a.reader, a.pipeline, log)
	a.svc = tools.NewService(a.catalog, a.registry, a.engine, a.ledger, cfg.RelevanceThreshold, log)

	return a, nil
}

func newAnalyzer(ctx context.Context, cfg config.Config, log *slog.Logger) analysis.Analyzer {
	if cfg.OpenAIAPIKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so fallback analysis will be used",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI analyzer is initialized",
		"provider", "openai")

	return analysis.NewOpenAIAnalyzer(cfg.OpenAIAPIKey)
}

func (a *app) close(ctx context.Context) {
	if err := a.db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

// applySeed registers the seed sources when the registry is empty and turns
// the seed interests into profile topics once.
func (a *app) applySeed(ctx context.Context) error {
	seed, err := config.LoadSeed(a.cfg.SeedPath)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	sources, err := a.registry.Seed(ctx, seed.DomainSources(a.cfg.MaxArticlesPerSource))
	if err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}

	topics, err := a.engine.MigrateInitialTopics(ctx, seed.DomainInterests())
	if err != nil {
		return fmt.Errorf("seed interests: %w", err)
	}

	a.log.InfoContext(ctx, "Seed is applied",
		"seedPath", a.cfg.SeedPath,
		"sourceCount", sources,
		"topicCount", topics)

	return nil
}
