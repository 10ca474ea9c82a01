package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"newsdesk/internal/analysis"
	"newsdesk/internal/catalog"
	"newsdesk/internal/database"
	"newsdesk/internal/domain"
	"newsdesk/internal/feed"
	"newsdesk/internal/profile"
	"newsdesk/internal/registry"
	"newsdesk/internal/scheduler"
)

type stubReader map[string]feed.Content

func (r stubReader) Read(_ context.Context, feedURL string) (feed.Content, error) {
	content, ok := r[feedURL]
	if !ok {
		return feed.Content{}, errors.New("connection refused")
	}

	return content, nil
}

func TestRunOnceIngestsAndAnalyzes(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "news.db"), log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := registry.New(db, nil, 10, log)
	for _, src := range []domain.Source{
		{Name: "good", URL: "https://good.test/rss"},
		{Name: "down", URL: "https://down.test/rss"},
	} {
		if _, err = reg.Add(ctx, src); err != nil {
			t.Fatalf("add source: %v", err)
		}
	}

	reader := stubReader{
		"https://good.test/rss": {
			Title: "Good",
			Entries: []domain.ParsedEntry{
				{URL: "https://good.test/1", Title: "first"},
				{URL: "https://good.test/2", Title: "second"},
			},
		},
	}

	cat := catalog.New(db, log)
	engine := profile.NewEngine(db, log)
	pipeline := analysis.NewPipeline(cat, engine, nil, 0, log)

	s := scheduler.New(ctx, "@every 1h", reg, feed.NewIngestor(db, log), reader, pipeline, log)

	cycle, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	if cycle.Ingest.NewCount != 2 || len(cycle.Ingest.FailedSources) != 1 {
		t.Fatalf("unexpected ingest result %+v", cycle.Ingest)
	}

	if cycle.Ingest.FailedSources[0].Source != "down" {
		t.Fatalf("expected down source to fail, got %+v", cycle.Ingest.FailedSources)
	}

	if cycle.Analysis.Analyzed != 2 {
		t.Fatalf("expected 2 analyzed articles, got %+v", cycle.Analysis)
	}

	cycle, err = s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if cycle.Ingest.NewCount != 0 || cycle.Analysis.Analyzed != 0 {
		t.Fatalf("expected an idle second cycle, got %+v", cycle)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := scheduler.New(context.Background(), "not a cron expression", nil, nil, nil, nil, slog.New(slog.DiscardHandler))

	if err := s.Start(); err == nil {
		t.Fatalf("expected bad cron spec to fail")
	}
}
