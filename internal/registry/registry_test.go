package registry_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"newsdesk/internal/database"
	"newsdesk/internal/domain"
	"newsdesk/internal/registry"
)

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, feedURL string) domain.FeedValidation {
	return domain.FeedValidation{URL: feedURL, Valid: true, Title: "stub", EntryCount: 3}
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	log := slog.New(slog.DiscardHandler)

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "news.db"), log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return registry.New(db, stubValidator{}, 50, log)
}

func TestAddDuplicateSource(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	added, err := r.Add(ctx, domain.Source{Name: "X", URL: "http://x.test/rss"})
	if err != nil {
		t.Fatalf("add source: %v", err)
	}

	if added.MaxArticles != 50 {
		t.Fatalf("expected default max articles, got %d", added.MaxArticles)
	}

	_, err = r.Add(ctx, domain.Source{Name: "X", URL: "http://other.test/rss"})
	if !errors.Is(err, domain.ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
}

func TestRemoveMissingSource(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Remove(context.Background(), "Y"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMissingSource(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Get(context.Background(), "Y"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	tests := []domain.Source{
		{Name: " ", URL: "https://x.test/rss"},
		{Name: "x", URL: "x.test/rss"},
		{Name: "x", URL: "ftp://x.test/rss"},
	}

	for _, src := range tests {
		if _, err := r.Add(ctx, src); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("add %+v: expected ErrInvalidArgument, got %v", src, err)
		}
	}
}

func TestAddRemoveList(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a"} {
		if _, err := r.Add(ctx, domain.Source{Name: name, URL: "https://" + name + ".test/rss"}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	if err := r.Remove(ctx, "b"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	sources, err := r.ListWithCounts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(sources) != 1 || sources[0].Name != "a" || sources[0].ArticleCount != 0 {
		t.Fatalf("unexpected sources %+v", sources)
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	seed := []domain.Source{
		{Name: "a", URL: "https://a.test/rss"},
		{Name: "b", URL: "https://b.test/rss", DeepAnalysis: true},
	}

	inserted, err := r.Seed(ctx, seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if inserted != 2 {
		t.Fatalf("expected 2 seeded sources, got %d", inserted)
	}

	inserted, err = r.Seed(ctx, []domain.Source{{Name: "c", URL: "https://c.test/rss"}})
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}

	if inserted != 0 {
		t.Fatalf("expected second seed to be a no-op, got %d", inserted)
	}

	src, err := r.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get seeded source: %v", err)
	}

	if !src.DeepAnalysis {
		t.Fatalf("expected deep analysis flag to persist")
	}
}

func TestValidateFeedDelegates(t *testing.T) {
	r := newTestRegistry(t)

	result := r.ValidateFeed(context.Background(), "https://x.test/rss")
	if !result.Valid || result.EntryCount != 3 {
		t.Fatalf("unexpected validation %+v", result)
	}
}
