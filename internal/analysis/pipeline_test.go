package analysis_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"newsdesk/internal/analysis"
	"newsdesk/internal/catalog"
	"newsdesk/internal/database"
	"newsdesk/internal/domain"
	"newsdesk/internal/feed"
	"newsdesk/internal/profile"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	results  map[string]analysis.Result
	errs     map[string]error
	deep     string
	calls    int
	deepSeen []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, input analysis.Input) (analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if err, ok := f.errs[input.Title]; ok {
		return analysis.Result{}, err
	}

	return f.results[input.Title], nil
}

func (f *fakeAnalyzer) DeepAnalyze(_ context.Context, input analysis.Input, instruction string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deepSeen = append(f.deepSeen, input.Title+"|"+instruction)

	return f.deep, nil
}

type fixture struct {
	db      *database.Database
	catalog *catalog.Catalog
	engine  *profile.Engine
	log     *slog.Logger
}

func newFixture(t *testing.T, entries ...domain.ParsedEntry) fixture {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "news.db"), log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err = feed.NewIngestor(db, log).Ingest(ctx, "example", entries); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	return fixture{
		db:      db,
		catalog: catalog.New(db, log),
		engine:  profile.NewEngine(db, log),
		log:     log,
	}
}

func (f fixture) articles(t *testing.T) map[string]domain.ScoredArticle {
	t.Helper()

	result, err := f.catalog.Query(context.Background(), domain.ArticleFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	byTitle := make(map[string]domain.ScoredArticle, len(result.Articles))
	for _, a := range result.Articles {
		byTitle[a.Title] = a
	}

	return byTitle
}

func TestRunWithoutAnalyzerFallsBackToProfile(t *testing.T) {
	longBody := strings.Repeat("word ", 100)
	f := newFixture(t,
		domain.ParsedEntry{URL: "https://example.com/1", Title: "AI news", Body: longBody},
		domain.ParsedEntry{URL: "https://example.com/2", Title: "Cooking"},
	)
	ctx := context.Background()

	if _, err := f.engine.SetTopicWeight(ctx, "AI", 0.5); err != nil {
		t.Fatalf("set topic: %v", err)
	}

	report, err := analysis.NewPipeline(f.catalog, f.engine, nil, 0, f.log).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Analyzed != 2 || report.Fallbacks != 2 || report.Medium != 1 || report.Low != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	articles := f.articles(t)

	ai := articles["AI news"]
	if ai.RelevanceScore == nil || *ai.RelevanceScore != 0.5 {
		t.Fatalf("expected profile score 0.5 to be stored, got %v", ai.RelevanceScore)
	}

	if !strings.HasSuffix(ai.Summary, "...") || len([]rune(ai.Summary)) > 203 {
		t.Fatalf("expected truncated body summary, got %q", ai.Summary)
	}

	if articles["Cooking"].Summary != "Cooking" {
		t.Fatalf("expected title summary for empty body, got %q", articles["Cooking"].Summary)
	}

	unanalyzed, err := f.catalog.Unanalyzed(ctx)
	if err != nil {
		t.Fatalf("unanalyzed: %v", err)
	}

	if len(unanalyzed) != 0 {
		t.Fatalf("expected queue to be drained, got %d", len(unanalyzed))
	}
}

func TestRunUsesAnalyzerAndFallsBackOnFailure(t *testing.T) {
	f := newFixture(t,
		domain.ParsedEntry{URL: "https://example.com/1", Title: "good"},
		domain.ParsedEntry{URL: "https://example.com/2", Title: "broken"},
		domain.ParsedEntry{URL: "https://example.com/3", Title: "nonsense"},
	)
	ctx := context.Background()

	analyzer := &fakeAnalyzer{
		results: map[string]analysis.Result{
			"good":     {Summary: "a good read", Relevance: 0.9},
			"nonsense": {Summary: "odd", Relevance: 7},
		},
		errs: map[string]error{"broken": errors.New("boom")},
	}

	report, err := analysis.NewPipeline(f.catalog, f.engine, analyzer, 0, f.log).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Analyzed != 3 || report.Fallbacks != 2 || report.High != 1 || report.Low != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	articles := f.articles(t)

	if good := articles["good"]; good.Summary != "a good read" || *good.RelevanceScore != 0.9 {
		t.Fatalf("expected analyzer result to be stored, got %+v", good.Article)
	}

	if nonsense := articles["nonsense"]; *nonsense.RelevanceScore != 0 || nonsense.Summary != "nonsense" {
		t.Fatalf("expected invalid result to fall back, got %+v", nonsense.Article)
	}
}

func TestRunDeepAnalyzesConfiguredSources(t *testing.T) {
	f := newFixture(t, domain.ParsedEntry{URL: "https://example.com/1", Title: "report"})
	ctx := context.Background()

	err := f.db.WithTx(ctx, func(tx *database.Tx) error {
		return tx.InsertSource(ctx, domain.Source{
			Name:                "example",
			URL:                 "https://example.com/rss",
			MaxArticles:         10,
			DeepAnalysis:        true,
			AnalysisInstruction: "list the numbers",
			CreatedAt:           time.Now(),
		})
	})
	if err != nil {
		t.Fatalf("insert source: %v", err)
	}

	analyzer := &fakeAnalyzer{
		results: map[string]analysis.Result{"report": {Summary: "numbers", Relevance: 0.1}},
		deep:    "## Numbers\n\n42",
	}

	report, err := analysis.NewPipeline(f.catalog, f.engine, analyzer, 0, f.log).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.DeepAnalyzed != 1 || report.High != 1 {
		t.Fatalf("expected boosted deep analysis, got %+v", report)
	}

	if len(analyzer.deepSeen) != 1 || analyzer.deepSeen[0] != "report|list the numbers" {
		t.Fatalf("unexpected deep calls %v", analyzer.deepSeen)
	}

	article := f.articles(t)["report"]
	if article.DeepAnalysis != "## Numbers\n\n42" || article.Score != profile.DeepAnalysisBoost {
		t.Fatalf("unexpected article %+v", article)
	}
}

func TestRunWithEmptyQueue(t *testing.T) {
	f := newFixture(t)
	analyzer := &fakeAnalyzer{}

	report, err := analysis.NewPipeline(f.catalog, f.engine, analyzer, 0, f.log).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report != (analysis.Report{}) || analyzer.calls != 0 {
		t.Fatalf("expected no work, got %+v and %d calls", report, analyzer.calls)
	}
}
