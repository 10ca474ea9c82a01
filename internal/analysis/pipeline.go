package analysis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"newsdesk/internal/catalog"
	"newsdesk/internal/domain"
	"newsdesk/internal/profile"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers       = 4
	fallbackSummaryRunes = 200
)

var errNoAnalyzer = errors.New("analyzer is not configured")

// Report counts what one pipeline run did. Tier counts use the score the
// article ends up with, including the deep analysis boost.
type Report struct {
	Analyzed     int
	Fallbacks    int
	DeepAnalyzed int
	Failed       int
	High         int
	Medium       int
	Low          int
}

// Pipeline analyzes every unanalyzed article and stores the outcome through
// the catalog. Without an analyzer, or when it fails, the article gets the
// profile score and a truncated body as summary.
type Pipeline struct {
	catalog  *catalog.Catalog
	engine   *profile.Engine
	analyzer Analyzer
	limiter  *rate.Limiter
	cache    *resultCache
	workers  int
	log      *slog.Logger
	now      func() time.Time
}

// NewPipeline builds a pipeline. analyzer may be nil; rpm <= 0 disables
// request pacing.
func NewPipeline(
	cat *catalog.Catalog,
	engine *profile.Engine,
	analyzer Analyzer,
	rpm int,
	log *slog.Logger,
) *Pipeline {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}

	return &Pipeline{
		catalog:  cat,
		engine:   engine,
		analyzer: analyzer,
		limiter:  limiter,
		cache:    newResultCache(resultCacheMaxEntries),
		workers:  defaultWorkers,
		log:      log,
		now:      time.Now,
	}
}

func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	articles, err := p.catalog.Unanalyzed(ctx)
	if err != nil {
		return Report{}, err
	}

	if len(articles) == 0 {
		return Report{}, nil
	}

	candidates, err := p.catalog.DeepAnalysisCandidates(ctx)
	if err != nil {
		return Report{}, err
	}

	instructions := make(map[int64]string, len(candidates))
	for _, c := range candidates {
		instructions[c.Article.ID] = c.Instruction
	}

	prof, err := p.engine.Snapshot(ctx)
	if err != nil {
		return Report{}, err
	}

	topics := prof.Topics()
	slices.SortStableFunc(topics, func(a, b domain.ProfileTopic) int {
		return cmp.Compare(b.Weight, a.Weight)
	})

	var (
		mu     sync.Mutex
		report Report
		errs   []error
		g      errgroup.Group
	)

	g.SetLimit(p.workers)

	for _, article := range articles {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			rec, fallback := p.analyze(ctx, prof, topics, article, instructions[article.ID])

			if err := p.catalog.RecordAnalysis(ctx, rec); err != nil {
				p.log.ErrorContext(ctx, "Failed to record analysis",
					"error", err,
					"articleID", article.ID)

				mu.Lock()
				report.Failed++
				errs = append(errs, fmt.Errorf("article %d: %w", article.ID, err))
				mu.Unlock()

				return nil
			}

			score := rec.RelevanceScore
			if rec.DeepAnalysis != nil {
				score = max(score, profile.DeepAnalysisBoost)
			}

			mu.Lock()
			defer mu.Unlock()

			report.Analyzed++
			if fallback {
				report.Fallbacks++
			}
			if rec.DeepAnalysis != nil {
				report.DeepAnalyzed++
			}

			switch profile.TierFor(score) {
			case domain.TierHigh:
				report.High++
			case domain.TierMedium:
				report.Medium++
			default:
				report.Low++
			}

			return nil
		})
	}

	_ = g.Wait()

	if err = ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	p.log.InfoContext(ctx, "Analysis run is finished",
		"analyzedCount", report.Analyzed,
		"fallbackCount", report.Fallbacks,
		"deepCount", report.DeepAnalyzed,
		"failedCount", report.Failed,
		"highCount", report.High,
		"mediumCount", report.Medium,
		"lowCount", report.Low)

	return report, errors.Join(errs...)
}

func (p *Pipeline) analyze(
	ctx context.Context,
	prof profile.Profile,
	topics []domain.ProfileTopic,
	article domain.Article,
	instruction string,
) (domain.AnalysisRecord, bool) {
	input := inputFromArticle(article, topics)
	fallback := false

	result, err := p.regular(ctx, input)
	if err != nil {
		if !errors.Is(err, errNoAnalyzer) {
			p.log.WarnContext(ctx, "Failed to analyze article, using profile score",
				"error", err,
				"articleID", article.ID)
		}

		result = Result{
			Summary:   fallbackSummary(article),
			Relevance: prof.Score(article),
		}
		fallback = true
	}

	rec := domain.AnalysisRecord{
		ArticleID:      article.ID,
		Summary:        result.Summary,
		RelevanceScore: result.Relevance,
	}

	if strings.TrimSpace(instruction) == "" || p.analyzer == nil {
		return rec, fallback
	}

	deep, err := p.deep(ctx, input, instruction)
	if err != nil {
		p.log.WarnContext(ctx, "Failed to run deep analysis",
			"error", err,
			"articleID", article.ID)

		return rec, fallback
	}

	rec.DeepAnalysis = &deep

	return rec, fallback
}

func (p *Pipeline) regular(ctx context.Context, input Input) (Result, error) {
	if p.analyzer == nil {
		return Result{}, errNoAnalyzer
	}

	key := cacheKey(input)
	if cached, ok := p.cache.get(key, p.now()); ok {
		return cached, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	result, err := p.analyzer.Analyze(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}

	err = catalog.ValidateAnalysis(domain.AnalysisRecord{
		Summary:        result.Summary,
		RelevanceScore: result.Relevance,
	})
	if err != nil {
		return Result{}, err
	}

	now := p.now()
	p.cache.set(key, result, now.Add(resultCacheTTL), now)

	return result, nil
}

func (p *Pipeline) deep(ctx context.Context, input Input, instruction string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}

	text, err := p.analyzer.DeepAnalyze(ctx, input, instruction)
	if err != nil {
		return "", fmt.Errorf("deep analyze: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("deep analysis is empty")
	}

	return text, nil
}

func fallbackSummary(article domain.Article) string {
	text := strings.Join(strings.Fields(article.Body), " ")
	if text == "" {
		text = strings.TrimSpace(article.Title)
	}

	return truncateRunes(text, fallbackSummaryRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return strings.TrimSpace(string([]rune(s)[:n])) + "..."
}
