package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"newsdesk/internal/database"
	"newsdesk/internal/domain"
	"newsdesk/internal/profile"
)

type Catalog struct {
	db  *database.Database
	log *slog.Logger
	now func() time.Time
}

func New(db *database.Database, log *slog.Logger) *Catalog {
	return &Catalog{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Query returns the articles matching filter, each carrying its effective
// score. All articles are scored against one profile snapshot read in the same
// transaction as the articles.
func (c *Catalog) Query(ctx context.Context, filter domain.ArticleFilter) (domain.QueryResult, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return domain.QueryResult{}, fmt.Errorf("limit and offset must not be negative: %w", domain.ErrInvalidArgument)
	}

	if filter.MinRelevance != nil && (*filter.MinRelevance < 0 || *filter.MinRelevance > 1) {
		return domain.QueryResult{}, fmt.Errorf("min relevance outside [0, 1]: %w", domain.ErrInvalidArgument)
	}

	storeFilter := domain.ArticleFilter{
		ReadStatus: filter.ReadStatus,
		Since:      filter.Since,
		Source:     filter.Source,
		Search:     filter.Search,
		Sort:       filter.Sort,
	}
	byRelevance := filter.Sort == domain.SortRelevanceDesc || filter.Sort == ""
	if byRelevance {
		storeFilter.Sort = domain.SortPublishedDesc
	}

	// Ranking by score or cutting by score needs every candidate in memory.
	// Time ordered pages can be cut by the store.
	pageInStore := !byRelevance && filter.MinRelevance == nil
	if pageInStore {
		storeFilter.Limit = filter.Limit
		storeFilter.Offset = filter.Offset
	}

	var (
		p        profile.Profile
		articles []domain.Article
		total    int
	)

	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		if p, err = profile.SnapshotTx(ctx, tx); err != nil {
			return err
		}

		if articles, err = tx.FindArticles(ctx, storeFilter); err != nil {
			return err
		}

		if pageInStore {
			total, err = tx.CountArticles(ctx, storeFilter)
		}

		return err
	})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("query articles: %w", err)
	}

	scored := make([]domain.ScoredArticle, 0, len(articles))
	for _, a := range articles {
		s := p.ScoreArticle(a)
		if filter.MinRelevance != nil && s.Score < *filter.MinRelevance {
			continue
		}

		scored = append(scored, s)
	}

	if filter.Sort == domain.SortRelevanceDesc || filter.Sort == "" {
		slices.SortStableFunc(scored, func(a, b domain.ScoredArticle) int {
			return cmp.Compare(b.Score, a.Score)
		})
	}

	result := domain.QueryResult{Total: len(scored), Articles: scored}

	if pageInStore {
		result.Total = total
	} else {
		start := min(filter.Offset, len(scored))
		end := len(scored)
		if filter.Limit > 0 {
			end = min(start+filter.Limit, end)
		}

		result.Articles = scored[start:end]
	}

	if filter.Grouped {
		groups := profile.GroupByRelevance(result.Articles)
		result.Groups = &groups
	}

	return result, nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (domain.ScoredArticle, error) {
	var (
		p       profile.Profile
		article domain.Article
	)

	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		if article, err = tx.GetArticle(ctx, id); err != nil {
			return err
		}

		p, err = profile.SnapshotTx(ctx, tx)

		return err
	})
	if err != nil {
		return domain.ScoredArticle{}, fmt.Errorf("get article: %w", err)
	}

	return p.ScoreArticle(article), nil
}

// MarkRead flags one article as read. Marking a read article again is a no-op.
func (c *Catalog) MarkRead(ctx context.Context, id int64) error {
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		exists, err := tx.ArticleExists(ctx, id)
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
		}

		_, err = tx.MarkArticlesRead(ctx, []int64{id})

		return err
	})
	if err != nil {
		return fmt.Errorf("mark article read: %w", err)
	}

	return nil
}

// MarkManyRead flags the given articles as read and returns how many changed
// state. Unknown ids are ignored.
func (c *Catalog) MarkManyRead(ctx context.Context, ids []int64) (int64, error) {
	var changed int64
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		changed, err = tx.MarkArticlesRead(ctx, ids)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark articles read: %w", err)
	}

	return changed, nil
}

func (c *Catalog) MarkAllRead(ctx context.Context) (int64, error) {
	var changed int64
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		changed, err = tx.MarkAllArticlesRead(ctx)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark all articles read: %w", err)
	}

	c.log.InfoContext(ctx, "All articles are marked read",
		"changedCount", changed)

	return changed, nil
}

// Unanalyzed lists the articles without a relevance score, newest first.
func (c *Catalog) Unanalyzed(ctx context.Context) ([]domain.Article, error) {
	var articles []domain.Article
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		articles, err = tx.ListUnanalyzed(ctx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list unanalyzed articles: %w", err)
	}

	return articles, nil
}

// DeepAnalysisCandidates lists unanalyzed articles whose source asks for deep
// analysis, together with the source instruction.
func (c *Catalog) DeepAnalysisCandidates(ctx context.Context) ([]domain.DeepAnalysisCandidate, error) {
	var candidates []domain.DeepAnalysisCandidate
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		candidates, err = tx.ListDeepAnalysisCandidates(ctx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list deep analysis candidates: %w", err)
	}

	return candidates, nil
}

// RecordAnalysis is the only write path for analysis results.
func (c *Catalog) RecordAnalysis(ctx context.Context, rec domain.AnalysisRecord) error {
	if err := ValidateAnalysis(rec); err != nil {
		return err
	}

	rec.Summary = strings.TrimSpace(rec.Summary)

	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		found, err := tx.SaveAnalysis(ctx, rec)
		if err != nil {
			return err
		}

		if !found {
			return fmt.Errorf("article %d: %w", rec.ArticleID, domain.ErrNotFound)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}

	return nil
}

func ValidateAnalysis(rec domain.AnalysisRecord) error {
	if strings.TrimSpace(rec.Summary) == "" {
		return fmt.Errorf("summary is empty: %w", domain.ErrInvalidAnalysis)
	}

	if math.IsNaN(rec.RelevanceScore) || rec.RelevanceScore < 0 || rec.RelevanceScore > 1 {
		return fmt.Errorf("relevance %v outside [0, 1]: %w", rec.RelevanceScore, domain.ErrInvalidAnalysis)
	}

	return nil
}

func (c *Catalog) Stats(ctx context.Context, relevantThreshold float64) (domain.ArticleStats, error) {
	var stats domain.ArticleStats
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		stats, err = tx.ArticleStats(ctx, relevantThreshold)

		return err
	})
	if err != nil {
		return domain.ArticleStats{}, fmt.Errorf("article stats: %w", err)
	}

	return stats, nil
}

// Cleanup deletes articles fetched longer ago than olderThan. Articles with
// feedback are retained.
func (c *Catalog) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("retention must be positive: %w", domain.ErrInvalidArgument)
	}

	cutoff := c.now().Add(-olderThan)

	var deleted int64
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		deleted, err = tx.DeleteArticlesFetchedBefore(ctx, cutoff)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup articles: %w", err)
	}

	c.log.InfoContext(ctx, "Old articles are removed",
		"deletedCount", deleted,
		"cutoff", cutoff)

	return deleted, nil
}
