package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

var articleColumns = []string{
	"a.id",
	"a.url",
	"a.title",
	"a.body",
	"a.summary",
	"a.deep_analysis",
	"a.source_name",
	"a.published_at",
	"a.fetched_at",
	"a.relevance_score",
	"a.is_read",
}

func scanArticle(s scanner) (domain.Article, error) {
	var (
		a            domain.Article
		summary      sql.NullString
		deepAnalysis sql.NullString
		publishedAt  sql.NullInt64
		fetchedAt    sql.NullInt64
		relevance    sql.NullFloat64
		isRead       int
	)

	if err := s.Scan(
		&a.ID,
		&a.URL,
		&a.Title,
		&a.Body,
		&summary,
		&deepAnalysis,
		&a.SourceName,
		&publishedAt,
		&fetchedAt,
		&relevance,
		&isRead,
	); err != nil {
		return domain.Article{}, err
	}

	a.Summary = summary.String
	a.DeepAnalysis = deepAnalysis.String
	a.PublishedAt = timeFromUnix(publishedAt)
	a.FetchedAt = timeFromUnix(fetchedAt)
	a.RelevanceScore = floatPtr(relevance)
	a.Read = isRead != 0

	return a, nil
}

// InsertArticle stores a new article unless its URL is already known. It
// reports whether a row was inserted.
func (t *Tx) InsertArticle(ctx context.Context, a domain.Article) (bool, error) {
	affected, err := t.exec(ctx, sq.Insert("articles").
		Columns("url", "title", "body", "source_name", "published_at", "fetched_at", "is_read").
		Values(a.URL, a.Title, a.Body, a.SourceName, unixOrNil(a.PublishedAt), unixOrNil(a.FetchedAt), 0).
		Suffix("on conflict (url) do nothing"))
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}

	return affected > 0, nil
}

func (t *Tx) GetArticle(ctx context.Context, id int64) (domain.Article, error) {
	query, args, err := sq.Select(articleColumns...).
		From("articles as a").
		Where(sq.Eq{"a.id": id}).
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build query: %w", err)
	}

	a, err := scanArticle(t.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("get article: %w", err)
	}

	return a, nil
}

// articleConditions turns the row-level part of f into a where clause.
func articleConditions(f domain.ArticleFilter) (sq.And, error) {
	conds := sq.And{}

	switch f.ReadStatus {
	case domain.ReadStatusRead:
		conds = append(conds, sq.Eq{"a.is_read": 1})
	case domain.ReadStatusUnread:
		conds = append(conds, sq.Eq{"a.is_read": 0})
	case domain.ReadStatusAll, "":
	default:
		return nil, fmt.Errorf("read status %q: %w", f.ReadStatus, domain.ErrInvalidArgument)
	}

	if !f.Since.IsZero() {
		since := f.Since.UTC().Unix()
		conds = append(conds, sq.Or{
			sq.GtOrEq{"a.published_at": since},
			sq.And{sq.Eq{"a.published_at": nil}, sq.GtOrEq{"a.fetched_at": since}},
		})
	}

	if source := strings.TrimSpace(f.Source); source != "" {
		conds = append(conds, sq.Eq{"a.source_name": source})
	}

	// Plain substring match: no LIKE wildcards, case folded the same way as
	// topic matching.
	if search := strings.TrimSpace(f.Search); search != "" {
		needle := foldCase(search)
		conds = append(conds, sq.Or{
			sq.Expr("instr("+foldFunc+"(coalesce(a.title, '')), ?) > 0", needle),
			sq.Expr("instr("+foldFunc+"(coalesce(a.body, '')), ?) > 0", needle),
			sq.Expr("instr("+foldFunc+"(coalesce(a.summary, '')), ?) > 0", needle),
		})
	}

	if f.MinRelevance != nil {
		conds = append(conds, sq.GtOrEq{"a.relevance_score": *f.MinRelevance})
	}

	return conds, nil
}

// CountArticles counts the rows FindArticles would return without paging.
func (t *Tx) CountArticles(ctx context.Context, f domain.ArticleFilter) (int, error) {
	conds, err := articleConditions(f)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Select("count(*)").From("articles as a").Where(conds).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err = t.tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}

	return count, nil
}

func (t *Tx) FindArticles(ctx context.Context, f domain.ArticleFilter) ([]domain.Article, error) {
	conds, err := articleConditions(f)
	if err != nil {
		return nil, err
	}

	builder := sq.Select(articleColumns...).From("articles as a").Where(conds)

	switch f.Sort {
	case domain.SortRelevanceDesc, "":
		builder = builder.OrderBy("a.relevance_score desc nulls last", "a.published_at desc nulls last", "a.id desc")
	case domain.SortPublishedDesc:
		builder = builder.OrderBy("a.published_at desc nulls last", "a.id desc")
	case domain.SortFetchedDesc:
		builder = builder.OrderBy("a.fetched_at desc", "a.id desc")
	default:
		return nil, fmt.Errorf("sort order %q: %w", f.Sort, domain.ErrInvalidArgument)
	}

	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			builder = builder.Limit(uint64(1<<63 - 1))
		}
		builder = builder.Offset(uint64(f.Offset))
	}

	var articles []domain.Article
	err = t.queryRows(ctx, "FindArticles", builder, func(rows *sql.Rows) error {
		a, scanErr := scanArticle(rows)
		if scanErr != nil {
			return scanErr
		}

		articles = append(articles, a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}

	return articles, nil
}

func (t *Tx) ListUnanalyzed(ctx context.Context) ([]domain.Article, error) {
	builder := sq.Select(articleColumns...).
		From("articles as a").
		Where(sq.Eq{"a.relevance_score": nil}).
		OrderBy("a.fetched_at desc", "a.id desc")

	var articles []domain.Article
	err := t.queryRows(ctx, "ListUnanalyzed", builder, func(rows *sql.Rows) error {
		a, scanErr := scanArticle(rows)
		if scanErr != nil {
			return scanErr
		}

		articles = append(articles, a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list unanalyzed: %w", err)
	}

	return articles, nil
}

func (t *Tx) ListDeepAnalysisCandidates(ctx context.Context) ([]domain.DeepAnalysisCandidate, error) {
	builder := sq.Select(append(articleColumns, "s.analysis_instruction")...).
		From("articles as a").
		Join("sources as s on s.name = a.source_name").
		Where(sq.Eq{"a.relevance_score": nil, "s.deep_analysis": 1}).
		OrderBy("a.fetched_at desc", "a.id desc")

	var candidates []domain.DeepAnalysisCandidate
	err := t.queryRows(ctx, "ListDeepAnalysisCandidates", builder, func(rows *sql.Rows) error {
		var (
			c            domain.DeepAnalysisCandidate
			summary      sql.NullString
			deepAnalysis sql.NullString
			publishedAt  sql.NullInt64
			fetchedAt    sql.NullInt64
			relevance    sql.NullFloat64
			isRead       int
		)

		if scanErr := rows.Scan(
			&c.Article.ID,
			&c.Article.URL,
			&c.Article.Title,
			&c.Article.Body,
			&summary,
			&deepAnalysis,
			&c.Article.SourceName,
			&publishedAt,
			&fetchedAt,
			&relevance,
			&isRead,
			&c.Instruction,
		); scanErr != nil {
			return scanErr
		}

		c.Article.Summary = summary.String
		c.Article.DeepAnalysis = deepAnalysis.String
		c.Article.PublishedAt = timeFromUnix(publishedAt)
		c.Article.FetchedAt = timeFromUnix(fetchedAt)
		c.Article.RelevanceScore = floatPtr(relevance)
		c.Article.Read = isRead != 0

		candidates = append(candidates, c)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list deep analysis candidates: %w", err)
	}

	return candidates, nil
}

func (t *Tx) ArticleExists(ctx context.Context, id int64) (bool, error) {
	var exists int
	err := t.tx.QueryRowContext(ctx, "select exists (select 1 from articles where id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check article: %w", err)
	}

	return exists != 0, nil
}

// MarkArticlesRead flags the given unread articles as read and returns how many
// changed. Unknown and already read ids are ignored.
func (t *Tx) MarkArticlesRead(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	affected, err := t.exec(ctx, sq.Update("articles").
		Set("is_read", 1).
		Where(sq.Eq{"id": ids, "is_read": 0}))
	if err != nil {
		return 0, fmt.Errorf("mark articles read: %w", err)
	}

	return affected, nil
}

func (t *Tx) MarkAllArticlesRead(ctx context.Context) (int64, error) {
	affected, err := t.exec(ctx, sq.Update("articles").
		Set("is_read", 1).
		Where(sq.Eq{"is_read": 0}))
	if err != nil {
		return 0, fmt.Errorf("mark all articles read: %w", err)
	}

	return affected, nil
}

// SaveAnalysis writes the analysis fields of one article. A nil deep analysis
// leaves the stored one untouched. It reports whether the article exists.
func (t *Tx) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) (bool, error) {
	builder := sq.Update("articles").
		Set("summary", rec.Summary).
		Set("relevance_score", rec.RelevanceScore).
		Where(sq.Eq{"id": rec.ArticleID})

	if rec.DeepAnalysis != nil {
		builder = builder.Set("deep_analysis", stringOrNil(strings.TrimSpace(*rec.DeepAnalysis)))
	}

	affected, err := t.exec(ctx, builder)
	if err != nil {
		return false, fmt.Errorf("save analysis: %w", err)
	}

	return affected > 0, nil
}

// DeleteArticlesFetchedBefore removes old articles that never received
// feedback, keeping the rating history intact.
func (t *Tx) DeleteArticlesFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	affected, err := t.exec(ctx, sq.Delete("articles").
		Where(sq.Lt{"fetched_at": cutoff.UTC().Unix()}).
		Where("not exists (select 1 from feedback as f where f.article_id = articles.id)"))
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}

	return affected, nil
}

func (t *Tx) ArticleStats(ctx context.Context, relevantThreshold float64) (domain.ArticleStats, error) {
	stats := domain.ArticleStats{ArticlesBySource: make(map[string]int)}

	var unread, relevant sql.NullInt64
	err := t.tx.QueryRowContext(ctx, `select
		count(*),
		sum(case when is_read = 0 then 1 else 0 end),
		sum(case when relevance_score >= ? then 1 else 0 end)
	from articles`, relevantThreshold).Scan(&stats.Total, &unread, &relevant)
	if err != nil {
		return domain.ArticleStats{}, fmt.Errorf("count articles: %w", err)
	}

	stats.Unread = int(unread.Int64)
	stats.Relevant = int(relevant.Int64)

	builder := sq.Select("source_name", "count(*)").
		From("articles").
		GroupBy("source_name")

	err = t.queryRows(ctx, "ArticleStats", builder, func(rows *sql.Rows) error {
		var (
			source string
			count  int
		)

		if scanErr := rows.Scan(&source, &count); scanErr != nil {
			return scanErr
		}

		stats.ArticlesBySource[source] = count

		return nil
	})
	if err != nil {
		return domain.ArticleStats{}, fmt.Errorf("count articles by source: %w", err)
	}

	stats.SourceCount = len(stats.ArticlesBySource)

	return stats, nil
}
