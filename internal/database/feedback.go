package database

import (
	"context"
	"database/sql"
	"fmt"

	"newsdesk/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

const (
	positiveRating = 4
	negativeRating = 2

	// discrepancyThreshold is the distance between rescaled rating and frozen
	// score above which a prediction counts as wrong.
	discrepancyThreshold = 0.3
)

func (t *Tx) InsertFeedback(ctx context.Context, fb domain.Feedback) (int64, error) {
	query, args, err := sq.Insert("feedback").
		Columns("article_id", "rating", "note", "relevance_at_feedback", "created_at").
		Values(fb.ArticleID, fb.Rating, stringOrNil(fb.Note), fb.RelevanceAtFeedback, fb.CreatedAt.UTC().Unix()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

func (t *Tx) ListFeedbackForArticle(ctx context.Context, articleID int64) ([]domain.Feedback, error) {
	builder := sq.Select("id", "article_id", "rating", "note", "relevance_at_feedback", "created_at").
		From("feedback").
		Where(sq.Eq{"article_id": articleID}).
		OrderBy("created_at", "id")

	var feedback []domain.Feedback
	err := t.queryRows(ctx, "ListFeedbackForArticle", builder, func(rows *sql.Rows) error {
		var (
			fb        domain.Feedback
			note      sql.NullString
			relevance sql.NullFloat64
			createdAt sql.NullInt64
		)

		if scanErr := rows.Scan(&fb.ID, &fb.ArticleID, &fb.Rating, &note, &relevance, &createdAt); scanErr != nil {
			return scanErr
		}

		fb.Note = note.String
		fb.RelevanceAtFeedback = floatPtr(relevance)
		fb.CreatedAt = timeFromUnix(createdAt)
		feedback = append(feedback, fb)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	return feedback, nil
}

// Accuracy compares every rating rescaled to [0,1] with the score its article
// held when the rating was given. Feedback recorded without a score is ignored.
func (t *Tx) Accuracy(ctx context.Context) (domain.AccuracyStats, error) {
	var (
		stats         domain.AccuracyStats
		mae           sql.NullFloat64
		discrepancies sql.NullInt64
	)

	err := t.tx.QueryRowContext(ctx, `select
		count(*),
		avg(abs((rating - 1) / 4.0 - relevance_at_feedback)),
		sum(case when abs((rating - 1) / 4.0 - relevance_at_feedback) > ? then 1 else 0 end)
	from feedback
	where relevance_at_feedback is not null`, discrepancyThreshold).Scan(&stats.SampleCount, &mae, &discrepancies)
	if err != nil {
		return domain.AccuracyStats{}, fmt.Errorf("compute accuracy: %w", err)
	}

	stats.MeanAbsoluteError = mae.Float64
	stats.Discrepancies = int(discrepancies.Int64)

	if stats.SampleCount > 0 {
		stats.AccuracyRate = float64(stats.SampleCount-stats.Discrepancies) / float64(stats.SampleCount)
	}

	return stats, nil
}

func (t *Tx) FeedbackTotals(ctx context.Context) (domain.FeedbackTotals, error) {
	var (
		totals   = domain.FeedbackTotals{RatingHistogram: make(map[int]int)}
		average  sql.NullFloat64
		positive sql.NullInt64
		negative sql.NullInt64
	)

	err := t.tx.QueryRowContext(ctx, `select
		count(*),
		avg(rating),
		sum(case when rating >= ? then 1 else 0 end),
		sum(case when rating <= ? then 1 else 0 end)
	from feedback`, positiveRating, negativeRating).Scan(&totals.Total, &average, &positive, &negative)
	if err != nil {
		return domain.FeedbackTotals{}, fmt.Errorf("count feedback: %w", err)
	}

	totals.AverageRating = average.Float64
	totals.Positive = int(positive.Int64)
	totals.Negative = int(negative.Int64)

	builder := sq.Select("rating", "count(*)").
		From("feedback").
		GroupBy("rating")

	err = t.queryRows(ctx, "FeedbackTotals", builder, func(rows *sql.Rows) error {
		var rating, count int
		if scanErr := rows.Scan(&rating, &count); scanErr != nil {
			return scanErr
		}

		totals.RatingHistogram[rating] = count

		return nil
	})
	if err != nil {
		return domain.FeedbackTotals{}, fmt.Errorf("build rating histogram: %w", err)
	}

	return totals, nil
}

// SourcePreferences averages ratings per source, keeping sources rated at
// least minRatings times.
func (t *Tx) SourcePreferences(ctx context.Context, minRatings int) ([]domain.SourcePreference, error) {
	builder := sq.Select("a.source_name", "avg(f.rating)", "count(*)").
		From("feedback as f").
		Join("articles as a on a.id = f.article_id").
		GroupBy("a.source_name").
		Having(sq.GtOrEq{"count(*)": minRatings}).
		OrderBy("avg(f.rating) desc", "a.source_name")

	var prefs []domain.SourcePreference
	err := t.queryRows(ctx, "SourcePreferences", builder, func(rows *sql.Rows) error {
		var p domain.SourcePreference
		if scanErr := rows.Scan(&p.Source, &p.AverageRating, &p.FeedbackCount); scanErr != nil {
			return scanErr
		}

		prefs = append(prefs, p)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source preferences: %w", err)
	}

	return prefs, nil
}

func (t *Tx) RecentFeedback(ctx context.Context, limit int) ([]domain.FeedbackEntry, error) {
	builder := sq.Select("f.article_id", "a.title", "a.source_name", "f.rating", "f.note", "f.created_at").
		From("feedback as f").
		Join("articles as a on a.id = f.article_id").
		OrderBy("f.created_at desc", "f.id desc").
		Limit(uint64(max(limit, 0)))

	var entries []domain.FeedbackEntry
	err := t.queryRows(ctx, "RecentFeedback", builder, func(rows *sql.Rows) error {
		var (
			e         domain.FeedbackEntry
			note      sql.NullString
			createdAt sql.NullInt64
		)

		if scanErr := rows.Scan(&e.ArticleID, &e.Title, &e.SourceName, &e.Rating, &note, &createdAt); scanErr != nil {
			return scanErr
		}

		e.Note = note.String
		e.CreatedAt = timeFromUnix(createdAt)
		entries = append(entries, e)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent feedback: %w", err)
	}

	return entries, nil
}

// RatedTexts returns the text of every rated article once per rating event.
func (t *Tx) RatedTexts(ctx context.Context) ([]domain.RatedText, error) {
	builder := sq.Select("f.rating", "a.title", "a.body").
		From("feedback as f").
		Join("articles as a on a.id = f.article_id")

	var texts []domain.RatedText
	err := t.queryRows(ctx, "RatedTexts", builder, func(rows *sql.Rows) error {
		var rt domain.RatedText
		if scanErr := rows.Scan(&rt.Rating, &rt.Title, &rt.Body); scanErr != nil {
			return scanErr
		}

		texts = append(texts, rt)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rated texts: %w", err)
	}

	return texts, nil
}
