package feedback

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"newsdesk/internal/database"
	"newsdesk/internal/domain"
	"newsdesk/internal/profile"
)

const (
	sourcePreferenceMinRatings = 2
	recentFeedbackLimit        = 10
	topRatedTopicsLimit        = 10
)

type Ledger struct {
	db  *database.Database
	log *slog.Logger
	now func() time.Time
}

func New(db *database.Database, log *slog.Logger) *Ledger {
	return &Ledger{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Recorded is the outcome of one rating: the stored feedback and the topic
// weights it moved.
type Recorded struct {
	Feedback domain.Feedback
	Updates  []domain.TopicUpdate
}

// Record stores a rating, marks the article read and applies the rating to the
// profile, all in one transaction. The article score at this moment is frozen
// into the feedback row.
func (l *Ledger) Record(ctx context.Context, articleID int64, rating int, note string) (Recorded, error) {
	if err := domain.ValidateRating(rating); err != nil {
		return Recorded{}, err
	}

	note = strings.TrimSpace(note)

	var rec Recorded
	err := l.db.WithTx(ctx, func(tx *database.Tx) error {
		now := l.now().UTC()

		article, err := tx.GetArticle(ctx, articleID)
		if err != nil {
			return err
		}

		p, err := profile.SnapshotTx(ctx, tx)
		if err != nil {
			return err
		}

		score := p.PredictedScore(article)

		fb := domain.Feedback{
			ArticleID:           articleID,
			Rating:              rating,
			Note:                note,
			RelevanceAtFeedback: &score,
			CreatedAt:           now,
		}

		if fb.ID, err = tx.InsertFeedback(ctx, fb); err != nil {
			return err
		}

		if _, err = tx.MarkArticlesRead(ctx, []int64{articleID}); err != nil {
			return err
		}

		updates, err := profile.LearnTx(ctx, tx, rating, article, now)
		if err != nil {
			return err
		}

		rec = Recorded{Feedback: fb, Updates: updates}

		return nil
	})
	if err != nil {
		return Recorded{}, fmt.Errorf("record feedback: %w", err)
	}

	l.log.InfoContext(ctx, "Feedback is recorded",
		"articleID", articleID,
		"rating", rating,
		"relevanceAtFeedback", *rec.Feedback.RelevanceAtFeedback,
		"updatedTopicCount", len(rec.Updates))

	return rec, nil
}

func (l *Ledger) ForArticle(ctx context.Context, articleID int64) ([]domain.Feedback, error) {
	var feedback []domain.Feedback
	err := l.db.WithTx(ctx, func(tx *database.Tx) error {
		exists, err := tx.ArticleExists(ctx, articleID)
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("article %d: %w", articleID, domain.ErrNotFound)
		}

		feedback, err = tx.ListFeedbackForArticle(ctx, articleID)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	return feedback, nil
}

// Accuracy measures how well frozen scores predicted the ratings.
func (l *Ledger) Accuracy(ctx context.Context) (domain.AccuracyStats, error) {
	var stats domain.AccuracyStats
	err := l.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		stats, err = tx.Accuracy(ctx)

		return err
	})
	if err != nil {
		return domain.AccuracyStats{}, fmt.Errorf("feedback accuracy: %w", err)
	}

	return stats, nil
}

func (l *Ledger) Summary(ctx context.Context) (domain.FeedbackSummary, error) {
	var (
		summary domain.FeedbackSummary
		texts   []domain.RatedText
		p       profile.Profile
	)

	err := l.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		if summary.FeedbackTotals, err = tx.FeedbackTotals(ctx); err != nil {
			return err
		}

		if summary.SourcePreferences, err = tx.SourcePreferences(ctx, sourcePreferenceMinRatings); err != nil {
			return err
		}

		if summary.Recent, err = tx.RecentFeedback(ctx, recentFeedbackLimit); err != nil {
			return err
		}

		if texts, err = tx.RatedTexts(ctx); err != nil {
			return err
		}

		p, err = profile.SnapshotTx(ctx, tx)

		return err
	})
	if err != nil {
		return domain.FeedbackSummary{}, fmt.Errorf("feedback summary: %w", err)
	}

	summary.TopRatedTopics = topRatedTopics(p, texts, topRatedTopicsLimit)

	return summary, nil
}

// topRatedTopics averages, per profile topic, the ratings of the articles the
// topic matches.
func topRatedTopics(p profile.Profile, texts []domain.RatedText, limit int) []domain.TopicRating {
	type acc struct {
		sum   int
		count int
	}

	totals := make(map[string]*acc)
	for _, rt := range texts {
		for _, topic := range p.Matches(domain.Article{Title: rt.Title, Body: rt.Body}) {
			a, ok := totals[topic.Topic]
			if !ok {
				a = &acc{}
				totals[topic.Topic] = a
			}

			a.sum += rt.Rating
			a.count++
		}
	}

	ratings := make([]domain.TopicRating, 0, len(totals))
	for topic, a := range totals {
		ratings = append(ratings, domain.TopicRating{
			Topic:         topic,
			AverageRating: float64(a.sum) / float64(a.count),
			FeedbackCount: a.count,
		})
	}

	slices.SortFunc(ratings, func(a, b domain.TopicRating) int {
		if c := cmp.Compare(b.AverageRating, a.AverageRating); c != 0 {
			return c
		}

		if c := cmp.Compare(b.FeedbackCount, a.FeedbackCount); c != 0 {
			return c
		}

		return cmp.Compare(a.Topic, b.Topic)
	})

	if limit > 0 && len(ratings) > limit {
		ratings = ratings[:limit]
	}

	return ratings
}
