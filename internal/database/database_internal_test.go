package database

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"newsdesk/internal/domain"

	sqlite "github.com/mattn/go-sqlite3"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	d, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	d.retry = retryPolicy{
		attempts:       3,
		initialBackoff: time.Millisecond,
		maxBackoff:     2 * time.Millisecond,
	}

	return d
}

func insertTestArticle(t *testing.T, d *Database, url, source string, fetchedAt time.Time) int64 {
	t.Helper()

	var id int64
	err := d.WithTx(context.Background(), func(tx *Tx) error {
		if _, err := tx.InsertArticle(context.Background(), domain.Article{
			URL:        url,
			Title:      "title " + url,
			Body:       "body",
			SourceName: source,
			FetchedAt:  fetchedAt,
		}); err != nil {
			return err
		}

		articles, err := tx.FindArticles(context.Background(), domain.ArticleFilter{Search: url})
		if err != nil {
			return err
		}
		if len(articles) != 1 {
			t.Fatalf("expected one article for %s, got %d", url, len(articles))
		}

		id = articles[0].ID

		return nil
	})
	if err != nil {
		t.Fatalf("insert article: %v", err)
	}

	return id
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "news.db")
	log := slog.New(slog.DiscardHandler)

	d, err := New(ctx, path, log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	if err = d.InitSchema(ctx); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}

	if err = d.Close(); err != nil {
		t.Fatalf("close database: %v", err)
	}

	reopened, err := New(ctx, path, log)
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	defer reopened.Close()
}

func TestWithTxRollsBackOnError(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := d.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertSource(ctx, domain.Source{Name: "x", URL: "https://x.test/feed", MaxArticles: 5}); err != nil {
			return err
		}

		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	var count int
	err = d.WithTx(ctx, func(tx *Tx) error {
		var countErr error
		count, countErr = tx.CountSources(ctx)

		return countErr
	})
	if err != nil {
		t.Fatalf("count sources: %v", err)
	}

	if count != 0 {
		t.Fatalf("expected rollback to discard insert, got %d sources", count)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()

		_ = d.WithTx(ctx, func(tx *Tx) error {
			if err := tx.InsertSource(ctx, domain.Source{Name: "x", URL: "https://x.test/feed", MaxArticles: 5}); err != nil {
				return err
			}

			panic("boom")
		})
	}()

	err := d.WithTx(ctx, func(tx *Tx) error {
		count, err := tx.CountSources(ctx)
		if err != nil {
			return err
		}
		if count != 0 {
			t.Fatalf("expected no sources after panic, got %d", count)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("count sources: %v", err)
	}
}

func TestWithTxBusyExhaustsRetries(t *testing.T) {
	d := newTestDatabase(t)

	calls := 0
	err := d.WithTx(context.Background(), func(*Tx) error {
		calls++

		return sqlite.Error{Code: sqlite.ErrBusy}
	})

	if !errors.Is(err, domain.ErrStoreBusy) {
		t.Fatalf("expected ErrStoreBusy, got %v", err)
	}

	if calls != d.retry.attempts {
		t.Fatalf("expected %d attempts, got %d", d.retry.attempts, calls)
	}
}

func TestWithTxBusyRecovers(t *testing.T) {
	d := newTestDatabase(t)

	calls := 0
	err := d.WithTx(context.Background(), func(*Tx) error {
		calls++
		if calls < 2 {
			return sqlite.Error{Code: sqlite.ErrLocked}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	d := newTestDatabase(t)

	calls := 0
	_ = d.WithTx(context.Background(), func(*Tx) error {
		calls++

		return domain.ErrNotFound
	})

	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestInsertArticleIgnoresDuplicateURL(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	article := domain.Article{
		URL:        "https://example.com/a",
		Title:      "A",
		SourceName: "example",
		FetchedAt:  time.Now(),
	}

	for i, want := range []bool{true, false} {
		var inserted bool
		err := d.WithTx(ctx, func(tx *Tx) error {
			var insertErr error
			inserted, insertErr = tx.InsertArticle(ctx, article)

			return insertErr
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}

		if inserted != want {
			t.Fatalf("insert %d: expected inserted=%v, got %v", i, want, inserted)
		}
	}
}

func TestInsertSourceDuplicate(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	src := domain.Source{Name: "x", URL: "https://x.test/feed", MaxArticles: 5, CreatedAt: time.Now()}

	if err := d.WithTx(ctx, func(tx *Tx) error { return tx.InsertSource(ctx, src) }); err != nil {
		t.Fatalf("insert source: %v", err)
	}

	err := d.WithTx(ctx, func(tx *Tx) error { return tx.InsertSource(ctx, src) })
	if !errors.Is(err, domain.ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
}

func TestDeleteSourceNotFound(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()

	err := d.WithTx(ctx, func(tx *Tx) error { return tx.DeleteSource(ctx, "missing") })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindArticlesFilters(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	now := time.Now()

	first := insertTestArticle(t, d, "https://a.test/1", "a", now)
	insertTestArticle(t, d, "https://b.test/2", "b", now)

	err := d.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.MarkArticlesRead(ctx, []int64{first})

		return err
	})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}

	tests := []struct {
		name   string
		filter domain.ArticleFilter
		want   int
	}{
		{name: "all", filter: domain.ArticleFilter{}, want: 2},
		{name: "unread", filter: domain.ArticleFilter{ReadStatus: domain.ReadStatusUnread}, want: 1},
		{name: "read", filter: domain.ArticleFilter{ReadStatus: domain.ReadStatusRead}, want: 1},
		{name: "source", filter: domain.ArticleFilter{Source: "b"}, want: 1},
		{name: "search", filter: domain.ArticleFilter{Search: "a.test"}, want: 1},
		{name: "limit", filter: domain.ArticleFilter{Limit: 1}, want: 1},
		{name: "offset", filter: domain.ArticleFilter{Offset: 1}, want: 1},
		{name: "since future", filter: domain.ArticleFilter{Since: now.Add(time.Hour)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.WithTx(ctx, func(tx *Tx) error {
				articles, err := tx.FindArticles(ctx, tt.filter)
				if err != nil {
					return err
				}

				if len(articles) != tt.want {
					t.Errorf("expected %d articles, got %d", tt.want, len(articles))
				}

				return nil
			})
			if err != nil {
				t.Fatalf("find articles: %v", err)
			}
		})
	}
}

func TestDeleteArticlesKeepsRatedOnes(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	old := time.Now().Add(-60 * 24 * time.Hour)

	rated := insertTestArticle(t, d, "https://a.test/rated", "a", old)
	insertTestArticle(t, d, "https://a.test/unrated", "a", old)
	insertTestArticle(t, d, "https://a.test/fresh", "a", time.Now())

	err := d.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertFeedback(ctx, domain.Feedback{ArticleID: rated, Rating: 4, CreatedAt: time.Now()})

		return err
	})
	if err != nil {
		t.Fatalf("insert feedback: %v", err)
	}

	var deleted int64
	err = d.WithTx(ctx, func(tx *Tx) error {
		var deleteErr error
		deleted, deleteErr = tx.DeleteArticlesFetchedBefore(ctx, time.Now().Add(-30*24*time.Hour))

		return deleteErr
	})
	if err != nil {
		t.Fatalf("delete articles: %v", err)
	}

	if deleted != 1 {
		t.Fatalf("expected 1 deleted article, got %d", deleted)
	}
}

func TestAccuracyUsesFrozenScore(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	id := insertTestArticle(t, d, "https://a.test/1", "a", time.Now())

	frozen := 0.5
	err := d.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertFeedback(ctx, domain.Feedback{
			ArticleID:           id,
			Rating:              5,
			RelevanceAtFeedback: &frozen,
			CreatedAt:           time.Now(),
		}); err != nil {
			return err
		}

		// A later analysis must not move the recorded prediction.
		_, err := tx.SaveAnalysis(ctx, domain.AnalysisRecord{ArticleID: id, Summary: "s", RelevanceScore: 1})

		return err
	})
	if err != nil {
		t.Fatalf("prepare feedback: %v", err)
	}

	var stats domain.AccuracyStats
	err = d.WithTx(ctx, func(tx *Tx) error {
		var accErr error
		stats, accErr = tx.Accuracy(ctx)

		return accErr
	})
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}

	if stats.SampleCount != 1 {
		t.Fatalf("expected 1 sample, got %d", stats.SampleCount)
	}

	if stats.MeanAbsoluteError != 0.5 {
		t.Fatalf("expected MAE 0.5, got %v", stats.MeanAbsoluteError)
	}

	if stats.Discrepancies != 1 || stats.AccuracyRate != 0 {
		t.Fatalf("expected one discrepancy and zero accuracy, got %+v", stats)
	}
}
