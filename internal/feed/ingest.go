package feed

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"newsdesk/internal/database"
	"newsdesk/internal/domain"

	"golang.org/x/sync/errgroup"
)

const fetchMaxConcurrencyGrowthFactor = 10

// EntryReader fetches the current entries of one feed.
type EntryReader interface {
	Read(ctx context.Context, feedURL string) (Content, error)
}

type Ingestor struct {
	db  *database.Database
	log *slog.Logger
	now func() time.Time
}

func NewIngestor(db *database.Database, log *slog.Logger) *Ingestor {
	return &Ingestor{
		db:  db,
		log: log,
		now: time.Now,
	}
}

type preparedEntry struct {
	url   string
	entry domain.ParsedEntry
}

// Ingest stores the entries of one source in a single transaction. Entries
// with an unusable URL or no title are skipped, as are URLs already stored or
// repeated within the batch.
func (i *Ingestor) Ingest(
	ctx context.Context,
	sourceName string,
	entries []domain.ParsedEntry,
) (domain.IngestStats, error) {
	prepared, skipped := i.prepare(ctx, sourceName, entries)
	fetchedAt := i.now().UTC()

	var stats domain.IngestStats
	err := i.db.WithTx(ctx, func(tx *database.Tx) error {
		stats = domain.IngestStats{SkippedCount: skipped}

		for _, p := range prepared {
			inserted, err := tx.InsertArticle(ctx, domain.Article{
				URL:         p.url,
				Title:       p.entry.Title,
				Body:        p.entry.Body,
				SourceName:  sourceName,
				PublishedAt: p.entry.PublishedAt,
				FetchedAt:   fetchedAt,
			})
			if err != nil {
				return fmt.Errorf("insert entry %s: %w", p.url, err)
			}

			if inserted {
				stats.NewCount++
			} else {
				stats.SkippedCount++
			}
		}

		return nil
	})
	if err != nil {
		return domain.IngestStats{}, fmt.Errorf("ingest source %s: %w", sourceName, err)
	}

	i.log.InfoContext(ctx, "Source is ingested",
		"source", sourceName,
		"entryCount", len(entries),
		"newCount", stats.NewCount,
		"skippedCount", stats.SkippedCount)

	return stats, nil
}

func (i *Ingestor) prepare(
	ctx context.Context,
	sourceName string,
	entries []domain.ParsedEntry,
) ([]preparedEntry, int) {
	var (
		prepared = make([]preparedEntry, 0, len(entries))
		seen     = make(map[string]struct{}, len(entries))
		skipped  int
	)

	for _, entry := range entries {
		normalizedURL, err := NormalizeURL(entry.URL)
		if err != nil {
			i.log.WarnContext(ctx, "Skipping entry with invalid URL",
				"error", err,
				"source", sourceName,
				"entryURL", entry.URL,
				"entryTitle", entry.Title)

			skipped++

			continue
		}

		entry.Title = strings.TrimSpace(entry.Title)
		if entry.Title == "" {
			i.log.WarnContext(ctx, "Skipping entry with empty title",
				"source", sourceName,
				"entryURL", normalizedURL)

			skipped++

			continue
		}

		if _, ok := seen[normalizedURL]; ok {
			skipped++

			continue
		}

		seen[normalizedURL] = struct{}{}
		entry.Body = strings.TrimSpace(entry.Body)
		prepared = append(prepared, preparedEntry{url: normalizedURL, entry: entry})
	}

	return prepared, skipped
}

// IngestAll fetches every source concurrently and then ingests them one by
// one. A source that fails to fetch or store is reported in FailedSources and
// never stops the others.
func (i *Ingestor) IngestAll(
	ctx context.Context,
	sources []domain.Source,
	reader EntryReader,
) domain.IngestResult {
	var result domain.IngestResult
	if len(sources) == 0 {
		return result
	}

	type fetched struct {
		entries []domain.ParsedEntry
		err     error
	}

	results := make([]fetched, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.NumCPU()*fetchMaxConcurrencyGrowthFactor, len(sources)))

	for idx, src := range sources {
		g.Go(func() error {
			content, err := reader.Read(gctx, src.URL)
			if err != nil {
				results[idx].err = err

				return nil
			}

			entries := content.Entries
			if src.MaxArticles > 0 && len(entries) > src.MaxArticles {
				entries = entries[:src.MaxArticles]
			}

			results[idx].entries = entries

			return nil
		})
	}

	_ = g.Wait()

	for idx, src := range sources {
		if err := results[idx].err; err != nil {
			i.log.ErrorContext(ctx, "Failed to fetch source",
				"error", err,
				"source", src.Name,
				"feedURL", src.URL)

			result.FailedSources = append(result.FailedSources, domain.IngestPartialFailure{
				Source: src.Name,
				Reason: fmt.Sprintf("fetch: %v", err),
			})

			continue
		}

		stats, err := i.Ingest(ctx, src.Name, results[idx].entries)
		if err != nil {
			i.log.ErrorContext(ctx, "Failed to ingest source",
				"error", err,
				"source", src.Name)

			result.FailedSources = append(result.FailedSources, domain.IngestPartialFailure{
				Source: src.Name,
				Reason: fmt.Sprintf("store: %v", err),
			})

			continue
		}

		result.NewCount += stats.NewCount
		result.SkippedCount += stats.SkippedCount
	}

	i.log.InfoContext(ctx, "Ingest cycle is finished",
		"sourceCount", len(sources),
		"newCount", result.NewCount,
		"skippedCount", result.SkippedCount,
		"failedCount", len(result.FailedSources))

	return result
}
