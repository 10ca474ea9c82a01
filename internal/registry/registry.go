package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/database"
	"newsdesk/internal/domain"
)

// FeedValidator probes a feed URL without failing on routine network errors.
type FeedValidator interface {
	Validate(ctx context.Context, feedURL string) domain.FeedValidation
}

type Registry struct {
	db         *database.Database
	validator  FeedValidator
	defaultMax int
	log        *slog.Logger
}

func New(
	db *database.Database,
	validator FeedValidator,
	defaultMax int,
	log *slog.Logger,
) *Registry {
	return &Registry{
		db:         db,
		validator:  validator,
		defaultMax: defaultMax,
		log:        log,
	}
}

func (r *Registry) List(ctx context.Context) ([]domain.Source, error) {
	var sources []domain.Source
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		sources, err = tx.ListSources(ctx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	return sources, nil
}

// ListWithCounts lists sources together with the number of stored articles.
func (r *Registry) ListWithCounts(ctx context.Context) ([]domain.SourceWithCount, error) {
	var sources []domain.SourceWithCount
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		sources, err = tx.ListSourcesWithCounts(ctx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	return sources, nil
}

func (r *Registry) Get(ctx context.Context, name string) (domain.Source, error) {
	var src domain.Source
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		src, err = tx.GetSource(ctx, strings.TrimSpace(name))

		return err
	})
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source: %w", err)
	}

	return src, nil
}

// Add registers a new source. The name must be unused.
func (r *Registry) Add(ctx context.Context, src domain.Source) (domain.Source, error) {
	src, err := r.normalize(src)
	if err != nil {
		return domain.Source{}, err
	}

	err = r.db.WithTx(ctx, func(tx *database.Tx) error {
		return tx.InsertSource(ctx, src)
	})
	if err != nil {
		return domain.Source{}, fmt.Errorf("add source: %w", err)
	}

	r.log.InfoContext(ctx, "Source is added",
		"source", src.Name,
		"feedURL", src.URL,
		"deepAnalysis", src.DeepAnalysis)

	return src, nil
}

func (r *Registry) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		return tx.DeleteSource(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("remove source: %w", err)
	}

	r.log.InfoContext(ctx, "Source is removed",
		"source", name)

	return nil
}

// ValidateFeed runs a reachability and parse probe. The outcome is always
// reported in the result.
func (r *Registry) ValidateFeed(ctx context.Context, feedURL string) domain.FeedValidation {
	if r.validator == nil {
		return domain.FeedValidation{URL: feedURL, Error: "feed validation is unavailable"}
	}

	return r.validator.Validate(ctx, feedURL)
}

// Seed inserts the configured sources when no source is registered yet. It
// returns how many were inserted.
func (r *Registry) Seed(ctx context.Context, sources []domain.Source) (int, error) {
	normalized := make([]domain.Source, 0, len(sources))
	var errs []error

	for _, src := range sources {
		n, err := r.normalize(src)
		if err != nil {
			errs = append(errs, fmt.Errorf("seed source %q: %w", src.Name, err))

			continue
		}

		normalized = append(normalized, n)
	}

	if err := errors.Join(errs...); err != nil {
		return 0, err
	}

	var inserted int
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		inserted = 0

		count, err := tx.CountSources(ctx)
		if err != nil {
			return err
		}

		if count > 0 {
			return nil
		}

		for _, src := range normalized {
			if err = tx.InsertSource(ctx, src); err != nil {
				return err
			}

			inserted++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed sources: %w", err)
	}

	if inserted > 0 {
		r.log.InfoContext(ctx, "Sources are seeded",
			"sourceCount", inserted)
	}

	return inserted, nil
}

func (r *Registry) normalize(src domain.Source) (domain.Source, error) {
	src.Name = strings.TrimSpace(src.Name)
	src.URL = strings.TrimSpace(src.URL)
	src.AnalysisInstruction = strings.TrimSpace(src.AnalysisInstruction)

	if src.Name == "" {
		return domain.Source{}, fmt.Errorf("source name is empty: %w", domain.ErrInvalidArgument)
	}

	u, err := url.Parse(src.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.Source{}, fmt.Errorf("source URL %q is not an absolute http(s) URL: %w", src.URL, domain.ErrInvalidArgument)
	}

	if src.MaxArticles <= 0 {
		src.MaxArticles = r.defaultMax
	}

	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}

	return src, nil
}
