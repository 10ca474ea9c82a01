package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"newsdesk/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

var sourceColumns = []string{
	"s.name",
	"s.url",
	"s.max_articles",
	"s.deep_analysis",
	"s.analysis_instruction",
	"s.created_at",
}

func scanSource(s scanner, extra ...any) (domain.Source, error) {
	var (
		src          domain.Source
		deepAnalysis int
		createdAt    sql.NullInt64
	)

	dest := append([]any{
		&src.Name,
		&src.URL,
		&src.MaxArticles,
		&deepAnalysis,
		&src.AnalysisInstruction,
		&createdAt,
	}, extra...)

	if err := s.Scan(dest...); err != nil {
		return domain.Source{}, err
	}

	src.DeepAnalysis = deepAnalysis != 0
	src.CreatedAt = timeFromUnix(createdAt)

	return src, nil
}

func (t *Tx) ListSources(ctx context.Context) ([]domain.Source, error) {
	builder := sq.Select(sourceColumns...).
		From("sources as s").
		OrderBy("s.name")

	var sources []domain.Source
	err := t.queryRows(ctx, "ListSources", builder, func(rows *sql.Rows) error {
		src, scanErr := scanSource(rows)
		if scanErr != nil {
			return scanErr
		}

		sources = append(sources, src)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	return sources, nil
}

func (t *Tx) ListSourcesWithCounts(ctx context.Context) ([]domain.SourceWithCount, error) {
	builder := sq.Select(append(sourceColumns, "count(a.id)")...).
		From("sources as s").
		LeftJoin("articles as a on a.source_name = s.name").
		GroupBy("s.name").
		OrderBy("s.name")

	var sources []domain.SourceWithCount
	err := t.queryRows(ctx, "ListSourcesWithCounts", builder, func(rows *sql.Rows) error {
		var count int

		src, scanErr := scanSource(rows, &count)
		if scanErr != nil {
			return scanErr
		}

		sources = append(sources, domain.SourceWithCount{Source: src, ArticleCount: count})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sources with counts: %w", err)
	}

	return sources, nil
}

func (t *Tx) GetSource(ctx context.Context, name string) (domain.Source, error) {
	query, args, err := sq.Select(sourceColumns...).
		From("sources as s").
		Where(sq.Eq{"s.name": name}).
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build query: %w", err)
	}

	src, err := scanSource(t.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("source %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("get source: %w", err)
	}

	return src, nil
}

func (t *Tx) InsertSource(ctx context.Context, src domain.Source) error {
	_, err := t.exec(ctx, sq.Insert("sources").
		Columns("name", "url", "max_articles", "deep_analysis", "analysis_instruction", "created_at").
		Values(
			src.Name,
			src.URL,
			src.MaxArticles,
			boolToInt(src.DeepAnalysis),
			src.AnalysisInstruction,
			src.CreatedAt.UTC().Unix(),
		))
	if isUniqueViolation(err) {
		return fmt.Errorf("source %q: %w", src.Name, domain.ErrDuplicateSource)
	}
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	return nil
}

func (t *Tx) DeleteSource(ctx context.Context, name string) error {
	affected, err := t.exec(ctx, sq.Delete("sources").Where(sq.Eq{"name": name}))
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("source %q: %w", name, domain.ErrNotFound)
	}

	return nil
}

func (t *Tx) CountSources(ctx context.Context) (int, error) {
	var count int
	if err := t.tx.QueryRowContext(ctx, "select count(*) from sources").Scan(&count); err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}

	return count, nil
}
