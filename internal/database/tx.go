package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Tx is the handle passed to WithTx callbacks. It is only valid inside the
// callback.
type Tx struct {
	tx  *sql.Tx
	log *slog.Logger
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *Tx) queryRows(
	ctx context.Context,
	operation string,
	builder sq.Sqlizer,
	scan func(rows *sql.Rows) error,
) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			t.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", operation)
		}
	}()

	for rows.Next() {
		if err = scan(rows); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	return nil
}

func (t *Tx) exec(ctx context.Context, builder sq.Sqlizer) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t.UTC().Unix()
}

func timeFromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}

	return time.Unix(v.Int64, 0).UTC()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	f := v.Float64

	return &f
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
