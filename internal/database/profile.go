package database

import (
	"context"
	"database/sql"
	"fmt"

	"newsdesk/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

// ListTopics returns every profile topic ordered by name.
func (t *Tx) ListTopics(ctx context.Context) ([]domain.ProfileTopic, error) {
	builder := sq.Select("topic", "weight", "origin", "sample_count", "updated_at").
		From("reader_profile").
		OrderBy("topic")

	var topics []domain.ProfileTopic
	err := t.queryRows(ctx, "ListTopics", builder, func(rows *sql.Rows) error {
		var (
			topic     domain.ProfileTopic
			origin    string
			updatedAt sql.NullInt64
		)

		if scanErr := rows.Scan(
			&topic.Topic,
			&topic.Weight,
			&origin,
			&topic.SampleCount,
			&updatedAt,
		); scanErr != nil {
			return scanErr
		}

		topic.Origin = domain.TopicOrigin(origin)
		topic.UpdatedAt = timeFromUnix(updatedAt)
		topics = append(topics, topic)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	return topics, nil
}

func (t *Tx) CountTopics(ctx context.Context) (int, error) {
	var count int
	if err := t.tx.QueryRowContext(ctx, "select count(*) from reader_profile").Scan(&count); err != nil {
		return 0, fmt.Errorf("count topics: %w", err)
	}

	return count, nil
}

// UpsertTopic writes weight, sample count and timestamp of a topic. An existing
// topic keeps its origin.
func (t *Tx) UpsertTopic(ctx context.Context, topic domain.ProfileTopic) error {
	_, err := t.exec(ctx, sq.Insert("reader_profile").
		Columns("topic", "weight", "origin", "sample_count", "updated_at").
		Values(topic.Topic, topic.Weight, string(topic.Origin), topic.SampleCount, topic.UpdatedAt.UTC().Unix()).
		Suffix(`on conflict (topic) do update set
			weight = excluded.weight,
			sample_count = excluded.sample_count,
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("upsert topic %q: %w", topic.Topic, err)
	}

	return nil
}

// InsertTopic adds a topic unless it already exists and reports whether it
// was inserted.
func (t *Tx) InsertTopic(ctx context.Context, topic domain.ProfileTopic) (bool, error) {
	affected, err := t.exec(ctx, sq.Insert("reader_profile").
		Columns("topic", "weight", "origin", "sample_count", "updated_at").
		Values(topic.Topic, topic.Weight, string(topic.Origin), topic.SampleCount, topic.UpdatedAt.UTC().Unix()).
		Suffix("on conflict (topic) do nothing"))
	if err != nil {
		return false, fmt.Errorf("insert topic %q: %w", topic.Topic, err)
	}

	return affected > 0, nil
}

func (t *Tx) DeleteTopic(ctx context.Context, topic string) error {
	affected, err := t.exec(ctx, sq.Delete("reader_profile").Where(sq.Eq{"topic": topic}))
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("topic %q: %w", topic, domain.ErrNotFound)
	}

	return nil
}
