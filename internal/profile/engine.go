package profile

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
)

const (
	evolutionTopCount      = 5
	emergingTopicMinWeight = 0.6
)

type Engine struct {
	db  *database.Database
	log *slog.Logger
	now func() time.Time
}

func NewEngine(db *database.Database, log *slog.Logger) *Engine {
	return &Engine{
		db:  db,
		log: log,
		now: time.Now,
	}
}

// Snapshot loads the current profile. Callers score a whole batch against one
// snapshot.
func (e *Engine) Snapshot(ctx context.Context) (Profile, error) {
	var p Profile
	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		p, err = SnapshotTx(ctx, tx)

		return err
	})
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	return p, nil
}

func SnapshotTx(ctx context.Context, tx *database.Tx) (Profile, error) {
	topics, err := tx.ListTopics(ctx)
	if err != nil {
		return Profile{}, err
	}

	return NewProfile(topics), nil
}

// Learn applies one feedback event on article to the profile in its own
// transaction.
func (e *Engine) Learn(
	ctx context.Context,
	fb domain.Feedback,
	article domain.Article,
) ([]domain.TopicUpdate, error) {
	if err := domain.ValidateRating(fb.Rating); err != nil {
		return nil, err
	}

	var updates []domain.TopicUpdate
	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		updates, err = LearnTx(ctx, tx, fb.Rating, article, e.now().UTC())

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("learn from rating: %w", err)
	}

	e.logUpdates(ctx, article.ID, fb.Rating, updates)

	return updates, nil
}

// LearnTx moves the weight of every topic matched by article by the delta of
// rating and bumps its sample count. Unmatched topics are left alone and
// origins never change.
func LearnTx(
	ctx context.Context,
	tx *database.Tx,
	rating int,
	article domain.Article,
	now time.Time,
) ([]domain.TopicUpdate, error) {
	if err := domain.ValidateRating(rating); err != nil {
		return nil, err
	}

	p, err := SnapshotTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	matched := p.Matches(article)
	updates := make([]domain.TopicUpdate, 0, len(matched))

	for _, topic := range matched {
		newWeight, applyErr := ApplyRating(topic.Weight, rating)
		if applyErr != nil {
			return nil, applyErr
		}

		updates = append(updates, domain.TopicUpdate{
			Topic:     topic.Topic,
			OldWeight: topic.Weight,
			NewWeight: newWeight,
		})

		topic.Weight = newWeight
		topic.SampleCount++
		topic.UpdatedAt = now

		if err = tx.UpsertTopic(ctx, topic); err != nil {
			return nil, err
		}
	}

	return updates, nil
}

func (e *Engine) logUpdates(ctx context.Context, articleID int64, rating int, updates []domain.TopicUpdate) {
	for _, u := range updates {
		e.log.InfoContext(ctx, "Topic weight is updated",
			"articleID", articleID,
			"rating", rating,
			"topic", u.Topic,
			"oldWeight", u.OldWeight,
			"newWeight", u.NewWeight)
	}
}

// MigrateInitialTopics seeds the profile from interests when it has no topics.
// It returns how many topics were seeded; a non-empty profile yields zero.
func (e *Engine) MigrateInitialTopics(ctx context.Context, interests domain.Interests) (int, error) {
	seeds := InitialTopics(interests)
	now := e.now().UTC()

	var seeded int
	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		seeded = 0

		count, err := tx.CountTopics(ctx)
		if err != nil {
			return err
		}

		if count > 0 {
			return nil
		}

		for _, topic := range seeds {
			topic.UpdatedAt = now

			inserted, insertErr := tx.InsertTopic(ctx, topic)
			if insertErr != nil {
				return insertErr
			}

			if inserted {
				seeded++
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("migrate initial topics: %w", err)
	}

	if seeded > 0 {
		e.log.InfoContext(ctx, "Profile is seeded",
			"topicCount", seeded)
	}

	return seeded, nil
}

// Topics returns all topics, heaviest first.
func (e *Engine) Topics(ctx context.Context) ([]domain.ProfileTopic, error) {
	p, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return byWeight(p.Topics()), nil
}

func (e *Engine) TopTopics(ctx context.Context, n int) ([]domain.ProfileTopic, error) {
	topics, err := e.Topics(ctx)
	if err != nil {
		return nil, err
	}

	if n >= 0 && len(topics) > n {
		topics = topics[:n]
	}

	return topics, nil
}

// AddTopic records an explicit interest. An existing topic keeps its origin and
// sample count and takes the new weight.
func (e *Engine) AddTopic(ctx context.Context, topic string, priority string) (domain.ProfileTopic, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.ProfileTopic{}, fmt.Errorf("topic is empty: %w", domain.ErrInvalidArgument)
	}

	weight, err := InitialWeight(priority)
	if err != nil {
		return domain.ProfileTopic{}, err
	}

	return e.upsert(ctx, topic, weight, domain.TopicOriginConfig)
}

// SetTopicWeight overrides the weight of a topic, creating it as a learned
// topic if needed.
func (e *Engine) SetTopicWeight(ctx context.Context, topic string, weight float64) (domain.ProfileTopic, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.ProfileTopic{}, fmt.Errorf("topic is empty: %w", domain.ErrInvalidArgument)
	}

	if weight < 0 || weight > 1 {
		return domain.ProfileTopic{}, fmt.Errorf("weight %v outside [0, 1]: %w", weight, domain.ErrInvalidArgument)
	}

	return e.upsert(ctx, topic, weight, domain.TopicOriginLearned)
}

func (e *Engine) upsert(
	ctx context.Context,
	topic string,
	weight float64,
	origin domain.TopicOrigin,
) (domain.ProfileTopic, error) {
	var result domain.ProfileTopic
	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		topics, err := tx.ListTopics(ctx)
		if err != nil {
			return err
		}

		result = domain.ProfileTopic{Topic: topic, Origin: origin}

		if idx := slices.IndexFunc(topics, func(t domain.ProfileTopic) bool { return t.Topic == topic }); idx >= 0 {
			result = topics[idx]
		}

		result.Weight = weight
		result.UpdatedAt = e.now().UTC()

		return tx.UpsertTopic(ctx, result)
	})
	if err != nil {
		return domain.ProfileTopic{}, fmt.Errorf("save topic: %w", err)
	}

	e.log.InfoContext(ctx, "Topic is saved",
		"topic", result.Topic,
		"weight", result.Weight,
		"origin", result.Origin)

	return result, nil
}

func (e *Engine) RemoveTopic(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)

	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		return tx.DeleteTopic(ctx, topic)
	})
	if err != nil {
		return fmt.Errorf("remove topic: %w", err)
	}

	e.log.InfoContext(ctx, "Topic is removed",
		"topic", topic)

	return nil
}

// Evolution summarises where the profile came from: configured versus learned
// topics, the heaviest topics and learned topics that gained real weight.
func (e *Engine) Evolution(ctx context.Context) (domain.ProfileEvolution, error) {
	topics, err := e.Topics(ctx)
	if err != nil {
		return domain.ProfileEvolution{}, err
	}

	evo := domain.ProfileEvolution{TotalTopics: len(topics)}

	for _, topic := range topics {
		switch topic.Origin {
		case domain.TopicOriginConfig:
			evo.ConfigCount++
		case domain.TopicOriginLearned:
			evo.LearnedCount++

			if topic.Weight >= emergingTopicMinWeight {
				evo.EmergingTopics = append(evo.EmergingTopics, topic)
			}
		}
	}

	evo.TopTopics = topics[:min(evolutionTopCount, len(topics))]

	return evo, nil
}

// Trending counts how many articles fetched or published since the given time
// match each topic, most frequent first.
func (e *Engine) Trending(ctx context.Context, since time.Time, limit int) ([]domain.TopicCount, error) {
	var (
		p        Profile
		articles []domain.Article
	)

	err := e.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		if p, err = SnapshotTx(ctx, tx); err != nil {
			return err
		}

		articles, err = tx.FindArticles(ctx, domain.ArticleFilter{Since: since})

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load trending data: %w", err)
	}

	counts := make(map[string]int)
	for _, a := range articles {
		for _, topic := range p.Matches(a) {
			counts[topic.Topic]++
		}
	}

	trending := make([]domain.TopicCount, 0, len(counts))
	for topic, count := range counts {
		trending = append(trending, domain.TopicCount{Topic: topic, Count: count})
	}

	slices.SortFunc(trending, func(a, b domain.TopicCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}

		return cmp.Compare(a.Topic, b.Topic)
	})

	if limit > 0 && len(trending) > limit {
		trending = trending[:limit]
	}

	return trending, nil
}

func byWeight(topics []domain.ProfileTopic) []domain.ProfileTopic {
	slices.SortStableFunc(topics, func(a, b domain.ProfileTopic) int {
		return cmp.Compare(b.Weight, a.Weight)
	})

	return topics
}
