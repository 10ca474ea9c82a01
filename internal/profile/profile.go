package profile

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"newsdesk/internal/domain"
)

const (
	HighThreshold   = 0.7
	MediumThreshold = 0.4

	// DeepAnalysisBoost is the floor applied to the score of articles that
	// carry a deep analysis.
	DeepAnalysisBoost = 0.75

	highPriorityWeight   = 0.8
	mediumPriorityWeight = 0.5
	lowPriorityWeight    = 0.2
)

var ratingDeltas = map[int]float64{
	5: 0.10,
	4: 0.05,
	3: 0.00,
	2: -0.05,
	1: -0.10,
}

// Profile is an immutable snapshot of all topics, ordered by topic name so that
// summation order and therefore scores are stable.
type Profile struct {
	topics []domain.ProfileTopic
}

func NewProfile(topics []domain.ProfileTopic) Profile {
	sorted := slices.Clone(topics)
	slices.SortFunc(sorted, func(a, b domain.ProfileTopic) int {
		return cmp.Compare(a.Topic, b.Topic)
	})

	return Profile{topics: sorted}
}

func (p Profile) Len() int {
	return len(p.topics)
}

func (p Profile) Topics() []domain.ProfileTopic {
	return slices.Clone(p.topics)
}

// Matches returns the topics whose text occurs in the article title or body,
// ignoring case.
func (p Profile) Matches(article domain.Article) []domain.ProfileTopic {
	haystack := strings.ToLower(article.Text())

	var matched []domain.ProfileTopic
	for _, topic := range p.topics {
		if matchesLower(haystack, topic.Topic) {
			matched = append(matched, topic)
		}
	}

	return matched
}

// Score sums the weights of all matched topics, saturating at 1. The sum is
// not normalised by the number of topics.
func (p Profile) Score(article domain.Article) float64 {
	var sum float64
	for _, topic := range p.Matches(article) {
		sum += topic.Weight
	}

	return Clamp(sum)
}

// Matches reports whether topic occurs in text, ignoring case. Blank topics
// never match.
func Matches(text string, topic string) bool {
	return matchesLower(strings.ToLower(text), topic)
}

func matchesLower(haystack string, topic string) bool {
	needle := strings.ToLower(strings.TrimSpace(topic))
	if needle == "" {
		return false
	}

	return strings.Contains(haystack, needle)
}

func Delta(rating int) (float64, error) {
	if err := domain.ValidateRating(rating); err != nil {
		return 0, err
	}

	return ratingDeltas[rating], nil
}

// ApplyRating returns weight moved by the delta of rating and clamped to [0,1].
func ApplyRating(weight float64, rating int) (float64, error) {
	delta, err := Delta(rating)
	if err != nil {
		return 0, err
	}

	return Clamp(weight + delta), nil
}

func Clamp(v float64) float64 {
	return min(1, max(0, v))
}

func TierFor(score float64) domain.Tier {
	switch {
	case score >= HighThreshold:
		return domain.TierHigh
	case score >= MediumThreshold:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

func HintFor(tier domain.Tier) domain.PresentationHint {
	switch tier {
	case domain.TierHigh:
		return domain.HintFull
	case domain.TierMedium:
		return domain.HintCompact
	default:
		return domain.HintMinimal
	}
}

// PredictedScore is the stored analysis score when present, otherwise the
// profile score. It is what feedback accuracy is measured against.
func (p Profile) PredictedScore(article domain.Article) float64 {
	if article.RelevanceScore != nil {
		return Clamp(*article.RelevanceScore)
	}

	return p.Score(article)
}

// EffectiveScore is PredictedScore with presentation applied: articles with a
// deep analysis never score below DeepAnalysisBoost.
func (p Profile) EffectiveScore(article domain.Article) float64 {
	score := p.PredictedScore(article)

	if strings.TrimSpace(article.DeepAnalysis) != "" {
		score = max(score, DeepAnalysisBoost)
	}

	return score
}

func (p Profile) ScoreArticle(article domain.Article) domain.ScoredArticle {
	score := p.EffectiveScore(article)
	tier := TierFor(score)

	return domain.ScoredArticle{
		Article: article,
		Score:   score,
		Tier:    tier,
		Hint:    HintFor(tier),
	}
}

// GroupByRelevance places every article in exactly one tier according to its
// Score, keeping input order within each tier.
func GroupByRelevance(articles []domain.ScoredArticle) domain.RelevanceGroups {
	var groups domain.RelevanceGroups

	for _, a := range articles {
		a.Tier = TierFor(a.Score)
		a.Hint = HintFor(a.Tier)

		switch a.Tier {
		case domain.TierHigh:
			groups.High = append(groups.High, a)
		case domain.TierMedium:
			groups.Medium = append(groups.Medium, a)
		default:
			groups.Low = append(groups.Low, a)
		}
	}

	return groups
}

// InitialWeight maps an interest priority to a starting weight.
func InitialWeight(priority string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "high":
		return highPriorityWeight, nil
	case "medium", "":
		return mediumPriorityWeight, nil
	case "low":
		return lowPriorityWeight, nil
	default:
		return 0, fmt.Errorf("priority %q: %w", priority, domain.ErrInvalidArgument)
	}
}

// InitialTopics expands interests into seed topics. Priority lists win over
// the plain topic list, and topics named only in a priority list are still
// seeded.
func InitialTopics(interests domain.Interests) []domain.ProfileTopic {
	weights := make(map[string]float64)
	var order []string

	add := func(topic string, weight float64, override bool) {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return
		}

		if _, ok := weights[topic]; !ok {
			order = append(order, topic)
		} else if !override {
			return
		}

		weights[topic] = weight
	}

	for _, topic := range interests.Topics {
		add(topic, mediumPriorityWeight, false)
	}

	for _, topic := range interests.Low {
		add(topic, lowPriorityWeight, true)
	}

	for _, topic := range interests.Medium {
		add(topic, mediumPriorityWeight, true)
	}

	for _, topic := range interests.High {
		add(topic, highPriorityWeight, true)
	}

	topics := make([]domain.ProfileTopic, 0, len(order))
	for _, topic := range order {
		topics = append(topics, domain.ProfileTopic{
			Topic:  topic,
			Weight: weights[topic],
			Origin: domain.TopicOriginConfig,
		})
	}

	return topics
}
