package tools

import (
	"strings"
	"time"

	"newsdesk/internal/domain"
)

type ArticleView struct {
	ID               int64                   `json:"id"`
	URL              string                  `json:"url"`
	Title            string                  `json:"title"`
	Body             string                  `json:"body,omitempty"`
	Summary          string                  `json:"summary,omitempty"`
	DeepAnalysis     string                  `json:"deep_analysis,omitempty"`
	HasDeepAnalysis  bool                    `json:"has_deep_analysis"`
	Source           string                  `json:"source"`
	PublishedAt      *time.Time              `json:"published_at,omitempty"`
	FetchedAt        time.Time               `json:"fetched_at"`
	RelevanceScore   *float64                `json:"relevance_score"`
	Score            float64                 `json:"score"`
	Tier             domain.Tier             `json:"tier"`
	PresentationHint domain.PresentationHint `json:"presentation_hint"`
	Read             bool                    `json:"read"`
}

// articleView renders a scored article. Body and deep analysis are only
// included in detailed views.
func articleView(a domain.ScoredArticle, detailed bool) ArticleView {
	v := ArticleView{
		ID:               a.ID,
		URL:              a.URL,
		Title:            a.Title,
		Summary:          a.Summary,
		HasDeepAnalysis:  strings.TrimSpace(a.DeepAnalysis) != "",
		Source:           a.SourceName,
		FetchedAt:        a.FetchedAt,
		RelevanceScore:   a.RelevanceScore,
		Score:            a.Score,
		Tier:             a.Tier,
		PresentationHint: a.Hint,
		Read:             a.Read,
	}

	if !a.PublishedAt.IsZero() {
		published := a.PublishedAt
		v.PublishedAt = &published
	}

	if detailed {
		v.Body = a.Body
		v.DeepAnalysis = a.DeepAnalysis
	}

	return v
}

func articleViews(articles []domain.ScoredArticle, detailed bool) []ArticleView {
	views := make([]ArticleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, articleView(a, detailed))
	}

	return views
}

type GroupsView struct {
	High   []ArticleView `json:"high_relevance"`
	Medium []ArticleView `json:"medium_relevance"`
	Low    []ArticleView `json:"low_relevance"`
}

type TierCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type ArticlesResponse struct {
	Articles   []ArticleView `json:"articles"`
	Groups     *GroupsView   `json:"articles_by_tier,omitempty"`
	TierCounts *TierCounts   `json:"tier_counts,omitempty"`
	Total      int           `json:"total"`
	Grouped    bool          `json:"grouped"`
}

func articlesResponse(result domain.QueryResult) ArticlesResponse {
	resp := ArticlesResponse{
		Articles: articleViews(result.Articles, false),
		Total:    result.Total,
	}

	if g := result.Groups; g != nil {
		resp.Grouped = true
		resp.Groups = &GroupsView{
			High:   articleViews(g.High, false),
			Medium: articleViews(g.Medium, false),
			Low:    articleViews(g.Low, false),
		}
		resp.TierCounts = &TierCounts{
			High:   len(g.High),
			Medium: len(g.Medium),
			Low:    len(g.Low),
		}
	}

	return resp
}

type MarkReadResponse struct {
	Changed int64 `json:"changed"`
}

type SourceView struct {
	Name                string    `json:"name"`
	URL                 string    `json:"url"`
	MaxArticles         int       `json:"max_articles"`
	DeepAnalysis        bool      `json:"deep_analysis"`
	AnalysisInstruction string    `json:"analysis_instruction,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ArticleCount        *int      `json:"article_count,omitempty"`
}

func sourceView(s domain.Source) SourceView {
	return SourceView{
		Name:                s.Name,
		URL:                 s.URL,
		MaxArticles:         s.MaxArticles,
		DeepAnalysis:        s.DeepAnalysis,
		AnalysisInstruction: s.AnalysisInstruction,
		CreatedAt:           s.CreatedAt,
	}
}

type FeedValidationView struct {
	URL        string `json:"url"`
	Valid      bool   `json:"valid"`
	Title      string `json:"title,omitempty"`
	EntryCount int    `json:"entry_count"`
	Error      string `json:"error,omitempty"`
}

type TopicView struct {
	Topic       string             `json:"topic"`
	Weight      float64            `json:"weight"`
	Origin      domain.TopicOrigin `json:"origin"`
	SampleCount int                `json:"sample_count"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func topicViews(topics []domain.ProfileTopic) []TopicView {
	views := make([]TopicView, 0, len(topics))
	for _, t := range topics {
		views = append(views, TopicView{
			Topic:       t.Topic,
			Weight:      t.Weight,
			Origin:      t.Origin,
			SampleCount: t.SampleCount,
			UpdatedAt:   t.UpdatedAt,
		})
	}

	return views
}

type ProfileResponse struct {
	Topics         []TopicView `json:"topics"`
	TotalTopics    int         `json:"total_topics"`
	ConfigCount    int         `json:"config_count"`
	LearnedCount   int         `json:"learned_count"`
	TopTopics      []TopicView `json:"top_topics"`
	EmergingTopics []TopicView `json:"emerging_topics"`
}

type TopicUpdateView struct {
	Topic     string  `json:"topic"`
	OldWeight float64 `json:"old_weight"`
	NewWeight float64 `json:"new_weight"`
}

type FeedbackResponse struct {
	FeedbackID          int64             `json:"feedback_id"`
	ArticleID           int64             `json:"article_id"`
	Rating              int               `json:"rating"`
	RelevanceAtFeedback *float64          `json:"relevance_at_feedback"`
	Updates             []TopicUpdateView `json:"topic_updates"`
}

type ReadingStats struct {
	Total            int            `json:"total"`
	Unread           int            `json:"unread"`
	Relevant         int            `json:"relevant"`
	SourceCount      int            `json:"source_count"`
	ArticlesBySource map[string]int `json:"articles_by_source"`
}

type TopicRatingView struct {
	Topic         string  `json:"topic"`
	AverageRating float64 `json:"average_rating"`
	FeedbackCount int     `json:"feedback_count"`
}

type SourcePreferenceView struct {
	Source        string  `json:"source"`
	AverageRating float64 `json:"average_rating"`
	FeedbackCount int     `json:"feedback_count"`
}

type FeedbackEntryView struct {
	ArticleID int64     `json:"article_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Rating    int       `json:"rating"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type LearningStats struct {
	FeedbackCount     int                    `json:"feedback_count"`
	AverageRating     float64                `json:"average_rating"`
	Positive          int                    `json:"positive"`
	Negative          int                    `json:"negative"`
	RatingHistogram   map[int]int            `json:"rating_histogram"`
	MeanAbsoluteError float64                `json:"mean_absolute_error"`
	AccuracySamples   int                    `json:"accuracy_samples"`
	Discrepancies     int                    `json:"discrepancies"`
	AccuracyRate      float64                `json:"accuracy_rate"`
	TopRatedTopics    []TopicRatingView      `json:"top_rated_topics"`
	SourcePreferences []SourcePreferenceView `json:"source_preferences"`
	RecentFeedback    []FeedbackEntryView    `json:"recent_feedback"`
}

type StatsResponse struct {
	Reading  ReadingStats  `json:"reading"`
	Learning LearningStats `json:"learning"`
}

func learningStats(summary domain.FeedbackSummary, acc domain.AccuracyStats) LearningStats {
	stats := LearningStats{
		FeedbackCount:     summary.Total,
		AverageRating:     summary.AverageRating,
		Positive:          summary.Positive,
		Negative:          summary.Negative,
		RatingHistogram:   summary.RatingHistogram,
		MeanAbsoluteError: acc.MeanAbsoluteError,
		AccuracySamples:   acc.SampleCount,
		Discrepancies:     acc.Discrepancies,
		AccuracyRate:      acc.AccuracyRate,
		TopRatedTopics:    make([]TopicRatingView, 0, len(summary.TopRatedTopics)),
		SourcePreferences: make([]SourcePreferenceView, 0, len(summary.SourcePreferences)),
		RecentFeedback:    make([]FeedbackEntryView, 0, len(summary.Recent)),
	}

	for _, t := range summary.TopRatedTopics {
		stats.TopRatedTopics = append(stats.TopRatedTopics, TopicRatingView(t))
	}

	for _, p := range summary.SourcePreferences {
		stats.SourcePreferences = append(stats.SourcePreferences, SourcePreferenceView(p))
	}

	for _, e := range summary.Recent {
		stats.RecentFeedback = append(stats.RecentFeedback, FeedbackEntryView{
			ArticleID: e.ArticleID,
			Title:     e.Title,
			Source:    e.SourceName,
			Rating:    e.Rating,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}

	return stats
}

type DeepCandidateView struct {
	Article     ArticleView `json:"article"`
	Instruction string      `json:"instruction"`
}

type TopicCountView struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}
