package domain

import "time"

type ArticleStats struct {
	Total            int
	Unread           int
	Relevant         int
	SourceCount      int
	ArticlesBySource map[string]int
}

type FeedbackTotals struct {
	Total           int
	AverageRating   float64
	Positive        int
	Negative        int
	RatingHistogram map[int]int
}

type AccuracyStats struct {
	MeanAbsoluteError float64
	SampleCount       int
	Discrepancies     int
	AccuracyRate      float64
}

type SourcePreference struct {
	Source        string
	AverageRating float64
	FeedbackCount int
}

type TopicRating struct {
	Topic         string
	AverageRating float64
	FeedbackCount int
}

type FeedbackEntry struct {
	ArticleID  int64
	Title      string
	SourceName string
	Rating     int
	Note       string
	CreatedAt  time.Time
}

type RatedText struct {
	Rating int
	Title  string
	Body   string
}

type FeedbackSummary struct {
	FeedbackTotals
	TopRatedTopics    []TopicRating
	SourcePreferences []SourcePreference
	Recent            []FeedbackEntry
}

type ProfileEvolution struct {
	TotalTopics    int
	ConfigCount    int
	LearnedCount   int
	TopTopics      []ProfileTopic
	EmergingTopics []ProfileTopic
}

type TopicCount struct {
	Topic string
	Count int
}
