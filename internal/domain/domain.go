package domain

import "time"

type Article struct {
	ID             int64
	URL            string
	Title          string
	Body           string
	Summary        string
	DeepAnalysis   string
	SourceName     string
	PublishedAt    time.Time
	FetchedAt      time.Time
	RelevanceScore *float64
	Read           bool
}

// Text is the haystack topics are matched against.
func (a Article) Text() string {
	return a.Title + " " + a.Body
}

func (a Article) Analyzed() bool {
	return a.RelevanceScore != nil
}

type Source struct {
	Name                string
	URL                 string
	MaxArticles         int
	DeepAnalysis        bool
	AnalysisInstruction string
	CreatedAt           time.Time
}

type SourceWithCount struct {
	Source
	ArticleCount int
}

type TopicOrigin string

const (
	TopicOriginConfig  TopicOrigin = "config"
	TopicOriginLearned TopicOrigin = "learned"
)

type ProfileTopic struct {
	Topic       string
	Weight      float64
	Origin      TopicOrigin
	SampleCount int
	UpdatedAt   time.Time
}

type TopicUpdate struct {
	Topic     string
	OldWeight float64
	NewWeight float64
}

type Feedback struct {
	ID        int64
	ArticleID int64
	Rating    int
	Note      string
	// RelevanceAtFeedback is the score the article held when the rating was given.
	RelevanceAtFeedback *float64
	CreatedAt           time.Time
}

type ParsedEntry struct {
	URL         string
	Title       string
	Body        string
	PublishedAt time.Time
}

type FeedValidation struct {
	URL        string
	Valid      bool
	Title      string
	EntryCount int
	Error      string
}

type IngestStats struct {
	NewCount     int
	SkippedCount int
}

type IngestResult struct {
	NewCount      int
	SkippedCount  int
	FailedSources []IngestPartialFailure
}

type ReadStatus string

const (
	ReadStatusAll    ReadStatus = "all"
	ReadStatusRead   ReadStatus = "read"
	ReadStatusUnread ReadStatus = "unread"
)

type SortOrder string

const (
	SortRelevanceDesc SortOrder = "relevance_desc"
	SortPublishedDesc SortOrder = "published_desc"
	SortFetchedDesc   SortOrder = "fetched_desc"
)

type ArticleFilter struct {
	ReadStatus   ReadStatus
	Since        time.Time
	Source       string
	Search       string
	MinRelevance *float64
	Limit        int
	Offset       int
	Sort         SortOrder
	Grouped      bool
}

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

type PresentationHint string

const (
	HintFull    PresentationHint = "full"
	HintCompact PresentationHint = "compact"
	HintMinimal PresentationHint = "minimal"
)

type ScoredArticle struct {
	Article
	Score float64
	Tier  Tier
	Hint  PresentationHint
}

type RelevanceGroups struct {
	High   []ScoredArticle
	Medium []ScoredArticle
	Low    []ScoredArticle
}

func (g RelevanceGroups) Len() int {
	return len(g.High) + len(g.Medium) + len(g.Low)
}

type QueryResult struct {
	Articles []ScoredArticle
	Groups   *RelevanceGroups
	Total    int
}

type AnalysisRecord struct {
	ArticleID      int64
	Summary        string
	RelevanceScore float64
	DeepAnalysis   *string
}

type DeepAnalysisCandidate struct {
	Article     Article
	Instruction string
}

// Interests is the starting profile configuration. Topics missing from every
// priority list start at medium weight.
type Interests struct {
	Topics []string
	High   []string
	Medium []string
	Low    []string
}
