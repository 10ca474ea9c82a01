package tools

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"newsdesk/internal/domain"
)

const maxPageSize = 500

var timeFilterHours = map[string]int{
	"last_24h":   24,
	"last_week":  168,
	"last_month": 720,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidArgument)
}

// InvalidParam reports a request parameter that could not be parsed.
func InvalidParam(name string, value string) error {
	return invalid("invalid %s %q", name, value)
}

type GetArticlesRequest struct {
	ReadStatus   string   `json:"read_status"`
	Source       string   `json:"source"`
	Search       string   `json:"search"`
	MinRelevance *float64 `json:"min_relevance"`
	// TimeFilter is one of last_24h, last_week or last_month and wins over
	// SinceHours.
	TimeFilter string `json:"time_filter"`
	SinceHours int    `json:"since_hours"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	SortBy     string `json:"sort_by"`
	Grouped    bool   `json:"grouped"`
}

func (r GetArticlesRequest) Validate() error {
	switch domain.ReadStatus(r.ReadStatus) {
	case "", domain.ReadStatusAll, domain.ReadStatusRead, domain.ReadStatusUnread:
	default:
		return invalid("unknown read_status %q", r.ReadStatus)
	}

	switch domain.SortOrder(r.SortBy) {
	case "", domain.SortRelevanceDesc, domain.SortPublishedDesc, domain.SortFetchedDesc:
	default:
		return invalid("unknown sort_by %q", r.SortBy)
	}

	if _, ok := timeFilterHours[r.TimeFilter]; r.TimeFilter != "" && !ok {
		return invalid("unknown time_filter %q", r.TimeFilter)
	}

	if r.SinceHours < 0 || r.Offset < 0 {
		return invalid("since_hours and offset must not be negative")
	}

	if r.Limit < 0 || r.Limit > maxPageSize {
		return invalid("limit must be between 0 and %d", maxPageSize)
	}

	if m := r.MinRelevance; m != nil && (math.IsNaN(*m) || *m < 0 || *m > 1) {
		return invalid("min_relevance must be within [0, 1]")
	}

	return nil
}

func (r GetArticlesRequest) Filter(now time.Time) domain.ArticleFilter {
	filter := domain.ArticleFilter{
		ReadStatus:   domain.ReadStatus(r.ReadStatus),
		Source:       strings.TrimSpace(r.Source),
		Search:       strings.TrimSpace(r.Search),
		MinRelevance: r.MinRelevance,
		Limit:        r.Limit,
		Offset:       r.Offset,
		Sort:         domain.SortOrder(r.SortBy),
		Grouped:      r.Grouped,
	}

	hours := r.SinceHours
	if h, ok := timeFilterHours[r.TimeFilter]; ok {
		hours = h
	}

	if hours > 0 {
		filter.Since = now.Add(-time.Duration(hours) * time.Hour)
	}

	return filter
}

type MarkReadRequest struct {
	ArticleIDs []int64 `json:"article_ids"`
}

func (r MarkReadRequest) Validate() error {
	if len(r.ArticleIDs) == 0 {
		return invalid("article_ids is empty")
	}

	if slices.ContainsFunc(r.ArticleIDs, func(id int64) bool { return id <= 0 }) {
		return invalid("article ids must be positive")
	}

	return nil
}

type SaveFeedbackRequest struct {
	ArticleID int64  `json:"article_id"`
	Rating    int    `json:"rating"`
	Note      string `json:"note"`
}

func (r SaveFeedbackRequest) Validate() error {
	if r.ArticleID <= 0 {
		return invalid("article_id must be positive")
	}

	return domain.ValidateRating(r.Rating)
}

type AddSourceRequest struct {
	Name                string `json:"name"`
	URL                 string `json:"url"`
	MaxArticles         int    `json:"max_articles"`
	DeepAnalysis        bool   `json:"deep_analysis"`
	AnalysisInstruction string `json:"analysis_instruction"`
}

func (r AddSourceRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.URL) == "" {
		return invalid("name and url are required")
	}

	if r.MaxArticles < 0 {
		return invalid("max_articles must not be negative")
	}

	if r.DeepAnalysis && strings.TrimSpace(r.AnalysisInstruction) == "" {
		return invalid("deep_analysis needs an analysis_instruction")
	}

	return nil
}

func (r AddSourceRequest) Source() domain.Source {
	return domain.Source{
		Name:                r.Name,
		URL:                 r.URL,
		MaxArticles:         r.MaxArticles,
		DeepAnalysis:        r.DeepAnalysis,
		AnalysisInstruction: r.AnalysisInstruction,
	}
}

type ValidateFeedRequest struct {
	URL string `json:"url"`
}

func (r ValidateFeedRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return invalid("url is required")
	}

	return nil
}

type AddInterestRequest struct {
	Topic    string `json:"topic"`
	Priority string `json:"priority"`
}

func (r AddInterestRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return invalid("topic is required")
	}

	switch r.Priority {
	case "", "high", "medium", "low":
	default:
		return invalid("unknown priority %q", r.Priority)
	}

	return nil
}

type SaveAnalysisRequest struct {
	ArticleID      int64   `json:"article_id"`
	Summary        string  `json:"summary"`
	RelevanceScore float64 `json:"relevance_score"`
	DeepAnalysis   *string `json:"deep_analysis"`
}

func (r SaveAnalysisRequest) Validate() error {
	if r.ArticleID <= 0 {
		return invalid("article_id must be positive")
	}

	return nil
}

func (r SaveAnalysisRequest) Record() domain.AnalysisRecord {
	return domain.AnalysisRecord{
		ArticleID:      r.ArticleID,
		Summary:        r.Summary,
		RelevanceScore: r.RelevanceScore,
		DeepAnalysis:   r.DeepAnalysis,
	}
}

type TrendingRequest struct {
	Days  int `json:"days"`
	Limit int `json:"limit"`
}

func (r TrendingRequest) Validate() error {
	if r.Days < 0 || r.Limit < 0 {
		return invalid("days and limit must not be negative")
	}

	return nil
}
