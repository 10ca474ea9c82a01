package tools_test

import (
	"errors"
	"testing"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/tools"
)

type validator interface {
	Validate() error
}

func TestRequestValidation(t *testing.T) {
	tooHigh := 1.5
	deep := "notes"

	tests := []struct {
		name    string
		req     validator
		wantErr error
	}{
		{name: "empty articles request", req: tools.GetArticlesRequest{}},
		{name: "bad read status", req: tools.GetArticlesRequest{ReadStatus: "maybe"}, wantErr: domain.ErrInvalidArgument},
		{name: "bad sort", req: tools.GetArticlesRequest{SortBy: "title"}, wantErr: domain.ErrInvalidArgument},
		{name: "bad time filter", req: tools.GetArticlesRequest{TimeFilter: "yesterday"}, wantErr: domain.ErrInvalidArgument},
		{name: "huge limit", req: tools.GetArticlesRequest{Limit: 10000}, wantErr: domain.ErrInvalidArgument},
		{name: "min relevance", req: tools.GetArticlesRequest{MinRelevance: &tooHigh}, wantErr: domain.ErrInvalidArgument},
		{name: "mark read", req: tools.MarkReadRequest{ArticleIDs: []int64{1, 2}}},
		{name: "mark nothing", req: tools.MarkReadRequest{}, wantErr: domain.ErrInvalidArgument},
		{name: "mark bad id", req: tools.MarkReadRequest{ArticleIDs: []int64{1, 0}}, wantErr: domain.ErrInvalidArgument},
		{name: "feedback", req: tools.SaveFeedbackRequest{ArticleID: 1, Rating: 5}},
		{name: "feedback rating", req: tools.SaveFeedbackRequest{ArticleID: 1, Rating: 6}, wantErr: domain.ErrInvalidRating},
		{name: "source", req: tools.AddSourceRequest{Name: "a", URL: "https://a.test/rss"}},
		{name: "source without url", req: tools.AddSourceRequest{Name: "a"}, wantErr: domain.ErrInvalidArgument},
		{name: "deep source without instruction", req: tools.AddSourceRequest{Name: "a", URL: "https://a.test", DeepAnalysis: true}, wantErr: domain.ErrInvalidArgument},
		{name: "interest", req: tools.AddInterestRequest{Topic: "Go", Priority: "high"}},
		{name: "interest priority", req: tools.AddInterestRequest{Topic: "Go", Priority: "urgent"}, wantErr: domain.ErrInvalidArgument},
		{name: "analysis", req: tools.SaveAnalysisRequest{ArticleID: 1, DeepAnalysis: &deep}},
		{name: "analysis id", req: tools.SaveAnalysisRequest{}, wantErr: domain.ErrInvalidArgument},
		{name: "trending", req: tools.TrendingRequest{Days: -1}, wantErr: domain.ErrInvalidArgument},
		{name: "validate feed", req: tools.ValidateFeedRequest{URL: " "}, wantErr: domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetArticlesFilter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	filter := tools.GetArticlesRequest{TimeFilter: "last_week", SinceHours: 1, Source: " hn "}.Filter(now)
	if !filter.Since.Equal(now.Add(-168*time.Hour)) {
		t.Fatalf("expected time filter to win, got %v", filter.Since)
	}

	if filter.Source != "hn" {
		t.Fatalf("expected trimmed source, got %q", filter.Source)
	}

	filter = tools.GetArticlesRequest{SinceHours: 2}.Filter(now)
	if !filter.Since.Equal(now.Add(-2 * time.Hour)) {
		t.Fatalf("unexpected since %v", filter.Since)
	}

	if !(tools.GetArticlesRequest{}).Filter(now).Since.IsZero() {
		t.Fatalf("expected no time bound by default")
	}
}
