package tools

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"newsdesk/internal/catalog"
	"newsdesk/internal/domain"
	"newsdesk/internal/feedback"
	"newsdesk/internal/profile"
	"newsdesk/internal/registry"
)

const defaultTrendingDays = 7

// Service is the operation surface offered to external agents and
// front-ends. Every request is validated before it reaches a component.
type Service struct {
	catalog            *catalog.Catalog
	registry           *registry.Registry
	engine             *profile.Engine
	ledger             *feedback.Ledger
	relevanceThreshold float64
	log                *slog.Logger
	now                func() time.Time
}

func NewService(
	cat *catalog.Catalog,
	reg *registry.Registry,
	engine *profile.Engine,
	ledger *feedback.Ledger,
	relevanceThreshold float64,
	log *slog.Logger,
) *Service {
	return &Service{
		catalog:            cat,
		registry:           reg,
		engine:             engine,
		ledger:             ledger,
		relevanceThreshold: relevanceThreshold,
		log:                log,
		now:                time.Now,
	}
}

func (s *Service) GetArticles(ctx context.Context, req GetArticlesRequest) (ArticlesResponse, error) {
	if err := req.Validate(); err != nil {
		return ArticlesResponse{}, err
	}

	result, err := s.catalog.Query(ctx, req.Filter(s.now()))
	if err != nil {
		return ArticlesResponse{}, err
	}

	return articlesResponse(result), nil
}

func (s *Service) GetArticle(ctx context.Context, id int64) (ArticleView, error) {
	if id <= 0 {
		return ArticleView{}, invalid("article id must be positive")
	}

	article, err := s.catalog.Get(ctx, id)
	if err != nil {
		return ArticleView{}, err
	}

	return articleView(article, true), nil
}

// MarkRead marks the given articles read. A single unknown id is reported as
// not found; in a batch unknown ids are skipped.
func (s *Service) MarkRead(ctx context.Context, req MarkReadRequest) (MarkReadResponse, error) {
	if err := req.Validate(); err != nil {
		return MarkReadResponse{}, err
	}

	if len(req.ArticleIDs) == 1 {
		if err := s.catalog.MarkRead(ctx, req.ArticleIDs[0]); err != nil {
			return MarkReadResponse{}, err
		}

		return MarkReadResponse{Changed: 1}, nil
	}

	changed, err := s.catalog.MarkManyRead(ctx, req.ArticleIDs)
	if err != nil {
		return MarkReadResponse{}, err
	}

	return MarkReadResponse{Changed: changed}, nil
}

func (s *Service) MarkAllRead(ctx context.Context) (MarkReadResponse, error) {
	changed, err := s.catalog.MarkAllRead(ctx)
	if err != nil {
		return MarkReadResponse{}, err
	}

	return MarkReadResponse{Changed: changed}, nil
}

func (s *Service) SaveFeedback(ctx context.Context, req SaveFeedbackRequest) (FeedbackResponse, error) {
	if err := req.Validate(); err != nil {
		return FeedbackResponse{}, err
	}

	rec, err := s.ledger.Record(ctx, req.ArticleID, req.Rating, req.Note)
	if err != nil {
		return FeedbackResponse{}, err
	}

	resp := FeedbackResponse{
		FeedbackID:          rec.Feedback.ID,
		ArticleID:           rec.Feedback.ArticleID,
		Rating:              rec.Feedback.Rating,
		RelevanceAtFeedback: rec.Feedback.RelevanceAtFeedback,
		Updates:             make([]TopicUpdateView, 0, len(rec.Updates)),
	}

	for _, u := range rec.Updates {
		resp.Updates = append(resp.Updates, TopicUpdateView(u))
	}

	return resp, nil
}

func (s *Service) ListSources(ctx context.Context) ([]SourceView, error) {
	sources, err := s.registry.ListWithCounts(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]SourceView, 0, len(sources))
	for _, src := range sources {
		v := sourceView(src.Source)
		count := src.ArticleCount
		v.ArticleCount = &count
		views = append(views, v)
	}

	return views, nil
}

func (s *Service) AddSource(ctx context.Context, req AddSourceRequest) (SourceView, error) {
	if err := req.Validate(); err != nil {
		return SourceView{}, err
	}

	src, err := s.registry.Add(ctx, req.Source())
	if err != nil {
		return SourceView{}, err
	}

	return sourceView(src), nil
}

func (s *Service) RemoveSource(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("source name is required")
	}

	return s.registry.Remove(ctx, name)
}

func (s *Service) ValidateFeed(ctx context.Context, req ValidateFeedRequest) (FeedValidationView, error) {
	if err := req.Validate(); err != nil {
		return FeedValidationView{}, err
	}

	return FeedValidationView(s.registry.ValidateFeed(ctx, strings.TrimSpace(req.URL))), nil
}

func (s *Service) GetProfile(ctx context.Context) (ProfileResponse, error) {
	topics, err := s.engine.Topics(ctx)
	if err != nil {
		return ProfileResponse{}, err
	}

	evo, err := s.engine.Evolution(ctx)
	if err != nil {
		return ProfileResponse{}, err
	}

	return ProfileResponse{
		Topics:         topicViews(topics),
		TotalTopics:    evo.TotalTopics,
		ConfigCount:    evo.ConfigCount,
		LearnedCount:   evo.LearnedCount,
		TopTopics:      topicViews(evo.TopTopics),
		EmergingTopics: topicViews(evo.EmergingTopics),
	}, nil
}

func (s *Service) AddInterest(ctx context.Context, req AddInterestRequest) (TopicView, error) {
	if err := req.Validate(); err != nil {
		return TopicView{}, err
	}

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	topic, err := s.engine.AddTopic(ctx, req.Topic, priority)
	if err != nil {
		return TopicView{}, err
	}

	return topicViews([]domain.ProfileTopic{topic})[0], nil
}

func (s *Service) RemoveInterest(ctx context.Context, topic string) error {
	if strings.TrimSpace(topic) == "" {
		return invalid("topic is required")
	}

	return s.engine.RemoveTopic(ctx, topic)
}

func (s *Service) Stats(ctx context.Context) (StatsResponse, error) {
	reading, err := s.catalog.Stats(ctx, s.relevanceThreshold)
	if err != nil {
		return StatsResponse{}, err
	}

	summary, err := s.ledger.Summary(ctx)
	if err != nil {
		return StatsResponse{}, err
	}

	acc, err := s.ledger.Accuracy(ctx)
	if err != nil {
		return StatsResponse{}, err
	}

	return StatsResponse{
		Reading:  ReadingStats(reading),
		Learning: learningStats(summary, acc),
	}, nil
}

// Unanalyzed lists the analysis queue with bodies, scored against the current
// profile.
func (s *Service) Unanalyzed(ctx context.Context) ([]ArticleView, error) {
	articles, err := s.catalog.Unanalyzed(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]ArticleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, articleView(p.ScoreArticle(a), true))
	}

	return views, nil
}

func (s *Service) SaveAnalysis(ctx context.Context, req SaveAnalysisRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	return s.catalog.RecordAnalysis(ctx, req.Record())
}

func (s *Service) DeepCandidates(ctx context.Context) ([]DeepCandidateView, error) {
	candidates, err := s.catalog.DeepAnalysisCandidates(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]DeepCandidateView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, DeepCandidateView{
			Article:     articleView(p.ScoreArticle(c.Article), true),
			Instruction: c.Instruction,
		})
	}

	return views, nil
}

func (s *Service) Trending(ctx context.Context, req TrendingRequest) ([]TopicCountView, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	days := req.Days
	if days == 0 {
		days = defaultTrendingDays
	}

	counts, err := s.engine.Trending(ctx, s.now().AddDate(0, 0, -days), req.Limit)
	if err != nil {
		return nil, err
	}

	views := make([]TopicCountView, 0, len(counts))
	for _, c := range counts {
		views = append(views, TopicCountView(c))
	}

	return views, nil
}
