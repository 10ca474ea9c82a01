package analysis

import (
	"context"

	"newsdesk/internal/domain"
)

// Input describes one article handed to an Analyzer.
type Input struct {
	Title      string
	Body       string
	URL        string
	SourceName string
	// Topics are the reader's interests, heaviest first.
	Topics []domain.ProfileTopic
}

// Result is the outcome of a regular analysis.
type Result struct {
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
}

// Analyzer summarizes articles and estimates their relevance to the reader.
type Analyzer interface {
	Analyze(ctx context.Context, input Input) (Result, error)
	// DeepAnalyze follows a source specific instruction and returns markdown.
	DeepAnalyze(ctx context.Context, input Input, instruction string) (string, error)
}

func inputFromArticle(article domain.Article, topics []domain.ProfileTopic) Input {
	return Input{
		Title:      article.Title,
		Body:       article.Body,
		URL:        article.URL,
		SourceName: article.SourceName,
		Topics:     topics,
	}
}
