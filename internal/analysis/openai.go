package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 4096

	maxDeepInputRunes = 10000

	analyzePrompt = `You rate news articles for one reader.

Return a JSON object with exactly two fields:
- "summary": one or two neutral sentences, at most 50 words, in the language of the article.
- "relevance": a number from 0 to 1 saying how well the article matches the reader's interests.

Weigh the interests by their weights. Unrelated articles score below 0.2.
Output only the JSON object.`

	deepAnalyzePrompt = `Analyze the article following the instruction.
Write clear, well structured markdown with headings and quotes where relevant.`
)

// OpenAIAnalyzer calls OpenAI's Responses API to analyze articles.
type OpenAIAnalyzer struct {
	client openai.Client
}

func NewOpenAIAnalyzer(apiKey string) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, input Input) (Result, error) {
	if strings.TrimSpace(input.Title) == "" && strings.TrimSpace(input.Body) == "" {
		return Result{}, errors.New("input is empty")
	}

	prompt := strings.Builder{}
	prompt.WriteString("Interests:\n")
	for _, topic := range input.Topics {
		fmt.Fprintf(&prompt, "- %s (%.2f)\n", topic.Topic, topic.Weight)
	}
	if len(input.Topics) == 0 {
		prompt.WriteString("- none yet\n")
	}

	writeArticle(&prompt, input, 0)

	text, err := a.complete(ctx, analyzePrompt, prompt.String())
	if err != nil {
		return Result{}, err
	}

	return parseResult(text)
}

func (a *OpenAIAnalyzer) DeepAnalyze(ctx context.Context, input Input, instruction string) (string, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", errors.New("instruction is empty")
	}

	prompt := strings.Builder{}
	writeArticle(&prompt, input, maxDeepInputRunes)
	prompt.WriteString("\nInstruction:\n")
	prompt.WriteString(instruction)

	return a.complete(ctx, deepAnalyzePrompt, prompt.String())
}

func writeArticle(b *strings.Builder, input Input, maxBodyRunes int) {
	if source := strings.TrimSpace(input.SourceName); source != "" {
		b.WriteString("Source:\n")
		b.WriteString(source)
		b.WriteString("\n")
	}

	if url := strings.TrimSpace(input.URL); url != "" {
		b.WriteString("URL:\n")
		b.WriteString(url)
		b.WriteString("\n")
	}

	body := strings.TrimSpace(input.Body)
	if maxBodyRunes > 0 {
		body = truncateRunes(body, maxBodyRunes)
	}

	b.WriteString("Title:\n")
	b.WriteString(strings.TrimSpace(input.Title))
	b.WriteString("\nContent:\n")
	b.WriteString(body)
}

// complete runs one request, doubling the output budget while the model stops
// on max_output_tokens.
func (a *OpenAIAnalyzer) complete(ctx context.Context, instructions string, input string) (string, error) {
	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(input),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)

				continue
			}

			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}

		return text, nil
	}
}

// parseResult decodes the model output, tolerating a markdown code fence
// around the JSON object.
func parseResult(text string) (Result, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var result Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &result); err != nil {
		return Result{}, fmt.Errorf("decode analysis: %w", err)
	}

	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" {
		return Result{}, errors.New("analysis summary is empty")
	}

	if result.Relevance < 0 || result.Relevance > 1 {
		return Result{}, fmt.Errorf("analysis relevance %v outside [0, 1]", result.Relevance)
	}

	return result, nil
}
