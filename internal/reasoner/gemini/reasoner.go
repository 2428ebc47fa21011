// Package gemini implements the analysis reasoner on top of the Google
// Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/rankscope/rankscope/internal/seo"
)

const defaultModel = "gemini-1.5-flash"

// Config controls the Gemini reasoner.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxQueries  int
}

// Reasoner implements seo.Reasoner using Gemini.
type Reasoner struct {
	client *genai.Client
	cfg    Config
}

// New creates a Gemini-backed reasoner.
func New(ctx context.Context, cfg Config) (*Reasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = 10
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Reasoner{client: client, cfg: cfg}, nil
}

// Close releases resources held by the underlying client.
func (r *Reasoner) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// SuggestQueries asks the model for search queries the page should rank for.
func (r *Reasoner) SuggestQueries(ctx context.Context, signals seo.PageSignals) ([]seo.QuerySuggestion, error) {
	prompt, err := suggestQueriesPrompt(signals, r.cfg.MaxQueries)
	if err != nil {
		return nil, err
	}

	text, err := r.generateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("suggest queries: %w", err)
	}

	var suggestions []seo.QuerySuggestion
	if err := json.Unmarshal([]byte(text), &suggestions); err != nil {
		return nil, fmt.Errorf("decode query suggestions: %w", err)
	}
	if len(suggestions) > r.cfg.MaxQueries {
		suggestions = suggestions[:r.cfg.MaxQueries]
	}
	return suggestions, nil
}

// GenerateReport asks the model for a visibility report over the collected
// signals, queries, and competitor comparison.
func (r *Reasoner) GenerateReport(ctx context.Context, input seo.ReportInput) (seo.Report, error) {
	prompt, err := reportPrompt(input)
	if err != nil {
		return seo.Report{}, err
	}

	text, err := r.generateJSON(ctx, prompt)
	if err != nil {
		return seo.Report{}, fmt.Errorf("generate report: %w", err)
	}

	var report seo.Report
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		return seo.Report{}, fmt.Errorf("decode report: %w", err)
	}
	if report.Summary == "" {
		return seo.Report{}, fmt.Errorf("report summary is empty")
	}
	return report, nil
}

func (r *Reasoner) generateJSON(ctx context.Context, prompt string) (string, error) {
	model := r.client.GenerativeModel(r.cfg.Model)
	model.SetTemperature(r.cfg.Temperature)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}
	return cleanJSONBlock(text), nil
}

func suggestQueriesPrompt(signals seo.PageSignals, maxQueries int) (string, error) {
	payload, err := json.Marshal(signals)
	if err != nil {
		return "", fmt.Errorf("marshal page signals: %w", err)
	}
	return fmt.Sprintf(`You are an SEO analyst. Given the structured summary of a website's
homepage below, propose up to %d search queries a potential customer would
type into a search engine to find this site.

Return a JSON array where each element has the fields:
  "query": the search query text,
  "tags": a short list of topical tags,
  "competition_level": "HIGH" or "LOW",
  "confidence": a number between 0 and 1.

Homepage summary:
%s`, maxQueries, payload), nil
}

func reportPrompt(input seo.ReportInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal report input: %w", err)
	}
	return fmt.Sprintf(`You are an SEO analyst. Using the website data below (homepage signals,
tracked search queries, and competitor ranking comparison), write a search
visibility report.

Return a JSON object with the fields:
  "summary": a few paragraphs describing the site's current visibility,
  "suggestions": a list of concrete improvement actions.

Website data:
%s`, payload), nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
