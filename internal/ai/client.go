package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wrprafra/newsletter-project/internal/prompts"
)

const (
	maxTitleLen   = 200
	maxSummaryLen = 1200
	maxInputChars = 12000
)

// Summary is the feed-card text generated for one email. Placeholder
// marks a degraded result that must not count toward completeness.
type Summary struct {
	Title           string `json:"title"`
	SummaryMarkdown string `json:"summary_markdown"`
	Placeholder     bool   `json:"-"`
}

// Classification is the closed-vocabulary tagging for one email.
type Classification struct {
	TypeTag  string `json:"type_tag"`
	TopicTag string `json:"topic_tag"`
}

// Client calls an OpenAI-compatible endpoint for enrichment. Failures
// degrade to placeholders or fallbacks; the pipeline never dies on them.
type Client struct {
	client   *resty.Client
	model    string
	endpoint string
}

// Config holds AI client configuration.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewClient creates an AI client.
// Parameters:
//   - cfg: model name, API key and base URL.
// Returns:
//   - *Client: initialized client wrapper.
func NewClient(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Client{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summarize produces a title and Markdown summary for the email content.
// On any failure it returns a placeholder summary, never an error, so the
// record stays visible as "processing" instead of blocking the pipeline.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - content: plain text email content.
// Returns:
//   - Summary: generated or placeholder summary.
func (c *Client) Summarize(ctx context.Context, content string) Summary {
	placeholder := Summary{
		Title:           "Processing...",
		SummaryMarkdown: "_This newsletter is still being processed._",
		Placeholder:     true,
	}

	raw, err := c.complete(ctx, prompts.SummarizeSystemPrompt, prompts.SummarizeUserPrompt+clip(content, maxInputChars), 800, nil)
	if err != nil {
		return placeholder
	}
	obj := FirstJSONObject(raw)
	if obj == "" {
		return placeholder
	}
	var s Summary
	if err := json.Unmarshal([]byte(obj), &s); err != nil || s.Title == "" || s.SummaryMarkdown == "" {
		return placeholder
	}
	s.Title = clip(s.Title, maxTitleLen)
	s.SummaryMarkdown = clip(s.SummaryMarkdown, maxSummaryLen)
	return s
}

// Keyword produces a short English image-search phrase for the content.
// Failures fall back to a frequency-based extraction from the text itself.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - content: plain text email content.
// Returns:
//   - string: 1 to 3 word search phrase, never empty.
func (c *Client) Keyword(ctx context.Context, content string) string {
	raw, err := c.complete(ctx, prompts.KeywordSystemPrompt, prompts.KeywordUserPrompt+clip(content, maxInputChars), 60, nil)
	if err == nil {
		if obj := FirstJSONObject(raw); obj != "" {
			var out struct {
				Keyword string `json:"keyword"`
			}
			if err := json.Unmarshal([]byte(obj), &out); err == nil {
				if kw := SanitizeKeyword(out.Keyword); kw != "" {
					return kw
				}
			}
		}
	}
	return FallbackKeyword(content)
}

// Classify tags the content with a type and topic from the closed
// vocabularies, coercing anything out of vocabulary.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - content: plain text email content.
// Returns:
//   - Classification: always in-vocabulary values.
func (c *Client) Classify(ctx context.Context, content string) Classification {
	fallback := Classification{TypeTag: DefaultType, TopicTag: DefaultTopic}

	zero := 0.0
	raw, err := c.complete(ctx, prompts.ClassifySystemPrompt, prompts.ClassifyUserPrompt+clip(content, maxInputChars), 60, &zero)
	if err != nil {
		return fallback
	}
	obj := FirstJSONObject(raw)
	if obj == "" {
		return fallback
	}
	var cl Classification
	if err := json.Unmarshal([]byte(obj), &cl); err != nil {
		return fallback
	}
	cl.TypeTag = CoerceType(cl.TypeTag)
	cl.TopicTag = CoerceTopic(cl.TopicTag)
	return cl
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int, temperature *float64) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call AI API: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("AI API returned HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	text, err := ExtractOutputText(resp.Body())
	if err != nil {
		return "", err
	}
	return text, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
