// Package llmclient implements the LLM Client (spec.md §4.3, C3): three
// prompted analyses posted to an external chat-completion endpoint behind a
// circuit breaker, with a degraded canned-response fallback when the
// endpoint is unreachable or unconfigured. A failed call is not retried: it
// returns the canned response at once. The client shape follows otto's
// internal/llm/client.go CopilotClient, adapted from a stateful multi-turn
// session API to the stateless single-prompt calls this service needs, and
// talks to Anthropic's API directly rather than through otto's bespoke
// Copilot SDK.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4000
	callTimeout        = 30 * time.Second
)

// QualityResult is analyzeQuality's return shape (spec.md §4.3).
type QualityResult struct {
	Score       float64       `json:"score"`
	Issues      []IssueRecord `json:"issues"`
	Suggestions []string      `json:"suggestions"`
	Metrics     QualityMetrics `json:"metrics"`

	// Populated by the File Analyzer from C4, not by the LLM itself (spec.md
	// §4.5 step 3).
	SemanticDuplicates int     `json:"semantic_duplicates"`
	DuplicationScore    float64 `json:"duplication_score"`
	CodeBlocksAnalyzed  int     `json:"code_blocks_analyzed"`
}

// QualityMetrics is the sub-object analyzeQuality reports (spec.md §4.3).
type QualityMetrics struct {
	Maintainability float64 `json:"maintainability"`
	Readability     float64 `json:"readability"`
	Complexity      float64 `json:"complexity"`
}

// IssueRecord is the raw shape returned by analyzeQuality/analyzeSecurity
// before C5 normalizes it into models.Issue.
type IssueRecord struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Line           *int   `json:"line"`
	Recommendation string `json:"recommendation"`
}

// Suggestion is one entry from generateSuggestions (spec.md §4.3).
type Suggestion struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Line        *int   `json:"line"`
	Example     string `json:"example,omitempty"`
}

// Config configures the Client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client performs the three prompted analyses against Anthropic's API,
// degrading to canned neutral responses when unconfigured or unreachable.
type Client struct {
	sdk         *anthropic.Client
	model       string
	temperature float64
	maxTokens   int
	degraded    bool
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

// New builds a Client. An empty APIKey puts the client permanently into
// degraded mode rather than returning an error, per spec.md §4.3's
// "deliberate decision: analysis must always make forward progress".
func New(cfg Config, logger *zap.Logger) *Client {
	c := &Client{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
	if c.temperature == 0 {
		c.temperature = defaultTemperature
	}
	if c.maxTokens == 0 {
		c.maxTokens = defaultMaxTokens
	}
	if cfg.APIKey == "" {
		c.degraded = true
		return c
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	c.sdk = &client

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llmclient",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// AnalyzeQuality runs the quality rubric prompt.
func (c *Client) AnalyzeQuality(ctx context.Context, fileContent, filePath, language string) QualityResult {
	if c.degraded {
		return degradedQuality()
	}
	text, err := c.complete(ctx, qualitySystemPrompt, qualityUserPrompt(fileContent, filePath, language))
	if err != nil {
		c.logDegrade("quality", err)
		return degradedQuality()
	}
	var result QualityResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		// Wrap the raw text into a single-element structure so downstream
		// aggregation still succeeds, per spec.md §4.3.
		return QualityResult{
			Score:   5,
			Issues:  []IssueRecord{{Type: "bug", Severity: "low", Title: "unstructured LLM response", Description: text}},
			Metrics: QualityMetrics{Maintainability: 5, Readability: 5, Complexity: 5},
		}
	}
	return result
}

// AnalyzeSecurity runs the security rubric prompt.
func (c *Client) AnalyzeSecurity(ctx context.Context, fileContent, filePath, language string) []IssueRecord {
	if c.degraded {
		return degradedIssues()
	}
	text, err := c.complete(ctx, securitySystemPrompt, securityUserPrompt(fileContent, filePath, language))
	if err != nil {
		c.logDegrade("security", err)
		return degradedIssues()
	}
	var issues []IssueRecord
	if err := json.Unmarshal([]byte(extractJSON(text)), &issues); err != nil {
		return []IssueRecord{{Type: "bug", Severity: "low", Title: "unstructured LLM response", Description: text}}
	}
	return issues
}

// GenerateSuggestions runs the suggestions rubric prompt.
func (c *Client) GenerateSuggestions(ctx context.Context, fileContent, filePath, language string) []Suggestion {
	if c.degraded {
		return nil
	}
	text, err := c.complete(ctx, suggestionsSystemPrompt, suggestionsUserPrompt(fileContent, filePath, language))
	if err != nil {
		c.logDegrade("suggestions", err)
		return nil
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(extractJSON(text)), &suggestions); err != nil {
		return []Suggestion{{Type: "general", Priority: "low", Title: "unstructured LLM response", Description: text}}
	}
	return suggestions
}

func (c *Client) logDegrade(call string, err error) {
	if c.logger != nil {
		c.logger.Warn("llmclient: call failed, degrading to canned response", zap.String("call", call), zap.Error(err))
	}
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	v, err := c.breaker.Execute(func() (any, error) {
		msg, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(c.model),
			MaxTokens:   int64(c.maxTokens),
			Temperature: anthropic.Float(c.temperature),
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("llmclient: completion request: %w", err)
		}
		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// extractJSON trims markdown code fences some models wrap JSON responses in.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func degradedQuality() QualityResult {
	return QualityResult{
		Score: 5,
		Issues: []IssueRecord{{
			Type:        "best_practice",
			Severity:    "info",
			Title:       "Analysis running in degraded mode",
			Description: "The language model endpoint is unavailable; this result is a neutral placeholder.",
		}},
		Metrics: QualityMetrics{Maintainability: 5, Readability: 5, Complexity: 5},
	}
}

func degradedIssues() []IssueRecord {
	return []IssueRecord{{
		Type:        "best_practice",
		Severity:    "info",
		Title:       "Analysis running in degraded mode",
		Description: "The language model endpoint is unavailable; this result is a neutral placeholder.",
	}}
}
