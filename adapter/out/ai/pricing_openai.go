// Package ai adapts the OpenAI chat API to the price extraction oracle port.
package ai

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pricing_server/core/port/out"
	"pricing_server/pkg/apperr"
	"pricing_server/pkg/logger"
)

const DefaultModel = "gpt-4o-mini"

// Config holds oracle client settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Extractor calls the chat API in JSON mode behind a circuit breaker. The
// answer stays untrusted: grounding validation happens in the core, not here.
type Extractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	breaker     *gobreaker.CircuitBreaker
	log         *logger.Logger
}

var _ out.AIExtractor = (*Extractor)(nil)

// newOracleBreaker builds the circuit breaker guarding oracle calls.
func newOracleBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 3,                // probes allowed while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     30 * time.Second, // open duration before half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithField("breaker", name).
				Warn("circuit breaker state changed from %s to %s", from.String(), to.String())
		},
	})
}

// NewExtractor creates the oracle client.
func NewExtractor(cfg Config) *Extractor {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Extractor{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		breaker:     newOracleBreaker(),
		log:         logger.WithField("component", "ai_extractor"),
	}
}

const systemPrompt = `You extract publisher pricing for paid content placement from email evidence.
Rules:
- Only report prices explicitly stated in the content for the target domain.
- If the content states no price for the target domain, return {"found": false}.
- Never guess, never average, never borrow a price quoted for a different domain.
- guest_post_price, link_insertion_price, sponsored_post_price, homepage_link_price and casino_price are numbers or null.
- casino_price is the separate price for gambling/casino content when one is stated.
- casino_accepted is true/false only when the content says so explicitly, otherwise null.
- currency is the ISO code implied by the content (e.g. USD, EUR, GBP), confidence is 0..1.
- Respond with a single JSON object and nothing else.`

// ExtractForDomain asks the oracle for prices stated in the content for the
// target domain.
func (e *Extractor) ExtractForDomain(ctx context.Context, content, targetDomain string) (*out.AIExtraction, error) {
	var b strings.Builder
	b.WriteString("Target domain: " + targetDomain + "\n\n")
	b.WriteString("Email evidence:\n---\n")
	b.WriteString(content)
	b.WriteString("\n---\n")
	b.WriteString(`Return JSON: {"found", "guest_post_price", "link_insertion_price", "sponsored_post_price", "homepage_link_price", "casino_price", "casino_accepted", "currency", "confidence", "notes"}`)

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       e.model,
			MaxTokens:   e.maxTokens,
			Temperature: e.temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: b.String()},
			},
		})
	})
	if err != nil {
		return nil, apperr.CollaboratorUnavailable("openai", err)
	}

	resp := result.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return &out.AIExtraction{Found: false}, nil
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var extraction out.AIExtraction
	if err := json.Unmarshal([]byte(raw), &extraction); err != nil {
		// Malformed oracle output is no evidence, not an error.
		e.log.WithError(err).Warn("oracle returned unparseable JSON for %s", targetDomain)
		return &out.AIExtraction{Found: false}, nil
	}
	return &extraction, nil
}
