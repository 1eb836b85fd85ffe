// Package llm generates filing summaries with an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/finsum/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed wraps any failure of the chat completion call.
var ErrGenerationFailed = errors.New("generation failed")

// SystemPrompt instructs the model to summarize only from the supplied context.
const SystemPrompt = `You are a document summarization assistant for SEC 10-K filings.

Guidelines:
- Summarize using ONLY information from the provided context
- Write in clear, professional prose
- If information is not in the context, state: "This information was not found in the provided sections."
- Do not infer, calculate, or make predictions beyond the text
- Do not provide financial advice
`

// Generator answers a query from retrieved context.
type Generator interface {
	Generate(ctx context.Context, query, passages string) (string, error)
}

// ChatGenerator is a Generator backed by a chat completion endpoint (Mistral by default).
type ChatGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// Option configures a ChatGenerator.
type Option func(*ChatGenerator)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(g *ChatGenerator) { g.logger = l }
}

// NewChatGenerator creates a generator from cfg. The API key is read from the environment
// variable named by cfg.APIKeyEnv.
func NewChatGenerator(cfg config.LLMConfig, opts ...Option) (*ChatGenerator, error) {
	key := config.APIKey(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	g := &ChatGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// UserMessage formats the user turn sent with the system prompt.
func UserMessage(query, passages string) string {
	return fmt.Sprintf("Context:\n%s\n\n---\n\nQuestion: %s", passages, query)
}

// Generate sends the system prompt and the query with its context, and returns the first choice.
func (g *ChatGenerator) Generate(ctx context.Context, query, passages string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserMessage(query, passages)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGenerationFailed)
	}
	g.logger.Debug("generated summary",
		zap.String("model", g.model),
		zap.Int("context_chars", len(passages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
