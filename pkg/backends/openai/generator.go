// Package openai implements the text generation backend on top of the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = goopenai.GPT4oMini
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 2048
)

var ErrEmptyResponse = errors.New("openai returned no choices")

// ChatClient is the subset of *goopenai.Client the generator needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Generator struct {
	client       ChatClient
	model        string
	temperature  float32
	maxTokens    int
	systemPrompt string
	maxAttempts  int
	baseWait     time.Duration
	logger       *slog.Logger
}

type Option func(*Generator)

func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

func WithTemperature(temperature float32) Option {
	return func(g *Generator) {
		g.temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(g *Generator) {
		g.maxTokens = maxTokens
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) {
		g.systemPrompt = prompt
	}
}

// WithRetry sets how many attempts are made for retryable API errors and the first backoff.
func WithRetry(attempts int, baseWait time.Duration) Option {
	return func(g *Generator) {
		if attempts > 0 {
			g.maxAttempts = attempts
		}

		g.baseWait = baseWait
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a generator talking to the OpenAI API (or a compatible endpoint when baseURL is set).
func New(apiKey string, baseURL string, opts ...Option) *Generator {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return NewWithClient(goopenai.NewClientWithConfig(config), opts...)
}

func NewWithClient(client ChatClient, opts ...Option) *Generator {
	g := &Generator{
		client:      client,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		maxAttempts: defaultMaxAttempts,
		baseWait:    defaultBaseWait,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	g.logger = g.logger.With("module", "openai_generator", "model", g.model)

	return g
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: g.systemPrompt,
		})
	}

	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	request := goopenai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	var response goopenai.ChatCompletionResponse

	err := withRetry(ctx, g.maxAttempts, g.baseWait, func() error {
		var err error

		response, err = g.client.CreateChatCompletion(ctx, request)
		if err != nil {
			g.logger.WarnContext(ctx, "Chat completion attempt failed", "error", err)
		}

		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
