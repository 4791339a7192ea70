package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/inventariopro/inventariopro/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// Prompt is one system+user exchange sent to a text generator.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

var ErrEmptyCompletion = errors.New("assistant: empty completion")

// OpenAIGenerator talks to any OpenAI compatible chat completion API
// (OpenAI itself or OpenRouter, depending on BaseURL).
type OpenAIGenerator struct {
	Client      *openai.Client
	Model       string
	Temperature float32
	MaxTokens   int
}

func NewOpenAIGenerator(cfg config.AIConfig) *OpenAIGenerator {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIGenerator{
		Client:      openai.NewClientWithConfig(oc),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// Generate sends p as a system and a user message. A zero Temperature or
// MaxTokens in p falls back to the generator's defaults.
func (g *OpenAIGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.MaxTokens
	}
	temperature := p.Temperature
	if temperature == 0 {
		temperature = g.Temperature
	}
	req := openai.ChatCompletionRequest{
		Model:       g.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}
	resp, err := g.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}
