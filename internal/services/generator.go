package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeneratorConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator talks to any OpenAI-compatible chat completion endpoint.
// The default base URL points at Gemini's compatibility layer.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIGenerator(apiKey string, cfg GeneratorConfig) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// GeneratorFactory returns a constructor binding cfg, suitable for ComposerFor.
func GeneratorFactory(cfg GeneratorConfig) func(apiKey string) TextGenerator {
	return func(apiKey string) TextGenerator {
		return NewOpenAIGenerator(apiKey, cfg)
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("erro na API de IA: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("resposta vazia da IA")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
