package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kirillkom/benefit-finder/internal/core/ports"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/resilience"
)

// Generator implements ports.Generator on the chat completions API of
// OpenAI or any compatible server.
type Generator struct {
	client   *openai.Client
	model    string
	executor *resilience.Executor
}

func NewGenerator(apiKey, baseURL, model string, executor *resilience.Executor) *Generator {
	if apiKey == "" {
		apiKey = "unused"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Generator{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		executor: executor,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stop:        opts.Stop,
	}

	resp, err := resilience.Do(ctx, g.executor, "openai.chat", func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return g.client.CreateChatCompletion(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return "", resilience.WrapTemporary("openai chat completion", fmt.Errorf("openai chat completion: %w", err), classifyOpenAIError)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return resilience.ClassifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return resilience.ClassifyStatus(reqErr.HTTPStatusCode)
	}
	return resilience.ClassifyHTTP(err)
}
