package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	RequireKey  bool
	HTTPClient  *http.Client
}

// OpenAICompatible talks to any chat-completions endpoint that follows the
// OpenAI wire format: OpenAI itself, DeepSeek and LM Studio.
type OpenAICompatible struct {
	name        string
	model       string
	temperature float32
	client      *openai.Client
}

func NewOpenAICompatible(cfg OpenAIConfig) (*OpenAICompatible, error) {
	name := strings.TrimSpace(cfg.Provider)
	if name == "" {
		name = "OpenAI"
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if cfg.RequireKey && apiKey == "" {
		return nil, configurationError(name, "api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, configurationError(name, "base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, configurationError(name, "model is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &OpenAICompatible{
		name:        name,
		model:       model,
		temperature: float32(cfg.Temperature),
		client:      openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (c *OpenAICompatible) Name() string  { return c.name }
func (c *OpenAICompatible) Model() string { return c.model }

func (c *OpenAICompatible) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", responseFormatError(c.name, errors.New("response contained no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classify separates replies the client could not decode from failures to
// reach the provider or error statuses returned by it.
func (c *OpenAICompatible) classify(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return responseFormatError(c.name, err)
	}
	return transportError(c.name, err)
}
