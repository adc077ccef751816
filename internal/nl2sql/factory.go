package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/config"
)

var providerNames = map[string]string{
	config.ProviderOpenAI:   "OpenAI",
	config.ProviderDeepSeek: "DeepSeek",
	config.ProviderLMStudio: "LM Studio",
	config.ProviderGemini:   geminiName,
}

// ProviderName returns the display name used in messages for a provider id.
func ProviderName(provider string) string {
	if name, ok := providerNames[provider]; ok {
		return name
	}
	return provider
}

// NewBackend constructs the backend selected by cfg.Provider. A missing
// credential is reported before any network traffic.
func NewBackend(ctx context.Context, cfg config.AIConfig) (Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderLMStudio:
		return NewOpenAICompatible(OpenAIConfig{
			Provider:    ProviderName(provider),
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			RequireKey:  provider != config.ProviderLMStudio,
			HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		})
	case config.ProviderGemini:
		return NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Endpoint:    cfg.BaseURL,
		})
	default:
		return nil, &Error{Kind: KindConfiguration, Provider: cfg.Provider, Err: fmt.Errorf("unsupported provider %q", cfg.Provider)}
	}
}
