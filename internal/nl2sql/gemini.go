package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiName = "Gemini"

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	// Endpoint overrides the API host; empty uses the public endpoint.
	Endpoint string
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini calls Google's generative language API. A model handle is derived
// per call so the system instruction is never shared between requests.
type Gemini struct {
	model    string
	client   *genai.Client
	newModel func(system string) contentGenerator
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, configurationError(geminiName, "api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, configurationError(geminiName, "model is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, configurationError(geminiName, "create client: %w", err)
	}

	temperature := float32(cfg.Temperature)
	return &Gemini{
		model:  model,
		client: client,
		newModel: func(system string) contentGenerator {
			m := client.GenerativeModel(model)
			m.SetTemperature(temperature)
			if system != "" {
				m.SystemInstruction = genai.NewUserContent(genai.Text(system))
			}
			return m
		},
	}, nil
}

func (g *Gemini) Name() string  { return geminiName }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.newModel(system).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", responseFormatError(geminiName, err)
		}
		return "", transportError(geminiName, err)
	}
	return geminiText(resp)
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", responseFormatError(geminiName, errors.New("response contained no candidates"))
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", responseFormatError(geminiName, fmt.Errorf("candidate has no content (finish reason %s)", candidate.FinishReason))
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", responseFormatError(geminiName, errors.New("candidate has no text parts"))
	}
	return b.String(), nil
}
