package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/config"
)

// LLMProvider adapts a langchaingo model to research.Provider. The model id is
// chosen per call so one client serves every pipeline role.
type LLMProvider struct {
	Name        string
	llm         llms.Model
	temperature float64
}

func NewLLMProvider(name string, llm llms.Model) *LLMProvider {
	return &LLMProvider{Name: name, llm: llm, temperature: 0.2}
}

// Generate sends a single prompt and returns the text of the first choice.
func (p *LLMProvider) Generate(ctx context.Context, modelID, prompt string) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithModel(modelID), llms.WithTemperature(p.temperature))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices for model %s", p.Name, modelID)
	}
	return resp.Choices[0].Content, nil
}

// New builds the provider selected by cfg.LLMProvider.
func New(ctx context.Context, cfg *config.Config) (*LLMProvider, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenRouter:
		llm, err := OpenRouter(cfg.OpenRouterApiKey, cfg.OpenRouterBaseURL, cfg.Models.Planning)
		if err != nil {
			return nil, err
		}
		return NewLLMProvider(config.ProviderOpenRouter, llm), nil
	case config.ProviderGoogle:
		llm, err := GoogleAi(ctx, cfg.GoogleApiKey, ModelType(cfg.Models.Planning))
		if err != nil {
			return nil, err
		}
		return NewLLMProvider(config.ProviderGoogle, llm), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
