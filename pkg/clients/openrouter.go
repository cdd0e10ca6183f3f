package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// OpenRouter returns an OpenAI-compatible client pointed at OpenRouter.
func OpenRouter(apiKey, baseURL, defaultModel string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(defaultModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter client: %w", err)
	}
	return llm, nil
}
