package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/mikeboe/deep-research/pkg/config"
)

// ModelType names a Google AI model.
type ModelType string

// DefaultModel is the default model to use if none is specified
const DefaultModel ModelType = config.GeminiFlashModel

// GoogleAi returns a Gemini client. Per-call model options override model.
func GoogleAi(ctx context.Context, apiKey string, model ModelType) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}
	return llm, nil
}
