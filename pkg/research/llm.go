package research

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Provider is the outbound model collaborator. Implementations make exactly one
// remote call per Generate.
type Provider interface {
	Generate(ctx context.Context, modelID, prompt string) (string, error)
}

// LLMClient routes role calls to the configured model. It never retries.
type LLMClient struct {
	provider Provider
	models   RoleModels
}

func NewLLMClient(provider Provider, models RoleModels) *LLMClient {
	return &LLMClient{provider: provider, models: models}
}

// Model returns the model id used for role.
func (c *LLMClient) Model(role Role) string {
	return c.models.Model(role)
}

// Invoke sends prompt to the model mapped to role.
func (c *LLMClient) Invoke(ctx context.Context, role Role, prompt string) (string, error) {
	model := c.models.Model(role)
	if model == "" {
		return "", &ProviderError{Role: role, Err: fmt.Errorf("no model configured")}
	}

	text, err := c.provider.Generate(ctx, model, prompt)
	if err != nil {
		return "", &ProviderError{Role: role, Model: model, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &MalformedResponseError{Role: role, Reason: "empty response"}
	}
	return text, nil
}

var (
	reFence  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	reObject = regexp.MustCompile(`(?s)\{.*\}`)
	reThink  = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// decodeJSON unmarshals the JSON object embedded in a model answer. Reasoning
// blocks and markdown fences are tolerated.
func decodeJSON(role Role, content string, v any) error {
	s := reThink.ReplaceAllString(content, "")
	if m := reFence.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	obj := reObject.FindString(s)
	if obj == "" {
		return &MalformedResponseError{Role: role, Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return &MalformedResponseError{Role: role, Reason: "invalid JSON", Err: err}
	}
	return nil
}
