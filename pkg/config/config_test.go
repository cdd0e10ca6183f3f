package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/research"
)

func TestDefault_MatchesResearchDefaults(t *testing.T) {
	cfg := Default().ResearchConfig()
	assert.Equal(t, research.DefaultConfig(), cfg)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearModelEnv(t)
	t.Setenv("LLM_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("MODEL_ANALYSIS", "gemini-3-pro-preview")
	t.Setenv("MAX_ITERATIONS", "5")
	t.Setenv("RETRY_DELAY_MS", "250")
	t.Setenv("SEARCH_RATE_LIMIT", "0.5")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("MAX_SEARCH_RESULTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderGoogle, cfg.LLMProvider)
	assert.Equal(t, 0.5, cfg.Search.RateLimit)
	assert.False(t, cfg.MetricsEnabled)

	rc := cfg.ResearchConfig()
	assert.Equal(t, 5, rc.MaxIterations)
	assert.Equal(t, research.DefaultMaxSearchResults, rc.MaxSearchResults)
	assert.Equal(t, 250*time.Millisecond, rc.RetryDelay)
	assert.Equal(t, "gemini-3-pro-preview", rc.Models.Analysis)
	assert.Equal(t, GoogleModels.Report, rc.Models.Report)
	assert.NoError(t, cfg.Validate())
}

func clearModelEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "MODEL_PLANNING", "MODEL_EXTRACTION", "MODEL_ANALYSIS", "MODEL_REPORT"} {
		t.Setenv(key, "")
	}
}

func TestLoad_GoogleProviderUsesGeminiModels(t *testing.T) {
	clearModelEnv(t)
	t.Setenv("LLM_PROVIDER", "google")
	t.Setenv("GOOGLE_API_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	models := cfg.ResearchConfig().Models
	assert.Equal(t, GoogleModels, models)
	for _, role := range research.Roles() {
		assert.False(t, strings.Contains(models.Model(role), "/"), "role %s got %q", role, models.Model(role))
	}
}

func TestLoad_OpenRouterKeepsDefaultModels(t *testing.T) {
	clearModelEnv(t)
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("MODEL_REPORT", "anthropic/claude-3.5-sonnet")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, research.DefaultModels.Planning, cfg.Models.Planning)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", cfg.Models.Report)
}

func TestLoadFile_FillsMissingRolesForProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm_provider: google
google_api_key: g
models:
  report: gemini-2.5-pro
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Models.Report)
	assert.Equal(t, GoogleModels.Planning, cfg.Models.Planning)
	assert.Equal(t, GoogleModels.Analysis, cfg.Models.Analysis)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm_provider: openrouter
openrouter_api_key: file-key
research:
  max_iterations: 2
  max_content_chars: 5000
search:
  provider: tavily
  tavily_api_key: t-key
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_ITERATIONS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.OpenRouterApiKey)
	assert.Equal(t, "tavily", cfg.Search.Provider)
	assert.Equal(t, 5000, cfg.Research.MaxContentChars)
	assert.Equal(t, 4, cfg.Research.MaxIterations, "environment wins over the file")
	assert.Equal(t, research.DefaultMaxRetryAttempts, cfg.Research.MaxRetryAttempts)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("research: [unclosed"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"OpenRouter with key", func(c *Config) { c.OpenRouterApiKey = "k" }, false},
		{"OpenRouter without key", func(c *Config) {}, true},
		{"Google without key", func(c *Config) { c.LLMProvider = ProviderGoogle }, true},
		{"Google with Gemini models", func(c *Config) {
			c.LLMProvider = ProviderGoogle
			c.GoogleApiKey = "k"
			c.Models = GoogleModels
		}, false},
		{"Google with OpenRouter models", func(c *Config) {
			c.LLMProvider = ProviderGoogle
			c.GoogleApiKey = "k"
		}, true},
		{"Unknown provider", func(c *Config) { c.LLMProvider = "bedrock" }, true},
		{"Bad limits", func(c *Config) {
			c.OpenRouterApiKey = "k"
			c.Research.MaxRetryAttempts = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
