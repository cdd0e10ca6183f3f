package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Config is the service configuration. Values come from an optional YAML file
// and are overridden by environment variables.
type Config struct {
	LLMProvider       string `yaml:"llm_provider"`
	OpenRouterApiKey  string `yaml:"openrouter_api_key"`
	OpenRouterBaseURL string `yaml:"openrouter_base_url"`
	GoogleApiKey      string `yaml:"google_api_key"`
	ChatModel         string `yaml:"chat_model"`

	// Models maps each pipeline role to a model id. Roles left empty get the
	// selected provider's defaults.
	Models   research.RoleModels `yaml:"models"`
	Research ResearchConfig      `yaml:"research"`
	Search   SearchConfig        `yaml:"search"`

	Port           string `yaml:"port"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	LogFormat      string `yaml:"log_format"`
}

type ResearchConfig struct {
	MaxIterations    int `yaml:"max_iterations"`
	MaxSearchResults int `yaml:"max_search_results"`
	MaxContentChars  int `yaml:"max_content_chars"`
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
	RetryDelayMS     int `yaml:"retry_delay_ms"`
}

type SearchConfig struct {
	Provider      string  `yaml:"provider"`
	TavilyApiKey  string  `yaml:"tavily_api_key"`
	RateLimit     float64 `yaml:"rate_limit"`
	MistralApiKey string  `yaml:"mistral_api_key"`
}

const (
	ProviderOpenRouter = "openrouter"
	ProviderGoogle     = "google"

	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	GeminiFlashModel = "gemini-3-flash-preview"
	GeminiProModel   = "gemini-3-pro-preview"
	DefaultChatModel = GeminiFlashModel
)

// GoogleModels are the role defaults for the google provider: Flash for the
// per-source roles, Pro for analysis and the report.
var GoogleModels = research.RoleModels{
	Planning:   GeminiFlashModel,
	Extraction: GeminiFlashModel,
	Analysis:   GeminiProModel,
	Report:     GeminiProModel,
}

// DefaultModelsFor returns the role defaults for provider.
func DefaultModelsFor(provider string) research.RoleModels {
	if provider == ProviderGoogle {
		return GoogleModels
	}
	return research.DefaultModels
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := base()
	cfg.fillModels()
	return cfg
}

// base is Default without role models, which depend on the final provider.
func base() *Config {
	return &Config{
		LLMProvider:       ProviderOpenRouter,
		OpenRouterBaseURL: DefaultOpenRouterBaseURL,
		ChatModel:         DefaultChatModel,
		Research: ResearchConfig{
			MaxIterations:    research.DefaultMaxIterations,
			MaxSearchResults: research.DefaultMaxSearchResults,
			MaxContentChars:  research.DefaultMaxContentChars,
			MaxRetryAttempts: research.DefaultMaxRetryAttempts,
			RetryDelayMS:     int(research.DefaultRetryDelay / time.Millisecond),
		},
		Search: SearchConfig{
			Provider:  "duckduckgo",
			RateLimit: 1,
		},
		Port:           "8081",
		MetricsEnabled: true,
		LogFormat:      "text",
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the environment.
func Load() (*Config, error) {
	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	cfg := base()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.fillModels()
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := base()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.fillModels()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.OpenRouterApiKey = getEnv("OPENROUTER_API_KEY", c.OpenRouterApiKey)
	c.OpenRouterBaseURL = getEnv("OPENROUTER_BASE_URL", c.OpenRouterBaseURL)
	c.GoogleApiKey = getEnv("GOOGLE_API_KEY", c.GoogleApiKey)
	c.ChatModel = getEnv("CHAT_MODEL", c.ChatModel)

	c.Models.Planning = getEnv("MODEL_PLANNING", c.Models.Planning)
	c.Models.Extraction = getEnv("MODEL_EXTRACTION", c.Models.Extraction)
	c.Models.Analysis = getEnv("MODEL_ANALYSIS", c.Models.Analysis)
	c.Models.Report = getEnv("MODEL_REPORT", c.Models.Report)

	c.Research.MaxIterations = getEnvAsInt("MAX_ITERATIONS", c.Research.MaxIterations)
	c.Research.MaxSearchResults = getEnvAsInt("MAX_SEARCH_RESULTS", c.Research.MaxSearchResults)
	c.Research.MaxContentChars = getEnvAsInt("MAX_CONTENT_CHARS", c.Research.MaxContentChars)
	c.Research.MaxRetryAttempts = getEnvAsInt("MAX_RETRY_ATTEMPTS", c.Research.MaxRetryAttempts)
	c.Research.RetryDelayMS = getEnvAsInt("RETRY_DELAY_MS", c.Research.RetryDelayMS)

	c.Search.Provider = getEnv("SEARCH_PROVIDER", c.Search.Provider)
	c.Search.TavilyApiKey = getEnv("TAVILY_API_KEY", c.Search.TavilyApiKey)
	c.Search.RateLimit = getEnvAsFloat("SEARCH_RATE_LIMIT", c.Search.RateLimit)
	c.Search.MistralApiKey = getEnv("MISTRAL_API_KEY", c.Search.MistralApiKey)

	c.Port = getEnv("PORT", c.Port)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// fillModels sets every role without a model to the provider default. It runs
// once the provider is known, so LLM_PROVIDER=google alone is enough.
func (c *Config) fillModels() {
	c.Models = c.Models.WithDefaults(DefaultModelsFor(c.LLMProvider))
}

// ResearchConfig converts the settings into the engine's configuration.
func (c *Config) ResearchConfig() research.Config {
	return research.Config{
		MaxIterations:    c.Research.MaxIterations,
		MaxSearchResults: c.Research.MaxSearchResults,
		MaxContentChars:  c.Research.MaxContentChars,
		MaxRetryAttempts: c.Research.MaxRetryAttempts,
		RetryDelay:       time.Duration(c.Research.RetryDelayMS) * time.Millisecond,
		Models:           c.Models,
	}
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenRouter:
		if c.OpenRouterApiKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderGoogle:
		if c.GoogleApiKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for provider %q", c.LLMProvider)
		}
		// OpenRouter ids are vendor/model; Gemini would reject them on every call.
		for _, role := range research.Roles() {
			if id := c.Models.Model(role); strings.Contains(id, "/") {
				return fmt.Errorf("model %q for role %s is not a Google model id", id, role)
			}
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return c.ResearchConfig().Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
