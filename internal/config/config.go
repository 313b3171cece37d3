// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	modelProviderPrefix = "anthropic/"
)

// Config holds every setting the agent reads at startup.
type Config struct {
	APIBaseURL            string
	UseStructuredOutput   bool
	Model                 string
	Provider              string
	CompletionBaseURL     string
	APIKey                string
	ParamPrefix           string
	SchemaParam           string
	ExamplesParam         string
	StateTable            string
	MaxTokens             int
	MaxAttempts           int
	MaxQueryLength        int
	MaxSessionGenerations int
	RequestTimeout        time.Duration
	ListenAddr            string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("use_structured_output", true)
	v.SetDefault("litellm_model", "claude-sonnet-4-5")
	v.SetDefault("completion_provider", ProviderAnthropic)
	v.SetDefault("completion_base_url", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("param_prefix", "/a2ui-agent")
	v.SetDefault("schema_param", "")
	v.SetDefault("examples_param", "")
	v.SetDefault("state_table", "")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("max_attempts", 2)
	v.SetDefault("max_query_length", 4000)
	v.SetDefault("max_session_generations", 0)
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("listen_addr", ":8080")
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	provider := strings.ToLower(strings.TrimSpace(v.GetString("completion_provider")))
	cfg := Config{
		APIBaseURL:            strings.TrimSpace(v.GetString("api_base_url")),
		UseStructuredOutput:   v.GetBool("use_structured_output"),
		Model:                 NormalizeModel(v.GetString("litellm_model")),
		Provider:              provider,
		CompletionBaseURL:     strings.TrimSpace(v.GetString("completion_base_url")),
		ParamPrefix:           strings.TrimSpace(v.GetString("param_prefix")),
		SchemaParam:           strings.TrimSpace(v.GetString("schema_param")),
		ExamplesParam:         strings.TrimSpace(v.GetString("examples_param")),
		StateTable:            strings.TrimSpace(v.GetString("state_table")),
		MaxTokens:             v.GetInt("max_tokens"),
		MaxAttempts:           v.GetInt("max_attempts"),
		MaxQueryLength:        v.GetInt("max_query_length"),
		MaxSessionGenerations: v.GetInt("max_session_generations"),
		RequestTimeout:        time.Duration(v.GetInt("request_timeout_seconds")) * time.Second,
		ListenAddr:            strings.TrimSpace(v.GetString("listen_addr")),
	}

	switch provider {
	case ProviderAnthropic:
		cfg.APIKey = strings.TrimSpace(v.GetString("anthropic_api_key"))
	case ProviderOpenAI:
		cfg.APIKey = strings.TrimSpace(v.GetString("openai_api_key"))
	default:
		return Config{}, fmt.Errorf("config: unsupported completion provider %q", provider)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: LITELLM_MODEL must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("config: MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("config: MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.MaxQueryLength <= 0 {
		return fmt.Errorf("config: MAX_QUERY_LENGTH must be positive, got %d", c.MaxQueryLength)
	}
	if c.MaxSessionGenerations < 0 {
		return fmt.Errorf("config: MAX_SESSION_GENERATIONS must not be negative, got %d", c.MaxSessionGenerations)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.APIKey == "" && c.ParamPrefix == "" {
		return fmt.Errorf("config: PARAM_PREFIX is required when no API key is set")
	}
	return nil
}

// NormalizeModel strips the "anthropic/" routing prefix from a model id.
func NormalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), modelProviderPrefix)
}
