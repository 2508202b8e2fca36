package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ProviderConfig represents configuration for a single LLM provider.
type ProviderConfig struct {
	Options ProviderOptions `yaml:"options" json:"options"`
}

// ProviderOptions contains the SDK-level options for a provider.
type ProviderOptions struct {
	APIKey           string  `yaml:"apiKey" json:"apiKey" envconfig:"API_KEY"`
	BaseURL          string  `yaml:"baseURL" json:"baseURL" envconfig:"BASE_URL"`
	Model            string  `yaml:"model" json:"model" envconfig:"MODEL"`
	ProjectID        string  `yaml:"projectID" json:"projectID" envconfig:"PROJECT_ID"` // For Vertex AI
	Location         string  `yaml:"location" json:"location" envconfig:"LOCATION"`     // For Vertex AI
	Temperature      float64 `yaml:"temperature" json:"temperature" envconfig:"TEMP"`
	TopP             float64 `yaml:"top_p" json:"top_p" envconfig:"TOP_P"`
	FrequencyPenalty float64 `yaml:"frequency_penalty" json:"frequency_penalty" envconfig:"FREQUENCY_PENALTY"`
	PresencePenalty  float64 `yaml:"presence_penalty" json:"presence_penalty" envconfig:"PRESENCE_PENALTY"`
	MaxTokens        int     `yaml:"max_tokens" json:"max_tokens" envconfig:"MAX_TOKENS"`
}

// DefaultDataDir is the durable store location when none is configured.
const DefaultDataDir = ".atelier-data"

// HTTPConfig contains HTTP API related settings.
type HTTPConfig struct {
	Enable bool   `yaml:"enable" envconfig:"ENABLE"`
	Addr   string `yaml:"addr" envconfig:"ADDR"`
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	// DataDir is the root directory of the durable store.
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

// AgentConfig contains orchestration loop settings.
type AgentConfig struct {
	// MaxToolCalls is the user iteration setting the budget derives from.
	MaxToolCalls int `yaml:"max_tool_calls" envconfig:"MAX_TOOL_CALLS"`
	// HistoryWindow is the recent-message window submitted to the model.
	HistoryWindow int `yaml:"history_window" envconfig:"HISTORY_WINDOW"`
}

// Config is the root configuration structure.
type Config struct {
	// ActiveProvider explicitly sets the active provider (optional).
	// If not set, auto-detection is used based on available API keys.
	ActiveProvider string `yaml:"active_provider" envconfig:"ACTIVE_PROVIDER"`

	// LogLevel controls structured logging verbosity (DEBUG, INFO, WARN, ERROR).
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// Providers is a map of provider ID to its configuration.
	Providers map[string]ProviderConfig `yaml:"provider"`

	// Agent loop settings.
	Agent AgentConfig `yaml:"agent" envconfig:"AGENT"`

	// Persistence settings.
	Store StoreConfig `yaml:"store" envconfig:"STORE"`

	// HTTP server settings.
	HTTP HTTPConfig `yaml:"http" envconfig:"HTTP"`
}

// ProviderEnvVars maps provider IDs to their environment variable names for auto-detection.
// The first env var in the list that is set will be used.
var ProviderEnvVars = map[string]struct {
	APIKey  []string
	BaseURL []string
	Model   []string
}{
	"gemini": {
		APIKey: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		Model:  []string{"GEMINI_MODEL"},
	},
	"openai": {
		APIKey:  []string{"OPENAI_API_KEY"},
		BaseURL: []string{"OPENAI_API_BASE", "OPENAI_BASE_URL"},
		Model:   []string{"OPENAI_MODEL"},
	},
	"deepseek": {
		APIKey: []string{"DEEPSEEK_API_KEY"},
		Model:  []string{"DEEPSEEK_MODEL"},
	},
}

// ProviderDefaults contains default options for each provider.
var ProviderDefaults = map[string]ProviderOptions{
	"gemini": {
		Model: "gemini-2.0-flash",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
}

// GetActiveProvider returns the active provider ID and its configuration.
// Priority: ActiveProvider field > First provider with API key in env > First configured provider.
func (c *Config) GetActiveProvider() (string, ProviderOptions, error) {
	// 1. Explicit ActiveProvider
	if c.ActiveProvider != "" {
		if p, ok := c.Providers[c.ActiveProvider]; ok {
			opts := mergeOptions(ProviderDefaults[c.ActiveProvider], p.Options)
			return c.ActiveProvider, opts, nil
		}
		if opts, ok := c.detectProviderFromEnv(c.ActiveProvider); ok {
			return c.ActiveProvider, opts, nil
		}
		return "", ProviderOptions{}, fmt.Errorf("active provider %q not configured", c.ActiveProvider)
	}

	// 2. Auto-detect from environment variables
	for _, providerID := range []string{"openai", "gemini", "deepseek"} {
		opts, ok := c.detectProviderFromEnv(providerID)
		if !ok {
			continue
		}
		return providerID, opts, nil
	}

	// 3. First configured provider with API key
	for providerID, p := range c.Providers {
		if p.Options.APIKey != "" {
			opts := mergeOptions(ProviderDefaults[providerID], p.Options)
			return providerID, opts, nil
		}
	}

	return "", ProviderOptions{}, fmt.Errorf("no provider configured or detected")
}

// detectProviderFromEnv checks if a provider can be configured from environment variables.
func (c *Config) detectProviderFromEnv(providerID string) (ProviderOptions, bool) {
	envVars, ok := ProviderEnvVars[providerID]
	if !ok {
		return ProviderOptions{}, false
	}

	var apiKey string
	for _, envVar := range envVars.APIKey {
		if v := os.Getenv(envVar); v != "" {
			apiKey = v
			break
		}
	}
	if apiKey == "" {
		return ProviderOptions{}, false
	}

	opts := ProviderDefaults[providerID]
	opts.APIKey = apiKey

	for _, envVar := range envVars.BaseURL {
		if v := os.Getenv(envVar); v != "" {
			opts.BaseURL = v
			break
		}
	}
	for _, envVar := range envVars.Model {
		if v := os.Getenv(envVar); v != "" {
			opts.Model = v
			break
		}
	}

	if p, ok := c.Providers[providerID]; ok {
		opts = mergeOptions(opts, p.Options)
	}

	return opts, true
}

// mergeOptions merges two ProviderOptions, with 'override' taking precedence.
func mergeOptions(base, override ProviderOptions) ProviderOptions {
	result := base
	if override.APIKey != "" {
		result.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	if override.ProjectID != "" {
		result.ProjectID = override.ProjectID
	}
	if override.Location != "" {
		result.Location = override.Location
	}
	// 0.0 doubles as "unset" for the sampling floats; callers needing an
	// exact zero would need a pointer refactor.
	if override.Temperature > 0 {
		result.Temperature = override.Temperature
	}
	if override.TopP > 0 {
		result.TopP = override.TopP
	}
	if override.FrequencyPenalty != 0 {
		result.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != 0 {
		result.PresencePenalty = override.PresencePenalty
	}
	if override.MaxTokens != 0 {
		result.MaxTokens = override.MaxTokens
	}
	return result
}

// Load reads configuration from the specified path, or defaults if path is empty.
// Priority: Env Vars > Config File > Defaults
func Load(path string) (*Config, error) {
	// Try loading .env files (ignore error if not present)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			defaultPath := filepath.Join(home, ".atelier", "config.yaml")
			if _, err := os.Stat(defaultPath); err == nil {
				path = defaultPath
			}
		}

		localPath := "config.yaml"
		if _, err := os.Stat(localPath); err == nil {
			path = localPath
		}
	}

	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Env Vars (ATELIER_ prefix) override values from the config file
	if err := envconfig.Process("ATELIER", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	// Apply Defaults
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = DefaultDataDir
	}

	return cfg, nil
}
