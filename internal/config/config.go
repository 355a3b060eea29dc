// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.setlistai/config.yaml or ./config.yaml)
//  3. Default values
//
// A local .env file is loaded into the environment first, so API keys can
// live next to the checkout during development.
//
// Validation uses sentinel errors for Go-idiomatic checking with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidTopK indicates the retrieval top-K value is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidMaxSetlists indicates the per-artist setlist cap is out of range.
	ErrInvalidMaxSetlists = errors.New("invalid max setlists per artist")

	// ErrInvalidContextBudget indicates the prompt context budget is too small.
	ErrInvalidContextBudget = errors.New("invalid context budget")
)

// Defaults for model selection and retrieval behavior.
const (
	// DefaultEmbedderModel is the embedding model requested from the
	// OpenAI-compatible API.
	DefaultEmbedderModel = "text-embedding-3-small"

	// DefaultModelName is the chat-completion model.
	DefaultModelName = "gpt-4o-mini"

	// DefaultTopK is the number of nearest neighbours retrieved per query.
	DefaultTopK = 5

	// DefaultMaxSetlists caps collection per artist during setup.
	DefaultMaxSetlists = 100

	// DefaultContextBudget bounds the retrieved-context block, in characters.
	DefaultContextBudget = 6000

	// MaxTopK is the upper bound accepted for top_k.
	MaxTopK = 50
)

// Config stores application configuration.
// SENSITIVE: API keys come from the environment only and are never written
// back to the config file.
type Config struct {
	// API keys
	SetlistFMAPIKey string `mapstructure:"setlistfm_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`

	// Local state layout. All persisted state lives under DataDir.
	DataDir string `mapstructure:"data_dir"`

	// Model configuration
	EmbedderModel string  `mapstructure:"embedder_model"`
	ModelName     string  `mapstructure:"model_name"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`

	// Retrieval configuration
	TopK          int `mapstructure:"top_k"`
	ContextBudget int `mapstructure:"context_budget"`

	// Collection configuration
	MaxSetlistsPerArtist int `mapstructure:"max_setlists_per_artist"`
}

// DatabasePath returns the SQLite database file path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "setlistai.db")
}

// VectorDir returns the persistent vector index directory.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "chroma")
}

// RawDir returns the directory for raw API responses.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, "raw")
}

// ProcessedDir returns the directory for normalized setlist JSON.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataDir, "processed")
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Best-effort .env load; a missing file is the common case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("skipping .env", "error", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".setlistai")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 500)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("context_budget", DefaultContextBudget)

	v.SetDefault("max_setlists_per_artist", DefaultMaxSetlists)
}

// bindEnvVariables binds the secret environment variables explicitly.
// Only two secrets exist: the concert-listing key and the AI provider key.
func bindEnvVariables(v *viper.Viper) {
	// Errors only occur for empty keys; keys here are compile-time constants.
	_ = v.BindEnv("setlistfm_api_key", "SETLISTFM_API_KEY")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
}

// Validate performs fail-fast range checks on the configuration.
// API key presence is checked separately per command: setup needs both
// keys, query only needs the AI provider key.
func (c *Config) Validate() error {
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %g (must be 0-2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: %d (must be 1-32768)", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.MaxSetlistsPerArtist < 1 || c.MaxSetlistsPerArtist > 10000 {
		return fmt.Errorf("%w: %d (must be 1-10000)", ErrInvalidMaxSetlists, c.MaxSetlistsPerArtist)
	}
	if c.ContextBudget < 200 {
		return fmt.Errorf("%w: %d (must be >= 200)", ErrInvalidContextBudget, c.ContextBudget)
	}
	return nil
}

// RequireSetupKeys verifies the environment for setup mode.
func (c *Config) RequireSetupKeys() error {
	if c.SetlistFMAPIKey == "" {
		return fmt.Errorf("%w: SETLISTFM_API_KEY", ErrMissingAPIKey)
	}
	return c.RequireQueryKeys()
}

// RequireQueryKeys verifies the environment for query mode.
func (c *Config) RequireQueryKeys() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}
