// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.threadcart/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the OpenAI API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMaxToolCycles indicates the tool-cycle cap is out of range.
	ErrInvalidMaxToolCycles = errors.New("invalid max tool cycles")

	// ErrInvalidSessionCapacity indicates the session capacity is out of range.
	ErrInvalidSessionCapacity = errors.New("invalid session capacity")

	// ErrInvalidSessionIdleTTL indicates the idle timeout is out of range.
	ErrInvalidSessionIdleTTL = errors.New("invalid session idle TTL")

	// ErrInvalidListenAddr indicates the listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

const (
	// DefaultModelName is the chat completion model used for tool calling.
	DefaultModelName = "gpt-4.1"

	// DefaultEmbedderModel is the embedding model for the knowledge base.
	DefaultEmbedderModel = "text-embedding-3-small"

	// DefaultMaxToolCycles bounds the model-call/tool-call loop per turn.
	// A well-behaved model converges to a plain-text reply; the cap keeps a
	// misbehaving one from hanging the turn.
	DefaultMaxToolCycles = 8

	// DefaultSessionCapacity bounds the number of live dialogue sessions.
	DefaultSessionCapacity = 1000

	// DefaultSessionIdleTTL evicts sessions idle longer than this.
	DefaultSessionIdleTTL = 30 * time.Minute
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON().
type Config struct {
	// OpenAI provider configuration
	OpenAIAPIKey  string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	OpenAIBaseURL string `mapstructure:"openai_base_url" json:"openai_base_url"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Dialogue engine configuration
	MaxToolCycles int `mapstructure:"max_tool_cycles" json:"max_tool_cycles"`

	// Session registry configuration
	SessionCapacity int           `mapstructure:"session_capacity" json:"session_capacity"`
	SessionIdleTTL  time.Duration `mapstructure:"session_idle_ttl" json:"session_idle_ttl"`

	// Storage configuration
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`           // knowledge base vectors + document overrides
	DatabasePath string `mapstructure:"database_path" json:"database_path"` // sqlite shop database

	// Serve mode configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"` // per-IP rate limiter burst (0 = default)
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".threadcart"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
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
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("max_tool_cycles", DefaultMaxToolCycles)

	v.SetDefault("session_capacity", DefaultSessionCapacity)
	v.SetDefault("session_idle_ttl", DefaultSessionIdleTTL)

	v.SetDefault("data_dir", "data/knowledge_base")
	v.SetDefault("database_path", "threadcart.db")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment variables explicitly.
// The API key is only ever read from the environment, never from the file.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("openai_base_url", "OPENAI_BASE_URL")
	mustBind("model_name", "THREADCART_MODEL_NAME")
	mustBind("embedder_model", "THREADCART_EMBEDDER_MODEL")
	mustBind("data_dir", "THREADCART_DATA_DIR")
	mustBind("database_path", "THREADCART_DATABASE_PATH")
	mustBind("listen_addr", "THREADCART_LISTEN_ADDR")
}

// Validate checks configuration ranges, fail-fast at startup.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.MaxToolCycles < 1 || c.MaxToolCycles > 64 {
		return fmt.Errorf("%w: got %d, want 1..64", ErrInvalidMaxToolCycles, c.MaxToolCycles)
	}
	if c.SessionCapacity < 1 {
		return fmt.Errorf("%w: got %d, want >= 1", ErrInvalidSessionCapacity, c.SessionCapacity)
	}
	if c.SessionIdleTTL < time.Second {
		return fmt.Errorf("%w: got %s, want >= 1s", ErrInvalidSessionIdleTTL, c.SessionIdleTTL)
	}
	if c.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	return nil
}

// RequireAPIKey returns an error unless an API key is configured.
// Serve and index modes call the OpenAI API and need it; version does not,
// so the check is separate from Validate.
func (c *Config) RequireAPIKey() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// maskSecret masks a secret string for safe logging.
// Short secrets are fully masked; longer ones keep two characters on each
// side for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "<********>" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
