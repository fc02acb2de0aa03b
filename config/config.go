// Package config loads runtime configuration for turnloop applications from
// a JSON/YAML file and environment variables. It covers provider selection,
// retry and repair limits, timeouts, the session backend and logging.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full turnloop runtime configuration.
type Config struct {
	// Model provider configuration
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Turn orchestration limits
	Turn TurnConfig `json:"turn" mapstructure:"turn"`

	// Session persistence
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ModelConfig selects and parameterizes the model gateway.
type ModelConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	Name        string  `json:"name" mapstructure:"name"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// TurnConfig bounds a single turn of the orchestration loop.
type TurnConfig struct {
	MaxModelAttempts int           `json:"max_model_attempts" mapstructure:"max_model_attempts"`
	BackoffBase      time.Duration `json:"backoff_base" mapstructure:"backoff_base"`
	BackoffCap       time.Duration `json:"backoff_cap" mapstructure:"backoff_cap"`
	RepairAttempts   int           `json:"repair_attempts" mapstructure:"repair_attempts"`
	MaxModelCalls    int           `json:"max_model_calls" mapstructure:"max_model_calls"`
	ModelTimeout     time.Duration `json:"model_timeout" mapstructure:"model_timeout"`
	ToolTimeout      time.Duration `json:"tool_timeout" mapstructure:"tool_timeout"`
	MaxParallelTools int           `json:"max_parallel_tools" mapstructure:"max_parallel_tools"`
}

// SessionConfig selects the session persistence backend.
type SessionConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // memory, sqlite
	Path    string `json:"path" mapstructure:"path"`       // sqlite database file
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // json, text
}

// Default returns a configuration with safe local-development defaults.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Turn: TurnConfig{
			MaxModelAttempts: 3,
			BackoffBase:      200 * time.Millisecond,
			BackoffCap:       5 * time.Second,
			RepairAttempts:   2,
			MaxModelCalls:    10,
			ModelTimeout:     60 * time.Second,
			ToolTimeout:      15 * time.Second,
			MaxParallelTools: 4,
		},
		Session: SessionConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path, layering environment variables with the
// TURNLOOP_ prefix on top. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TURNLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv alone does not surface env only values through Unmarshal,
	// so every recognized key is bound explicitly.
	for _, key := range []string{
		"model.provider", "model.name", "model.api_key", "model.temperature", "model.max_tokens",
		"turn.max_model_attempts", "turn.backoff_base", "turn.backoff_cap", "turn.repair_attempts",
		"turn.max_model_calls", "turn.model_timeout", "turn.tool_timeout", "turn.max_parallel_tools",
		"session.backend", "session.path",
		"logging.level", "logging.format",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("TURNLOOP_API_KEY"); key != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies that would otherwise
// surface mid-turn.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported model provider: %q", c.Model.Provider)
	}

	switch c.Session.Backend {
	case "memory":
	case "sqlite":
		if c.Session.Path == "" {
			return fmt.Errorf("sqlite session backend requires a path")
		}
	default:
		return fmt.Errorf("unsupported session backend: %q", c.Session.Backend)
	}

	if c.Turn.MaxModelAttempts < 1 {
		return fmt.Errorf("max_model_attempts must be at least 1")
	}
	if c.Turn.RepairAttempts < 0 {
		return fmt.Errorf("repair_attempts must not be negative")
	}
	if c.Turn.MaxModelCalls < 1 {
		return fmt.Errorf("max_model_calls must be at least 1")
	}
	if c.Turn.MaxParallelTools < 1 {
		return fmt.Errorf("max_parallel_tools must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %q", c.Logging.Level)
	}

	return nil
}
