// Package config loads promptforge configuration from YAML with
// environment overrides. The result is a plain value handed to each
// invocation; nothing here is global or mutable after load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"promptforge/internal/llm"
)

// Config is the full tool configuration.
type Config struct {
	// Endpoint is an OpenAI-chat-completions-compatible URL, typically a
	// local model server.
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	MaxRetries       int     `yaml:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	BackoffFactor    float64 `yaml:"backoff_factor"`

	TokenBudget int     `yaml:"token_budget"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Endpoint:         "http://localhost:11434/v1/chat/completions",
		Model:            "gpt-4o-mini",
		TimeoutSeconds:   30,
		MaxRetries:       3,
		InitialBackoffMs: 1000,
		MaxBackoffMs:     30000,
		BackoffFactor:    2,
		TokenBudget:      8000,
		Temperature:      0.7,
	}
}

// Load reads the config file at path, layered over defaults and under
// environment overrides. An empty path or a missing file yields defaults
// (plus env); a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Endpoint == "" {
		return Config{}, fmt.Errorf("endpoint must not be empty")
	}
	if cfg.TokenBudget <= 0 {
		return Config{}, fmt.Errorf("token_budget must be positive, got %d", cfg.TokenBudget)
	}
	return cfg, nil
}

// applyEnv overlays FORGE_* environment variables. Invalid numeric values
// are ignored rather than fatal, matching the file-over-defaults posture.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FORGE_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("FORGE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("FORGE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("FORGE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("FORGE_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TokenBudget = n
		}
	}
	if v := os.Getenv("FORGE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// LLM converts the loaded configuration into the invocation client's
// per-call config value.
func (c Config) LLM(logger *zap.Logger) llm.Config {
	return llm.Config{
		Endpoint:          c.Endpoint,
		Model:             c.Model,
		TimeoutPerAttempt: time.Duration(c.TimeoutSeconds) * time.Second,
		MaxRetries:        c.MaxRetries,
		InitialBackoff:    time.Duration(c.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:        time.Duration(c.MaxBackoffMs) * time.Millisecond,
		BackoffFactor:     c.BackoffFactor,
		Logger:            logger,
	}
}
