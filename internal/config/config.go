// Package config loads runtime configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the file nor the environment sets a
// value.
const (
	DefaultAddr          = ":8080"
	DefaultDBPath        = "data/codeforge.db"
	DefaultLogLevel      = "info"
	DefaultRunnerTimeout = 30 * time.Second
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr      string   `yaml:"addr"`
	APITokens []string `yaml:"api_tokens"`
}

// GeminiConfig holds the model client settings. APIKey is normally
// supplied via GEMINI_API_KEY rather than the file.
type GeminiConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	ImageModel string `yaml:"image_model"`
}

// RunnerConfig holds the sandbox execution settings.
type RunnerConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	OutputLimit int           `yaml:"output_limit"`
}

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	DBPath   string       `yaml:"db_path"`
	LogLevel string       `yaml:"log_level"`
	Gemini   GeminiConfig `yaml:"gemini"`
	Runner   RunnerConfig `yaml:"runner"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: DefaultAddr},
		DBPath:   DefaultDBPath,
		LogLevel: DefaultLogLevel,
		Runner:   RunnerConfig{Timeout: DefaultRunnerTimeout},
	}
}

// Load builds the configuration in three layers: defaults, then the
// YAML file at path (skipped when path is empty or missing), then
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	if cfg.Runner.Timeout <= 0 {
		cfg.Runner.Timeout = DefaultRunnerTimeout
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Variables
// win over file values so deployments can override without editing
// files.
func (c *Config) applyEnv() {
	if v := os.Getenv("CODEFORGE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CODEFORGE_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CODEFORGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CODEFORGE_API_TOKENS"); v != "" {
		c.Server.APITokens = splitTokens(v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("GEMINI_IMAGE_MODEL"); v != "" {
		c.Gemini.ImageModel = v
	}
	if v := os.Getenv("CODEFORGE_RUNNER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Runner.Timeout = d
		}
	}
	if v := os.Getenv("CODEFORGE_RUNNER_OUTPUT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Runner.OutputLimit = n
		}
	}
}

func splitTokens(s string) []string {
	var tokens []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
