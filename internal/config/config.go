// Package config assembles runtime settings from defaults, an optional YAML
// file and AGT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "toolchat.yaml"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
)

// Config is the resolved runtime configuration.
type Config struct {
	Provider  string `yaml:"provider" mapstructure:"AGT_PROVIDER"`
	Model     string `yaml:"model" mapstructure:"AGT_MODEL"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"AGT_MAX_TOKENS"`

	Store         string `yaml:"store" mapstructure:"AGT_STORE"`
	StorePath     string `yaml:"store_path" mapstructure:"AGT_STORE_PATH"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"AGT_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" mapstructure:"AGT_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"AGT_REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"AGT_REDIS_PREFIX"`

	TokenBudget    int           `yaml:"token_budget" mapstructure:"AGT_TOKEN_BUDGET"`
	MaxToolRounds  int           `yaml:"max_tool_rounds" mapstructure:"AGT_MAX_TOOL_ROUNDS"`
	ToolTimeout    time.Duration `yaml:"tool_timeout" mapstructure:"AGT_TOOL_TIMEOUT"`
	GatewayTimeout time.Duration `yaml:"gateway_timeout" mapstructure:"AGT_GATEWAY_TIMEOUT"`
	SystemPrompt   string        `yaml:"system_prompt" mapstructure:"AGT_SYSTEM_PROMPT"`

	LogLevel    string `yaml:"log_level" mapstructure:"AGT_LOG_LEVEL"`
	ListenAddr  string `yaml:"listen_addr" mapstructure:"AGT_LISTEN_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"AGT_METRICS_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:       "anthropic",
		MaxTokens:      1024,
		Store:          StoreFile,
		RedisAddr:      "localhost:6379",
		RedisPrefix:    "toolchat:",
		MaxToolRounds:  1,
		ToolTimeout:    15 * time.Second,
		GatewayTimeout: 60 * time.Second,
		LogLevel:       "info",
		ListenAddr:     ":8080",
	}
}

// Load resolves the configuration. path may be empty, in which case AGT_CONFIG
// and then DefaultFile are tried; only an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv("AGT_CONFIG")
	}
	if path == "" {
		path, explicit = DefaultFile, false
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return Config{}, err
	}
	if err := cfg.loadEnv(os.Environ()); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays non-empty AGT_* variables from environ.
func (c *Config) loadEnv(environ []string) error {
	vars := make(map[string]any)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" || !strings.HasPrefix(k, "AGT_") {
			continue
		}
		vars[k] = v
	}
	if len(vars) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return fmt.Errorf("build env decoder: %w", err)
	}
	if err := dec.Decode(vars); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case "anthropic", "gemini":
	default:
		errs = append(errs, fmt.Errorf("provider must be anthropic or gemini, got %q", c.Provider))
	}
	switch c.Store {
	case StoreMemory, StoreFile, StoreBolt, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("store must be memory, file, bolt or redis, got %q", c.Store))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("token_budget must not be negative, got %d", c.TokenBudget))
	}
	if c.MaxToolRounds < 1 {
		errs = append(errs, fmt.Errorf("max_tool_rounds must be at least 1, got %d", c.MaxToolRounds))
	}
	if c.ToolTimeout < 0 || c.GatewayTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("redis_db must not be negative, got %d", c.RedisDB))
	}
	return errors.Join(errs...)
}

// ResolvedStorePath returns StorePath or the default for the store kind.
func (c Config) ResolvedStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	switch c.Store {
	case StoreBolt:
		return "toolchat.db"
	default:
		return "db.json"
	}
}
