package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/petasbytes/toolchat/internal/config"
	"github.com/petasbytes/toolchat/internal/logging"
	"github.com/petasbytes/toolchat/internal/provider"
	"github.com/petasbytes/toolchat/internal/runner"
	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
	"github.com/spf13/cobra"
)

// app holds the collaborators every subcommand shares.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	log    *memory.Log
	tools  *tools.Registry
}

// flagOverrides maps persistent flags onto config fields.
var flagOverrides = map[string]func(*config.Config, string){
	"provider":   func(c *config.Config, v string) { c.Provider = v },
	"model":      func(c *config.Config, v string) { c.Model = v },
	"store":      func(c *config.Config, v string) { c.Store = v },
	"store-path": func(c *config.Config, v string) { c.StorePath = v },
	"log-level":  func(c *config.Config, v string) { c.LogLevel = v },
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	for name, set := range flagOverrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			set(&cfg, f.Value.String())
		}
	}
	return cfg, cfg.Validate()
}

// newApp loads configuration and opens the conversation log.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.New(level, os.Stderr)

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		log:    memory.Open(store, memory.WithLogger(logger)),
		tools:  tools.Default(tools.WithTimeout(cfg.ToolTimeout)),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (memory.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewMemoryStore(), nil
	case config.StoreFile:
		return memory.NewFileStore(cfg.ResolvedStorePath())
	case config.StoreBolt:
		return memory.OpenBoltStore(cfg.ResolvedStorePath())
	case config.StoreRedis:
		s := memory.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, memory.WithPrefix(cfg.RedisPrefix))
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// newRunner builds the gateway and orchestrator. Only commands that talk to the
// model need credentials.
func (a *app) newRunner(ctx context.Context, hooks runner.Hooks) (*runner.Runner, error) {
	if a.cfg.Provider == provider.NameAnthropic && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, errors.New("missing ANTHROPIC_API_KEY; export it before running")
	}
	gw, err := provider.New(ctx, provider.Settings{
		Provider:  a.cfg.Provider,
		Model:     a.cfg.Model,
		MaxTokens: int64(a.cfg.MaxTokens),
	})
	if err != nil {
		return nil, err
	}
	return runner.New(gw, a.tools, a.log,
		runner.WithLogger(a.logger),
		runner.WithHooks(hooks),
		runner.WithSystem(a.cfg.SystemPrompt),
		runner.WithMaxToolRounds(a.cfg.MaxToolRounds),
		runner.WithTokenBudget(a.cfg.TokenBudget),
		runner.WithGatewayTimeout(a.cfg.GatewayTimeout),
	), nil
}

func (a *app) Close() {
	if err := a.log.Close(); err != nil {
		a.logger.Warn("closing conversation store", "error", err)
	}
}
