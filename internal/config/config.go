// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	StoreSQLite = "sqlite"
	StoreDynamo = "dynamo"
)

// Config holds every recognized option. The agent API key may come from the
// environment or, when ParamPrefix is set, from SSM Parameter Store.
type Config struct {
	AgentProvider string        `env:"GM_AGENT_PROVIDER" envDefault:"gemini"`
	AgentAPIKey   string        `env:"GM_AGENT_API_KEY"`
	AgentModel    string        `env:"GM_AGENT_MODEL"`
	AgentBaseURL  string        `env:"GM_AGENT_BASE_URL"`
	AgentTimeout  time.Duration `env:"GM_AGENT_TIMEOUT" envDefault:"60s"`

	StoreBackend string `env:"GM_STORE" envDefault:"sqlite"`
	SQLitePath   string `env:"GM_SQLITE_PATH" envDefault:"gamemaster.db"`
	DynamoTable  string `env:"GM_DYNAMO_TABLE"`

	RetryCount   int           `env:"GM_STORE_RETRIES" envDefault:"3"`
	RetryBackoff time.Duration `env:"GM_STORE_BACKOFF" envDefault:"250ms"`

	ScenarioSeed  string `env:"GM_SCENARIO_SEED"`
	ParamPrefix   string `env:"GM_PARAM_PREFIX"`
	ResumeSession string `env:"GM_RESUME_SESSION"`
}

// Load parses and validates configuration from the environment. Missing
// required values fail fast here, before any collaborator is constructed.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.AgentProvider = strings.ToLower(strings.TrimSpace(cfg.AgentProvider))
	switch cfg.AgentProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("config: unknown agent provider %q (want %s or %s)", cfg.AgentProvider, ProviderGemini, ProviderOpenAI)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return Config{}, fmt.Errorf("config: GM_SQLITE_PATH must not be empty")
		}
	case StoreDynamo:
		if strings.TrimSpace(cfg.DynamoTable) == "" {
			return Config{}, fmt.Errorf("config: GM_DYNAMO_TABLE is required for the dynamo store")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown store backend %q (want %s or %s)", cfg.StoreBackend, StoreSQLite, StoreDynamo)
	}

	if strings.TrimSpace(cfg.AgentAPIKey) == "" && strings.TrimSpace(cfg.ParamPrefix) == "" {
		return Config{}, fmt.Errorf("config: GM_AGENT_API_KEY (or GM_PARAM_PREFIX) is required")
	}
	if cfg.AgentTimeout <= 0 {
		return Config{}, fmt.Errorf("config: GM_AGENT_TIMEOUT must be positive")
	}
	if cfg.RetryCount <= 0 {
		return Config{}, fmt.Errorf("config: GM_STORE_RETRIES must be positive")
	}
	if cfg.RetryBackoff <= 0 {
		return Config{}, fmt.Errorf("config: GM_STORE_BACKOFF must be positive")
	}
	return cfg, nil
}
