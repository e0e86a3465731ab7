// Package config provides configuration for the memory core daemon.
// Settings are read from an optional YAML file and overridden by
// environment variables with the TUTORMEM_ prefix; every option has a
// sensible default so an empty environment still boots.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the memory core.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Memory  MemoryConfig  `yaml:"memory"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the diagnostics HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 7171
	// RateLimitPerSec caps requests per second per process (default: 20).
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// StorageConfig contains durable store settings.
type StorageConfig struct {
	// Engine selects the fact store backend: "sqlite" or "postgres".
	Engine   string `yaml:"engine"`
	DataPath string `yaml:"data_path"` // sqlite data directory
	// PostgresDSN is used when Engine is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LLMConfig contains the embedding and completion collaborator settings.
type LLMConfig struct {
	// Provider selects the client: "ollama" or "openai".
	Provider             string        `yaml:"provider"`
	OllamaURL            string        `yaml:"ollama_url"`
	OllamaModel          string        `yaml:"ollama_model"`
	OllamaEmbeddingModel string        `yaml:"ollama_embedding_model"`
	OpenAIAPIKey         string        `yaml:"openai_api_key"`
	OpenAIModel          string        `yaml:"openai_model"`
	OpenAIEmbeddingModel string        `yaml:"openai_embedding_model"`
	Timeout              time.Duration `yaml:"timeout"`
	// EmbedRatePerSec throttles embedding calls made by background
	// consolidation so batch work never starves the interactive path.
	EmbedRatePerSec float64 `yaml:"embed_rate_per_sec"`
}

// MemoryConfig contains the tunables of the memory subsystem itself.
type MemoryConfig struct {
	// ShortTermTurns is the verbatim window size (default: 5).
	ShortTermTurns int `yaml:"short_term_turns"`
	// WorkingMemoryThreshold is the session length above which older
	// turns are summarized instead of included verbatim (default: 10).
	WorkingMemoryThreshold int `yaml:"working_memory_threshold"`
	// WorkingMemoryTTL bounds the summary cache (default: 2h).
	WorkingMemoryTTL time.Duration `yaml:"working_memory_ttl"`
	// ContextTokenBudget is the total prompt token budget (default: 2000).
	ContextTokenBudget int `yaml:"context_token_budget"`
	// ContextCacheTTL bounds the assembled-context cache (default: 30s).
	ContextCacheTTL time.Duration `yaml:"context_cache_ttl"`
	// RetrievalTopK is the long-term retrieval fan-in (default: 5).
	RetrievalTopK int `yaml:"retrieval_top_k"`
	// RetrievalTimeout bounds the embedding+vector-search round trip on
	// the interactive path (default: 3s).
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`
	// ForgettingThreshold is the importance score below which unpinned
	// facts are archived by the decay engine (default: 0.25).
	ForgettingThreshold float64 `yaml:"forgetting_threshold"`
	// DecayInterval is the cadence of the background decay sweep
	// (default: 24h).
	DecayInterval time.Duration `yaml:"decay_interval"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Load reads the optional YAML file at path (ignored when empty or
// missing), applies environment overrides, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with env overrides applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires a DSN")
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if c.Memory.ContextTokenBudget < 200 {
		return fmt.Errorf("config: context token budget %d too small", c.Memory.ContextTokenBudget)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("TUTORMEM_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("TUTORMEM_PORT", c.Server.Port)
	c.Server.RateLimitPerSec = getEnvFloat("TUTORMEM_RATE_LIMIT", c.Server.RateLimitPerSec)

	c.Storage.Engine = getEnv("TUTORMEM_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("TUTORMEM_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("TUTORMEM_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.LLM.Provider = getEnv("TUTORMEM_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.OllamaURL = getEnv("TUTORMEM_OLLAMA_URL", c.LLM.OllamaURL)
	c.LLM.OllamaModel = getEnv("TUTORMEM_OLLAMA_MODEL", c.LLM.OllamaModel)
	c.LLM.OllamaEmbeddingModel = getEnv("TUTORMEM_OLLAMA_EMBEDDING_MODEL", c.LLM.OllamaEmbeddingModel)
	c.LLM.OpenAIAPIKey = getEnv("TUTORMEM_OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	c.LLM.OpenAIModel = getEnv("TUTORMEM_OPENAI_MODEL", c.LLM.OpenAIModel)
	c.LLM.OpenAIEmbeddingModel = getEnv("TUTORMEM_OPENAI_EMBEDDING_MODEL", c.LLM.OpenAIEmbeddingModel)

	c.Memory.ShortTermTurns = getEnvInt("TUTORMEM_SHORT_TERM_TURNS", c.Memory.ShortTermTurns)
	c.Memory.ContextTokenBudget = getEnvInt("TUTORMEM_CONTEXT_TOKEN_BUDGET", c.Memory.ContextTokenBudget)
	c.Memory.ForgettingThreshold = getEnvFloat("TUTORMEM_FORGETTING_THRESHOLD", c.Memory.ForgettingThreshold)

	c.Logging.Level = getEnv("TUTORMEM_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("TUTORMEM_LOG_FORMAT", c.Logging.Format)
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 7171
	}
	if c.Server.RateLimitPerSec == 0 {
		c.Server.RateLimitPerSec = 20
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 40
	}

	if c.Storage.Engine == "" {
		c.Storage.Engine = "sqlite"
	}
	if c.Storage.DataPath == "" {
		c.Storage.DataPath = "./data"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.OllamaURL == "" {
		c.LLM.OllamaURL = "http://localhost:11434"
	}
	if c.LLM.OllamaModel == "" {
		c.LLM.OllamaModel = "qwen2.5:7b"
	}
	if c.LLM.OllamaEmbeddingModel == "" {
		c.LLM.OllamaEmbeddingModel = "nomic-embed-text"
	}
	if c.LLM.OpenAIModel == "" {
		c.LLM.OpenAIModel = "gpt-4o-mini"
	}
	if c.LLM.OpenAIEmbeddingModel == "" {
		c.LLM.OpenAIEmbeddingModel = "text-embedding-3-small"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 10 * time.Second
	}
	if c.LLM.EmbedRatePerSec == 0 {
		c.LLM.EmbedRatePerSec = 5
	}

	if c.Memory.ShortTermTurns == 0 {
		c.Memory.ShortTermTurns = 5
	}
	if c.Memory.WorkingMemoryThreshold == 0 {
		c.Memory.WorkingMemoryThreshold = 10
	}
	if c.Memory.WorkingMemoryTTL == 0 {
		c.Memory.WorkingMemoryTTL = 2 * time.Hour
	}
	if c.Memory.ContextTokenBudget == 0 {
		c.Memory.ContextTokenBudget = 2000
	}
	if c.Memory.ContextCacheTTL == 0 {
		c.Memory.ContextCacheTTL = 30 * time.Second
	}
	if c.Memory.RetrievalTopK == 0 {
		c.Memory.RetrievalTopK = 5
	}
	if c.Memory.RetrievalTimeout == 0 {
		c.Memory.RetrievalTimeout = 3 * time.Second
	}
	if c.Memory.ForgettingThreshold == 0 {
		c.Memory.ForgettingThreshold = 0.25
	}
	if c.Memory.DecayInterval == 0 {
		c.Memory.DecayInterval = 24 * time.Hour
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// getEnv retrieves a string environment variable or returns the fallback.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns the
// fallback, including when the value cannot be parsed.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
