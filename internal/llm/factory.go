package llm

import (
	"fmt"
	"time"
)

// ClientConfig selects and configures a provider for the factories.
type ClientConfig struct {
	Provider string // "ollama" or "openai"

	OllamaURL            string
	OllamaModel          string
	OllamaEmbeddingModel string

	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIEmbeddingModel string

	Timeout time.Duration
}

// NewTextGenerator builds the completion client for the configured
// provider.
func NewTextGenerator(cfg ClientConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// NewEmbeddingGenerator builds the embedding client for the configured
// provider.
func NewEmbeddingGenerator(cfg ClientConfig) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
		})
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			EmbeddingModel: cfg.OllamaEmbeddingModel,
			Timeout:        cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
