// Command memoryd runs the conversational memory engine with its
// diagnostics HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/cache"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/config"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/engine"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/llm"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/logging"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/server"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage/postgres"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage/sqlite"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "memoryd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// .env is optional, for local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	store, index, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	generator, err := llm.NewTextGenerator(llmConfig(cfg))
	if err != nil {
		return err
	}
	embedder, err := llm.NewEmbeddingGenerator(llmConfig(cfg))
	if err != nil {
		return err
	}
	if cfg.LLM.EmbedRatePerSec > 0 {
		embedder = llm.NewThrottledEmbedder(embedder, cfg.LLM.EmbedRatePerSec)
	}

	contextCache := cache.NewTiered(cache.NewLRU(1024, cfg.Memory.WorkingMemoryTTL))

	eng := engine.New(store, index, generator, embedder, contextCache, engine.Options{
		ShortTermTurns:         cfg.Memory.ShortTermTurns,
		WorkingMemoryThreshold: cfg.Memory.WorkingMemoryThreshold,
		WorkingMemoryTTL:       cfg.Memory.WorkingMemoryTTL,
		ContextTokenBudget:     cfg.Memory.ContextTokenBudget,
		ContextCacheTTL:        cfg.Memory.ContextCacheTTL,
		RetrievalTopK:          cfg.Memory.RetrievalTopK,
		RetrievalTimeout:       cfg.Memory.RetrievalTimeout,
		ForgettingThreshold:    cfg.Memory.ForgettingThreshold,
	}, logger)

	hub := server.NewHub(logger)
	eng.SetEventFunc(hub.Broadcast)
	hub.Run()
	eng.Start()

	scheduler := engine.NewScheduler(eng, cfg.Memory.DecayInterval, logger)
	scheduler.Start()

	srv := server.New(cfg.Server, eng, hub, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	scheduler.Stop()
	hub.Stop()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Warn("engine shutdown incomplete", "error", err)
	}
	return nil
}

// openStorage builds the fact store and vector index for the
// configured backend. Postgres serves both roles when pgvector is
// available; sqlite pairs with an embedded chromem index.
func openStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, vector.Index, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.Open(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "sqlite", "":
		store, err := sqlite.Open(cfg.Storage.DataPath)
		if err != nil {
			return nil, nil, err
		}
		index, err := vector.NewChromemIndex(filepath.Join(cfg.Storage.DataPath, "vectors"), logger)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, index, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

func llmConfig(cfg *config.Config) llm.ClientConfig {
	return llm.ClientConfig{
		Provider:             cfg.LLM.Provider,
		OllamaURL:            cfg.LLM.OllamaURL,
		OllamaModel:          cfg.LLM.OllamaModel,
		OllamaEmbeddingModel: cfg.LLM.OllamaEmbeddingModel,
		OpenAIAPIKey:         cfg.LLM.OpenAIAPIKey,
		OpenAIModel:          cfg.LLM.OpenAIModel,
		OpenAIEmbeddingModel: cfg.LLM.OpenAIEmbeddingModel,
		Timeout:              cfg.LLM.Timeout,
	}
}
