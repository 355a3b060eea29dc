package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"

	"github.com/setlistai/setlistai/internal/config"
	"github.com/setlistai/setlistai/internal/generate"
	"github.com/setlistai/setlistai/internal/knowledge"
	"github.com/setlistai/setlistai/internal/retrieve"
	"github.com/setlistai/setlistai/internal/setlistfm"
	"github.com/setlistai/setlistai/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	st, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return nil, err
	}
	a.Store = st

	ix, err := knowledge.Open(cfg.VectorDir(), embedder, logger)
	if err != nil {
		return nil, err
	}
	a.Index = ix

	a.Retriever = retrieve.New(ix, st, logger)
	a.Generator = generate.New(g, generate.Config{
		Model:       cfg.ModelName,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}, logger)

	// The collector is only usable when a setlist.fm key is configured;
	// query mode runs without one.
	if cfg.SetlistFMAPIKey != "" {
		a.Source = setlistfm.New(cfg.SetlistFMAPIKey, logger)
	}

	return a, nil
}

// provideGenkit initializes Genkit with the OpenAI-compatible provider.
// Model and embedder names are resolved per call, not at init.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	// The plugin reads the key from the environment. Export it so a key
	// set only in the config file still reaches the provider.
	// SAFETY: os.Setenv is not concurrent-safe, but Setup runs exactly once
	// during startup before goroutines are spawned.
	if cfg.OpenAIAPIKey != "" {
		_ = os.Setenv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with openai provider")
	}
	return g, nil
}

// provideEmbedder resolves the configured embedding model.
// OpenAI auto-registers embedders in Init().
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
}
