package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	cstore "pdfrag/internal/adapter/chromem"
	"pdfrag/internal/adapter/gemini"
	"pdfrag/internal/adapter/langchain"
	wstore "pdfrag/internal/adapter/weaviate"
	"pdfrag/internal/config"
	"pdfrag/internal/rag"
	"pdfrag/internal/vector"
)

// NewProviders returns providers whose loaders build the configured backends.
// Nothing is contacted until Init.
func NewProviders(cfg *config.Config) *rag.Providers {
	return rag.NewProviders(
		func(ctx context.Context) (rag.Embedder, error) { return buildEmbedder(ctx, cfg) },
		func(ctx context.Context) (rag.Generator, error) { return buildGenerator(ctx, cfg) },
		func(ctx context.Context) (rag.VectorIndex, error) { return buildIndex(ctx, cfg) },
	)
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (rag.Embedder, error) {
	slog.InfoContext(ctx, "loading embedding provider", "provider", cfg.EmbeddingProvider, "model", cfg.EmbeddingModel)
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		return langchain.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.IndexDimension)
	case config.ProviderOpenAI:
		return langchain.NewOpenAIEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.IndexDimension)
	case config.ProviderGemini:
		return gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.IndexDimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", rag.ErrConfiguration, cfg.EmbeddingProvider)
	}
}

func buildGenerator(ctx context.Context, cfg *config.Config) (rag.Generator, error) {
	slog.InfoContext(ctx, "loading generation provider", "provider", cfg.GenerationProvider, "model", cfg.GenerationModel)
	switch cfg.GenerationProvider {
	case config.ProviderOllama:
		return langchain.NewOllamaGenerator(cfg.OllamaURL, cfg.GenerationModel, cfg.GenerationMaxTokens, cfg.GenerationTemperature)
	case config.ProviderOpenAI:
		return langchain.NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenerationModel, cfg.GenerationMaxTokens, cfg.GenerationTemperature)
	case config.ProviderGemini:
		return gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GenerationModel, cfg.GenerationMaxTokens, cfg.GenerationTemperature)
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", rag.ErrConfiguration, cfg.GenerationProvider)
	}
}

func buildIndex(ctx context.Context, cfg *config.Config) (rag.VectorIndex, error) {
	spec := IndexSpec(cfg)
	wait := vector.ReadyWait{Timeout: cfg.IndexReadyTimeout(), Interval: cfg.IndexReadyInterval()}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	switch cfg.VectorBackend {
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		if err := EnsureIndexWithRetry(ctx, vector.NewWeaviateClientAdapter(client), spec, wait, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			return nil, fmt.Errorf("weaviate schema error: %w", err)
		}
		return wstore.NewStore(client, cfg.IndexName, cfg.IndexDimension), nil
	case config.BackendChromem:
		store, err := cstore.New(cfg.ChromemPath, cfg.IndexName, cfg.IndexDimension)
		if err != nil {
			return nil, fmt.Errorf("chromem open error: %w", err)
		}
		if err := EnsureIndexWithRetry(ctx, store, spec, wait, 1, 0); err != nil {
			return nil, fmt.Errorf("chromem collection error: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", rag.ErrConfiguration, cfg.VectorBackend)
	}
}

func IndexSpec(cfg *config.Config) vector.IndexSpec {
	return vector.IndexSpec{Name: cfg.IndexName, Dimension: cfg.IndexDimension, Metric: cfg.IndexMetric}
}
