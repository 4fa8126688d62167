package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder adapts a langchaingo embedder to a fixed-dimension batch embedder.
type Embedder struct {
	impl      *embeddings.EmbedderImpl
	model     string
	dimension int
}

func NewEmbedder(client embeddings.EmbedderClient, model string, dimension, batchSize int) (*Embedder, error) {
	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, err
	}
	return &Embedder{impl: impl, model: model, dimension: dimension}, nil
}

func NewOllamaEmbedder(serverURL, model string, dimension int) (*Embedder, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return NewEmbedder(llm, model, dimension, 64)
}

func NewOpenAIEmbedder(baseURL, token, model string, dimension int) (*Embedder, error) {
	opts := []openai.Option{openai.WithToken(token), openai.WithEmbeddingModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return NewEmbedder(llm, model, dimension, 256)
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", e.model, "count", len(texts))
	vecs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "model", e.model, "error", err)
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
