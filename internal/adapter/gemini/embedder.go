package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// maxBatch is the BatchEmbedContents request limit.
const maxBatch = 100

type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewEmbedder(ctx context.Context, apiKey, model string, dimension int, opts ...option.ClientOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", e.model, "count", len(texts))
	em := e.client.EmbeddingModel(e.model)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			slog.ErrorContext(ctx, "embedding failed", "error", err)
			return nil, err
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("empty embedding received")
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
