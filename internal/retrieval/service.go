package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdfrag/internal/middleware"
	"pdfrag/internal/rag"
)

const promptTemplate = "Answer the question based on the following context:\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:"

// BuildPrompt renders the generation prompt for a question and its retrieved sources.
func BuildPrompt(question string, sources []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(sources, "\n\n"), question)
}

type Service struct {
	providers *rag.Providers
	k         int
	timeout   time.Duration
	logger    *QueryLogger
}

// NewService builds the query pipeline. k is the number of chunks retrieved per
// question; timeout bounds each provider call (zero disables it). l may be nil.
func NewService(p *rag.Providers, k int, timeout time.Duration, l *QueryLogger) (*Service, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: retrieval k must be at least 1, got %d", rag.ErrConfiguration, k)
	}
	return &Service{providers: p, k: k, timeout: timeout, logger: l}, nil
}

// Ask always returns a well-formed answer. Failures become an answer text of
// "Error: <message>" with no sources.
func (s *Service) Ask(ctx context.Context, question string) rag.Answer {
	start := time.Now()
	ans, err := s.answer(ctx, question)

	entry := QueryLogEntry{
		Question:      question,
		NumSources:    len(ans.Sources),
		Duration:      time.Since(start),
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if err != nil {
		slog.ErrorContext(ctx, "question failed", "error", err)
		entry.Error = err.Error()
		entry.NumSources = 0
		ans = rag.Answer{Text: "Error: " + err.Error(), Sources: []string{}}
	}
	if s.logger != nil {
		s.logger.Log(entry)
	}
	return ans
}

func (s *Service) answer(ctx context.Context, question string) (rag.Answer, error) {
	embedder, err := s.providers.Embedder()
	if err != nil {
		return rag.Answer{}, err
	}
	index, err := s.providers.Index()
	if err != nil {
		return rag.Answer{}, err
	}
	generator, err := s.providers.Generator()
	if err != nil {
		return rag.Answer{}, err
	}

	vectors, err := withTimeout(ctx, s.timeout, func(ctx context.Context) ([][]float32, error) {
		return embedder.Embed(ctx, []string{question})
	})
	if err != nil {
		return rag.Answer{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return rag.Answer{}, fmt.Errorf("embed question: expected 1 vector, got %d", len(vectors))
	}

	matches, err := withTimeout(ctx, s.timeout, func(ctx context.Context) ([]rag.Match, error) {
		return index.Query(ctx, vectors[0], s.k)
	})
	if err != nil {
		return rag.Answer{}, fmt.Errorf("query index: %w", err)
	}

	sources := make([]string, len(matches))
	for i, m := range matches {
		sources[i] = m.Text
	}
	slog.DebugContext(ctx, "retrieved sources", "count", len(sources))

	text, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (string, error) {
		return generator.Generate(ctx, BuildPrompt(question, sources))
	})
	if err != nil {
		return rag.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return rag.Answer{Text: text, Sources: sources}, nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}
