package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"pdfrag/internal/rag"
	"pdfrag/internal/text"
	"pdfrag/internal/vector"
)

const (
	ScopePosition = "position"
	ScopeDocument = "document"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type Options struct {
	ChunkSize       int
	ChunkOverlap    int
	BatchSize       int
	IDScope         string
	ProviderTimeout time.Duration
}

// Pipeline turns a PDF into indexed chunks:
// extract, split, embed, persist metadata, upsert vectors.
type Pipeline struct {
	providers *rag.Providers
	extractor Extractor
	metadata  rag.MetadataStore
	opts      Options
}

func NewPipeline(p *rag.Providers, x Extractor, m rag.MetadataStore, opts Options) (*Pipeline, error) {
	if err := text.ValidateWindow(opts.ChunkSize, opts.ChunkOverlap); err != nil {
		return nil, err
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("%w: upsert batch size must be positive, got %d", rag.ErrConfiguration, opts.BatchSize)
	}
	switch opts.IDScope {
	case "":
		opts.IDScope = ScopePosition
	case ScopePosition, ScopeDocument:
	default:
		return nil, fmt.Errorf("%w: unknown chunk id scope %q", rag.ErrConfiguration, opts.IDScope)
	}
	return &Pipeline{providers: p, extractor: x, metadata: m, opts: opts}, nil
}

// ChunkID derives the index key of the i-th chunk. Position-scoped ids repeat
// across documents, so a later document overwrites an earlier one's records.
func ChunkID(scope, filename string, i int) string {
	if scope == ScopeDocument {
		return fmt.Sprintf("%s/chunk_%d", filename, i)
	}
	return fmt.Sprintf("chunk_%d", i)
}

// Ingest runs the pipeline for one document. Metadata persistence is best-effort
// and reported in the result; index failures are returned along with the partial result.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, filename string) (rag.IngestResult, error) {
	start := time.Now()
	result := rag.IngestResult{Filename: filename}

	embedder, err := p.providers.Embedder()
	if err != nil {
		return result, err
	}
	index, err := p.providers.Index()
	if err != nil {
		return result, err
	}

	content, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return result, fmt.Errorf("extract %s: %w", filename, err)
	}
	result.TextLength = utf8.RuneCountInString(content)
	slog.InfoContext(ctx, "text extracted", "filename", filename, "text_length", result.TextLength)

	if strings.TrimSpace(content) == "" {
		slog.InfoContext(ctx, "no extractable text, nothing to index", "filename", filename)
		return result, nil
	}

	pieces, err := text.Split(content, p.opts.ChunkSize, p.opts.ChunkOverlap)
	if err != nil {
		return result, err
	}
	chunks := make([]rag.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = rag.Chunk{
			ID:       ChunkID(p.opts.IDScope, filename, i),
			Text:     piece,
			Filename: filename,
			Index:    i,
		}
	}
	slog.InfoContext(ctx, "text split", "filename", filename, "chunks", len(chunks))

	vectors, err := p.embed(ctx, embedder, pieces)
	if err != nil {
		return result, fmt.Errorf("embed %s: %w", filename, err)
	}

	result.Metadata = p.persist(ctx, chunks)

	records := make([]rag.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = rag.IndexRecord{
			ID:      c.ID,
			Vector:  vectors[i],
			Payload: rag.Payload{Text: c.Text, Filename: c.Filename},
		}
	}

	report, err := vector.UpsertInBatches(ctx, timeoutIndex{index, p.opts.ProviderTimeout}, records, p.opts.BatchSize)
	if err != nil {
		return result, err
	}
	result.Index = report
	result.ChunksStored = report.Stored()

	if failed := report.Failed(); len(failed) > 0 {
		slog.ErrorContext(ctx, "vector upsert incomplete", "filename", filename, "failed_batches", len(failed), "stored", result.ChunksStored)
		return result, fmt.Errorf("%w: %d of %d upsert batches failed: %v", rag.ErrIndexUnavailable, len(failed), len(report.Batches), failed[0].Err)
	}

	slog.InfoContext(ctx, "document ingested",
		"filename", filename,
		"chunks_stored", result.ChunksStored,
		"metadata_ok", result.Metadata.OK(),
		"duration", time.Since(start))
	return result, nil
}

func (p *Pipeline) embed(ctx context.Context, embedder rag.Embedder, pieces []string) ([][]float32, error) {
	ctx, cancel := withTimeout(ctx, p.opts.ProviderTimeout)
	defer cancel()

	vectors, err := embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}
	dim := embedder.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", rag.ErrConfiguration, i, len(v), dim)
		}
	}
	return vectors, nil
}

func (p *Pipeline) persist(ctx context.Context, chunks []rag.Chunk) rag.SinkReport {
	ctx, cancel := withTimeout(ctx, p.opts.ProviderTimeout)
	defer cancel()

	if err := p.metadata.Save(ctx, chunks); err != nil {
		if !errors.Is(err, rag.ErrMetadataPersistence) {
			err = fmt.Errorf("%w: %v", rag.ErrMetadataPersistence, err)
		}
		slog.WarnContext(ctx, "metadata persistence failed, continuing with index upsert", "chunks", len(chunks), "error", err)
		return rag.SinkReport{Err: err}
	}
	return rag.SinkReport{Stored: len(chunks)}
}

type timeoutIndex struct {
	rag.VectorIndex
	timeout time.Duration
}

func (t timeoutIndex) Upsert(ctx context.Context, records []rag.IndexRecord) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return t.VectorIndex.Upsert(ctx, records)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
