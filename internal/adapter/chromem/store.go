package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"pdfrag/internal/rag"
	"pdfrag/internal/vector"
)

var errNoEmbedding = errors.New("documents must carry precomputed embeddings")

// Store is an embedded vector index backed by chromem-go. With an empty path the
// index lives in memory only. Similarity is always cosine.
type Store struct {
	db        *chromem.DB
	name      string
	dimension int
}

func New(path, name string, dimension int) (*Store, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: open chromem db at %s: %v", rag.ErrIndexUnavailable, path, err)
		}
	}
	return &Store{db: db, name: name, dimension: dimension}, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

func (s *Store) collection() (*chromem.Collection, error) {
	c := s.db.GetCollection(s.name, rejectEmbedding)
	if c == nil {
		return nil, fmt.Errorf("%w: collection %s does not exist", rag.ErrIndexUnavailable, s.name)
	}
	return c, nil
}

func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	return s.db.GetCollection(name, rejectEmbedding) != nil, nil
}

func (s *Store) CreateIndex(ctx context.Context, spec vector.IndexSpec) error {
	if spec.Metric != "cosine" {
		return fmt.Errorf("%w: chromem only supports cosine similarity, got %q", rag.ErrConfiguration, spec.Metric)
	}
	meta := map[string]string{
		"dimension": strconv.Itoa(spec.Dimension),
		"metric":    spec.Metric,
	}
	_, err := s.db.CreateCollection(spec.Name, meta, rejectEmbedding)
	return err
}

func (s *Store) IndexReady(ctx context.Context, name string) (bool, error) {
	return s.db.GetCollection(name, rejectEmbedding) != nil, nil
}

// Upsert adds documents keyed by record id. An existing id is replaced.
func (s *Store) Upsert(ctx context.Context, records []rag.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	c, err := s.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has dimension %d, index %s expects %d", rag.ErrConfiguration, r.ID, len(r.Vector), s.name, s.dimension)
		}
		docs = append(docs, chromem.Document{
			ID:        r.ID,
			Content:   r.Payload.Text,
			Metadata:  map[string]string{"filename": r.Payload.Filename},
			Embedding: r.Vector,
		})
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: add documents: %v", rag.ErrIndexUnavailable, err)
	}
	return nil
}

// Query returns up to k nearest documents. chromem rejects k above the
// collection size, so k is clamped.
func (s *Store) Query(ctx context.Context, vec []float32, k int) ([]rag.Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrConfiguration, k)
	}
	c, err := s.collection()
	if err != nil {
		return nil, err
	}

	n := min(k, c.Count())
	if n == 0 {
		return []rag.Match{}, nil
	}

	results, err := c.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", rag.ErrIndexUnavailable, err)
	}

	matches := make([]rag.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, rag.Match{ID: r.ID, Score: r.Similarity, Text: r.Content})
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	c, err := s.collection()
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}
