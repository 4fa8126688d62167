package rag

import (
	"context"
	"time"
)

// Chunk is a contiguous slice of extracted document text.
type Chunk struct {
	ID        string    `json:"chunk_id"`
	Text      string    `json:"text"`
	Filename  string    `json:"filename"`
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"created_at"`
}

type Payload struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// IndexRecord is the tuple stored in the vector index. Upserting an existing ID overwrites it.
type IndexRecord struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Match is one nearest neighbor returned by a similarity query.
type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type VectorIndex interface {
	Upsert(ctx context.Context, records []IndexRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
}

type MetadataStore interface {
	Save(ctx context.Context, chunks []Chunk) error
}
