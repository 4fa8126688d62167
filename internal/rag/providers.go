package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type (
	EmbedderLoader  func(ctx context.Context) (Embedder, error)
	GeneratorLoader func(ctx context.Context) (Generator, error)
	IndexLoader     func(ctx context.Context) (VectorIndex, error)
)

// Providers holds the process-wide embedding, generation and index capabilities.
// Init runs the loaders exactly once; concurrent callers wait for the same load.
// A failed Init is final for the life of the process.
type Providers struct {
	loadEmbedder  EmbedderLoader
	loadGenerator GeneratorLoader
	loadIndex     IndexLoader

	once  sync.Once
	err   error
	ready atomic.Bool

	embedder  Embedder
	generator Generator
	index     VectorIndex
}

func NewProviders(e EmbedderLoader, g GeneratorLoader, i IndexLoader) *Providers {
	return &Providers{loadEmbedder: e, loadGenerator: g, loadIndex: i}
}

// StaticProviders wraps already constructed providers and marks them ready.
func StaticProviders(e Embedder, g Generator, i VectorIndex) *Providers {
	p := NewProviders(
		func(context.Context) (Embedder, error) { return e, nil },
		func(context.Context) (Generator, error) { return g, nil },
		func(context.Context) (VectorIndex, error) { return i, nil },
	)
	_ = p.Init(context.Background())
	return p
}

func (p *Providers) Init(ctx context.Context) error {
	p.once.Do(func() {
		p.err = p.load(ctx)
		if p.err == nil {
			p.ready.Store(true)
		}
	})
	return p.err
}

func (p *Providers) load(ctx context.Context) error {
	start := time.Now()

	e, err := p.loadEmbedder(ctx)
	if err != nil {
		return fmt.Errorf("load embedder: %w", err)
	}
	slog.InfoContext(ctx, "embedding provider loaded", "dimension", e.Dimension())

	g, err := p.loadGenerator(ctx)
	if err != nil {
		return fmt.Errorf("load generator: %w", err)
	}
	slog.InfoContext(ctx, "generation provider loaded")

	idx, err := p.loadIndex(ctx)
	if err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	slog.InfoContext(ctx, "vector index connected", "duration", time.Since(start))

	p.embedder, p.generator, p.index = e, g, idx
	return nil
}

func (p *Providers) Ready() bool {
	return p != nil && p.ready.Load()
}

func (p *Providers) Embedder() (Embedder, error) {
	if !p.Ready() {
		return nil, ErrProviderNotInitialized
	}
	return p.embedder, nil
}

func (p *Providers) Generator() (Generator, error) {
	if !p.Ready() {
		return nil, ErrProviderNotInitialized
	}
	return p.generator, nil
}

func (p *Providers) Index() (VectorIndex, error) {
	if !p.Ready() {
		return nil, ErrProviderNotInitialized
	}
	return p.index, nil
}
