package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pdfrag/internal/rag"
)

// IndexSpec names the index and its vector shape.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
}

// ReadyWait bounds how long EnsureIndex polls a newly created index.
type ReadyWait struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Manager defines the index lifecycle operations a vector backend must support.
type Manager interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, spec IndexSpec) error
	IndexReady(ctx context.Context, name string) (bool, error)
}

var supportedMetrics = map[string]bool{
	"cosine":     true,
	"dot":        true,
	"l2-squared": true,
}

func (s IndexSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: index name is required", rag.ErrConfiguration)
	}
	if s.Dimension < 1 {
		return fmt.Errorf("%w: index dimension must be positive, got %d", rag.ErrConfiguration, s.Dimension)
	}
	if !supportedMetrics[s.Metric] {
		return fmt.Errorf("%w: unsupported index metric %q", rag.ErrConfiguration, s.Metric)
	}
	return nil
}

// EnsureIndex creates the index if it does not exist. A freshly created index is
// polled until it reports ready or the wait times out. Existing indexes are left untouched.
func EnsureIndex(ctx context.Context, m Manager, spec IndexSpec, wait ReadyWait) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}

	exists, err := m.IndexExists(ctx, spec.Name)
	if err != nil {
		return false, fmt.Errorf("%w: check index %s: %v", rag.ErrIndexUnavailable, spec.Name, err)
	}
	if exists {
		slog.InfoContext(ctx, "vector index exists", "index", spec.Name)
		return false, nil
	}

	slog.InfoContext(ctx, "creating vector index", "index", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	if err := m.CreateIndex(ctx, spec); err != nil {
		return false, fmt.Errorf("%w: create index %s: %v", rag.ErrIndexUnavailable, spec.Name, err)
	}

	if err := waitReady(ctx, m, spec.Name, wait); err != nil {
		return true, err
	}
	slog.InfoContext(ctx, "vector index ready", "index", spec.Name)
	return true, nil
}

func waitReady(ctx context.Context, m Manager, name string, wait ReadyWait) error {
	interval := wait.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait.Timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ready, err := m.IndexReady(ctx, name)
		if err == nil && ready {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: %s after %s: %v", rag.ErrIndexNotReady, name, wait.Timeout, lastErr)
			}
			return fmt.Errorf("%w: %s after %s", rag.ErrIndexNotReady, name, wait.Timeout)
		case <-ticker.C:
		}
	}
}
