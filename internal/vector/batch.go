package vector

import (
	"context"
	"fmt"
	"log/slog"

	"pdfrag/internal/rag"
)

// UpsertInBatches writes records in groups of at most size. Every batch is
// attempted even if an earlier one failed; the report says which succeeded.
func UpsertInBatches(ctx context.Context, idx rag.VectorIndex, records []rag.IndexRecord, size int) (rag.BatchReport, error) {
	var report rag.BatchReport
	if size < 1 {
		return report, fmt.Errorf("%w: upsert batch size must be positive, got %d", rag.ErrConfiguration, size)
	}

	for start, n := 0, 0; start < len(records); start, n = start+size, n+1 {
		end := min(start+size, len(records))
		outcome := rag.BatchOutcome{Batch: n, Start: start, End: end}

		if err := idx.Upsert(ctx, records[start:end]); err != nil {
			outcome.Err = err
			slog.WarnContext(ctx, "upsert batch failed", "batch", n, "start", start, "end", end, "error", err)
		}
		report.Batches = append(report.Batches, outcome)
	}
	return report, nil
}
