package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nsqio/go-nsq"

	"pdfrag/features/job"
	"pdfrag/internal/middleware"
	"pdfrag/internal/rag"
)

const HandlerIngestFile = "ingest_file"

type Ingester interface {
	Ingest(ctx context.Context, data []byte, filename string) (rag.IngestResult, error)
}

// IngestConsumer runs the ingestion pipeline for uploads queued on
// config.TopicIngestFile. Messages are always finished; failures land in
// failed_jobs for a manual retry.
type IngestConsumer struct {
	ingester Ingester
	jobRepo  job.Repository
}

func NewIngestConsumer(i Ingester, j job.Repository) *IngestConsumer {
	return &IngestConsumer{ingester: i, jobRepo: j}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestFilePayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.Path == "" {
		slog.Error("poison pill: ingest task without path")
		return nil
	}
	if payload.Filename == "" {
		payload.Filename = filepath.Base(payload.Path)
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	result, err := h.ingest(ctx, payload)
	if err != nil {
		slog.ErrorContext(ctx, "async ingest failed", "filename", payload.Filename, "chunks_stored", result.ChunksStored, "error", err)
		h.saveFailed(ctx, payload, m.Body, err)
		return nil
	}

	slog.InfoContext(ctx, "async ingest completed", "filename", payload.Filename, "chunks_stored", result.ChunksStored, "metadata_ok", result.Metadata.OK())
	return nil
}

func (h *IngestConsumer) ingest(ctx context.Context, payload IngestFilePayload) (rag.IngestResult, error) {
	data, err := os.ReadFile(filepath.Clean(payload.Path)) // #nosec G304 -- path was written by the upload handler
	if err != nil {
		return rag.IngestResult{Filename: payload.Filename}, fmt.Errorf("read upload: %w", err)
	}
	return h.ingester.Ingest(ctx, data, payload.Filename)
}

func (h *IngestConsumer) saveFailed(ctx context.Context, payload IngestFilePayload, body []byte, cause error) {
	if h.jobRepo == nil {
		return
	}
	failed := &job.Job{
		Filename: payload.Filename,
		Handler:  HandlerIngestFile,
		Payload:  body,
		Error:    cause.Error(),
		Retries:  payload.Retries,
	}
	if err := h.jobRepo.Save(ctx, failed); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err)
		return
	}
	slog.InfoContext(ctx, "saved failed job for retry", "job_id", failed.ID)
}
