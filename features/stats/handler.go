package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"pdfrag/internal/middleware"
)

type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Handler reports how much each store holds. The chunk table and the index
// are counted separately since metadata writes are best-effort.
type Handler struct {
	chunkRepo Counter
	jobRepo   Counter
	index     Counter
}

// NewHandler builds the stats route. index may be nil when the backend cannot count.
func NewHandler(chunks, jobs, index Counter) *Handler {
	return &Handler{chunkRepo: chunks, jobRepo: jobs, index: index}
}

type StatsResponse struct {
	ChunkRows      int  `json:"chunk_rows"`
	IndexedVectors *int `json:"indexed_vectors"`
	FailedJobs     int  `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.chunkRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunk rows", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunk rows", http.StatusInternalServerError)
		return
	}

	jobs, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{ChunkRows: rows, FailedJobs: jobs}

	// An unreachable index is reported as null rather than failing the request.
	if h.index != nil {
		if vectors, err := h.index.Count(ctx); err != nil {
			slog.WarnContext(ctx, "failed to count indexed vectors", "error", err)
		} else {
			resp.IndexedVectors = &vectors
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
