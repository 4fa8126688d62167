package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pdfrag/internal/config"
	"pdfrag/internal/middleware"
	"pdfrag/internal/rag"
	"pdfrag/internal/worker"
)

type Ingester interface {
	Ingest(ctx context.Context, data []byte, filename string) (rag.IngestResult, error)
}

type Asker interface {
	Ask(ctx context.Context, question string) rag.Answer
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type Handler struct {
	ingester  Ingester
	asker     Asker
	repo      Repository
	pub       TaskPublisher
	uploadDir string
	maxBytes  int64
}

// NewHandler wires the document routes. pub may be nil, which disables async uploads.
func NewHandler(i Ingester, a Asker, repo Repository, pub TaskPublisher, uploadDir string, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &Handler{
		ingester:  i,
		asker:     a,
		repo:      repo,
		pub:       pub,
		uploadDir: uploadDir,
		maxBytes:  maxUploadMB << 20,
	}
}

type upload struct {
	filename string
	path     string
	data     []byte
}

// receive validates the multipart upload and stores it under the upload dir.
// On failure it has already written the error response.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large or malformed form", http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		h.writeError(ctx, w, "BAD_REQUEST", "Only PDF files are accepted", http.StatusBadRequest)
		return nil, false
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", filepath.Clean(h.uploadDir))
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return nil, false
	}

	path := filepath.Clean(filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filename)))
	dst, err := os.Create(path) // #nosec G304 -- path is uuid + sanitized basename
	if err != nil {
		slog.ErrorContext(ctx, "failed to create file", "error", err, "path", path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return nil, false
	}
	defer dst.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(dst, &buf), file); err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to write file", http.StatusInternalServerError)
		return nil, false
	}

	return &upload{filename: filename, path: path, data: buf.Bytes()}, true
}

// Upload ingests a PDF synchronously. Ingestion keeps running if the client disconnects.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	up, ok := h.receive(w, r)
	if !ok {
		return
	}
	ctx := context.WithoutCancel(r.Context())

	result, err := h.ingester.Ingest(ctx, up.data, up.filename)
	resp := toUploadResponse(result)

	if err != nil {
		slog.ErrorContext(ctx, "ingest failed", "filename", up.filename, "error", err)
		switch {
		case errors.Is(err, rag.ErrUnreadablePDF):
			h.writeError(ctx, w, "UNREADABLE_PDF", err.Error(), http.StatusBadRequest)
		case errors.Is(err, rag.ErrProviderNotInitialized):
			h.writeError(ctx, w, "NOT_READY", err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, rag.ErrIndexUnavailable):
			h.writeErrorWithData(ctx, w, "INDEX_UNAVAILABLE", err.Error(), http.StatusBadGateway, resp)
		default:
			h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": resp})
}

// UploadAsync stores the PDF and queues it for the ingest worker.
func (h *Handler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pub == nil {
		h.writeError(ctx, w, "NOT_READY", "Async ingestion is not configured", http.StatusServiceUnavailable)
		return
	}

	up, ok := h.receive(w, r)
	if !ok {
		return
	}

	body, err := json.Marshal(worker.IngestFilePayload{
		Path:          up.path,
		Filename:      up.filename,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.pub.Publish(config.TopicIngestFile, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "error", err, "filename", up.filename)
		if removeErr := os.Remove(up.path); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up uploaded file", "error", removeErr, "path", up.path)
		}
		h.writeError(ctx, w, "QUEUE_UNAVAILABLE", "Failed to queue ingest task", http.StatusServiceUnavailable)
		return
	}

	slog.InfoContext(ctx, "ingest task queued", "filename", up.filename)
	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]string{"filename": up.filename, "status": "queued"},
	})
}

// Ask answers a question from a form field or a JSON body. Failures are
// reported inside the answer, so a non-empty question always gets a 200.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	question, err := readQuestion(r)
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
		return
	}
	if question == "" {
		h.writeError(ctx, w, "BAD_REQUEST", "Question is required", http.StatusBadRequest)
		return
	}

	ans := h.asker.Ask(ctx, question)
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": AskResponse{Question: question, Answer: ans.Text, Sources: ans.Sources},
	})
}

func readQuestion(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		return strings.TrimSpace(body.Question), nil
	}
	return strings.TrimSpace(r.FormValue("question")), nil
}

func (h *Handler) ListChunks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		h.writeError(ctx, w, "BAD_REQUEST", "filename is required", http.StatusBadRequest)
		return
	}

	records, err := h.repo.ListByFilename(ctx, filename)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list chunks", "error", err, "filename", filename)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []Record{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": records,
		"meta": map[string]int{"count": len(records)},
	})
}

func toUploadResponse(res rag.IngestResult) UploadResponse {
	resp := UploadResponse{
		Filename:     res.Filename,
		TextLength:   res.TextLength,
		ChunksStored: res.ChunksStored,
		Metadata:     MetadataStatus{Stored: res.Metadata.Stored},
	}
	if res.Metadata.Err != nil {
		resp.Metadata.Error = res.Metadata.Err.Error()
	}
	for _, b := range res.Index.Failed() {
		resp.FailedRanges = append(resp.FailedRanges, [2]int{b.Start, b.End})
	}
	return resp
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeErrorWithData(ctx, w, code, message, status, nil)
}

func (h *Handler) writeErrorWithData(ctx context.Context, w http.ResponseWriter, code, message string, status int, data interface{}) {
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if data != nil {
		resp["data"] = data
	}
	h.writeJSON(ctx, w, status, resp)
}
