package app_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/rag"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Dimension() int { return 3 }

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeGenerator struct{ prompts []string }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return "forty-two", nil
}

type fakeIndex struct{ records []rag.IndexRecord }

func (i *fakeIndex) Upsert(ctx context.Context, records []rag.IndexRecord) error {
	i.records = append(i.records, records...)
	return nil
}

func (i *fakeIndex) Query(ctx context.Context, vec []float32, k int) ([]rag.Match, error) {
	return []rag.Match{{ID: "chunk_0", Text: "the answer is 42", Score: 0.9}}, nil
}

func (i *fakeIndex) Count(ctx context.Context) (int, error) {
	return len(i.records) + 5, nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		MetadataDriver:         config.DriverSQLite,
		SQLitePath:             filepath.Join(dir, "meta.db"),
		MigrationPath:          "file://../../migrations",
		VectorBackend:          config.BackendChromem,
		ChromemPath:            filepath.Join(dir, "vectors"),
		IndexName:              "PdfChunk",
		IndexDimension:         3,
		IndexMetric:            "cosine",
		UpsertBatchSize:        10,
		ChunkSize:              800,
		ChunkOverlap:           50,
		ChunkIDScope:           "position",
		RetrievalK:             3,
		ProviderTimeoutSecs:    5,
		UploadDir:              filepath.Join(dir, "uploads"),
		QueryLogPath:           filepath.Join(dir, "logs", "query.log"),
		MaxUploadSizeMB:        1,
		BootstrapRetryAttempts: 1,
	}
}

func openTestDB(t *testing.T, cfg *config.Config) *sql.DB {
	require.NoError(t, cfg.EnsureDirs())
	db, err := app.OpenDB(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, app.Migrate(db, cfg))
	return db
}

func newTestApp(t *testing.T, gen *fakeGenerator) *app.App {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	providers := rag.StaticProviders(fakeEmbedder{}, gen, &fakeIndex{})

	a, err := app.New(cfg, db, providers, nil, nil)
	require.NoError(t, err)
	return a
}

func TestNew_Health(t *testing.T) {
	a := newTestApp(t, &fakeGenerator{})

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","providers_ready":true}`, w.Body.String())
}

func TestNew_Health_NotReady(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	providers := rag.NewProviders(nil, nil, nil)

	a, err := app.New(cfg, db, providers, nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","providers_ready":false}`, w.Body.String())
}

func TestNew_Ask(t *testing.T) {
	gen := &fakeGenerator{}
	a := newTestApp(t, gen)

	for _, path := range []string{"/ask", "/ask/"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"question":"What is the answer?"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			a.Handler.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

			var resp struct {
				Data struct {
					Question string   `json:"question"`
					Answer   string   `json:"answer"`
					Sources  []string `json:"sources"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "forty-two", resp.Data.Answer)
			assert.Equal(t, []string{"the answer is 42"}, resp.Data.Sources)
		})
	}
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[0], "the answer is 42")
}

func TestNew_Stats(t *testing.T) {
	a := newTestApp(t, &fakeGenerator{})

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"chunk_rows":0,"indexed_vectors":5,"failed_jobs":0}}`, w.Body.String())
}

func TestNew_JobsAndChunks(t *testing.T) {
	a := newTestApp(t, &fakeGenerator{})

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/failed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"count":0}}`, w.Body.String())

	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chunks?filename=guide.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"count":0}}`, w.Body.String())
}

func TestNew_AsyncUploadWithoutQueue(t *testing.T) {
	a := newTestApp(t, &fakeGenerator{})

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload/async", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_READY")
}

func TestNew_RetryWithoutQueue(t *testing.T) {
	a := newTestApp(t, &fakeGenerator{})

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/jobs/1/retry", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNew_InvalidChunking(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	cfg.ChunkOverlap = cfg.ChunkSize

	_, err := app.New(cfg, db, rag.StaticProviders(fakeEmbedder{}, &fakeGenerator{}, &fakeIndex{}), nil, nil)
	assert.ErrorIs(t, err, rag.ErrConfiguration)
}

func TestNew_InvalidK(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t, cfg)
	cfg.RetrievalK = 0

	_, err := app.New(cfg, db, rag.StaticProviders(fakeEmbedder{}, &fakeGenerator{}, &fakeIndex{}), nil, nil)
	assert.ErrorIs(t, err, rag.ErrConfiguration)
}
