package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pdfrag/internal/config"
	"pdfrag/internal/rag"
)

func validConfig() config.Config {
	return config.Config{
		MetadataDriver:     config.DriverPostgres,
		DBHost:             "localhost",
		DBUser:             "user",
		DBName:             "db",
		VectorBackend:      config.BackendWeaviate,
		WeaviateHost:       "localhost:8080",
		IndexName:          "PdfChunk",
		IndexDimension:     384,
		ChunkSize:          800,
		ChunkOverlap:       50,
		ChunkIDScope:       "position",
		RetrievalK:         3,
		UpsertBatchSize:    100,
		EmbeddingProvider:  config.ProviderOllama,
		GenerationProvider: config.ProviderOllama,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		errIs  error
	}{
		{"Valid Config", func(c *config.Config) {}, nil},
		{"Missing DBHost", func(c *config.Config) { c.DBHost = "" }, config.ErrMissingRequired},
		{"Missing DBUser", func(c *config.Config) { c.DBUser = "" }, config.ErrMissingRequired},
		{"Missing DBName", func(c *config.Config) { c.DBName = "" }, config.ErrMissingRequired},
		{"SQLite Ignores DB Host", func(c *config.Config) {
			c.MetadataDriver = config.DriverSQLite
			c.DBHost = ""
			c.SQLitePath = "x.db"
		}, nil},
		{"Unknown Driver", func(c *config.Config) { c.MetadataDriver = "mysql" }, rag.ErrConfiguration},
		{"Overlap Equals Size", func(c *config.Config) { c.ChunkOverlap = 800 }, rag.ErrConfiguration},
		{"Zero Chunk Size", func(c *config.Config) { c.ChunkSize = 0 }, rag.ErrConfiguration},
		{"Zero K", func(c *config.Config) { c.RetrievalK = 0 }, rag.ErrConfiguration},
		{"Zero Batch", func(c *config.Config) { c.UpsertBatchSize = 0 }, rag.ErrConfiguration},
		{"Zero Dimension", func(c *config.Config) { c.IndexDimension = 0 }, rag.ErrConfiguration},
		{"Unknown Scope", func(c *config.Config) { c.ChunkIDScope = "global" }, rag.ErrConfiguration},
		{"Unknown Backend", func(c *config.Config) { c.VectorBackend = "qdrant" }, rag.ErrConfiguration},
		{"Unknown Provider", func(c *config.Config) { c.EmbeddingProvider = "cohere" }, rag.ErrConfiguration},
		{"Gemini Without Key", func(c *config.Config) { c.GenerationProvider = config.ProviderGemini }, config.ErrMissingRequired},
		{"OpenAI Without Key", func(c *config.Config) { c.EmbeddingProvider = config.ProviderOpenAI }, config.ErrMissingRequired},
		{"Gemini With Key", func(c *config.Config) {
			c.GenerationProvider = config.ProviderGemini
			c.GeminiAPIKey = "k"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.errIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}
