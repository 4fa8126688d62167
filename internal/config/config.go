package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"pdfrag/internal/rag"
	"pdfrag/internal/text"
)

var ErrMissingRequired = errors.New("missing required configuration")

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendWeaviate = "weaviate"
	BackendChromem  = "chromem"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	// Metadata store
	MetadataDriver string `envconfig:"METADATA_DRIVER" default:"postgres"`
	DBHost         string `envconfig:"DB_HOST" default:"postgres"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" default:"pdfrag"`
	DBPass         string `envconfig:"DB_PASS" default:"password"`
	DBName         string `envconfig:"DB_NAME" default:"pdfrag"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"data/pdfrag.db"`
	MigrationPath  string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Vector index
	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost     string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme   string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	ChromemPath      string `envconfig:"CHROMEM_PATH" default:"data/chromem"`
	IndexName        string `envconfig:"INDEX_NAME" default:"PdfChunk"`
	IndexDimension   int    `envconfig:"INDEX_DIMENSION" default:"384"`
	IndexMetric      string `envconfig:"INDEX_METRIC" default:"cosine"`
	IndexReadySecs   int    `envconfig:"INDEX_READY_TIMEOUT_SECONDS" default:"30"`
	IndexReadyPollMs int    `envconfig:"INDEX_READY_POLL_MILLIS" default:"500"`
	UpsertBatchSize  int    `envconfig:"UPSERT_BATCH_SIZE" default:"100"`

	// Models
	EmbeddingProvider     string  `envconfig:"EMBEDDING_PROVIDER" default:"ollama"`
	EmbeddingModel        string  `envconfig:"EMBEDDING_MODEL" default:"all-minilm"`
	GenerationProvider    string  `envconfig:"GENERATION_PROVIDER" default:"ollama"`
	GenerationModel       string  `envconfig:"GENERATION_MODEL" default:"llama3.2"`
	GenerationMaxTokens   int     `envconfig:"GENERATION_MAX_TOKENS" default:"512"`
	GenerationTemperature float64 `envconfig:"GENERATION_TEMPERATURE" default:"0.1"`
	OllamaURL             string  `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OpenAIAPIKey          string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL         string  `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey          string  `envconfig:"GEMINI_API_KEY"`
	ProviderTimeoutSecs   int     `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"120"`

	// Pipelines
	ChunkSize    int    `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int    `envconfig:"CHUNK_OVERLAP" default:"50"`
	ChunkIDScope string `envconfig:"CHUNK_ID_SCOPE" default:"position"`
	RetrievalK   int    `envconfig:"RETRIEVAL_K" default:"3"`

	// Queue
	NSQLookupd         string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost           string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP           string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.MetadataDriver {
	case DriverPostgres:
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: unknown METADATA_DRIVER %q", rag.ErrConfiguration, c.MetadataDriver)
	}

	if err := text.ValidateWindow(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.RetrievalK < 1 {
		return fmt.Errorf("%w: RETRIEVAL_K must be at least 1", rag.ErrConfiguration)
	}
	if c.UpsertBatchSize < 1 {
		return fmt.Errorf("%w: UPSERT_BATCH_SIZE must be at least 1", rag.ErrConfiguration)
	}
	if c.IndexDimension < 1 {
		return fmt.Errorf("%w: INDEX_DIMENSION must be at least 1", rag.ErrConfiguration)
	}
	if c.IndexName == "" {
		return fmt.Errorf("%w: INDEX_NAME", ErrMissingRequired)
	}
	if c.ChunkIDScope != "position" && c.ChunkIDScope != "document" {
		return fmt.Errorf("%w: unknown CHUNK_ID_SCOPE %q", rag.ErrConfiguration, c.ChunkIDScope)
	}

	switch c.VectorBackend {
	case BackendWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
	case BackendChromem:
	default:
		return fmt.Errorf("%w: unknown VECTOR_BACKEND %q", rag.ErrConfiguration, c.VectorBackend)
	}

	for _, p := range []struct{ env, name string }{
		{"EMBEDDING_PROVIDER", c.EmbeddingProvider},
		{"GENERATION_PROVIDER", c.GenerationProvider},
	} {
		switch p.name {
		case ProviderOllama:
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
			}
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
			}
		default:
			return fmt.Errorf("%w: unknown %s %q", rag.ErrConfiguration, p.env, p.name)
		}
	}
	return nil
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSecs) * time.Second
}

func (c *Config) IndexReadyTimeout() time.Duration {
	return time.Duration(c.IndexReadySecs) * time.Second
}

func (c *Config) IndexReadyInterval() time.Duration {
	return time.Duration(c.IndexReadyPollMs) * time.Millisecond
}

// DSN returns the connection string for the configured metadata driver.
func (c *Config) DSN() string {
	if c.MetadataDriver == DriverSQLite {
		return "file:" + filepath.Clean(c.SQLitePath) + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

// EnsureDirs creates the local directories the configured backends write into.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.UploadDir}
	if c.MetadataDriver == DriverSQLite {
		dirs = append(dirs, filepath.Dir(c.SQLitePath))
	}
	if c.VectorBackend == BackendChromem && c.ChromemPath != "" {
		dirs = append(dirs, c.ChromemPath)
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
