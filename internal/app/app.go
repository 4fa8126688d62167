package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"pdfrag/features/document"
	"pdfrag/features/job"
	"pdfrag/features/stats"
	"pdfrag/internal/config"
	"pdfrag/internal/extract"
	"pdfrag/internal/ingest"
	"pdfrag/internal/middleware"
	"pdfrag/internal/rag"
	"pdfrag/internal/retrieval"
	"pdfrag/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	Pipeline       *ingest.Pipeline
	Retrieval      *retrieval.Service
	IngestConsumer *worker.IngestConsumer

	port int
}

// New wires repositories, pipelines and handlers. taskPub may be nil, in which
// case async uploads and job retries answer 503.
func New(
	cfg *config.Config,
	db *sql.DB,
	providers *rag.Providers,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Repositories
	chunkRepo := document.NewSQLRepo(db)
	jobRepo := job.NewSQLRepo(db)

	// Pipelines
	pipeline, err := ingest.NewPipeline(providers, extract.NewPDF(), chunkRepo, ingest.Options{
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
		BatchSize:       cfg.UpsertBatchSize,
		IDScope:         cfg.ChunkIDScope,
		ProviderTimeout: cfg.ProviderTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("ingest pipeline: %w", err)
	}

	queryLogger := retrieval.NewQueryLogger(os.Stdout)
	if cfg.QueryLogPath != "" {
		fileLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
		if err != nil {
			logger.Warn("failed to create query logger, falling back to stdout", "error", err)
		} else {
			queryLogger = fileLogger
		}
	}

	retrievalService, err := retrieval.NewService(providers, cfg.RetrievalK, cfg.ProviderTimeout(), queryLogger)
	if err != nil {
		return nil, fmt.Errorf("retrieval service: %w", err)
	}

	// Feature: Document
	documentHandler := document.NewHandler(pipeline, retrievalService, chunkRepo, taskPub, cfg.UploadDir, cfg.MaxUploadSizeMB)

	// Feature: Job
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(chunkRepo, jobRepo, indexCounter(providers))

	// Worker
	ingestConsumer := worker.NewIngestConsumer(pipeline, jobRepo)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /upload", middleware.CorrelationID(middleware.CORS(documentHandler.Upload)))
	mux.Handle("POST /upload/", middleware.CorrelationID(middleware.CORS(documentHandler.Upload)))
	mux.Handle("POST /upload/async", middleware.CorrelationID(middleware.CORS(documentHandler.UploadAsync)))
	mux.Handle("POST /ask", middleware.CorrelationID(middleware.CORS(documentHandler.Ask)))
	mux.Handle("POST /ask/", middleware.CorrelationID(middleware.CORS(documentHandler.Ask)))
	mux.Handle("GET /chunks", middleware.CorrelationID(middleware.CORS(documentHandler.ListChunks)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(middleware.CORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(middleware.CORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(middleware.CORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", health(providers))

	return &App{
		Handler:        mux,
		Pipeline:       pipeline,
		Retrieval:      retrievalService,
		IngestConsumer: ingestConsumer,
		port:           cfg.ServerPort,
	}, nil
}

// indexCounter returns the index as a stats.Counter when the backend supports counting.
func indexCounter(p *rag.Providers) stats.Counter {
	idx, err := p.Index()
	if err != nil {
		return nil
	}
	if c, ok := idx.(stats.Counter); ok {
		return c
	}
	return nil
}

func health(p *rag.Providers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          "ok",
			"providers_ready": p.Ready(),
		}); err != nil {
			slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		}
	}
}

// StartConsumer subscribes the ingest worker to the file topic on nsqd.
func (a *App) StartConsumer(cfg *config.Config) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicIngestFile, config.ChannelIngest, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(a.IngestConsumer)

	if cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("nsq connect error: %w", err)
	}
	slog.Info("NSQ ingest consumer connected", "topic", config.TopicIngestFile, "channel", config.ChannelIngest)
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
