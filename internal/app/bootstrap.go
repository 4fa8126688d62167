package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nsqio/go-nsq"

	"pdfrag/internal/config"
	"pdfrag/internal/rag"
	"pdfrag/internal/vector"
)

type Dependencies struct {
	DB          *sql.DB
	Providers   *rag.Providers
	NSQProducer *nsq.Producer
}

// Publisher returns the producer as a TaskPublisher, or nil when NSQ is not configured.
func (d *Dependencies) Publisher() TaskPublisher {
	if d.NSQProducer == nil {
		return nil
	}
	return d.NSQProducer
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

type bootstrapOptions struct {
	providers *rag.Providers
}

type Option func(*bootstrapOptions)

// WithProviders replaces the providers built from config.
func WithProviders(p *rag.Providers) Option {
	return func(o *bootstrapOptions) {
		o.providers = p
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config, opts ...Option) (*Dependencies, error) {
	o := bootstrapOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	// Database
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Migrations
	if err := Migrate(db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	// Providers
	providers := o.providers
	if providers == nil {
		providers = NewProviders(cfg)
	}
	if err := providers.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("provider init error: %w", err)
	}

	deps := &Dependencies{DB: db, Providers: providers}

	// NSQ Producer
	if cfg.NSQDHost != "" {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer

		if cfg.NSQDHTTP != "" {
			createTopics(cfg.NSQDHTTP)
		}
	}

	return deps, nil
}

// OpenDB opens the metadata database and waits for it to answer pings.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.MetadataDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	attempts := cfg.BootstrapRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "driver", cfg.MetadataDriver)
		if i < attempts-1 {
			if sleepErr := sleep(ctx, retryDelay); sleepErr != nil {
				break
			}
		}
	}
	db.Close()
	return nil, fmt.Errorf("failed to ping db: %w", err)
}

// Migrate applies the driver's migrations found under cfg.MigrationPath.
func Migrate(db *sql.DB, cfg *config.Config) error {
	var (
		driver database.Driver
		err    error
	)
	switch cfg.MetadataDriver {
	case config.DriverPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case config.DriverSQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return fmt.Errorf("%w: unsupported metadata driver %q", rag.ErrConfiguration, cfg.MetadataDriver)
	}
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(MigrationSource(cfg), cfg.MetadataDriver, driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

// MigrationSource is the per-driver directory under the migration root.
func MigrationSource(cfg *config.Config) string {
	return strings.TrimRight(cfg.MigrationPath, "/") + "/" + cfg.MetadataDriver
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestFile)
	}()
}

// EnsureIndexWithRetry retries EnsureIndex on transient failures. Configuration
// errors and readiness timeouts are returned immediately.
func EnsureIndexWithRetry(ctx context.Context, m vector.Manager, spec vector.IndexSpec, wait vector.ReadyWait, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = vector.EnsureIndex(ctx, m, spec, wait); err == nil {
			return nil
		}
		if errors.Is(err, rag.ErrConfiguration) || errors.Is(err, rag.ErrIndexNotReady) {
			return err
		}
		slog.WarnContext(ctx, "vector index not reachable, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			if sleepErr := sleep(ctx, delay); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
