package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pdfrag",
		Short:         "Question answering over uploaded PDF documents",
		Long:          "Ingests PDFs into a vector index and answers questions with retrieval-augmented generation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(createServeCommand())
	rootCmd.AddCommand(createIngestCommand())
	rootCmd.AddCommand(createAskCommand())
	rootCmd.AddCommand(createMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads config and installs the JSON logger as the default.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log, nil
}

func createServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the ingest worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.ServerPort = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8081, "Server port (overrides SERVER_PORT)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer deps.Close()

	application, err := app.New(cfg, deps.DB, deps.Providers, deps.Publisher(), log)
	if err != nil {
		return fmt.Errorf("app init failed: %w", err)
	}

	if cfg.EnableIngestWorker && deps.NSQProducer != nil {
		consumer, err := application.StartConsumer(cfg)
		if err != nil {
			log.Error("failed to start ingest worker", "error", err)
		} else {
			defer consumer.Stop()
		}
	}

	return application.Run(ctx)
}

// offline prepares the app for one-shot commands that do not need the queue.
func offline(ctx context.Context) (*app.App, *app.Dependencies, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	cfg.NSQDHost = ""

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap failed: %w", err)
	}
	application, err := app.New(cfg, deps.DB, deps.Providers, nil, log)
	if err != nil {
		deps.Close()
		return nil, nil, fmt.Errorf("app init failed: %w", err)
	}
	return application, deps, nil
}

func createIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Ingest one or more PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, deps, err := offline(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()

			out := cmd.OutOrStdout()
			var failed []error
			for _, path := range args {
				data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is a CLI argument
				if err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				result, err := application.Pipeline.Ingest(cmd.Context(), data, filepath.Base(path))
				if err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
				}
				fmt.Fprintf(out, "%s: %d characters, %d chunks indexed, %d metadata rows",
					filepath.Base(path), result.TextLength, result.ChunksStored, result.Metadata.Stored)
				if !result.Metadata.OK() {
					fmt.Fprintf(out, " (metadata error: %v)", result.Metadata.Err)
				}
				fmt.Fprintln(out)
			}
			return errors.Join(failed...)
		},
	}
}

func createAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the ingested documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, deps, err := offline(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()

			ans := application.Retrieval.Ask(cmd.Context(), strings.Join(args, " "))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			for i, s := range ans.Sources {
				fmt.Fprintf(out, "\n[%d] %s\n", i+1, s)
			}
			return nil
		},
	}
}

func createMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply metadata database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			db, err := app.OpenDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := app.Migrate(db, cfg); err != nil {
				return err
			}
			slog.Info("migrations applied", "driver", cfg.MetadataDriver, "source", app.MigrationSource(cfg))
			return nil
		},
	}
}
