package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"pdfrag/internal/config"
)

var ErrQueueUnavailable = errors.New("task queue is not configured")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	logger *slog.Logger
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry republishes the stored ingest task with its retry count bumped and
// removes the job once the queue accepted it.
func (s *Service) Retry(ctx context.Context, id string) error {
	if s.pub == nil {
		return ErrQueueUnavailable
	}
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var task map[string]any
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return fmt.Errorf("decode payload of job %s: %w", id, err)
	}
	task["retries"] = job.Retries + 1
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestFile, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "job requeued", "id", id, "filename", job.Filename, "retries", job.Retries+1)
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
