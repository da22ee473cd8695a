package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classify-engine/internal/domain"
	"classify-engine/internal/expand"
	"classify-engine/internal/observability"
	"classify-engine/internal/queue"
	"classify-engine/internal/repository"
)

// Submission sources, used for metrics labels.
const (
	SourceUpload  = "upload"
	SourceWebhook = "webhook"
)

// UploadService accepts a submission, expands it into tasks, and dispatches
// each task to the work queue. The HTTP caller gets the batch back
// immediately; everything after dispatch happens in the worker process.
type UploadService struct {
	batches    repository.BatchRepository
	tasks      repository.TaskRepository
	aggregator *Aggregator
	stash      PayloadStash
	publisher  queue.Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewUploadService(
	batches repository.BatchRepository,
	tasks repository.TaskRepository,
	aggregator *Aggregator,
	stash PayloadStash,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*UploadService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if stash == nil {
		return nil, fmt.Errorf("payload stash is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &UploadService{
		batches:    batches,
		tasks:      tasks,
		aggregator: aggregator,
		stash:      stash,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *UploadService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Submit creates the batch record, expands the payload into tasks, and
// dispatches each task. It always returns a batch when one was created,
// even if the batch immediately failed; a corrupt archive is a batch-level
// failure, not a request-level error.
func (s *UploadService) Submit(ctx context.Context, payload []byte, filename, source string) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrValidation)
	}

	batch := &domain.Batch{
		ID:         uuid.NewString(),
		Status:     domain.BatchStatusQueued,
		UploadTime: s.now().UTC(),
	}
	// Persist before expansion so a concurrent status query never observes
	// a missing batch.
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncBatchSubmitted(source)
	}

	items, isArchive, err := expand.Expand(payload, filename)
	if err != nil {
		if errors.Is(err, domain.ErrArchiveCorrupt) {
			s.logger.Warn("archive could not be opened, failing batch",
				zap.String("batchId", batch.ID),
				zap.String("filename", filename),
				zap.Error(err),
			)
			if failErr := s.aggregator.FailBatch(ctx, batch.ID); failErr != nil {
				return nil, failErr
			}
			batch.Status = domain.BatchStatusFailed
			return batch, nil
		}
		return nil, err
	}

	tasks := make([]*domain.Task, 0, len(items))
	for i := range items {
		tasks = append(tasks, &domain.Task{
			ID:       uuid.NewString(),
			BatchID:  batch.ID,
			Filename: items[i].Filename,
			Status:   domain.TaskStatusQueued,
		})
	}

	if err := s.tasks.CreateBatch(ctx, tasks); err != nil {
		if failErr := s.aggregator.FailBatch(ctx, batch.ID); failErr != nil {
			s.logger.Error("failed to fail batch after task creation error",
				zap.String("batchId", batch.ID),
				zap.Error(failErr),
			)
		}
		return nil, fmt.Errorf("failed to create tasks: %w", err)
	}

	if err := s.batches.SetTotalCount(ctx, batch.ID, len(tasks)); err != nil {
		return nil, fmt.Errorf("failed to set batch total count: %w", err)
	}
	batch.TotalCount = len(tasks)

	// The RUNNING transition must be observable before any dispatch.
	if _, err := s.batches.MarkRunning(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("failed to mark batch running: %w", err)
	}
	batch.Status = domain.BatchStatusRunning

	if len(tasks) == 0 {
		// Nothing to track; an archive with no matching entries completes
		// immediately.
		if err := s.aggregator.completeIfDrained(ctx, batch.ID); err != nil {
			return nil, err
		}
		batch.Status = domain.BatchStatusCompleted
		s.logger.Info("batch had no matching entries",
			zap.String("batchId", batch.ID),
			zap.Bool("isArchive", isArchive),
		)
		return batch, nil
	}

	for i := range tasks {
		task := tasks[i]
		if err := s.dispatchTask(ctx, task, items[i].Data); err != nil {
			s.logger.Error("failed to dispatch task",
				zap.String("batchId", batch.ID),
				zap.String("taskId", task.ID),
				zap.String("filename", task.Filename),
				zap.Error(err),
			)
			outcome := domain.TaskOutcome{OK: false, Detail: fmt.Sprintf("dispatch failed: %v", err)}
			if termErr := s.aggregator.MarkTaskTerminal(ctx, task.ID, batch.ID, outcome); termErr != nil {
				s.logger.Error("failed to record dispatch failure",
					zap.String("taskId", task.ID),
					zap.Error(termErr),
				)
			}
		}
	}

	s.logger.Info("batch dispatched",
		zap.String("batchId", batch.ID),
		zap.Int("tasks", len(tasks)),
		zap.Bool("isArchive", isArchive),
		zap.String("source", source),
	)

	return batch, nil
}

// GetBatchDetail returns a batch with its tasks for status queries.
func (s *UploadService) GetBatchDetail(ctx context.Context, batchID string) (*domain.Batch, []domain.Task, error) {
	trimmed := strings.TrimSpace(batchID)
	if trimmed == "" {
		return nil, nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, trimmed)
	if err != nil {
		return nil, nil, err
	}

	tasks, err := s.tasks.GetByBatchID(ctx, trimmed)
	if err != nil {
		return nil, nil, err
	}

	return batch, tasks, nil
}

// ListBatches returns the upload history, newest first.
func (s *UploadService) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	return s.batches.List(ctx)
}

func (s *UploadService) dispatchTask(ctx context.Context, task *domain.Task, data []byte) error {
	if err := s.stash.Put(ctx, task.ID, data); err != nil {
		return err
	}

	msg := queue.TaskMessage{
		TaskID:   task.ID,
		BatchID:  task.BatchID,
		Filename: task.Filename,
	}
	return s.publisher.Publish(ctx, msg)
}
