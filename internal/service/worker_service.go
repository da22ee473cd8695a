package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"classify-engine/internal/classifier"
	"classify-engine/internal/domain"
	"classify-engine/internal/observability"
	"classify-engine/internal/queue"
	"classify-engine/internal/repository"
	"classify-engine/internal/storage"
)

const minWorkerConcurrency = 1

// WorkerService consumes task messages and runs the classify-and-store
// executor for each. A task's failure never escapes the executor boundary:
// classifier and storage errors become the task's FAILED outcome.
type WorkerService struct {
	tasks       repository.TaskRepository
	aggregator  *Aggregator
	consumer    queue.Consumer
	classifier  classifier.Classifier
	store       storage.Store
	stash       PayloadStash
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewWorkerService(
	tasks repository.TaskRepository,
	aggregator *Aggregator,
	consumer queue.Consumer,
	imageClassifier classifier.Classifier,
	store storage.Store,
	stash PayloadStash,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if imageClassifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if stash == nil {
		return nil, fmt.Errorf("payload stash is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		tasks:       tasks,
		aggregator:  aggregator,
		consumer:    consumer,
		classifier:  imageClassifier,
		store:       store,
		stash:       stash,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the work queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.TaskMessage) error {
	// Fetch before claiming: a transient stash failure is returned so the
	// delivery is requeued, and that only recovers the task if it is still
	// QUEUED and claimable when the redelivery arrives.
	payload, err := s.stash.Get(ctx, msg.TaskID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to fetch payload: %w", err)
		}
		// The stash entry expired; the task can never run and must be
		// closed out rather than requeued forever.
		outcome := domain.TaskOutcome{OK: false, Detail: "payload expired before processing"}
		if termErr := s.aggregator.MarkTaskTerminal(ctx, msg.TaskID, msg.BatchID, outcome); termErr != nil {
			return termErr
		}
		return nil
	}

	task, err := s.tasks.ClaimForRun(ctx, msg.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("task not found during claim, skipping",
				zap.String("taskId", msg.TaskID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim task for run: %w", err)
	}

	// Nil means another worker claimed it or it is already terminal;
	// ack and skip.
	if task == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight()
		defer s.metrics.DecWorkerInFlight()
	}

	outcome := s.execute(ctx, task, payload)

	if err := s.aggregator.MarkTaskTerminal(ctx, task.ID, task.BatchID, outcome); err != nil {
		return err
	}

	if err := s.stash.Delete(ctx, task.ID); err != nil {
		s.logger.Warn("failed to delete consumed payload",
			zap.String("taskId", task.ID),
			zap.Error(err),
		)
	}

	return nil
}

// execute runs one classify-and-store operation and never returns an error:
// any collaborator failure is the task's terminal outcome. A storage failure
// after a successful classification coalesces into the same FAILED outcome
// as a classification failure; the obtained label is logged before being
// discarded.
func (s *WorkerService) execute(ctx context.Context, task *domain.Task, payload []byte) domain.TaskOutcome {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveTaskProcessDuration(s.now().Sub(start))
		}
	}()

	label, err := s.classifier.Classify(ctx, payload)
	if err != nil {
		s.logger.Warn("classification failed",
			zap.String("taskId", task.ID),
			zap.String("filename", task.Filename),
			zap.Error(err),
		)
		return domain.TaskOutcome{OK: false, Detail: err.Error()}
	}

	if err := s.store.Put(ctx, task.BatchID, task.Filename, payload); err != nil {
		s.logger.Warn("storage failed, discarding classification result",
			zap.String("taskId", task.ID),
			zap.String("filename", task.Filename),
			zap.String("discardedLabel", label),
			zap.Error(err),
		)
		return domain.TaskOutcome{OK: false, Detail: err.Error()}
	}

	return domain.TaskOutcome{OK: true, Detail: label}
}
