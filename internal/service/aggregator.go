package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"classify-engine/internal/domain"
	"classify-engine/internal/observability"
	"classify-engine/internal/repository"
)

// Aggregator owns task and batch terminal transitions. Every path that ends
// a task goes through MarkTaskTerminal so batch completion is recomputed in
// one place.
type Aggregator struct {
	batches repository.BatchRepository
	tasks   repository.TaskRepository
	events  CompletionPublisher
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewAggregator(
	batches repository.BatchRepository,
	tasks repository.TaskRepository,
	events CompletionPublisher,
	logger *zap.Logger,
) (*Aggregator, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		batches: batches,
		tasks:   tasks,
		events:  events,
		logger:  logger,
	}, nil
}

func (a *Aggregator) SetMetrics(metrics *observability.Metrics) {
	if a == nil {
		return
	}
	a.metrics = metrics
}

// MarkTaskTerminal records a task outcome and completes the batch once every
// task of that batch is terminal.
//
// The task write is conditional on the task not being terminal yet, so a
// redelivered message cannot overwrite a recorded outcome. The batch
// completion update is conditional on RUNNING, so two tasks finishing at the
// same time produce exactly one terminal transition.
func (a *Aggregator) MarkTaskTerminal(ctx context.Context, taskID, batchID string, outcome domain.TaskOutcome) error {
	changed, err := a.tasks.FinishTask(ctx, taskID, outcome.Status(), outcome.Detail)
	if err != nil {
		return fmt.Errorf("failed to finish task %s: %w", taskID, err)
	}
	if !changed {
		a.logger.Warn("task already terminal, outcome dropped",
			zap.String("taskId", taskID),
			zap.String("batchId", batchID),
		)
		return nil
	}

	if a.metrics != nil {
		a.metrics.IncTaskFinished(strings.ToLower(outcome.Status().String()))
	}

	return a.completeIfDrained(ctx, batchID)
}

// FailBatch short-circuits per-task bookkeeping on orchestration faults.
func (a *Aggregator) FailBatch(ctx context.Context, batchID string) error {
	if err := a.batches.MarkFailed(ctx, batchID); err != nil {
		return fmt.Errorf("failed to mark batch %s failed: %w", batchID, err)
	}
	a.publishDone(ctx, batchID)
	return nil
}

func (a *Aggregator) completeIfDrained(ctx context.Context, batchID string) error {
	remaining, err := a.tasks.CountNonTerminal(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to count open tasks for batch %s: %w", batchID, err)
	}
	if remaining > 0 {
		return nil
	}

	completed, err := a.batches.CompleteIfRunning(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to complete batch %s: %w", batchID, err)
	}
	if !completed {
		// Another finisher won the transition, or the batch was failed
		// at the orchestration level.
		return nil
	}

	a.logger.Info("batch completed", zap.String("batchId", batchID))
	a.publishDone(ctx, batchID)
	return nil
}

func (a *Aggregator) publishDone(ctx context.Context, batchID string) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishDone(ctx, batchID); err != nil {
		a.logger.Warn("failed to publish batch completion event",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
}
