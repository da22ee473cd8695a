package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"classify-engine/internal/domain"
	"classify-engine/internal/export"
	"classify-engine/internal/notifier"
	"classify-engine/internal/observability"
	"classify-engine/internal/repository"
)

const (
	defaultWatchPollInterval = 5 * time.Second
	defaultWatchMaxWait      = 300 * time.Second
)

// CompletionWatcher waits for a batch to reach a terminal state and posts
// one reply to the originating thread. It prefers completion events over
// polling but keeps the polling fallback; the maximum wait is enforced.
//
// Watch is blocking; callers run it on its own goroutine, detached from the
// request that triggered it.
type CompletionWatcher struct {
	batches      repository.BatchRepository
	tasks        repository.TaskRepository
	notifier     notifier.Notifier
	events       CompletionSubscriber
	logger       *zap.Logger
	metrics      *observability.Metrics
	pollInterval time.Duration
	maxWait      time.Duration
}

func NewCompletionWatcher(
	batches repository.BatchRepository,
	tasks repository.TaskRepository,
	replyNotifier notifier.Notifier,
	events CompletionSubscriber,
	pollInterval time.Duration,
	maxWait time.Duration,
	logger *zap.Logger,
) (*CompletionWatcher, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task repository is required")
	}
	if replyNotifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if pollInterval <= 0 {
		pollInterval = defaultWatchPollInterval
	}
	if maxWait <= 0 {
		maxWait = defaultWatchMaxWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CompletionWatcher{
		batches:      batches,
		tasks:        tasks,
		notifier:     replyNotifier,
		events:       events,
		logger:       logger,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}, nil
}

func (w *CompletionWatcher) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Watch blocks until the batch is terminal or the maximum wait elapses,
// then makes exactly one notification attempt.
func (w *CompletionWatcher) Watch(ctx context.Context, batchID string, thread notifier.Thread) {
	if ctx == nil {
		ctx = context.Background()
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var eventCh <-chan string
	if w.events != nil {
		ch, closeFn, err := w.events.SubscribeDone(subCtx)
		if err != nil {
			w.logger.Warn("completion event subscription failed, polling only",
				zap.String("batchId", batchID),
				zap.Error(err),
			)
		} else {
			eventCh = ch
			defer closeFn() //nolint:errcheck
		}
	}

	deadline := time.NewTimer(w.maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Check once up front; the batch may already be terminal.
	if status, ok := w.checkTerminal(ctx, batchID); ok {
		w.notify(ctx, batchID, thread, status, false)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			w.notify(ctx, batchID, thread, "", true)
			return
		case doneID := <-eventCh:
			if doneID != batchID {
				continue
			}
			if status, ok := w.checkTerminal(ctx, batchID); ok {
				w.notify(ctx, batchID, thread, status, false)
				return
			}
		case <-ticker.C:
			if status, ok := w.checkTerminal(ctx, batchID); ok {
				w.notify(ctx, batchID, thread, status, false)
				return
			}
		}
	}
}

func (w *CompletionWatcher) checkTerminal(ctx context.Context, batchID string) (domain.BatchStatus, bool) {
	batch, err := w.batches.GetByID(ctx, batchID)
	if err != nil {
		w.logger.Warn("failed to poll batch status",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
		return "", false
	}
	if !batch.Status.IsTerminal() {
		return "", false
	}
	return batch.Status, true
}

func (w *CompletionWatcher) notify(ctx context.Context, batchID string, thread notifier.Thread, status domain.BatchStatus, timedOut bool) {
	msg, result := w.buildMessage(ctx, batchID, status, timedOut)

	if err := w.notifier.Notify(ctx, thread, msg); err != nil {
		// Delivery is best-effort and fire-once; never retried.
		w.logger.Error("completion notification failed",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
		if w.metrics != nil {
			w.metrics.IncNotification("failed")
		}
		return
	}

	w.logger.Info("completion notification delivered",
		zap.String("batchId", batchID),
		zap.String("result", result),
	)
	if w.metrics != nil {
		w.metrics.IncNotification(result)
	}
}

func (w *CompletionWatcher) buildMessage(ctx context.Context, batchID string, status domain.BatchStatus, timedOut bool) (notifier.Message, string) {
	if timedOut {
		return notifier.Message{
			Body: fmt.Sprintf("Image classification batch `%s` did not finish within %s.", batchID, w.maxWait),
		}, "timeout"
	}

	if status == domain.BatchStatusFailed {
		return notifier.Message{
			Body: fmt.Sprintf("Image classification batch `%s` failed.", batchID),
		}, "batch_failed"
	}

	tasks, err := w.tasks.GetByBatchID(ctx, batchID)
	if err != nil {
		w.logger.Warn("failed to load tasks for export",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
		return notifier.Message{
			Body: fmt.Sprintf("Image classification batch `%s` completed.", batchID),
		}, "completed"
	}

	done := 0
	failed := 0
	for i := range tasks {
		switch tasks[i].Status {
		case domain.TaskStatusDone:
			done++
		case domain.TaskStatusFailed:
			failed++
		}
	}

	msg := notifier.Message{
		Body: fmt.Sprintf(
			"Image classification batch `%s` completed: %d done, %d failed.",
			batchID, done, failed,
		),
	}

	if csvData, err := export.TasksCSV(tasks); err == nil {
		msg.AttachmentName = fmt.Sprintf("batch_%s_results.csv", batchID)
		msg.Attachment = csvData
	} else {
		w.logger.Warn("failed to render csv export",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}

	return msg, "completed"
}
