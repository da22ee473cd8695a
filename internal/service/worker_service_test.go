package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"classify-engine/internal/classifier"
	"classify-engine/internal/domain"
	"classify-engine/internal/queue"
	"classify-engine/internal/storage"
)

func newWorkerService(
	t *testing.T,
	tasks *fakeTaskRepo,
	batches *fakeBatchRepo,
	events *fakeEvents,
	imageClassifier classifier.Classifier,
	store storage.Store,
	stash PayloadStash,
) *WorkerService {
	t.Helper()

	aggregator, err := NewAggregator(batches, tasks, events, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	worker, err := NewWorkerService(tasks, aggregator, &fakeConsumer{}, imageClassifier, store, stash, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	return worker
}

func TestWorkerServiceProcessMessageSuccess(t *testing.T) {
	t.Parallel()

	task := &domain.Task{
		ID:       "t1",
		BatchID:  "b1",
		Filename: "cat.jpg",
		Status:   domain.TaskStatusRunning,
	}

	var finishedStatus domain.TaskStatus
	var finishedResult string
	var stored bool
	var stashDeleted bool
	var batchCompleted bool

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			if id != "t1" {
				t.Fatalf("claim id = %q, want t1", id)
			}
			return task, nil
		},
		finishTaskFn: func(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error) {
			finishedStatus = status
			finishedResult = result
			return true, nil
		},
		countNonTerminalF: func(ctx context.Context, batchID string) (int64, error) {
			return 0, nil
		},
	}
	batches := &fakeBatchRepo{
		completeIfRunningFn: func(ctx context.Context, id string) (bool, error) {
			batchCompleted = true
			return true, nil
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return []byte("image-bytes"), nil
		},
		deleteFn: func(ctx context.Context, taskID string) error {
			stashDeleted = true
			return nil
		},
	}
	imageClassifier := &fakeClassifier{
		classifyFn: func(ctx context.Context, image []byte) (string, error) {
			return classifier.LabelCat, nil
		},
	}
	store := &fakeStore{
		putFn: func(ctx context.Context, batchID, filename string, data []byte) error {
			if batchID != "b1" || filename != "cat.jpg" {
				t.Fatalf("store called with %q/%q, want b1/cat.jpg", batchID, filename)
			}
			stored = true
			return nil
		},
	}

	worker := newWorkerService(t, tasks, batches, &fakeEvents{}, imageClassifier, store, stash)

	err := worker.processMessage(context.Background(), queue.TaskMessage{
		TaskID:   "t1",
		BatchID:  "b1",
		Filename: "cat.jpg",
	})
	if err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}

	if finishedStatus != domain.TaskStatusDone {
		t.Fatalf("task status = %s, want DONE", finishedStatus)
	}
	if finishedResult != classifier.LabelCat {
		t.Fatalf("task result = %q, want %q", finishedResult, classifier.LabelCat)
	}
	if !stored {
		t.Fatal("image should be stored")
	}
	if !stashDeleted {
		t.Fatal("consumed payload should be deleted")
	}
	if !batchCompleted {
		t.Fatal("last finished task should complete the batch")
	}
}

func TestWorkerServiceProcessMessageClassifyFailure(t *testing.T) {
	t.Parallel()

	var finishedStatus domain.TaskStatus
	var finishedResult string
	storeCalled := false

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "b1", Filename: "dog.png"}, nil
		},
		finishTaskFn: func(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error) {
			finishedStatus = status
			finishedResult = result
			return true, nil
		},
		countNonTerminalF: func(ctx context.Context, batchID string) (int64, error) {
			return 2, nil
		},
	}
	imageClassifier := &fakeClassifier{
		classifyFn: func(ctx context.Context, image []byte) (string, error) {
			return "", &classifier.ClassifierError{StatusCode: 503, Message: "model unavailable"}
		},
	}
	store := &fakeStore{
		putFn: func(ctx context.Context, batchID, filename string, data []byte) error {
			storeCalled = true
			return nil
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return []byte("image-bytes"), nil
		},
	}

	worker := newWorkerService(t, tasks, &fakeBatchRepo{}, &fakeEvents{}, imageClassifier, store, stash)

	err := worker.processMessage(context.Background(), queue.TaskMessage{TaskID: "t2", BatchID: "b1", Filename: "dog.png"})
	if err != nil {
		t.Fatalf("processMessage() error = %v, collaborator failures are task outcomes", err)
	}

	if finishedStatus != domain.TaskStatusFailed {
		t.Fatalf("task status = %s, want FAILED", finishedStatus)
	}
	if finishedResult == "" {
		t.Fatal("failed task should carry the error detail")
	}
	if storeCalled {
		t.Fatal("storage should not be called when classification fails")
	}
}

func TestWorkerServiceProcessMessageStorageFailure(t *testing.T) {
	t.Parallel()

	var finishedStatus domain.TaskStatus

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return &domain.Task{ID: id, BatchID: "b1", Filename: "cat.jpg"}, nil
		},
		finishTaskFn: func(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error) {
			finishedStatus = status
			return true, nil
		},
		countNonTerminalF: func(ctx context.Context, batchID string) (int64, error) {
			return 1, nil
		},
	}
	imageClassifier := &fakeClassifier{
		classifyFn: func(ctx context.Context, image []byte) (string, error) {
			return classifier.LabelCat, nil
		},
	}
	store := &fakeStore{
		putFn: func(ctx context.Context, batchID, filename string, data []byte) error {
			return &storage.StorageError{StatusCode: 500, Message: "disk full"}
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return []byte("image-bytes"), nil
		},
	}

	worker := newWorkerService(t, tasks, &fakeBatchRepo{}, &fakeEvents{}, imageClassifier, store, stash)

	err := worker.processMessage(context.Background(), queue.TaskMessage{TaskID: "t3", BatchID: "b1", Filename: "cat.jpg"})
	if err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}

	// A storage failure after a successful classification is still a task
	// failure; the label is discarded.
	if finishedStatus != domain.TaskStatusFailed {
		t.Fatalf("task status = %s, want FAILED", finishedStatus)
	}
}

func TestWorkerServiceProcessMessageSkipUnclaimable(t *testing.T) {
	t.Parallel()

	classifyCalled := false

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return nil, nil
		},
	}
	imageClassifier := &fakeClassifier{
		classifyFn: func(ctx context.Context, image []byte) (string, error) {
			classifyCalled = true
			return classifier.LabelNone, nil
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return []byte("image-bytes"), nil
		},
	}

	worker := newWorkerService(t, tasks, &fakeBatchRepo{}, &fakeEvents{}, imageClassifier, &fakeStore{}, stash)

	if err := worker.processMessage(context.Background(), queue.TaskMessage{TaskID: "t4", BatchID: "b1", Filename: "x.png"}); err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}
	if classifyCalled {
		t.Fatal("classifier should not run for an unclaimable task")
	}
}

func TestWorkerServiceProcessMessageMissingTaskAck(t *testing.T) {
	t.Parallel()

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			return nil, domain.ErrNotFound
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return []byte("image-bytes"), nil
		},
	}

	worker := newWorkerService(t, tasks, &fakeBatchRepo{}, &fakeEvents{}, &fakeClassifier{}, &fakeStore{}, stash)

	if err := worker.processMessage(context.Background(), queue.TaskMessage{TaskID: "missing", BatchID: "b1", Filename: "x.png"}); err != nil {
		t.Fatalf("processMessage() error = %v, missing task should be acked and skipped", err)
	}
}

func TestWorkerServiceProcessMessageExpiredPayload(t *testing.T) {
	t.Parallel()

	var finishedStatus domain.TaskStatus
	var finishedResult string
	claimCalled := false

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			claimCalled = true
			return &domain.Task{ID: id, BatchID: "b1", Filename: "x.png"}, nil
		},
		finishTaskFn: func(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error) {
			finishedStatus = status
			finishedResult = result
			return true, nil
		},
		countNonTerminalF: func(ctx context.Context, batchID string) (int64, error) {
			return 1, nil
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return nil, domain.ErrNotFound
		},
	}

	worker := newWorkerService(t, tasks, &fakeBatchRepo{}, &fakeEvents{}, &fakeClassifier{}, &fakeStore{}, stash)

	if err := worker.processMessage(context.Background(), queue.TaskMessage{TaskID: "t5", BatchID: "b1", Filename: "x.png"}); err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}

	if finishedStatus != domain.TaskStatusFailed {
		t.Fatalf("task status = %s, want FAILED", finishedStatus)
	}
	if finishedResult != "payload expired before processing" {
		t.Fatalf("task result = %q, want expiry detail", finishedResult)
	}
	if claimCalled {
		t.Fatal("an expired payload should be closed out without claiming the task")
	}
}

func TestWorkerServiceProcessMessageTransientStashErrorRequeues(t *testing.T) {
	t.Parallel()

	claimCalled := false

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			claimCalled = true
			return &domain.Task{ID: id, BatchID: "b1", Filename: "x.png"}, nil
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			return nil, errors.New("redis connection refused")
		},
	}

	worker := newWorkerService(t, tasks, &fakeBatchRepo{}, &fakeEvents{}, &fakeClassifier{}, &fakeStore{}, stash)

	err := worker.processMessage(context.Background(), queue.TaskMessage{TaskID: "t6", BatchID: "b1", Filename: "x.png"})
	if err == nil {
		t.Fatal("processMessage() expected error so the message is requeued")
	}
	// The task must still be QUEUED when the error surfaces, otherwise the
	// redelivery finds a RUNNING row it cannot claim and the task is
	// stranded.
	if claimCalled {
		t.Fatal("a transient stash failure must not claim the task first")
	}
}

func TestWorkerServiceProcessMessageRedeliveryAfterTransientStashError(t *testing.T) {
	t.Parallel()

	status := domain.TaskStatusQueued
	var result string
	stashCalls := 0
	batchCompleted := false

	tasks := &fakeTaskRepo{
		claimForRunFn: func(ctx context.Context, id string) (*domain.Task, error) {
			if status != domain.TaskStatusQueued {
				return nil, nil
			}
			status = domain.TaskStatusRunning
			return &domain.Task{ID: id, BatchID: "b1", Filename: "cat.jpg", Status: status}, nil
		},
		finishTaskFn: func(ctx context.Context, id string, s domain.TaskStatus, r string) (bool, error) {
			if status.IsTerminal() {
				return false, nil
			}
			status = s
			result = r
			return true, nil
		},
		countNonTerminalF: func(ctx context.Context, batchID string) (int64, error) {
			if status.IsTerminal() {
				return 0, nil
			}
			return 1, nil
		},
	}
	batches := &fakeBatchRepo{
		completeIfRunningFn: func(ctx context.Context, id string) (bool, error) {
			batchCompleted = true
			return true, nil
		},
	}
	stash := &fakeStash{
		getFn: func(ctx context.Context, taskID string) ([]byte, error) {
			stashCalls++
			if stashCalls == 1 {
				return nil, errors.New("redis connection refused")
			}
			return []byte("image-bytes"), nil
		},
	}
	imageClassifier := &fakeClassifier{
		classifyFn: func(ctx context.Context, image []byte) (string, error) {
			return classifier.LabelCat, nil
		},
	}

	worker := newWorkerService(t, tasks, batches, &fakeEvents{}, imageClassifier, &fakeStore{}, stash)

	msg := queue.TaskMessage{TaskID: "t7", BatchID: "b1", Filename: "cat.jpg"}

	if err := worker.processMessage(context.Background(), msg); err == nil {
		t.Fatal("first delivery should fail so the message is requeued")
	}
	if status != domain.TaskStatusQueued {
		t.Fatalf("task status after failed delivery = %s, want QUEUED", status)
	}

	if err := worker.processMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if status != domain.TaskStatusDone {
		t.Fatalf("task status after redelivery = %s, want DONE", status)
	}
	if result != classifier.LabelCat {
		t.Fatalf("task result = %q, want %q", result, classifier.LabelCat)
	}
	if !batchCompleted {
		t.Fatal("finishing the recovered task should complete the batch")
	}
}

func TestWorkerServiceStartPropagatesConsumerError(t *testing.T) {
	t.Parallel()

	consumeErr := errors.New("consume failed")
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, handler queue.MessageHandler) error {
			return consumeErr
		},
	}

	aggregator, err := NewAggregator(&fakeBatchRepo{}, &fakeTaskRepo{}, &fakeEvents{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	worker, err := NewWorkerService(&fakeTaskRepo{}, aggregator, consumer, &fakeClassifier{}, &fakeStore{}, &fakeStash{}, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	if err := worker.Start(context.Background()); !errors.Is(err, consumeErr) {
		t.Fatalf("Start() error = %v, want %v", err, consumeErr)
	}
}
