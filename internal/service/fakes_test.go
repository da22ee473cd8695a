package service

import (
	"context"

	"classify-engine/internal/classifier"
	"classify-engine/internal/domain"
	"classify-engine/internal/notifier"
	"classify-engine/internal/queue"
	"classify-engine/internal/repository"
	"classify-engine/internal/storage"
)

type fakeBatchRepo struct {
	createFn            func(ctx context.Context, b *domain.Batch) error
	getByIDFn           func(ctx context.Context, id string) (*domain.Batch, error)
	listFn              func(ctx context.Context) ([]domain.Batch, error)
	markRunningFn       func(ctx context.Context, id string) (bool, error)
	completeIfRunningFn func(ctx context.Context, id string) (bool, error)
	markFailedFn        func(ctx context.Context, id string) error
	setTotalCountFn     func(ctx context.Context, id string, totalCount int) error
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) List(ctx context.Context) ([]domain.Batch, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeBatchRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	if f.markRunningFn != nil {
		return f.markRunningFn(ctx, id)
	}
	return true, nil
}

func (f *fakeBatchRepo) CompleteIfRunning(ctx context.Context, id string) (bool, error) {
	if f.completeIfRunningFn != nil {
		return f.completeIfRunningFn(ctx, id)
	}
	return true, nil
}

func (f *fakeBatchRepo) MarkFailed(ctx context.Context, id string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id)
	}
	return nil
}

func (f *fakeBatchRepo) SetTotalCount(ctx context.Context, id string, totalCount int) error {
	if f.setTotalCountFn != nil {
		return f.setTotalCountFn(ctx, id, totalCount)
	}
	return nil
}

var _ repository.BatchRepository = (*fakeBatchRepo)(nil)

type fakeTaskRepo struct {
	createBatchFn     func(ctx context.Context, tasks []*domain.Task) error
	getByIDFn         func(ctx context.Context, id string) (*domain.Task, error)
	getByBatchIDFn    func(ctx context.Context, batchID string) ([]domain.Task, error)
	claimForRunFn     func(ctx context.Context, id string) (*domain.Task, error)
	finishTaskFn      func(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error)
	countNonTerminalF func(ctx context.Context, batchID string) (int64, error)
}

func (f *fakeTaskRepo) CreateBatch(ctx context.Context, tasks []*domain.Task) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, tasks)
	}
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTaskRepo) GetByBatchID(ctx context.Context, batchID string) ([]domain.Task, error) {
	if f.getByBatchIDFn != nil {
		return f.getByBatchIDFn(ctx, batchID)
	}
	return nil, nil
}

func (f *fakeTaskRepo) ClaimForRun(ctx context.Context, id string) (*domain.Task, error) {
	if f.claimForRunFn != nil {
		return f.claimForRunFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeTaskRepo) FinishTask(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error) {
	if f.finishTaskFn != nil {
		return f.finishTaskFn(ctx, id, status, result)
	}
	return true, nil
}

func (f *fakeTaskRepo) CountNonTerminal(ctx context.Context, batchID string) (int64, error) {
	if f.countNonTerminalF != nil {
		return f.countNonTerminalF(ctx, batchID)
	}
	return 0, nil
}

var _ repository.TaskRepository = (*fakeTaskRepo)(nil)

type fakeStash struct {
	putFn    func(ctx context.Context, taskID string, data []byte) error
	getFn    func(ctx context.Context, taskID string) ([]byte, error)
	deleteFn func(ctx context.Context, taskID string) error
}

func (f *fakeStash) Put(ctx context.Context, taskID string, data []byte) error {
	if f.putFn != nil {
		return f.putFn(ctx, taskID, data)
	}
	return nil
}

func (f *fakeStash) Get(ctx context.Context, taskID string) ([]byte, error) {
	if f.getFn != nil {
		return f.getFn(ctx, taskID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStash) Delete(ctx context.Context, taskID string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, taskID)
	}
	return nil
}

var _ PayloadStash = (*fakeStash)(nil)

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.TaskMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.TaskMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Publisher = (*fakePublisher)(nil)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Consumer = (*fakeConsumer)(nil)

type fakeClassifier struct {
	classifyFn func(ctx context.Context, image []byte) (string, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, image []byte) (string, error) {
	if f.classifyFn != nil {
		return f.classifyFn(ctx, image)
	}
	return classifier.LabelNone, nil
}

var _ classifier.Classifier = (*fakeClassifier)(nil)

type fakeStore struct {
	putFn func(ctx context.Context, batchID, filename string, data []byte) error
}

func (f *fakeStore) Put(ctx context.Context, batchID, filename string, data []byte) error {
	if f.putFn != nil {
		return f.putFn(ctx, batchID, filename, data)
	}
	return nil
}

var _ storage.Store = (*fakeStore)(nil)

type fakeNotifier struct {
	notifyFn func(ctx context.Context, thread notifier.Thread, msg notifier.Message) error
}

func (f *fakeNotifier) Notify(ctx context.Context, thread notifier.Thread, msg notifier.Message) error {
	if f.notifyFn != nil {
		return f.notifyFn(ctx, thread, msg)
	}
	return nil
}

var _ notifier.Notifier = (*fakeNotifier)(nil)

type fakeEvents struct {
	publishDoneFn   func(ctx context.Context, batchID string) error
	subscribeDoneFn func(ctx context.Context) (<-chan string, func() error, error)
}

func (f *fakeEvents) PublishDone(ctx context.Context, batchID string) error {
	if f.publishDoneFn != nil {
		return f.publishDoneFn(ctx, batchID)
	}
	return nil
}

func (f *fakeEvents) SubscribeDone(ctx context.Context) (<-chan string, func() error, error) {
	if f.subscribeDoneFn != nil {
		return f.subscribeDoneFn(ctx)
	}

	ch := make(chan string)
	return ch, func() error { return nil }, nil
}

var _ CompletionPublisher = (*fakeEvents)(nil)
var _ CompletionSubscriber = (*fakeEvents)(nil)
