package service

import "context"

// PayloadStash hands raw image bytes between the submitting process and the
// worker process, keyed by task id.
type PayloadStash interface {
	Put(ctx context.Context, taskID string, data []byte) error
	Get(ctx context.Context, taskID string) ([]byte, error)
	Delete(ctx context.Context, taskID string) error
}

// CompletionPublisher announces batch terminal transitions.
type CompletionPublisher interface {
	PublishDone(ctx context.Context, batchID string) error
}

// CompletionSubscriber delivers terminal batch ids as they are announced.
// The returned close function releases the subscription.
type CompletionSubscriber interface {
	SubscribeDone(ctx context.Context) (<-chan string, func() error, error)
}
