package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

const batchDoneChannel = "batch:done"

// BatchEvents publishes and subscribes batch terminal-state notifications.
// The completion watcher listens here so it does not have to rely on polling
// alone; pub/sub delivery is best-effort and the watcher keeps a polling
// fallback.
type BatchEvents struct {
	client *goredis.Client
}

func NewBatchEvents(client *goredis.Client) (*BatchEvents, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &BatchEvents{client: client}, nil
}

// PublishDone announces that a batch reached a terminal state. Failures are
// returned for logging only; state already lives in the database.
func (e *BatchEvents) PublishDone(ctx context.Context, batchID string) error {
	if e == nil || e.client == nil {
		return fmt.Errorf("batch events is not initialized")
	}
	if strings.TrimSpace(batchID) == "" {
		return fmt.Errorf("batch id is required")
	}
	return e.client.Publish(ctx, batchDoneChannel, batchID).Err()
}

// SubscribeDone delivers terminal batch ids on the returned channel until the
// context is canceled. The caller must invoke the returned close function.
func (e *BatchEvents) SubscribeDone(ctx context.Context) (<-chan string, func() error, error) {
	if e == nil || e.client == nil {
		return nil, nil, fmt.Errorf("batch events is not initialized")
	}

	sub := e.client.Subscribe(ctx, batchDoneChannel)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, sub.Close, nil
}
