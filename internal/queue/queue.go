package queue

import (
	"context"
	"fmt"
)

const (
	// WorkQueue carries one message per classification task.
	WorkQueue = "classify"
	// DLQ receives messages the consumer rejected as unparseable.
	DLQ = "dlq.classify"
)

// Publisher publishes task messages to the work queue.
type Publisher interface {
	Publish(ctx context.Context, msg TaskMessage) error
	Close() error
}

// MessageHandler handles a consumed task message.
type MessageHandler func(ctx context.Context, msg TaskMessage) error

// Consumer consumes task messages from the work queue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

func validateHandlerArgs(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}
	return nil
}
