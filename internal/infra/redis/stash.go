package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"classify-engine/internal/domain"
)

const defaultPayloadTTL = 24 * time.Hour

// PayloadStash hands raw upload bytes from the api process to the worker
// process. The broker message carries only identifiers; the bytes live here
// under the task id until the worker picks them up.
type PayloadStash struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPayloadStash(client *goredis.Client, ttl time.Duration) (*PayloadStash, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultPayloadTTL
	}

	return &PayloadStash{client: client, ttl: ttl}, nil
}

func payloadKey(taskID string) string {
	return fmt.Sprintf("payload:task:%s", taskID)
}

func (s *PayloadStash) Put(ctx context.Context, taskID string, data []byte) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("payload stash is not initialized")
	}
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("task id is required")
	}

	if err := s.client.Set(ctx, payloadKey(taskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to stash payload for task %s: %w", taskID, err)
	}
	return nil
}

func (s *PayloadStash) Get(ctx context.Context, taskID string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("payload stash is not initialized")
	}

	data, err := s.client.Get(ctx, payloadKey(taskID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: payload for task %s", domain.ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payload for task %s: %w", taskID, err)
	}
	return data, nil
}

// Delete removes a consumed payload. Best-effort; expiry covers leaks.
func (s *PayloadStash) Delete(ctx context.Context, taskID string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("payload stash is not initialized")
	}
	return s.client.Del(ctx, payloadKey(taskID)).Err()
}
