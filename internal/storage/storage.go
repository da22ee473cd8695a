package storage

import (
	"context"
	"fmt"
	"strings"
)

// Store persists raw uploaded bytes keyed by batch and filename.
type Store interface {
	Put(ctx context.Context, batchID, filename string, data []byte) error
}

// StorageError describes a failed object-store call.
type StorageError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "storage error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
