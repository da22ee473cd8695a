package domain

import "errors"

var (
	// ErrNotFound indicates a batch or task lookup for an unknown identifier.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid caller-supplied input.
	ErrValidation = errors.New("validation error")
	// ErrConflict indicates a state transition raced with another writer.
	ErrConflict = errors.New("conflict")
	// ErrArchiveCorrupt indicates an uploaded archive that cannot be opened.
	// It fails the whole batch; no tasks are created.
	ErrArchiveCorrupt = errors.New("archive corrupt")
)
