package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the processing state of a batch.
type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "QUEUED"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusQueued, BatchStatusRunning, BatchStatusCompleted, BatchStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further batch transition may occur.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch groups the tasks created from one upload submission.
//
// A batch moves QUEUED -> RUNNING -> COMPLETED or FAILED and never regresses.
// COMPLETED means every task reached a terminal state; individual task
// failures do not fail the batch. FAILED is reserved for orchestration
// faults such as a corrupt archive.
type Batch struct {
	ID         string      `gorm:"type:uuid;primaryKey"`
	TotalCount int         `gorm:"not null"`
	Status     BatchStatus `gorm:"type:varchar(20);not null"`
	UploadTime time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
