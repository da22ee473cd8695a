package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a single classification task.
type TaskStatus string

const (
	TaskStatusQueued  TaskStatus = "QUEUED"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusDone    TaskStatus = "DONE"
	TaskStatusFailed  TaskStatus = "FAILED"
)

func (s TaskStatus) String() string { return string(s) }

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusDone, TaskStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the task has reached its final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

func ParseTaskStatusFromString(s string) (TaskStatus, error) {
	st := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid task status %q", ErrValidation, s)
	}
	return st, nil
}

// Task is one trackable item of work: a single image to classify and store.
//
// Result holds the classification label when the task is DONE and an error
// description when it is FAILED. A task makes exactly one terminal
// transition; once DONE or FAILED it never changes again.
type Task struct {
	ID        string     `gorm:"type:uuid;primaryKey"`
	BatchID   string     `gorm:"type:uuid;not null"`
	Filename  string     `gorm:"type:varchar(512);not null"`
	Status    TaskStatus `gorm:"type:varchar(20);not null"`
	Result    *string    `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Task) Validate() error {
	if strings.TrimSpace(t.BatchID) == "" {
		return fmt.Errorf("%w: batch id is required", ErrValidation)
	}
	if strings.TrimSpace(t.Filename) == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, t.Status)
	}
	return nil
}

// TaskOutcome is the terminal result produced by the executor for one task.
type TaskOutcome struct {
	OK     bool
	Detail string
}

func (o TaskOutcome) Status() TaskStatus {
	if o.OK {
		return TaskStatusDone
	}
	return TaskStatusFailed
}
