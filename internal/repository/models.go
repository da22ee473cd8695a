package repository

import (
	"time"

	"classify-engine/internal/domain"
)

// BatchModel is the persistence model for batch_uploads.
type BatchModel struct {
	ID         string             `gorm:"type:uuid;primaryKey"`
	TotalCount int                `gorm:"not null"`
	Status     domain.BatchStatus `gorm:"type:varchar(20);not null"`
	UploadTime time.Time          `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (BatchModel) TableName() string {
	return "batch_uploads"
}

// TaskModel is the persistence model for upload_tasks.
type TaskModel struct {
	ID        string            `gorm:"type:uuid;primaryKey"`
	BatchID   string            `gorm:"type:uuid;not null;index"`
	Filename  string            `gorm:"type:varchar(512);not null"`
	Status    domain.TaskStatus `gorm:"type:varchar(20);not null"`
	Result    *string           `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TaskModel) TableName() string {
	return "upload_tasks"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:         b.ID,
		TotalCount: b.TotalCount,
		Status:     b.Status,
		UploadTime: b.UploadTime,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:         m.ID,
		TotalCount: m.TotalCount,
		Status:     m.Status,
		UploadTime: m.UploadTime,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func taskModelFromDomain(t *domain.Task) *TaskModel {
	if t == nil {
		return nil
	}

	return &TaskModel{
		ID:        t.ID,
		BatchID:   t.BatchID,
		Filename:  t.Filename,
		Status:    t.Status,
		Result:    t.Result,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func taskModelToDomain(m *TaskModel) *domain.Task {
	if m == nil {
		return nil
	}

	return &domain.Task{
		ID:        m.ID,
		BatchID:   m.BatchID,
		Filename:  m.Filename,
		Status:    m.Status,
		Result:    m.Result,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
