package repository

import (
	"context"
	"errors"

	"classify-engine/internal/domain"
	"gorm.io/gorm"
)

type BatchRepository interface {
	Create(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	List(ctx context.Context) ([]domain.Batch, error)
	// MarkRunning flips QUEUED -> RUNNING; reports whether this call made
	// the transition.
	MarkRunning(ctx context.Context, id string) (bool, error)
	// CompleteIfRunning flips RUNNING -> COMPLETED; the conditional update
	// makes the terminal transition happen exactly once under concurrent
	// finishers.
	CompleteIfRunning(ctx context.Context, id string) (bool, error)
	// MarkFailed force-fails a batch on orchestration faults, regardless of
	// its current non-terminal state.
	MarkFailed(ctx context.Context, id string) error
	// SetTotalCount records the task count once expansion finishes.
	SetTotalCount(ctx context.Context, id string, totalCount int) error
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) Create(ctx context.Context, b *domain.Batch) error {
	model := batchModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *batchModelToDomain(model)
	}
	return nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

func (r *GormBatchRepo) List(ctx context.Context) ([]domain.Batch, error) {
	var models []BatchModel
	err := r.db.WithContext(ctx).
		Order("upload_time DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, nil
}

func (r *GormBatchRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, domain.BatchStatusQueued).
		Update("status", domain.BatchStatusRunning)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormBatchRepo) CompleteIfRunning(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status = ?", id, domain.BatchStatusRunning).
		Update("status", domain.BatchStatusCompleted)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormBatchRepo) SetTotalCount(ctx context.Context, id string, totalCount int) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", id).
		Update("total_count", totalCount)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBatchRepo) MarkFailed(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ? AND status NOT IN ?", id, []domain.BatchStatus{
			domain.BatchStatusCompleted,
			domain.BatchStatusFailed,
		}).
		Update("status", domain.BatchStatusFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
