package repository

import (
	"context"
	"errors"

	"classify-engine/internal/domain"
	"gorm.io/gorm"
)

type TaskRepository interface {
	CreateBatch(ctx context.Context, tasks []*domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	GetByBatchID(ctx context.Context, batchID string) ([]domain.Task, error)
	// ClaimForRun flips QUEUED -> RUNNING and returns the claimed task.
	// A nil task with nil error means another worker already claimed it or
	// it is terminal; the caller acks and skips. This is the at-most-once
	// execution guard.
	ClaimForRun(ctx context.Context, id string) (*domain.Task, error)
	// FinishTask writes the terminal outcome; the conditional update keeps
	// already-terminal rows untouched and reports whether this call made
	// the transition.
	FinishTask(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error)
	// CountNonTerminal counts a batch's tasks not yet DONE or FAILED.
	CountNonTerminal(ctx context.Context, batchID string) (int64, error)
}

type GormTaskRepo struct {
	db *gorm.DB
}

func NewGormTaskRepo(db *gorm.DB) *GormTaskRepo {
	return &GormTaskRepo{db: db}
}

func (r *GormTaskRepo) CreateBatch(ctx context.Context, tasks []*domain.Task) error {
	models := make([]TaskModel, 0, len(tasks))
	modelIndexes := make([]int, 0, len(tasks))
	for i, task := range tasks {
		model := taskModelFromDomain(task)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, 100).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		if idx < len(tasks) && tasks[idx] != nil {
			*tasks[idx] = *taskModelToDomain(&models[i])
		}
	}

	return nil
}

func (r *GormTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var model TaskModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return taskModelToDomain(&model), nil
}

func (r *GormTaskRepo) GetByBatchID(ctx context.Context, batchID string) ([]domain.Task, error) {
	var models []TaskModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(models))
	for i := range models {
		tasks = append(tasks, *taskModelToDomain(&models[i]))
	}

	return tasks, nil
}

func (r *GormTaskRepo) ClaimForRun(ctx context.Context, id string) (*domain.Task, error) {
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ? AND status = ?", id, domain.TaskStatusQueued).
		Update("status", domain.TaskStatusRunning)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var model TaskModel
		err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		// Already running or terminal; not claimable.
		return nil, nil
	}

	var model TaskModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return taskModelToDomain(&model), nil
}

func (r *GormTaskRepo) FinishTask(ctx context.Context, id string, status domain.TaskStatus, result string) (bool, error) {
	if !status.IsTerminal() {
		return false, errors.New("finish requires a terminal status")
	}

	update := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ? AND status NOT IN ?", id, []domain.TaskStatus{
			domain.TaskStatusDone,
			domain.TaskStatusFailed,
		}).
		Updates(map[string]any{
			"status": status,
			"result": result,
		})
	if update.Error != nil {
		return false, update.Error
	}
	return update.RowsAffected > 0, nil
}

func (r *GormTaskRepo) CountNonTerminal(ctx context.Context, batchID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("batch_id = ? AND status NOT IN ?", batchID, []domain.TaskStatus{
			domain.TaskStatusDone,
			domain.TaskStatusFailed,
		}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
