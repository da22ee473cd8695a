package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"classify-engine/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createBatchUploadsTable(),
		createUploadTasksTable(),
	})

	return m.Migrate()
}

func createBatchUploadsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batch_uploads",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batch_uploads_upload_time ON batch_uploads (upload_time DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}

func createUploadTasksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_upload_tasks",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TaskModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_upload_tasks_batch_id ON upload_tasks (batch_id)`,
				`CREATE INDEX IF NOT EXISTS idx_upload_tasks_batch_status ON upload_tasks (batch_id, status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TaskModel{})
		},
	}
}
