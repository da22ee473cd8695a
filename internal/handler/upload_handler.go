package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"classify-engine/internal/domain"
	"classify-engine/internal/export"
)

type UploadService interface {
	Submit(ctx context.Context, payload []byte, filename, source string) (*domain.Batch, error)
	GetBatchDetail(ctx context.Context, batchID string) (*domain.Batch, []domain.Task, error)
	ListBatches(ctx context.Context) ([]domain.Batch, error)
}

type UploadHandler struct {
	service UploadService
}

func NewUploadHandler(service UploadService) (*UploadHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("upload service is required")
	}
	return &UploadHandler{service: service}, nil
}

func RegisterUploadRoutes(router fiber.Router, service UploadService) error {
	h, err := NewUploadHandler(service)
	if err != nil {
		return err
	}

	router.Post("/upload", h.Upload)
	router.Get("/tasks/:batchId", h.GetBatchTasks)
	router.Get("/batches", h.ListBatches)
	router.Get("/batches/:batchId/export", h.ExportBatchCSV)

	return nil
}

type uploadResponse struct {
	Message string `json:"message"`
	BatchID string `json:"batch_id"`
}

type taskResponse struct {
	TaskID   string  `json:"task_id"`
	Filename string  `json:"filename"`
	Status   string  `json:"status"`
	Result   *string `json:"result"`
}

type batchDetailResponse struct {
	BatchID    string         `json:"batch_id"`
	Status     string         `json:"status"`
	UploadTime time.Time      `json:"upload_time"`
	Tasks      []taskResponse `json:"tasks"`
}

type batchSummaryResponse struct {
	BatchID    string    `json:"batch_id"`
	Status     string    `json:"status"`
	UploadTime time.Time `json:"upload_time"`
}

func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	payload, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read uploaded file: %w", err)
	}

	batch, err := h.service.Submit(c.Context(), payload, fileHeader.Filename, "upload")
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(uploadResponse{
		Message: "Task added to queue",
		BatchID: batch.ID,
	})
}

func (h *UploadHandler) GetBatchTasks(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))

	batch, tasks, err := h.service.GetBatchDetail(c.Context(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	taskItems := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		taskItems = append(taskItems, taskResponse{
			TaskID:   task.ID,
			Filename: task.Filename,
			Status:   task.Status.String(),
			Result:   task.Result,
		})
	}

	return c.Status(fiber.StatusOK).JSON(batchDetailResponse{
		BatchID:    batch.ID,
		Status:     batch.Status.String(),
		UploadTime: batch.UploadTime,
		Tasks:      taskItems,
	})
}

func (h *UploadHandler) ListBatches(c *fiber.Ctx) error {
	batches, err := h.service.ListBatches(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]batchSummaryResponse, 0, len(batches))
	for i := range batches {
		batch := &batches[i]
		items = append(items, batchSummaryResponse{
			BatchID:    batch.ID,
			Status:     batch.Status.String(),
			UploadTime: batch.UploadTime,
		})
	}

	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *UploadHandler) ExportBatchCSV(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))

	_, tasks, err := h.service.GetBatchDetail(c.Context(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	csvData, err := export.TasksCSV(tasks)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="batch_%s_results.csv"`, batchID))
	return c.Status(fiber.StatusOK).Send(csvData)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
