package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"classify-engine/internal/notifier"
)

const classifyTrigger = "classify-image"

// BatchWatcher waits for a batch to finish and replies to the thread.
type BatchWatcher interface {
	Watch(ctx context.Context, batchID string, thread notifier.Thread)
}

// WebhookHandler turns GitLab comment events containing
// "classify-image <url>" into batch submissions and arranges a reply once
// the batch finishes.
type WebhookHandler struct {
	service UploadService
	watcher BatchWatcher
	fetcher *resty.Client
	logger  *zap.Logger
}

func NewWebhookHandler(service UploadService, watcher BatchWatcher, fetcher *resty.Client, logger *zap.Logger) (*WebhookHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("upload service is required")
	}
	if fetcher == nil {
		fetcher = resty.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookHandler{
		service: service,
		watcher: watcher,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

func RegisterWebhookRoutes(router fiber.Router, service UploadService, watcher BatchWatcher, fetcher *resty.Client, logger *zap.Logger) error {
	h, err := NewWebhookHandler(service, watcher, fetcher, logger)
	if err != nil {
		return err
	}

	router.Post("/gitlab-webhook", h.HandleNoteEvent)
	return nil
}

type noteEvent struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		Note         string `json:"note"`
		NoteableType string `json:"noteable_type"`
	} `json:"object_attributes"`
	Project struct {
		ID int `json:"id"`
	} `json:"project"`
	Issue struct {
		IID int `json:"iid"`
	} `json:"issue"`
	MergeRequest struct {
		IID int `json:"iid"`
	} `json:"merge_request"`
}

type webhookResponse struct {
	Message string `json:"message"`
	BatchID string `json:"batch_id,omitempty"`
}

func (h *WebhookHandler) HandleNoteEvent(c *fiber.Ctx) error {
	var event noteEvent
	if err := c.BodyParser(&event); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook payload")
	}

	if event.ObjectKind != "note" || strings.TrimSpace(event.ObjectAttributes.Note) == "" {
		return c.Status(fiber.StatusOK).JSON(webhookResponse{Message: "No action taken"})
	}

	imageURL, ok := extractImageURL(event.ObjectAttributes.Note)
	if !ok {
		return c.Status(fiber.StatusOK).JSON(webhookResponse{Message: "No action taken"})
	}

	payload, err := h.fetchImage(c.Context(), imageURL)
	if err != nil {
		h.logger.Error("failed to fetch image from comment",
			zap.String("url", imageURL),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("failed to fetch image: %v", err))
	}

	batch, err := h.service.Submit(c.Context(), payload, filenameFromURL(imageURL), "webhook")
	if err != nil {
		return toHTTPError(err)
	}

	if h.watcher != nil {
		thread := threadFromEvent(event)
		if err := thread.Validate(); err != nil {
			h.logger.Warn("note event has no usable reply thread, skipping watcher",
				zap.String("batchId", batch.ID),
				zap.Error(err),
			)
		} else {
			// Detached from the request context: the watcher outlives
			// this response.
			go h.watcher.Watch(context.Background(), batch.ID, thread)
		}
	}

	return c.Status(fiber.StatusOK).JSON(webhookResponse{
		Message: "Image classification task added to queue",
		BatchID: batch.ID,
	})
}

func (h *WebhookHandler) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	response, err := h.fetcher.R().
		SetContext(ctx).
		Get(imageURL)
	if err != nil {
		return nil, err
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("image fetch returned status %d", statusCode)
	}

	return response.Body(), nil
}

// filenameFromURL derives the task filename from the URL path only, so a
// query string or fragment never leaks into records or storage keys.
func filenameFromURL(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil || strings.Trim(parsed.Path, "/") == "" {
		return "image"
	}
	return path.Base(parsed.Path)
}

// extractImageURL pulls the first token after the classify-image trigger.
func extractImageURL(note string) (string, bool) {
	idx := strings.Index(note, classifyTrigger)
	if idx < 0 {
		return "", false
	}

	rest := strings.TrimSpace(note[idx+len(classifyTrigger):])
	if rest == "" {
		return "", false
	}

	if cut := strings.IndexAny(rest, " \t\r\n"); cut >= 0 {
		rest = rest[:cut]
	}

	if !strings.HasPrefix(rest, "http://") && !strings.HasPrefix(rest, "https://") {
		return "", false
	}

	return rest, true
}

func threadFromEvent(event noteEvent) notifier.Thread {
	thread := notifier.Thread{
		ProjectID:    event.Project.ID,
		NoteableType: event.ObjectAttributes.NoteableType,
	}

	switch strings.ToLower(event.ObjectAttributes.NoteableType) {
	case "mergerequest", "merge_request":
		thread.NoteableIID = event.MergeRequest.IID
	default:
		thread.NoteableIID = event.Issue.IID
	}

	return thread
}
