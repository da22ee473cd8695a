package notifier

import (
	"context"
	"fmt"
	"strings"
)

// Thread identifies the conversation a completion reply should land in.
// For GitLab note triggers this is the project/noteable pair the comment
// came from.
type Thread struct {
	ProjectID    int
	NoteableType string
	NoteableIID  int
}

func (t Thread) Validate() error {
	if t.ProjectID <= 0 {
		return fmt.Errorf("project id is required")
	}
	if strings.TrimSpace(t.NoteableType) == "" {
		return fmt.Errorf("noteable type is required")
	}
	if t.NoteableIID <= 0 {
		return fmt.Errorf("noteable iid is required")
	}
	return nil
}

// Message is one outbound completion or failure reply. Attachment, when
// present, is rendered inline as a fenced CSV block.
type Message struct {
	Body           string
	AttachmentName string
	Attachment     []byte
}

// Notifier posts a one-shot reply back to the originating thread.
// Delivery is best-effort; callers log failures and never retry.
type Notifier interface {
	Notify(ctx context.Context, thread Thread, msg Message) error
}

// DeliveryError describes a failed notification post.
type DeliveryError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "notification delivery error")

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

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
