package classifier

import (
	"context"
	"fmt"
	"strings"
)

// Classifier is the outbound image-inference port.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (string, error)
}

// Labels the inference backend may return. Anything else is normalized
// to LabelNone, matching the backend's own fallback.
const (
	LabelCat  = "cat"
	LabelDog  = "dog"
	LabelNone = "non"
)

// ClassifierError describes a failed inference call.
type ClassifierError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClassifierError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "classifier error")

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

func (e *ClassifierError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NormalizeLabel clamps backend output to the known label set.
func NormalizeLabel(label string) string {
	normalized := strings.ToLower(strings.TrimSpace(label))
	switch normalized {
	case LabelCat, LabelDog, LabelNone:
		return normalized
	}
	return LabelNone
}
