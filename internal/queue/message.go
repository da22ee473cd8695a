package queue

import (
	"fmt"
	"strings"
)

// TaskMessage is the broker payload for one classification task. The image
// bytes themselves travel through the payload stash keyed by TaskID; the
// broker only carries identifiers.
type TaskMessage struct {
	TaskID   string `json:"taskId"`
	BatchID  string `json:"batchId"`
	Filename string `json:"filename"`
}

func (m TaskMessage) Validate() error {
	if strings.TrimSpace(m.TaskID) == "" {
		return fmt.Errorf("taskId is required")
	}
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if strings.TrimSpace(m.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}
