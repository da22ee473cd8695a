package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"classify-engine/internal/domain"
)

// TasksCSV renders the per-task results of a batch as CSV with the
// Filename,Status,Result header. Row order follows the task slice.
func TasksCSV(tasks []domain.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Filename", "Status", "Result"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range tasks {
		task := &tasks[i]
		result := ""
		if task.Result != nil {
			result = *task.Result
		}
		if err := w.Write([]string{task.Filename, task.Status.String(), result}); err != nil {
			return nil, fmt.Errorf("failed to write csv row for task %s: %w", task.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
