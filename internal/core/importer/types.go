package importer

import (
	"fmt"
	"strings"

	"videometadata/internal/core/importjob"
)

const (
	TaskTypeImport = "import:videos"

	maxVideoIDs  = 100
	maxBatchSize = 100
)

type importTaskPayload struct {
	JobID   string            `json:"job_id"`
	Request importjob.Request `json:"request"`
}

// ValidationError distinguishes malformed requests, which are rejected before
// any job is created.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, v ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, v...)}
}

// validateRequest normalizes the request in place (default batch size) and
// rejects malformed input.
func validateRequest(req *importjob.Request, defaultBatchSize int) error {
	if strings.TrimSpace(req.Source) == "" {
		return validationErrorf("source is required")
	}
	if len(req.VideoIDs) == 0 {
		return validationErrorf("video IDs list cannot be empty")
	}
	if len(req.VideoIDs) > maxVideoIDs {
		return validationErrorf("maximum %d video IDs allowed per request", maxVideoIDs)
	}
	for _, id := range req.VideoIDs {
		if strings.TrimSpace(id) == "" {
			return validationErrorf("video ID cannot be blank")
		}
	}
	if req.BatchSize == 0 {
		req.BatchSize = defaultBatchSize
	}
	if req.BatchSize < 1 || req.BatchSize > maxBatchSize {
		return validationErrorf("batch size must be between 1 and %d", maxBatchSize)
	}
	return nil
}

// partitionIDs splits ids into consecutive batches of size; the last batch may
// be shorter. The input order is preserved so aggregation by batch index is
// deterministic.
func partitionIDs(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
