package importjob

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks the import job lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is final and immutable.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func ParseStatus(v string) (Status, error) {
	switch Status(strings.ToUpper(v)) {
	case StatusPending:
		return StatusPending, nil
	case StatusRunning:
		return StatusRunning, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusCancelled:
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown job status: %s", v)
}

// Request is the immutable snapshot of what a job was asked to import.
// Duplicate video IDs are allowed and processed independently.
type Request struct {
	Source    string   `json:"source"`
	VideoIDs  []string `json:"video_ids"`
	BatchSize int      `json:"batch_size"`
}

// Result is populated only when a job completes.
type Result struct {
	TotalRequested    int       `json:"total_requested"`
	SuccessfulImports int       `json:"successful_imports"`
	FailedImports     int       `json:"failed_imports"`
	SkippedImports    int       `json:"skipped_imports"`
	FailedVideoIDs    []string  `json:"failed_video_ids"`
	SkippedVideoIDs   []string  `json:"skipped_video_ids"`
	Source            string    `json:"source"`
	ImportTimestamp   time.Time `json:"import_timestamp"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
}

// Job is the durable record of one import invocation.
type Job struct {
	ID           uint       `gorm:"primaryKey" json:"-"`
	JobID        string     `gorm:"uniqueIndex;size:64;not null" json:"job_id"`
	Status       Status     `gorm:"index;size:20;not null" json:"status"`
	Request      Request    `gorm:"serializer:json" json:"request"`
	Result       *Result    `gorm:"serializer:json" json:"result,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	StartedAt    time.Time  `gorm:"index;not null" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func (Job) TableName() string { return "import_jobs" }

// NewJob builds a pending job with a fresh ID and startedAt set at creation.
func NewJob(req Request) *Job {
	now := time.Now()
	return &Job{
		JobID:     GenerateJobID(),
		Status:    StatusPending,
		Request:   req,
		CreatedAt: now,
		StartedAt: now,
	}
}

// GenerateJobID returns an externally visible, collision-resistant job ID.
func GenerateJobID() string {
	return fmt.Sprintf("import-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
