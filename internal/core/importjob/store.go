package importjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("import job not found")
	// ErrConflict means the job was not in any of the expected statuses when a
	// transition was attempted. The caller's results must be discarded.
	ErrConflict = errors.New("import job status conflict")
)

// Update carries the fields a transition may set alongside the new status.
type Update struct {
	Status       Status
	Result       *Result
	CompletedAt  *time.Time
	ErrorMessage string
}

// Store is the durable job record contract. Transition is the only mutation
// path after creation and must be a single compare-and-set so the orchestrator
// and the reconciliation sweeps never overwrite each other.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context) ([]Job, error)
	ListByStatus(ctx context.Context, status Status) ([]Job, error)
	ListCreatedAfter(ctx context.Context, cutoff time.Time) ([]Job, error)
	Transition(ctx context.Context, jobID string, from []Status, upd Update) error
	CountByStatus(ctx context.Context, status Status) (int64, error)
	FindStuck(ctx context.Context, threshold time.Time) ([]Job, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Create(ctx context.Context, job *Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *GormStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *GormStore) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

func (s *GormStore) ListByStatus(ctx context.Context, status Status) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

func (s *GormStore) ListCreatedAfter(ctx context.Context, cutoff time.Time) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).Where("created_at > ?", cutoff).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// Transition performs an atomic compare-and-set on (job_id, status). A zero
// row count means the job either does not exist or has moved out of the
// expected statuses, which maps to ErrNotFound or ErrConflict respectively.
func (s *GormStore) Transition(ctx context.Context, jobID string, from []Status, upd Update) error {
	res := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("job_id = ? AND status IN ?", jobID, from).
		Select("Status", "Result", "CompletedAt", "ErrorMessage").
		Updates(&Job{
			Status:       upd.Status,
			Result:       upd.Result,
			CompletedAt:  upd.CompletedAt,
			ErrorMessage: upd.ErrorMessage,
		})
	if res.Error != nil {
		return fmt.Errorf("transition job %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&Job{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (s *GormStore) CountByStatus(ctx context.Context, status Status) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Job{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (s *GormStore) FindStuck(ctx context.Context, threshold time.Time) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", StatusRunning, threshold).
		Find(&jobs).Error
	return jobs, err
}

func (s *GormStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", StatusCompleted, cutoff).
		Delete(&Job{})
	return res.RowsAffected, res.Error
}
