package importjob

import (
	"context"
	"errors"
	"time"

	"videometadata/internal/core/cache"
	"videometadata/internal/logger"
)

var ErrNotCancellable = errors.New("job is not in a cancellable state")

const (
	cancelledMessage = "cancelled by user"
	timeoutMessage   = "timeout"
)

// Statistics reports job counts per status.
type Statistics struct {
	TotalJobs     int64 `json:"total_jobs"`
	PendingJobs   int64 `json:"pending_jobs"`
	RunningJobs   int64 `json:"running_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	CancelledJobs int64 `json:"cancelled_jobs"`
}

// StatsCache is the slice of the cache coordinator the statistics query uses.
// Optional; without it statistics are computed on every call.
type StatsCache interface {
	Get(ctx context.Context, namespace, key string, dest interface{}) (bool, error)
	Put(ctx context.Context, namespace, key string, val interface{}) error
}

// Service manages job lifecycle outside of active orchestration: queries,
// cancellation and the reconciliation sweeps.
type Service struct {
	store          Store
	stats          StatsCache
	stuckThreshold time.Duration
	retention      time.Duration
	log            *logger.Logger
}

func NewService(store Store, stats StatsCache, stuckThreshold time.Duration, retentionDays int) *Service {
	return &Service{
		store:          store,
		stats:          stats,
		stuckThreshold: stuckThreshold,
		retention:      time.Duration(retentionDays) * 24 * time.Hour,
		log:            logger.New("ImportJobService"),
	}
}

func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.store.Get(ctx, jobID)
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.store.List(ctx)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Job, error) {
	return s.store.ListByStatus(ctx, status)
}

func (s *Service) Recent(ctx context.Context, days int) ([]Job, error) {
	return s.store.ListCreatedAfter(ctx, time.Now().AddDate(0, 0, -days))
}

// Cancel flips a PENDING or RUNNING job to CANCELLED. In-flight batches are
// not aborted; the orchestrator discards their results once it observes the
// lost compare-and-set.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	now := time.Now()
	err := s.store.Transition(ctx, jobID, []Status{StatusPending, StatusRunning}, Update{
		Status:       StatusCancelled,
		ErrorMessage: cancelledMessage,
		CompletedAt:  &now,
	})
	if errors.Is(err, ErrConflict) {
		return ErrNotCancellable
	}
	if err != nil {
		return err
	}
	s.log.LogInfof("cancelled import job %s", jobID)
	return nil
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	key := cache.HourKey("job-statistics")
	if s.stats != nil {
		var cached Statistics
		if found, err := s.stats.Get(ctx, cache.NamespaceJobStats, key, &cached); err == nil && found {
			return cached, nil
		}
	}

	var stats Statistics
	counts := []struct {
		status Status
		dest   *int64
	}{
		{StatusPending, &stats.PendingJobs},
		{StatusRunning, &stats.RunningJobs},
		{StatusCompleted, &stats.CompletedJobs},
		{StatusFailed, &stats.FailedJobs},
		{StatusCancelled, &stats.CancelledJobs},
	}
	for _, c := range counts {
		n, err := s.store.CountByStatus(ctx, c.status)
		if err != nil {
			return Statistics{}, err
		}
		*c.dest = n
		stats.TotalJobs += n
	}

	if s.stats != nil {
		if err := s.stats.Put(ctx, cache.NamespaceJobStats, key, stats); err != nil {
			s.log.LogWarnf("job stats cache write failed: %v", err)
		}
	}
	return stats, nil
}

// MarkStuckJobs fails RUNNING jobs whose startedAt is older than the
// configured threshold. Safe to run concurrently with the orchestrator: a job
// that completes between the scan and the transition loses nothing, the
// compare-and-set simply misses.
func (s *Service) MarkStuckJobs(ctx context.Context) (int, error) {
	threshold := time.Now().Add(-s.stuckThreshold)
	stuck, err := s.store.FindStuck(ctx, threshold)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, job := range stuck {
		now := time.Now()
		err := s.store.Transition(ctx, job.JobID, []Status{StatusRunning}, Update{
			Status:       StatusFailed,
			ErrorMessage: timeoutMessage,
			CompletedAt:  &now,
		})
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return marked, err
		}
		s.log.LogWarnf("marked stuck job as failed: %s", job.JobID)
		marked++
	}
	if marked > 0 {
		s.log.LogInfof("marked %d stuck jobs as failed", marked)
	}
	return marked, nil
}

// CleanupOldJobs deletes COMPLETED jobs older than the retention window.
// FAILED and CANCELLED jobs are deliberately left in place.
func (s *Service) CleanupOldJobs(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.store.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.LogInfof("cleaned up %d old completed jobs", deleted)
	}
	return deleted, nil
}
