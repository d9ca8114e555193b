package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"videometadata/internal/core/importjob"
	"videometadata/internal/core/source"
	"videometadata/internal/core/video"
	"videometadata/internal/logger"
	"videometadata/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

// VideoStore is the slice of the video repository the pipeline needs.
type VideoStore interface {
	FindExistingIDs(ctx context.Context, videoIDs []string) (map[string]struct{}, error)
	Save(ctx context.Context, v *video.Video) error
}

// CacheInvalidator evicts derived aggregates once imports land.
type CacheInvalidator interface {
	InvalidateAfterImport(ctx context.Context)
}

// Enqueuer hands the import task to the background worker.
type Enqueuer interface {
	Enqueue(task *asynq.Task, queue string, maxRetries int) error
}

// Service drives import jobs end to end: job creation and task dispatch on
// submission, then bounded-concurrency batch orchestration in the worker.
type Service struct {
	jobs     importjob.Store
	videos   VideoStore
	registry *source.Registry
	cache    CacheInvalidator
	tasks    Enqueuer

	batchConcurrency int
	defaultBatchSize int
	log              *logger.Logger
}

func NewService(jobs importjob.Store, videos VideoStore, registry *source.Registry, cache CacheInvalidator, enq Enqueuer, batchConcurrency, defaultBatchSize int) *Service {
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	if defaultBatchSize < 1 {
		defaultBatchSize = 10
	}
	return &Service{
		jobs:             jobs,
		videos:           videos,
		registry:         registry,
		cache:            cache,
		tasks:            enq,
		batchConcurrency: batchConcurrency,
		defaultBatchSize: defaultBatchSize,
		log:              logger.New("ImportService"),
	}
}

// Submit validates the request, records the job and enqueues the background
// task. The job is persisted already RUNNING so callers polling right after
// submission observe a single consistent state.
func (s *Service) Submit(ctx context.Context, req importjob.Request) (*importjob.Job, error) {
	if err := validateRequest(&req, s.defaultBatchSize); err != nil {
		return nil, err
	}

	job := importjob.NewJob(req)
	job.Status = importjob.StatusRunning
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	payload, err := json.Marshal(importTaskPayload{JobID: job.JobID, Request: req})
	if err != nil {
		s.failJob(ctx, job.JobID, err)
		return nil, err
	}
	if err := s.tasks.Enqueue(asynq.NewTask(TaskTypeImport, payload), tasks.QueueImports, 0); err != nil {
		s.failJob(ctx, job.JobID, fmt.Errorf("enqueue import task: %w", err))
		return nil, err
	}

	s.log.LogInfof("enqueued import job %s: source=%s ids=%d batchSize=%d",
		job.JobID, req.Source, len(req.VideoIDs), req.BatchSize)
	return job, nil
}

// HandleImportTask is the asynq handler that runs one import job. Job-level
// failures are recorded on the job row; the task itself never retries.
func (s *Service) HandleImportTask(ctx context.Context, task *asynq.Task) error {
	var p importTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return err
	}

	job, err := s.jobs.Get(ctx, p.JobID)
	if err != nil {
		return err
	}
	if job.Status != importjob.StatusRunning {
		s.log.LogWarnf("skipping job %s in status %s", job.JobID, job.Status)
		return nil
	}

	result, err := s.run(ctx, job)
	if err != nil {
		s.failJob(ctx, job.JobID, err)
		return nil
	}

	now := time.Now()
	err = s.jobs.Transition(ctx, job.JobID, []importjob.Status{importjob.StatusRunning}, importjob.Update{
		Status:      importjob.StatusCompleted,
		Result:      result,
		CompletedAt: &now,
	})
	if err != nil {
		// Lost the compare-and-set: the job was cancelled or swept while we
		// were processing. The computed result is discarded.
		s.log.LogWarnf("discarding result for job %s: %v", job.JobID, err)
		return nil
	}

	s.log.LogInfof("import job %s completed: total=%d successful=%d failed=%d skipped=%d in %dms",
		job.JobID, result.TotalRequested, result.SuccessfulImports,
		result.FailedImports, result.SkippedImports, result.ProcessingTimeMs)

	if result.SuccessfulImports > 0 {
		s.cache.InvalidateAfterImport(ctx)
	}
	return nil
}

// run partitions the request, checks existing IDs once, and fans the batches
// out over a bounded worker pool. Results land in a slot slice indexed by
// batch position so the final ordering follows batch submission order no
// matter how batches complete.
func (s *Service) run(ctx context.Context, job *importjob.Job) (*importjob.Result, error) {
	req := job.Request

	adapter, ok := s.registry.Resolve(req.Source)
	if !ok {
		return nil, fmt.Errorf("No source available for: %s", req.Source)
	}

	existing, err := s.videos.FindExistingIDs(ctx, req.VideoIDs)
	if err != nil {
		return nil, fmt.Errorf("check existing videos: %w", err)
	}

	batches := partitionIDs(req.VideoIDs, req.BatchSize)
	slots := make([]*batchResult, len(batches))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, s.batchConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, batch := range batches {
		wg.Add(1)
		go func(i int, ids []string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				return
			}
			defer func() { <-sem }()

			br, err := s.processBatch(runCtx, adapter, ids, existing)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			slots[i] = br
		}(i, batch)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for _, br := range slots {
		if br == nil {
			// Only possible when the surrounding context was cancelled before
			// every batch ran (e.g. worker shutdown).
			return nil, fmt.Errorf("import interrupted: %v", ctx.Err())
		}
	}

	result := &importjob.Result{
		TotalRequested:  len(req.VideoIDs),
		FailedVideoIDs:  []string{},
		SkippedVideoIDs: []string{},
		Source:          req.Source,
		ImportTimestamp: time.Now(),
	}
	for _, br := range slots {
		result.SuccessfulImports += br.imported
		result.FailedVideoIDs = append(result.FailedVideoIDs, br.failedIDs...)
		result.SkippedVideoIDs = append(result.SkippedVideoIDs, br.skippedIDs...)
	}
	result.FailedImports = len(result.FailedVideoIDs)
	result.SkippedImports = len(result.SkippedVideoIDs)
	result.ProcessingTimeMs = time.Since(job.StartedAt).Milliseconds()
	return result, nil
}

func (s *Service) failJob(ctx context.Context, jobID string, cause error) {
	now := time.Now()
	err := s.jobs.Transition(ctx, jobID, []importjob.Status{importjob.StatusPending, importjob.StatusRunning}, importjob.Update{
		Status:       importjob.StatusFailed,
		ErrorMessage: cause.Error(),
		CompletedAt:  &now,
	})
	if err != nil {
		s.log.LogWarnf("could not fail job %s (already terminal?): %v", jobID, err)
		return
	}
	s.log.LogErrorf("import job %s failed: %v", jobID, cause)
}
