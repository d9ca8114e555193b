package importer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"videometadata/internal/core/importer"
	"videometadata/internal/core/importjob"
	"videometadata/internal/core/source"
	"videometadata/internal/core/video"

	"github.com/hibiken/asynq"
)

// memJobStore is an in-memory importjob.Store with the same compare-and-set
// semantics as the gorm implementation.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*importjob.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*importjob.Job)}
}

func (s *memJobStore) Create(ctx context.Context, job *importjob.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *memJobStore) Get(ctx context.Context, jobID string) (*importjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, importjob.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memJobStore) List(ctx context.Context) ([]importjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]importjob.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (s *memJobStore) ListByStatus(ctx context.Context, status importjob.Status) ([]importjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []importjob.Job
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *memJobStore) ListCreatedAfter(ctx context.Context, cutoff time.Time) ([]importjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []importjob.Job
	for _, j := range s.jobs {
		if j.CreatedAt.After(cutoff) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *memJobStore) Transition(ctx context.Context, jobID string, from []importjob.Status, upd importjob.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return importjob.ErrNotFound
	}
	matched := false
	for _, st := range from {
		if job.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return importjob.ErrConflict
	}
	job.Status = upd.Status
	job.Result = upd.Result
	job.CompletedAt = upd.CompletedAt
	job.ErrorMessage = upd.ErrorMessage
	return nil
}

func (s *memJobStore) CountByStatus(ctx context.Context, status importjob.Status) (int64, error) {
	jobs, _ := s.ListByStatus(ctx, status)
	return int64(len(jobs)), nil
}

func (s *memJobStore) FindStuck(ctx context.Context, threshold time.Time) ([]importjob.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []importjob.Job
	for _, j := range s.jobs {
		if j.Status == importjob.StatusRunning && j.StartedAt.Before(threshold) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *memJobStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, j := range s.jobs {
		if j.Status == importjob.StatusCompleted && j.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// memVideoStore tracks persisted videos; saving an existing ID fails like a
// unique-constraint violation would.
type memVideoStore struct {
	mu       sync.Mutex
	saved    map[string]bool
	failSave map[string]bool
}

func newMemVideoStore(existing ...string) *memVideoStore {
	s := &memVideoStore{saved: make(map[string]bool), failSave: make(map[string]bool)}
	for _, id := range existing {
		s.saved[id] = true
	}
	return s
}

func (s *memVideoStore) FindExistingIDs(ctx context.Context, videoIDs []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range videoIDs {
		if s.saved[id] {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *memVideoStore) Save(ctx context.Context, v *video.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[v.VideoID] {
		return errors.New("store unavailable")
	}
	if s.saved[v.VideoID] {
		return errors.New("duplicate key value violates unique constraint")
	}
	s.saved[v.VideoID] = true
	return nil
}

// fakeAdapter serves canned responses. miss entries return nil items;
// delays (keyed by the first ID of a batch) let tests force out-of-order
// batch completion; block, when set, holds every fetch until released.
type fakeAdapter struct {
	name      string
	available bool
	miss      map[string]bool
	delays    map[string]time.Duration
	block     chan struct{}

	mu         sync.Mutex
	batchCalls [][]string
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{name: name, available: true, miss: map[string]bool{}, delays: map[string]time.Duration{}}
}

func (f *fakeAdapter) SourceName() string { return f.name }
func (f *fakeAdapter) IsAvailable() bool  { return f.available }

func (f *fakeAdapter) FetchOne(ctx context.Context, videoID string) (*video.Video, error) {
	items, err := f.FetchBatch(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (f *fakeAdapter) FetchBatch(ctx context.Context, videoIDs []string) ([]*video.Video, error) {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), videoIDs...))
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(videoIDs) > 0 {
		if d, ok := f.delays[videoIDs[0]]; ok {
			time.Sleep(d)
		}
	}

	out := make([]*video.Video, len(videoIDs))
	for i, id := range videoIDs {
		if f.miss[id] {
			continue
		}
		out[i] = &video.Video{VideoID: id, Title: "title " + id, Source: f.name, Duration: 100}
	}
	return out, nil
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batchCalls)
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated int
}

func (f *fakeCache) InvalidateAfterImport(ctx context.Context) {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

func (f *fakeCache) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

// captureEnqueuer records tasks instead of pushing them to redis; tests run
// the handler directly against the captured task.
type captureEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (e *captureEnqueuer) Enqueue(task *asynq.Task, queue string, maxRetries int) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	return nil
}

func (e *captureEnqueuer) last() *asynq.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks[len(e.tasks)-1]
}

type pipeline struct {
	store   *memJobStore
	videos  *memVideoStore
	adapter *fakeAdapter
	cache   *fakeCache
	enq     *captureEnqueuer
	svc     *importer.Service
}

func newPipeline(adapter *fakeAdapter, videos *memVideoStore, concurrency int) *pipeline {
	p := &pipeline{
		store:   newMemJobStore(),
		videos:  videos,
		adapter: adapter,
		cache:   &fakeCache{},
		enq:     &captureEnqueuer{},
	}
	registry := source.NewRegistry(adapter)
	p.svc = importer.NewService(p.store, videos, registry, p.cache, p.enq, concurrency, 10)
	return p
}

// runImport submits the request and runs the captured task synchronously.
func (p *pipeline) runImport(t *testing.T, req importjob.Request) *importjob.Job {
	t.Helper()
	job, err := p.svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.svc.HandleImportTask(context.Background(), p.enq.last()); err != nil {
		t.Fatalf("HandleImportTask: %v", err)
	}
	final, err := p.store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return final
}

func TestImportScenarioPartialFailure(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	adapter.miss["c"] = true
	p := newPipeline(adapter, newMemVideoStore(), 2)

	job := p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: []string{"a", "b", "c"}, BatchSize: 2})

	if job.Status != importjob.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", job.Status)
	}
	r := job.Result
	if r == nil {
		t.Fatal("result is nil")
	}
	if r.TotalRequested != 3 || r.SuccessfulImports != 2 || r.FailedImports != 1 || r.SkippedImports != 0 {
		t.Fatalf("counts = %+v", r)
	}
	if len(r.FailedVideoIDs) != 1 || r.FailedVideoIDs[0] != "c" {
		t.Fatalf("failed ids = %v, want [c]", r.FailedVideoIDs)
	}
}

func TestImportCountInvariant(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	adapter.miss["f1"] = true
	videos := newMemVideoStore("s1")
	videos.failSave["f2"] = true
	p := newPipeline(adapter, videos, 2)

	job := p.runImport(t, importjob.Request{
		Source:    "MOCK",
		VideoIDs:  []string{"s1", "n1", "f1", "n2", "f2"},
		BatchSize: 3,
	})

	r := job.Result
	if r == nil {
		t.Fatalf("job not completed: %s (%s)", job.Status, job.ErrorMessage)
	}
	if got := r.SuccessfulImports + r.FailedImports + r.SkippedImports; got != r.TotalRequested {
		t.Fatalf("invariant violated: %d+%d+%d != %d",
			r.SuccessfulImports, r.FailedImports, r.SkippedImports, r.TotalRequested)
	}
	if r.SuccessfulImports != 2 || r.FailedImports != 2 || r.SkippedImports != 1 {
		t.Fatalf("counts = %+v", r)
	}
}

func TestImportDuplicateExistingSkippedTwice(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	p := newPipeline(adapter, newMemVideoStore("a"), 2)

	job := p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: []string{"a", "a"}})

	r := job.Result
	if r == nil {
		t.Fatalf("job not completed: %s", job.Status)
	}
	if r.TotalRequested != 2 || r.SkippedImports != 2 {
		t.Fatalf("counts = %+v", r)
	}
	if len(r.SkippedVideoIDs) != 2 || r.SkippedVideoIDs[0] != "a" || r.SkippedVideoIDs[1] != "a" {
		t.Fatalf("skipped ids = %v, want [a a]", r.SkippedVideoIDs)
	}
	if adapter.calls() != 0 {
		t.Fatalf("adapter called %d times for fully-skipped job", adapter.calls())
	}
}

func TestImportOrderingAcrossBatches(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	for _, id := range []string{"a", "b", "c", "d"} {
		adapter.miss[id] = true
	}
	// First batch finishes well after the second.
	adapter.delays["a"] = 80 * time.Millisecond
	p := newPipeline(adapter, newMemVideoStore(), 2)

	job := p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: []string{"a", "b", "c", "d"}, BatchSize: 2})

	r := job.Result
	if r == nil {
		t.Fatalf("job not completed: %s", job.Status)
	}
	want := []string{"a", "b", "c", "d"}
	if len(r.FailedVideoIDs) != len(want) {
		t.Fatalf("failed ids = %v", r.FailedVideoIDs)
	}
	for i, id := range want {
		if r.FailedVideoIDs[i] != id {
			t.Fatalf("failed ids = %v, want %v (batch-submission order)", r.FailedVideoIDs, want)
		}
	}
}

func TestImportIdempotentResubmission(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	videos := newMemVideoStore()
	p := newPipeline(adapter, videos, 2)
	ids := []string{"a", "b", "c"}

	first := p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: ids})
	if first.Result == nil || first.Result.SuccessfulImports != 3 {
		t.Fatalf("first run: %+v", first.Result)
	}
	callsAfterFirst := adapter.calls()

	second := p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: ids})
	r := second.Result
	if r == nil || r.SkippedImports != 3 || r.SuccessfulImports != 0 {
		t.Fatalf("second run: %+v", r)
	}
	if adapter.calls() != callsAfterFirst {
		t.Fatalf("re-import hit the source: %d calls, want %d", adapter.calls(), callsAfterFirst)
	}
}

func TestImportSourceUnavailable(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	adapter.available = false
	p := newPipeline(adapter, newMemVideoStore(), 2)

	job := p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: []string{"a"}})

	if job.Status != importjob.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if want := "No source available for: MOCK"; job.ErrorMessage != want {
		t.Fatalf("error = %q, want %q", job.ErrorMessage, want)
	}
	if adapter.calls() != 0 {
		t.Fatalf("adapter called %d times, want 0", adapter.calls())
	}
	if p.cache.count() != 0 {
		t.Fatal("cache invalidated on failed job")
	}
}

func TestImportUnknownSourceFails(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	p := newPipeline(adapter, newMemVideoStore(), 2)

	job := p.runImport(t, importjob.Request{Source: "OTHER", VideoIDs: []string{"a"}})

	if job.Status != importjob.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if want := "No source available for: OTHER"; job.ErrorMessage != want {
		t.Fatalf("error = %q, want %q", job.ErrorMessage, want)
	}
}

func TestImportCancellationDiscardsResult(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	adapter.block = make(chan struct{})
	p := newPipeline(adapter, newMemVideoStore(), 2)
	jobSvc := importjob.NewService(p.store, nil, 2*time.Hour, 30)

	job, err := p.svc.Submit(context.Background(), importjob.Request{Source: "MOCK", VideoIDs: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.svc.HandleImportTask(context.Background(), p.enq.last())
	}()

	// Wait until the batch is in flight, then cancel and release it.
	deadline := time.Now().Add(time.Second)
	for adapter.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("batch never dispatched")
		}
		time.Sleep(time.Millisecond)
	}
	if err := jobSvc.Cancel(context.Background(), job.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(adapter.block)
	<-done

	final, err := p.store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != importjob.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", final.Status)
	}
	if final.Result != nil {
		t.Fatalf("cancelled job has result: %+v", final.Result)
	}
	if final.ErrorMessage != "cancelled by user" {
		t.Fatalf("error = %q", final.ErrorMessage)
	}
	if p.cache.count() != 0 {
		t.Fatal("cache invalidated for cancelled job")
	}
}

func TestImportInvalidatesCacheOnSuccess(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	p := newPipeline(adapter, newMemVideoStore(), 2)

	p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: []string{"a"}})
	if p.cache.count() != 1 {
		t.Fatalf("invalidations = %d, want 1", p.cache.count())
	}

	// A fully-skipped job adds nothing and must not evict.
	p.runImport(t, importjob.Request{Source: "MOCK", VideoIDs: []string{"a"}})
	if p.cache.count() != 1 {
		t.Fatalf("invalidations = %d, want still 1", p.cache.count())
	}
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	p := newPipeline(adapter, newMemVideoStore(), 2)

	cases := []importjob.Request{
		{Source: "MOCK"},
		{Source: "", VideoIDs: []string{"a"}},
		{Source: "MOCK", VideoIDs: []string{"a"}, BatchSize: 500},
	}
	for i, req := range cases {
		_, err := p.svc.Submit(context.Background(), req)
		var verr *importer.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: err = %v, want ValidationError", i, err)
		}
	}
	jobs, _ := p.store.List(context.Background())
	if len(jobs) != 0 {
		t.Fatalf("%d jobs created from invalid requests", len(jobs))
	}
}

func TestSubmitReturnsRunningJob(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	p := newPipeline(adapter, newMemVideoStore(), 2)

	job, err := p.svc.Submit(context.Background(), importjob.Request{Source: "MOCK", VideoIDs: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	stored, err := p.store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != importjob.StatusRunning {
		t.Fatalf("status right after submission = %s, want RUNNING", stored.Status)
	}
	if stored.StartedAt.IsZero() || stored.CreatedAt.IsZero() {
		t.Fatal("timestamps not set at creation")
	}
}

func TestSubmitEnqueueFailureFailsJob(t *testing.T) {
	adapter := newFakeAdapter("MOCK")
	p := newPipeline(adapter, newMemVideoStore(), 2)
	p.enq.err = fmt.Errorf("redis down")

	_, err := p.svc.Submit(context.Background(), importjob.Request{Source: "MOCK", VideoIDs: []string{"a"}})
	if err == nil {
		t.Fatal("expected error")
	}
	jobs, _ := p.store.ListByStatus(context.Background(), importjob.StatusFailed)
	if len(jobs) != 1 {
		t.Fatalf("failed jobs = %d, want 1", len(jobs))
	}
}
