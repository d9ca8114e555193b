package importjob

import (
	"context"

	"videometadata/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the two reconciliation sweeps on cron schedules. Both tasks
// are idempotent and rely on compare-and-set transitions, so overlapping runs
// or races with the orchestrator are harmless.
type Scheduler struct {
	cron *cron.Cron
	svc  *Service
	log  *logger.Logger
}

func NewScheduler(svc *Service, stuckSweepSpec, cleanupSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		svc:  svc,
		log:  logger.New("Scheduler"),
	}
	if _, err := s.cron.AddFunc(stuckSweepSpec, s.runStuckSweep); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cleanupSpec, s.runCleanup); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runStuckSweep() {
	if _, err := s.svc.MarkStuckJobs(context.Background()); err != nil {
		s.log.LogErrorf("stuck-job sweep failed: %v", err)
	}
}

func (s *Scheduler) runCleanup() {
	if _, err := s.svc.CleanupOldJobs(context.Background()); err != nil {
		s.log.LogErrorf("retention cleanup failed: %v", err)
	}
}
