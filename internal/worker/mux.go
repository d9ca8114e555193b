package worker

import (
	"context"
	"time"

	"videometadata/internal/logger"

	"github.com/hibiken/asynq"
)

// Mux routes background task types to their handlers and logs outcomes in one
// place, keeping asynq plumbing out of the core packages.
type Mux struct {
	mux *asynq.ServeMux
	log *logger.Logger
}

func NewMux() *Mux {
	return &Mux{mux: asynq.NewServeMux(), log: logger.New("Worker")}
}

// Handle registers h for taskType. Handler errors are logged here before being
// returned to asynq, so task-level failures surface even for tasks that never
// retry.
func (m *Mux) Handle(taskType string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(taskType, func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		if err := h(ctx, task); err != nil {
			m.log.LogErrorf("task %s failed after %v: %v", taskType, time.Since(start), err)
			return err
		}
		m.log.LogDebugf("task %s done in %v", taskType, time.Since(start))
		return nil
	})
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }
