// Package jobs runs background operations as detached goroutines while
// persisting a job record per operation. The caller-facing contract stays
// fire-and-forget: enqueue returns immediately, outcomes are queried via
// the job records or the audit trail.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wopanel/models"
	"wopanel/store"
)

// Fn is the work a job performs. A returned error marks the job failed;
// the error text is stored on the record.
type Fn func(ctx context.Context) error

// Manager dispatches and tracks background jobs.
type Manager struct {
	Store *store.Store
	Log   *zap.SugaredLogger

	wg sync.WaitGroup
}

// Enqueue records a pending job and starts it on its own goroutine. The
// returned ID is immediately usable for polling.
func (m *Manager) Enqueue(kind, target string, fn Fn) string {
	job := &models.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target,
		State:     models.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Store.CreateJob(job); err != nil {
		m.Log.Errorw("create job record", "kind", kind, "target", target, "error", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(job, fn)
	}()
	return job.ID
}

func (m *Manager) run(job *models.Job, fn Fn) {
	now := time.Now().UTC()
	job.State = models.JobRunning
	job.StartedAt = &now
	m.save(job)

	// Jobs are detached from the originating request on purpose; they get
	// a fresh context and run to completion.
	err := fn(context.Background())

	finished := time.Now().UTC()
	job.FinishedAt = &finished
	if err != nil {
		job.State = models.JobFailed
		job.Error = err.Error()
		m.Log.Errorw("job failed", "id", job.ID, "kind", job.Kind, "target", job.Target, "error", err)
	} else {
		job.State = models.JobSucceeded
	}
	m.save(job)
}

func (m *Manager) save(job *models.Job) {
	if err := m.Store.SaveJob(job); err != nil {
		m.Log.Errorw("save job record", "id", job.ID, "error", err)
	}
}

// Wait blocks until all in-flight jobs finish. Used by tests and
// graceful shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}
