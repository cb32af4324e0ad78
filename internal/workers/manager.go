// Package workers
package workers

import (
	"context"
	"time"

	"pulsemeter/internal/logger"

	"golang.org/x/sync/errgroup"
)

type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

type job struct {
	every  time.Duration
	worker Worker
}

type Manager struct {
	log logger.Logger

	scheduler *Scheduler
	jobs      []job
}

func NewManager(log logger.Logger, scheduler *Scheduler) *Manager {
	return &Manager{
		log: log,

		scheduler: scheduler,
	}
}

func (m *Manager) Every(dur time.Duration, worker Worker) {
	m.jobs = append(m.jobs, job{every: dur, worker: worker})
}

// Start blocks until ctx is cancelled. Each worker runs in its own loop, so a
// slow status job never delays the report cycle.
func (m *Manager) Start(ctx context.Context) error {
	m.log.Info("worker: manager started", "workers", len(m.jobs))

	g, gCtx := errgroup.WithContext(ctx)
	for _, j := range m.jobs {
		g.Go(func() error {
			return m.scheduler.RunByDuration(gCtx, j.every, j.worker)
		})
	}

	return g.Wait()
}
