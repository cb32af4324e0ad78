package workers

import (
	"context"
	"time"

	"pulsemeter/internal/logger"
)

type Scheduler struct {
	log logger.Logger
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		log: log,
	}
}

// RunByDuration invokes worker once per dur until ctx is done. Runs never
// overlap. If a run overruns its period the ticker drops the missed ticks
// and the next run starts on the following boundary.
func (s *Scheduler) RunByDuration(ctx context.Context, dur time.Duration, worker Worker) error {
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("worker stopped", "name", worker.Name())
			return nil
		case <-ticker.C:
			start := time.Now()

			err := worker.Run(ctx)
			if err != nil {
				s.log.Error("worker failed", "name", worker.Name(), "error", err)
			}

			took := time.Since(start)
			if took > dur {
				s.log.Warn("worker overran its period", "name", worker.Name(), "time", took, "period", dur)
			}

			s.log.Debug("worker finished", "name", worker.Name(), "time", took)
		}
	}
}
