package workers

import (
	"context"

	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"
)

type PulseTotaler interface {
	Total() uint64
}

type SinkStater interface {
	States() []domain.SinkState
}

// StatusWorker periodically logs lifetime pulses and per-sink connectivity.
type StatusWorker struct {
	counter PulseTotaler
	sinks   SinkStater
	log     logger.Logger
}

func NewStatusWorker(counter PulseTotaler, sinks SinkStater, log logger.Logger) Worker {
	return &StatusWorker{
		counter: counter,
		sinks:   sinks,
		log:     log,
	}
}

func (w *StatusWorker) Name() string {
	return "status"
}

func (w *StatusWorker) Run(ctx context.Context) error {
	w.log.Info("status", "total_pulses", w.counter.Total())

	for _, st := range w.sinks.States() {
		w.log.Info("sink status",
			"sink", st.Name,
			"connected", st.Connected,
			"last_status", st.LastResult.Status,
			"last_attempt", st.LastAttempt,
		)
	}

	return nil
}
