package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatusSource interface {
	Total() uint64
	Pending() uint64
	Interval() time.Duration
	States() []domain.SinkState
	Latest() (domain.Sample, bool)
}

type Status struct {
	TotalPulses   uint64             `json:"total_pulses"`
	PendingPulses uint64             `json:"pending_pulses"`
	IntervalMS    int64              `json:"interval_ms"`
	Latest        *domain.Sample     `json:"latest,omitempty"`
	Sinks         []domain.SinkState `json:"sinks"`
}

type Server struct {
	addr string
	log  logger.Logger
	srv  *http.Server
}

func NewServer(addr string, obs *PromObs, status StatusSource, log logger.Logger) *Server {
	return &Server{
		addr: addr,
		log:  log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(obs, status),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func NewRouter(obs *PromObs, status StatusSource) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(obs.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		body := Status{
			TotalPulses:   status.Total(),
			PendingPulses: status.Pending(),
			IntervalMS:    status.Interval().Milliseconds(),
			Sinks:         status.States(),
		}
		if s, ok := status.Latest(); ok {
			body.Latest = &s
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return s.srv.Shutdown(shutdownCtx)
}
