// Package observability exports cycle and sink outcomes as Prometheus
// metrics and serves them with a small status endpoint.
package observability

import (
	"pulsemeter/internal/domain"
	"pulsemeter/internal/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type PromObs struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	pulses        prometheus.Counter
	power         prometheus.Gauge
	cycleDuration prometheus.Histogram
	sinkResults   *prometheus.CounterVec
	sinkDuration  *prometheus.HistogramVec
	sinkConnected *prometheus.GaugeVec
}

func NewPromObs() *PromObs {
	p := &PromObs{
		registry: prometheus.NewRegistry(),

		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsemeter_cycles_total",
			Help: "Report cycles completed.",
		}),
		pulses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsemeter_pulses_total",
			Help: "Pulses drained from the counter.",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsemeter_power",
			Help: "Average power over the last window.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsemeter_cycle_duration_seconds",
			Help:    "Wall time of one drain and dispatch cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		sinkResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsemeter_sink_results_total",
			Help: "Sink attempts by outcome.",
		}, []string{"sink", "status"}),
		sinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulsemeter_sink_duration_seconds",
			Help:    "Time spent in a single sink operation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"sink"}),
		sinkConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulsemeter_sink_connected",
			Help: "1 when the sink's session is up.",
		}, []string{"sink"}),
	}

	p.registry.MustRegister(
		p.cycles,
		p.pulses,
		p.power,
		p.cycleDuration,
		p.sinkResults,
		p.sinkDuration,
		p.sinkConnected,
		collectors.NewGoCollector(),
	)

	return p
}

func (p *PromObs) Registry() *prometheus.Registry {
	return p.registry
}

// Subscribe wires the collectors to the report cycle's events.
func (p *PromObs) Subscribe(bus *event.Bus) {
	bus.Subscribe(domain.EventSampleReported, func(e any) {
		if r, ok := e.(domain.CycleReport); ok {
			p.ObserveCycle(r)
		}
	})
	bus.Subscribe(domain.EventSinkStateChanged, func(e any) {
		if st, ok := e.(domain.SinkState); ok {
			p.ObserveSinkState(st)
		}
	})
}

func (p *PromObs) ObserveCycle(r domain.CycleReport) {
	p.cycles.Inc()
	p.pulses.Add(float64(r.Sample.Pulses))
	p.power.Set(r.Sample.Power)
	p.cycleDuration.Observe(r.Duration.Seconds())

	for _, res := range r.Results {
		p.sinkResults.WithLabelValues(res.Sink, string(res.Status)).Inc()
		p.sinkDuration.WithLabelValues(res.Sink).Observe(res.Duration.Seconds())
	}
}

func (p *PromObs) ObserveSinkState(st domain.SinkState) {
	v := 0.0
	if st.Connected {
		v = 1
	}
	p.sinkConnected.WithLabelValues(st.Name).Set(v)
}
