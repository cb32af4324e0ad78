// Package report runs the periodic drain, compute and dispatch cycle.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"
	"pulsemeter/internal/pulse"
)

// Sink delivers one sample to an external destination. Send must honour ctx
// so a slow destination cannot hold up the others.
type Sink interface {
	Name() string
	Send(ctx context.Context, s domain.Sample) error
}

// Reconnector is implemented by sinks that keep a session between cycles.
// While disconnected such a sink gets a single Reconnect per cycle and no
// Send, which bounds the cycle's worst-case latency.
type Reconnector interface {
	Connected() bool
	Reconnect(ctx context.Context) error
}

type SampleSource interface {
	Collect() (domain.Sample, error)
}

type Publisher interface {
	Publish(eventName string, event any)
}

type Cycle struct {
	log logger.Logger

	source    SampleSource
	sinks     []Sink
	indicator pulse.Indicator
	bus       Publisher
	timeout   time.Duration
	budget    time.Duration
	now       func() time.Time

	stateMu sync.RWMutex
	states  map[string]*domain.SinkState
}

type Option func(*Cycle)

func WithIndicator(i pulse.Indicator) Option {
	return func(c *Cycle) { c.indicator = i }
}

func WithPublisher(p Publisher) Option {
	return func(c *Cycle) { c.bus = p }
}

// WithSinkTimeout bounds each individual sink operation.
func WithSinkTimeout(d time.Duration) Option {
	return func(c *Cycle) { c.timeout = d }
}

// WithCycleBudget bounds the whole dispatch sequence. Each sink gets the
// smaller of its own timeout and what is left of the budget; sinks reached
// after the budget is spent are skipped. Zero disables the bound.
func WithCycleBudget(d time.Duration) Option {
	return func(c *Cycle) { c.budget = d }
}

func NewCycle(source SampleSource, sinks []Sink, log logger.Logger, opts ...Option) *Cycle {
	c := &Cycle{
		log: log,

		source:    source,
		sinks:     sinks,
		indicator: pulse.NoopIndicator,
		timeout:   2 * time.Second,
		now:       time.Now,

		states: make(map[string]*domain.SinkState, len(sinks)),
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, s := range sinks {
		st := &domain.SinkState{Name: s.Name(), Connected: true}
		if rc, ok := s.(Reconnector); ok {
			st.Connected = rc.Connected()
		}
		c.states[s.Name()] = st
	}

	return c
}

func (c *Cycle) Name() string {
	return "report_cycle"
}

// Run satisfies workers.Worker. Sink failures are logged, never returned.
func (c *Cycle) Run(ctx context.Context) error {
	report, err := c.RunOnce(ctx)
	if err != nil {
		return err
	}

	c.log.Info("report cycle finished",
		"pulses", report.Sample.Pulses,
		"energy", report.Sample.Energy,
		"power", report.Sample.Power,
		"failed_sinks", report.Failed(),
		"took", report.Duration,
	)

	return nil
}

// RunOnce drains the counter, builds the sample and hands it to every sink in
// order. A failing or panicking sink does not stop the ones after it.
func (c *Cycle) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	started := c.now()

	sample, err := c.source.Collect()
	if err != nil {
		return domain.CycleReport{}, fmt.Errorf("report cycle: %w", err)
	}

	c.indicator.Set(true)
	defer c.indicator.Set(false)

	dctx := ctx
	if c.budget > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	results := make([]domain.SinkResult, 0, len(c.sinks))
	for _, sink := range c.sinks {
		if dctx.Err() != nil {
			reason := "shutting down"
			if ctx.Err() == nil {
				reason = "cycle budget exhausted"
			}
			res := domain.ResultSkipped(reason)
			res.Sink = sink.Name()
			c.logResult(res)
			results = append(results, res)
			continue
		}

		res := c.dispatch(dctx, sink, sample)
		c.logResult(res)
		results = append(results, res)
	}

	report := domain.CycleReport{
		Sample:    sample,
		Results:   results,
		StartedAt: started,
		Duration:  c.now().Sub(started),
	}

	if c.bus != nil {
		c.bus.Publish(domain.EventSampleReported, report)
	}

	return report, nil
}

func (c *Cycle) dispatch(ctx context.Context, sink Sink, sample domain.Sample) (res domain.SinkResult) {
	start := c.now()
	name := sink.Name()

	defer func() {
		if r := recover(); r != nil {
			res = domain.ResultFailed(fmt.Errorf("panic: %v", r))
		}
		res.Sink = name
		res.Duration = c.now().Sub(start)
		c.record(sink, res, start)
	}()

	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if rc, ok := sink.(Reconnector); ok && !rc.Connected() {
		if err := rc.Reconnect(sctx); err != nil {
			return domain.ResultFailed(fmt.Errorf("reconnect: %w", err))
		}
		return domain.ResultSkipped("reconnected, send deferred to next cycle")
	}

	if err := sink.Send(sctx, sample); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.now().Sub(start).Round(time.Millisecond), err)
		}
		return domain.ResultFailed(err)
	}

	return domain.ResultOK()
}

func (c *Cycle) record(sink Sink, res domain.SinkResult, at time.Time) {
	connected := true
	if rc, ok := sink.(Reconnector); ok {
		connected = rc.Connected()
	}

	c.stateMu.Lock()
	st, ok := c.states[res.Sink]
	if !ok {
		st = &domain.SinkState{Name: res.Sink}
		c.states[res.Sink] = st
	}
	changed := st.Connected != connected
	st.Connected = connected
	st.LastResult = res
	st.LastAttempt = at
	snapshot := *st
	c.stateMu.Unlock()

	if changed && c.bus != nil {
		c.bus.Publish(domain.EventSinkStateChanged, snapshot)
	}
}

func (c *Cycle) logResult(res domain.SinkResult) {
	switch res.Status {
	case domain.SinkOK:
		c.log.Debug("sink delivered", "sink", res.Sink, "took", res.Duration)
	case domain.SinkSkipped:
		c.log.Info("sink skipped", "sink", res.Sink, "reason", res.Reason)
	default:
		c.log.Warn("sink failed", "sink", res.Sink, "error", res.Reason, "took", res.Duration)
	}
}

// States returns a copy of every sink's state in dispatch order.
func (c *Cycle) States() []domain.SinkState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	out := make([]domain.SinkState, 0, len(c.sinks))
	for _, s := range c.sinks {
		if st, ok := c.states[s.Name()]; ok {
			out = append(out, *st)
		}
	}
	return out
}
