// Package metrics
package metrics

import (
	"fmt"
	"sync"
	"time"

	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"
	"pulsemeter/internal/pulse"

	"github.com/google/uuid"
)

// Drainer is the read-and-reset side of a pulse counter.
type Drainer interface {
	Drain() uint64
}

var _ Drainer = (*pulse.Counter)(nil)

// Collector turns counter drains into samples and keeps the last few for
// inspection.
type Collector struct {
	log logger.Logger

	counter       Drainer
	deviceID      uuid.UUID
	interval      time.Duration
	pulsesPerUnit float64
	now           func() time.Time

	buffer     []domain.Sample
	bufferMu   sync.Mutex
	maxSamples int
}

func NewCollector(counter Drainer, deviceID uuid.UUID, interval time.Duration, pulsesPerUnit float64, log logger.Logger) *Collector {
	return &Collector{
		log: log,

		counter:       counter,
		deviceID:      deviceID,
		interval:      interval,
		pulsesPerUnit: pulsesPerUnit,
		now:           time.Now,

		buffer:     make([]domain.Sample, 0, 10),
		maxSamples: 10,
	}
}

// Collect drains the counter and builds this window's sample. The drain is
// final: a sample that later fails to reach a sink is not re-queued.
func (c *Collector) Collect() (domain.Sample, error) {
	pulses := c.counter.Drain()

	energy, power, err := Compute(pulses, c.interval, c.pulsesPerUnit)
	if err != nil {
		return domain.Sample{}, fmt.Errorf("compute sample: %w", err)
	}

	sample := domain.Sample{
		DeviceID:   c.deviceID,
		Pulses:     pulses,
		Window:     c.interval,
		Energy:     energy,
		Power:      power,
		RecordedAt: c.now().UTC(),
	}

	c.bufferMu.Lock()
	if len(c.buffer) >= c.maxSamples {
		c.buffer = c.buffer[1:]
	}
	c.buffer = append(c.buffer, sample)
	c.bufferMu.Unlock()

	c.log.Debug("sample collected", "pulses", pulses, "energy", energy, "power", power)

	return sample, nil
}

func (c *Collector) Latest() (domain.Sample, bool) {
	c.bufferMu.Lock()
	defer c.bufferMu.Unlock()

	if len(c.buffer) == 0 {
		return domain.Sample{}, false
	}

	return c.buffer[len(c.buffer)-1], true
}

func (c *Collector) Interval() time.Duration {
	return c.interval
}
