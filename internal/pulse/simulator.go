package pulse

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SimulatedPin stands in for a meter's optical output on hosts without GPIO.
// Fire delivers one edge synchronously; Run delivers edges at a fixed rate.
type SimulatedPin struct {
	number int

	mu      sync.RWMutex
	edge    Edge
	handler func()
}

var ErrIRQAlreadySet = errors.New("pulse: irq handler already registered")

func NewSimulatedPin(number int) *SimulatedPin {
	return &SimulatedPin{number: number}
}

func (p *SimulatedPin) Number() int { return p.number }

func (p *SimulatedPin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handler != nil {
		return ErrIRQAlreadySet
	}
	p.edge = edge
	p.handler = handler
	return nil
}

func (p *SimulatedPin) ClearIRQ() error {
	p.mu.Lock()
	p.edge = EdgeNone
	p.handler = nil
	p.mu.Unlock()
	return nil
}

// Fire simulates a high-to-low transition.
func (p *SimulatedPin) Fire() {
	p.mu.RLock()
	h, edge := p.handler, p.edge
	p.mu.RUnlock()

	if h != nil && (edge == EdgeFalling || edge == EdgeBoth) {
		h()
	}
}

// Run fires edges at perSecond until ctx is done. A non-positive rate returns
// immediately.
func (p *SimulatedPin) Run(ctx context.Context, perSecond float64) error {
	if perSecond <= 0 {
		return nil
	}

	period := time.Duration(float64(time.Second) / perSecond)
	if period <= 0 {
		period = time.Microsecond
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Fire()
		}
	}
}
