//go:build linux

package pulse

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"pulsemeter/internal/logger"
)

const consumer = "pulsemeter"

// CdevPin is an input line on a GPIO character device. The line is only
// requested when SetIRQ is called and is released by ClearIRQ.
type CdevPin struct {
	chip   string
	offset int

	mu   sync.Mutex
	line *gpiocdev.Line
}

// OpenInput returns the input line at offset on chip (e.g. "gpiochip0").
func OpenInput(chip string, offset int) (IRQPin, error) {
	return &CdevPin{chip: chip, offset: offset}, nil
}

func (p *CdevPin) Number() int { return p.offset }

// SetIRQ requests the line with a pull-up bias, so an open-collector meter
// output idles high and each pulse is a falling edge. The handler runs on
// the gpiocdev event goroutine.
func (p *CdevPin) SetIRQ(edge Edge, handler func()) error {
	opt, err := edgeOption(edge)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.line != nil {
		return ErrIRQAlreadySet
	}

	line, err := gpiocdev.RequestLine(p.chip, p.offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumer),
		opt,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
	)
	if err != nil {
		return fmt.Errorf("request %s line %d: %w", p.chip, p.offset, err)
	}

	p.line = line
	return nil
}

func (p *CdevPin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.line == nil {
		return nil
	}
	err := p.line.Close()
	p.line = nil
	return err
}

func edgeOption(edge Edge) (gpiocdev.LineReqOption, error) {
	switch edge {
	case EdgeFalling:
		return gpiocdev.WithFallingEdge, nil
	case EdgeRising:
		return gpiocdev.WithRisingEdge, nil
	case EdgeBoth:
		return gpiocdev.WithBothEdges, nil
	default:
		return nil, fmt.Errorf("pulse: cannot watch edge %q", edge)
	}
}

// CdevOutput drives an output line, typically the send LED.
type CdevOutput struct {
	offset int
	line   *gpiocdev.Line
	log    logger.Logger
}

// OpenOutput claims the output line at offset on chip, initially low.
func OpenOutput(chip string, offset int, log logger.Logger) (GPIOOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}

	return &CdevOutput{offset: offset, line: line, log: log}, nil
}

func (o *CdevOutput) Number() int { return o.offset }

func (o *CdevOutput) Set(level bool) {
	v := 0
	if level {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		o.log.Warn("set output line failed", "pin", o.offset, "error", err)
	}
}

func (o *CdevOutput) Close() error {
	return o.line.Close()
}
