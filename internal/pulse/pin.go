package pulse

import (
	"errors"
	"fmt"
	"io"
)

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin is an interrupt-capable input. Handlers passed to SetIRQ run in
// interrupt context and must not block.
type IRQPin interface {
	Number() int
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// OutputPin is a digital output such as a status LED.
type OutputPin interface {
	Number() int
	Set(level bool)
}

// GPIOOutput is an OutputPin holding a claimed line that must be released.
type GPIOOutput interface {
	OutputPin
	io.Closer
}

var (
	ErrNilPin          = errors.New("pulse: nil pin")
	ErrGPIOUnsupported = errors.New("pulse: gpio character device not available on this platform")
)

// Attach routes falling edges on pin into c. The returned func detaches the
// handler. Debouncing is left to the sensor hardware.
func Attach(pin IRQPin, c *Counter) (func(), error) {
	if pin == nil {
		return nil, ErrNilPin
	}

	if err := pin.SetIRQ(EdgeFalling, c.OnEdge); err != nil {
		return nil, fmt.Errorf("attach irq on pin %d: %w", pin.Number(), err)
	}

	return func() { _ = pin.ClearIRQ() }, nil
}
