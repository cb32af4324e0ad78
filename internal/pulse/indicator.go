package pulse

import "pulsemeter/internal/logger"

// Indicator is asserted while a report is being dispatched. It carries no
// correctness meaning.
type Indicator interface {
	Set(on bool)
}

type PinIndicator struct {
	pin OutputPin
}

func NewPinIndicator(pin OutputPin) *PinIndicator {
	return &PinIndicator{pin: pin}
}

func (i *PinIndicator) Set(on bool) { i.pin.Set(on) }

// LogIndicator is used when no LED is wired.
type LogIndicator struct {
	log logger.Logger
	pin int
}

func NewLogIndicator(log logger.Logger, pin int) *LogIndicator {
	return &LogIndicator{log: log, pin: pin}
}

func (i *LogIndicator) Set(on bool) {
	i.log.Debug("send indicator", "pin", i.pin, "on", on)
}

type noopIndicator struct{}

func (noopIndicator) Set(bool) {}

var NoopIndicator Indicator = noopIndicator{}
