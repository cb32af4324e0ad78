//go:build !linux

package pulse

import "pulsemeter/internal/logger"

func OpenInput(string, int) (IRQPin, error) {
	return nil, ErrGPIOUnsupported
}

func OpenOutput(string, int, logger.Logger) (GPIOOutput, error) {
	return nil, ErrGPIOUnsupported
}
