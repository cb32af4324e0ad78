package metrics

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("metrics: window and pulses per unit must be positive")

// Compute converts a pulse delta into energy (units) and average power
// (units per hour) over window. Callers pass the nominal interval, not a
// measured one, so successive values stay comparable under scheduling jitter.
func Compute(pulses uint64, window time.Duration, pulsesPerUnit float64) (energy, power float64, err error) {
	if window <= 0 || pulsesPerUnit <= 0 {
		return 0, 0, ErrInvalidWindow
	}

	if pulses == 0 {
		return 0, 0, nil
	}

	energy = float64(pulses) / pulsesPerUnit
	power = energy / window.Hours()

	return energy, power, nil
}
