package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sample is the per-window measurement handed to every sink. It is built once
// per report cycle and never mutated afterwards.
type Sample struct {
	DeviceID   uuid.UUID     `json:"device_id"`
	Pulses     uint64        `json:"pulses"`
	Window     time.Duration `json:"window"`
	Energy     float64       `json:"energy"`
	Power      float64       `json:"power"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// MessagePayload is the compact document published to the broker. Both
// values travel as text.
type MessagePayload struct {
	Pulses string `json:"pulses"`
	Power  string `json:"power"`
}

type CycleReport struct {
	Sample    Sample        `json:"sample"`
	Results   []SinkResult  `json:"results"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (r CycleReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == SinkFailed {
			n++
		}
	}
	return n
}
