package domain

import (
	"errors"
	"time"
)

var ErrNotConnected = errors.New("sink not connected")

type SinkStatus string

const (
	SinkOK      SinkStatus = "ok"
	SinkFailed  SinkStatus = "failed"
	SinkSkipped SinkStatus = "skipped"
)

// SinkResult is the outcome of one sink operation within a cycle. Failures are
// always transient; nothing a sink reports can stop the cycle.
type SinkResult struct {
	Sink     string        `json:"sink"`
	Status   SinkStatus    `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

func ResultOK() SinkResult {
	return SinkResult{Status: SinkOK}
}

func ResultFailed(err error) SinkResult {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return SinkResult{Status: SinkFailed, Reason: reason}
}

func ResultSkipped(reason string) SinkResult {
	return SinkResult{Status: SinkSkipped, Reason: reason}
}

type SinkState struct {
	Name        string     `json:"name"`
	Connected   bool       `json:"connected"`
	LastResult  SinkResult `json:"last_result"`
	LastAttempt time.Time  `json:"last_attempt"`
}
