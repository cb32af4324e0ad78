package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "text")

	log.Info("hidden")
	log.Warn("shown", "sink", "mqtt")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "sink=mqtt")
}

func TestNewWithWriter_JSONWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "json").With("component", "cycle")

	log.Debug("drained", "pulses", 50)

	out := buf.String()
	assert.Contains(t, out, `"component":"cycle"`)
	assert.Contains(t, out, `"pulses":50`)
}
