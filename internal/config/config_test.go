package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("PULSEMETER_DEVICE_ID", "")
	t.Setenv("PULSEMETER_SAMPLE_INTERVAL", "")
	t.Setenv("PULSEMETER_PULSES_PER_UNIT", "")
	t.Setenv("MQTT_CLIENT_ID", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, 1000.0, cfg.PulsesPerUnit)
	assert.Equal(t, 1500*time.Millisecond, cfg.SinkTimeout)
	assert.NotEqual(t, uuid.Nil, cfg.DeviceID)
	assert.Equal(t, cfg.DeviceID.String(), cfg.MQTT.ClientID)
	assert.Equal(t, "V0", cfg.Dashboard.EnergyPin)
	assert.Equal(t, "meter/power", cfg.MQTT.Topic)
	assert.Equal(t, int64(100), cfg.Redis.MaxLen)
	assert.Equal(t, "gpiochip0", cfg.GPIOChip)
}

func TestLoad_ParsesIntervalForms(t *testing.T) {
	t.Setenv("PULSEMETER_SAMPLE_INTERVAL", "10000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.SampleInterval)

	t.Setenv("PULSEMETER_SAMPLE_INTERVAL", "2s")
	t.Setenv("PULSEMETER_SINK_TIMEOUT", "500ms")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.SampleInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.SinkTimeout)
}

func TestLoad_RejectsSinkTimeoutNotBelowInterval(t *testing.T) {
	t.Setenv("PULSEMETER_SAMPLE_INTERVAL", "1000")
	t.Setenv("PULSEMETER_SINK_TIMEOUT", "1000")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "SinkTimeout")
}

func TestLoad_RejectsUnparsableNumbers(t *testing.T) {
	t.Setenv("PULSEMETER_PULSES_PER_UNIT", "1OOO")
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `PULSEMETER_PULSES_PER_UNIT="1OOO"`)
	assert.Contains(t, err.Error(), `REDIS_DB="zero"`)
}

func TestLoad_RejectsUnparsableInterval(t *testing.T) {
	t.Setenv("PULSEMETER_SAMPLE_INTERVAL", "5 seconds")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "PULSEMETER_SAMPLE_INTERVAL")
}

func TestLoad_RejectsBadDeviceID(t *testing.T) {
	t.Setenv("PULSEMETER_DEVICE_ID", "not-a-uuid")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_DashboardURLRequiresToken(t *testing.T) {
	t.Setenv("DASHBOARD_WS_URL", "ws://dash.local/ws")
	t.Setenv("DASHBOARD_TOKEN", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Token is required")
}

func TestLoadFile(t *testing.T) {
	id := uuid.New()
	path := filepath.Join(t.TempDir(), ".env")
	data := "PULSEMETER_DEVICE_ID=" + id.String() + "\n" +
		"PULSEMETER_PULSES_PER_UNIT=800\n" +
		"MQTT_BROKER_URL=tcp://broker.local:1883\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	// godotenv does not override variables that are already set.
	t.Setenv("PULSEMETER_DEVICE_ID", "")
	t.Setenv("PULSEMETER_PULSES_PER_UNIT", "")
	t.Setenv("MQTT_BROKER_URL", "")
	os.Unsetenv("PULSEMETER_DEVICE_ID")
	os.Unsetenv("PULSEMETER_PULSES_PER_UNIT")
	os.Unsetenv("MQTT_BROKER_URL")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, id, cfg.DeviceID)
	assert.Equal(t, 800.0, cfg.PulsesPerUnit)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.BrokerURL)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
