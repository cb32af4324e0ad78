// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

type Config struct {
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	DeviceID       uuid.UUID
	SampleInterval time.Duration `validate:"gt=0"`
	PulsesPerUnit  float64       `validate:"gt=0"`
	SinkTimeout    time.Duration `validate:"gt=0,ltfield=SampleInterval"`
	GPIOChip       string        `validate:"required"`
	InputPin       int           `validate:"gte=0"`
	LEDPin         int           `validate:"gte=0"`

	MetricsAddr string

	Dashboard DashboardConfig
	HTTPSink  HTTPSinkConfig
	MQTT      MQTTConfig
	Redis     RedisConfig
}

type DashboardConfig struct {
	URL       string `validate:"omitempty,url"`
	Token     string `validate:"required_with=URL"`
	EnergyPin string `validate:"required"`
	PowerPin  string `validate:"required"`
	PulsesPin string `validate:"required"`
}

type HTTPSinkConfig struct {
	URL    string `validate:"omitempty,url"`
	Secret string
}

type MQTTConfig struct {
	BrokerURL string `validate:"omitempty,url"`
	Username  string
	Password  string
	Topic     string `validate:"required_with=BrokerURL"`
	ClientID  string
}

type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int    `validate:"gte=0"`
	Stream   string `validate:"required_with=Address"`
	MaxLen   int64  `validate:"gt=0"`
}

// Load reads the process environment, falling back to a .env file in the
// working directory. The result is not mutated after startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return fromEnv()
}

// LoadFile is Load with an explicit env file.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}

	return fromEnv()
}

func fromEnv() (*Config, error) {
	env := &envReader{}

	// Logs
	logLevel := strings.ToLower(getEnv("LOG_LEVEL", "info"))
	logFormat := strings.ToLower(getEnv("LOG_FORMAT", "text"))

	// Device identity
	var deviceID uuid.UUID
	if raw := os.Getenv("PULSEMETER_DEVICE_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: PULSEMETER_DEVICE_ID: %v", ErrInvalidConfig, err)
		}
		deviceID = id
	} else {
		deviceID = uuid.New()
	}

	// Sampling
	interval := env.asDurationMS("PULSEMETER_SAMPLE_INTERVAL", 5000*time.Millisecond)
	sinkTimeout := env.asDurationMS("PULSEMETER_SINK_TIMEOUT", 1500*time.Millisecond)
	pulsesPerUnit := env.asFloat("PULSEMETER_PULSES_PER_UNIT", 1000)

	cfg := &Config{
		LogLevel:  logLevel,
		LogFormat: logFormat,

		DeviceID:       deviceID,
		SampleInterval: interval,
		PulsesPerUnit:  pulsesPerUnit,
		SinkTimeout:    sinkTimeout,
		GPIOChip:       getEnv("PULSEMETER_GPIO_CHIP", "gpiochip0"),
		InputPin:       env.asInt("PULSEMETER_INPUT_PIN", 5),
		LEDPin:         env.asInt("PULSEMETER_LED_PIN", 2),

		MetricsAddr: getEnv("METRICS_ADDR", ":9100"),

		Dashboard: DashboardConfig{
			URL:       os.Getenv("DASHBOARD_WS_URL"),
			Token:     os.Getenv("DASHBOARD_TOKEN"),
			EnergyPin: getEnv("DASHBOARD_ENERGY_PIN", "V0"),
			PowerPin:  getEnv("DASHBOARD_POWER_PIN", "V1"),
			PulsesPin: getEnv("DASHBOARD_PULSES_PIN", "V2"),
		},

		HTTPSink: HTTPSinkConfig{
			URL:    os.Getenv("HTTP_SINK_URL"),
			Secret: os.Getenv("HTTP_SINK_SECRET"),
		},

		MQTT: MQTTConfig{
			BrokerURL: os.Getenv("MQTT_BROKER_URL"),
			Username:  os.Getenv("MQTT_USERNAME"),
			Password:  os.Getenv("MQTT_PASSWORD"),
			Topic:     getEnv("MQTT_TOPIC", "meter/power"),
			ClientID:  getEnv("MQTT_CLIENT_ID", deviceID.String()),
		},

		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Username: os.Getenv("REDIS_USERNAME"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       env.asInt("REDIS_DB", 0),
			Stream:   getEnv("REDIS_STREAM", "pulsemeter:samples"),
			MaxLen:   int64(env.asInt("REDIS_MAX_LEN", 100)),
		},
	}

	if err := env.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_with":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "ltfield":
			msgs = append(msgs, fmt.Sprintf("%s must be less than %s", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envReader parses typed variables and remembers every one that was set but
// unparsable, so a typo fails startup instead of falling back to a default.
type envReader struct {
	bad []string
}

func (r *envReader) fail(key, raw string) {
	r.bad = append(r.bad, fmt.Sprintf("%s=%q", key, raw))
}

func (r *envReader) err() error {
	if len(r.bad) == 0 {
		return nil
	}
	return fmt.Errorf("%w: unparsable %s", ErrInvalidConfig, strings.Join(r.bad, ", "))
}

func (r *envReader) asInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw)
		return fallback
	}
	return v
}

func (r *envReader) asFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.fail(key, raw)
		return fallback
	}
	return v
}

// asDurationMS accepts either a Go duration ("5s") or a bare millisecond count ("5000").
func (r *envReader) asDurationMS(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	r.fail(key, raw)
	return fallback
}
