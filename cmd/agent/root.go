package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pulsemeter/internal/adapters/dashboard"
	"pulsemeter/internal/adapters/httppost"
	"pulsemeter/internal/adapters/mqtt"
	"pulsemeter/internal/adapters/redis"
	"pulsemeter/internal/config"
	"pulsemeter/internal/event"
	"pulsemeter/internal/logger"
	"pulsemeter/internal/metrics"
	"pulsemeter/internal/observability"
	"pulsemeter/internal/pulse"
	"pulsemeter/internal/report"
	"pulsemeter/internal/workers"
)

var (
	envFile      string
	simulateRate float64
)

var rootCmd = &cobra.Command{
	Use:          "pulsemeter",
	Short:        "Pulse-counting energy reporter",
	Long:         "Counts meter pulses and reports energy and power to a dashboard, an HTTP endpoint, an MQTT topic and Redis.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "load configuration from this env file instead of ./.env")
	rootCmd.Flags().Float64Var(&simulateRate, "simulate-rate", 0, "fire simulated pulses at this rate per second")
}

func run(cmd *cobra.Command, _ []string) error {
	var (
		cfg *config.Config
		err error
	)
	if envFile != "" {
		cfg, err = config.LoadFile(envFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	appLog := logger.New(cfg)
	appLog.Info("pulsemeter: starting...",
		"device_id", cfg.DeviceID,
		"interval", cfg.SampleInterval,
		"pulses_per_unit", cfg.PulsesPerUnit,
	)

	runtimeCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pulse input and send indicator
	gpio, err := openPins(cfg, simulateRate, appLog)
	if err != nil {
		return err
	}
	defer gpio.Close()

	counter := pulse.NewCounter()
	detach, err := pulse.Attach(gpio.input, counter)
	if err != nil {
		return fmt.Errorf("attach pulse input: %w", err)
	}
	defer detach()

	// Sinks
	sinks, closers := buildSinks(cfg, appLog)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if len(sinks) == 0 {
		appLog.Warn("no sinks configured, samples will only be logged")
	}

	bus := event.New()
	bus.OnPanic = func(name string, err error) {
		appLog.Error("event handler failed", "event", name, "error", err)
	}

	obs := observability.NewPromObs()
	obs.Subscribe(bus)

	collector := metrics.NewCollector(counter, cfg.DeviceID, cfg.SampleInterval, cfg.PulsesPerUnit, appLog)
	cycle := report.NewCycle(collector, sinks, appLog.With("component", "report"),
		report.WithIndicator(gpio.indicator),
		report.WithPublisher(bus),
		report.WithSinkTimeout(cfg.SinkTimeout),
		report.WithCycleBudget(cycleBudget(cfg)),
	)

	scheduler := workers.NewScheduler(appLog)
	manager := workers.NewManager(appLog, scheduler)
	manager.Every(cfg.SampleInterval, cycle)
	manager.Every(statusEvery(cfg), workers.NewStatusWorker(counter, cycle, appLog))

	g, gCtx := errgroup.WithContext(runtimeCtx)

	// Report cycle and status
	g.Go(func() error {
		return manager.Start(gCtx)
	})

	// Metrics and health
	if cfg.MetricsAddr != "" {
		status := statusSource{Counter: counter, Cycle: cycle, Collector: collector}
		srv := observability.NewServer(cfg.MetricsAddr, obs, status, appLog)
		g.Go(func() error {
			return srv.Run(gCtx)
		})
	}

	// Simulated pulses
	if gpio.simulated != nil {
		appLog.Info("simulating pulses", "rate_per_second", simulateRate)
		g.Go(func() error {
			return gpio.simulated.Run(gCtx, simulateRate)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("pulsemeter failed unexpectedly", "error", err)
		return err
	}

	appLog.Info("pulsemeter stopped gracefully.", "total_pulses", counter.Total())
	return nil
}

func buildSinks(cfg *config.Config, log logger.Logger) ([]report.Sink, []io.Closer) {
	var (
		sinks   []report.Sink
		closers []io.Closer
	)

	if cfg.Dashboard.URL != "" {
		s := dashboard.NewSink(cfg.Dashboard, cfg.SinkTimeout, log.With("sink", "dashboard"))
		sinks = append(sinks, s)
		closers = append(closers, s)
	}

	if cfg.HTTPSink.URL != "" {
		sinks = append(sinks, httppost.NewSink(cfg.HTTPSink, cfg.DeviceID, cfg.SinkTimeout, log.With("sink", "http")))
	}

	if cfg.MQTT.BrokerURL != "" {
		s := mqtt.NewSink(cfg.MQTT, cfg.SinkTimeout, log.With("sink", "mqtt"))
		sinks = append(sinks, s)
		closers = append(closers, s)
	}

	if cfg.Redis.Address != "" {
		client := redis.Init(cfg.Redis)
		sinks = append(sinks, redis.NewSink(redis.NewRegistry(client), cfg.Redis))
		closers = append(closers, client)
	}

	return sinks, closers
}

type pins struct {
	input     pulse.IRQPin
	simulated *pulse.SimulatedPin
	indicator pulse.Indicator
	output    pulse.GPIOOutput
}

// openPins picks the pulse source. A positive rate selects the simulator;
// otherwise the input line on cfg.GPIOChip is used and startup fails if it
// cannot be opened. A missing LED line only downgrades the indicator to a log.
func openPins(cfg *config.Config, rate float64, log logger.Logger) (*pins, error) {
	p := &pins{}

	if rate > 0 {
		p.simulated = pulse.NewSimulatedPin(cfg.InputPin)
		p.input = p.simulated
		p.indicator = pulse.NewLogIndicator(log, cfg.LEDPin)
		return p, nil
	}

	input, err := pulse.OpenInput(cfg.GPIOChip, cfg.InputPin)
	if err != nil {
		return nil, fmt.Errorf("open pulse input %s/%d (use --simulate-rate without gpio): %w", cfg.GPIOChip, cfg.InputPin, err)
	}
	p.input = input

	out, err := pulse.OpenOutput(cfg.GPIOChip, cfg.LEDPin, log)
	if err != nil {
		log.Warn("send indicator unavailable, logging instead", "pin", cfg.LEDPin, "error", err)
		p.indicator = pulse.NewLogIndicator(log, cfg.LEDPin)
		return p, nil
	}
	p.output = out
	p.indicator = pulse.NewPinIndicator(out)

	return p, nil
}

func (p *pins) Close() error {
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}

// cycleBudget leaves a tenth of the interval free so dispatch never runs
// into the next tick.
func cycleBudget(cfg *config.Config) time.Duration {
	return cfg.SampleInterval * 9 / 10
}

func statusEvery(cfg *config.Config) time.Duration {
	return 12 * cfg.SampleInterval
}

type statusSource struct {
	*pulse.Counter
	*report.Cycle
	*metrics.Collector
}
