// Package metrics exposes torch state and signal activity as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/torchnode/internal/events"
)

const namespace = "torch"

// Recorder keeps torch metrics on a private registry, fed from the event bus.
type Recorder struct {
	registry     *prometheus.Registry
	eventBus     *events.Bus
	logger       *slog.Logger
	clock        clockwork.Clock
	unsubscribes []func()

	on            prometheus.Gauge
	brightness    prometheus.Gauge
	strengthLevel prometheus.Gauge
	signalActive  *prometheus.GaugeVec
	flashes       *prometheus.CounterVec
	flashSeconds  *prometheus.CounterVec
	signalJobs    *prometheus.CounterVec
	faults        *prometheus.CounterVec
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock driving the textfile writer.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// New registers the torch metrics on a fresh registry.
func New(eventBus *events.Bus, logger *slog.Logger, opts ...Option) *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	r := &Recorder{
		registry: registry,
		eventBus: eventBus,
		logger:   logger,
		clock:    clockwork.NewRealClock(),

		on: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "on",
			Help:      "Whether the steady torch is switched on (1) or off (0)",
		}),
		brightness: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "brightness_ratio",
			Help:      "Requested brightness fraction in [0,1]",
		}),
		strengthLevel: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strength_level",
			Help:      "Hardware strength level the brightness maps to",
		}),
		signalActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_active",
			Help:      "Whether a signal mode is enabled",
		}, []string{"mode"}),
		flashes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flashes_total",
			Help:      "Completed signal flashes",
		}, []string{"pattern"}),
		flashSeconds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_seconds_total",
			Help:      "Time the torch spent lit by signal flashes",
		}, []string{"pattern"}),
		signalJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_jobs_total",
			Help:      "Signal jobs started",
		}, []string{"pattern"}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_faults_total",
			Help:      "Hardware command failures by operation and kind",
		}, []string{"op", "kind"}),
	}

	for _, opt := range opts {
		opt(r)
	}

	// Both modes are always exported, even before the first change
	r.signalActive.WithLabelValues("sos").Set(0)
	r.signalActive.WithLabelValues("strobe").Set(0)

	return r
}

// Registry returns the registry holding the torch metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Seed sets the state gauges before any event has been seen.
func (r *Recorder) Seed(on bool, brightness float64, level int) {
	r.on.Set(boolToFloat(on))
	r.brightness.Set(brightness)
	r.strengthLevel.Set(float64(level))
}

// Start subscribes to torch events.
func (r *Recorder) Start() {
	r.unsubscribes = append(r.unsubscribes,
		r.eventBus.Subscribe(func(e events.TorchPowerChangedEvent) {
			r.on.Set(boolToFloat(e.On))
		}),
		r.eventBus.Subscribe(func(e events.BrightnessChangedEvent) {
			r.brightness.Set(e.Brightness)
			r.strengthLevel.Set(float64(e.Level))
		}),
		r.eventBus.Subscribe(func(e events.SOSModeChangedEvent) {
			r.signalActive.WithLabelValues("sos").Set(boolToFloat(e.Active))
		}),
		r.eventBus.Subscribe(func(e events.StrobeModeChangedEvent) {
			r.signalActive.WithLabelValues("strobe").Set(boolToFloat(e.Active))
		}),
		r.eventBus.Subscribe(func(e events.SignalJobEvent) {
			if e.Action == events.SignalJobStarted {
				r.signalJobs.WithLabelValues(e.Pattern).Inc()
			}
		}),
		r.eventBus.Subscribe(func(e events.SignalFlashEvent) {
			r.flashes.WithLabelValues(e.Pattern).Inc()
			r.flashSeconds.WithLabelValues(e.Pattern).Add(e.DurationMs / 1000)
		}),
		r.eventBus.Subscribe(func(e events.HardwareFaultEvent) {
			r.faults.WithLabelValues(e.Op, e.Kind).Inc()
		}),
	)
	r.logger.Debug("Metrics recorder started")
}

// Stop unsubscribes from the event bus.
func (r *Recorder) Stop() {
	for _, unsubscribe := range r.unsubscribes {
		unsubscribe()
	}
	r.unsubscribes = nil
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// RunTextfile writes the textfile every interval until ctx is cancelled,
// then writes it one last time.
func (r *Recorder) RunTextfile(ctx context.Context, path string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid metrics interval %v", interval)
	}

	logger := r.logger.With("path", path)
	logger.Info("Metrics textfile writer started", "interval", interval)

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.WriteTextfile(path); err != nil {
			logger.Warn("Metrics textfile write failed", "error", err)
		}

		select {
		case <-ctx.Done():
			if err := r.WriteTextfile(path); err != nil {
				logger.Warn("Final metrics textfile write failed", "error", err)
			}
			logger.Debug("Metrics textfile writer stopped")
			return nil
		case <-ticker.Chan():
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
