package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/torchnode/cmd"
	"github.com/smazurov/torchnode/internal/config"
	"github.com/smazurov/torchnode/internal/console"
	"github.com/smazurov/torchnode/internal/events"
	"github.com/smazurov/torchnode/internal/led"
	"github.com/smazurov/torchnode/internal/logging"
	"github.com/smazurov/torchnode/internal/metrics"
	"github.com/smazurov/torchnode/internal/systemd"
	"github.com/smazurov/torchnode/internal/torch"
	"github.com/smazurov/torchnode/internal/version"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Torch settings
	SysfsRoot  string `help:"LED class directory holding the flash unit" default:"/sys/class/leds" toml:"torch.sysfs_root" env:"TORCH_SYSFS_ROOT"`
	Brightness string `help:"Initial brightness, fraction 0..1 or percentage" default:"1" toml:"torch.brightness" env:"TORCH_BRIGHTNESS"`

	// Presentation settings
	Console   bool `help:"Read torch commands from stdin" default:"true" toml:"console.enabled" env:"CONSOLE_ENABLED"`
	Indicator bool `help:"Mirror torch state on the board status LED" default:"false" toml:"led.enabled" env:"LED_ENABLED"`

	// Metrics settings
	MetricsTextfile string `help:"Prometheus textfile to write (empty disables)" default:"" toml:"metrics.textfile" env:"METRICS_TEXTFILE"`
	MetricsInterval string `help:"Metrics textfile write interval" default:"15s" toml:"metrics.interval" env:"METRICS_INTERVAL"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingTorch    string `help:"Torch controller logging level" default:"info" toml:"logging.torch" env:"LOGGING_TORCH"`
	LoggingHardware string `help:"Flash hardware logging level" default:"info" toml:"logging.hardware" env:"LOGGING_HARDWARE"`
	LoggingConsole  string `help:"Console logging level" default:"warn" toml:"logging.console" env:"LOGGING_CONSOLE"`
	LoggingLed      string `help:"Status LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingMetrics  string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"torch":    o.LoggingTorch,
			"hardware": o.LoggingHardware,
			"console":  o.LoggingConsole,
			"led":      o.LoggingLed,
			"metrics":  o.LoggingMetrics,
		},
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Runs for every command, so only cheap setup belongs here
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Error("Failed to load config", "path", opts.Config, "error", loadErr)
			os.Exit(1)
		}
		logging.Initialize(opts.loggingConfig())

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			defer close(stopped)
			if err := runDaemon(ctx, cancel, opts); err != nil {
				logging.GetLogger("main").Error("Torch daemon failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger := logging.GetLogger("main")
			logger.Info("Shutting down")
			cancel()
			select {
			case <-stopped:
			case <-time.After(shutdownTimeout):
				logger.Warn("Shutdown timed out", "timeout", shutdownTimeout)
			}
		})
	})

	root := cli.Root()
	root.Use = "torchnode"
	root.Short = "Camera flash torch controller"
	root.Version = version.Get().Version

	root.AddCommand(
		cmd.CreateDevicesCmd(),
		cmd.CreateSignalCmd(),
		cmd.CreateServiceCmd(),
		cmd.CreateVersionCmd(),
	)

	cli.Run()
}

// runDaemon wires the controller to its collaborators and blocks until ctx is
// cancelled or the console user quits. The flash is always off when it returns.
func runDaemon(ctx context.Context, cancel context.CancelFunc, opts *Options) error {
	defer cancel()
	logger := logging.GetLogger("main")

	brightness, err := console.ParseBrightness(opts.Brightness)
	if err != nil {
		return err
	}
	interval, err := time.ParseDuration(opts.MetricsInterval)
	if err != nil {
		return err
	}

	notifier := systemd.NewNotifier(logger)
	bus := events.New()

	hw := torch.NewHardware(opts.SysfsRoot, logging.GetLogger("hardware"))
	ctrl := torch.NewController(hw, logging.GetLogger("torch"),
		torch.WithEventBus(bus),
		torch.WithInitialBrightness(brightness),
	)
	defer ctrl.Dispose()

	recorder := metrics.New(bus, logging.GetLogger("metrics"))
	recorder.Seed(ctrl.IsOn(), ctrl.Brightness(), ctrl.StrengthLevel())
	recorder.Start()
	defer recorder.Stop()

	if opts.Indicator {
		ledLogger := logging.GetLogger("led")
		ledManager := led.NewManager(led.New(ledLogger), bus, ledLogger)
		ledManager.Start()
		defer ledManager.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	if opts.Console {
		term := console.New(ctrl, os.Stdin, os.Stdout, logging.GetLogger("console"),
			console.WithEventBus(bus),
			console.WithLogBuffer(logging.GetBuffer()),
			console.WithQuitHandler(cancel),
		)
		g.Go(func() error { return term.Run(gctx) })
	}

	if opts.MetricsTextfile != "" {
		g.Go(func() error { return recorder.RunTextfile(gctx, opts.MetricsTextfile, interval) })
	}

	if _, statErr := os.Stat(opts.Config); statErr == nil {
		configLogger := logging.GetLogger("config")
		watcher := config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, configLogger)
		watcher.OnReload(func(cfg logging.Config) {
			logging.UpdateLevels(cfg.Level, cfg.Modules)
			configLogger.Info("Log levels reloaded", "level", cfg.Level, "modules", cfg.Modules)
		})
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(func() error { return notifier.RunWatchdog(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("Torch daemon started",
		"device", ctrl.DeviceID(),
		"max_level", ctrl.MaxStrengthLevel(),
		"brightness", ctrl.Brightness(),
		"version", version.Get().Version)
	notifier.Ready()
	notifier.Status("torch ready on " + deviceLabel(ctrl))

	err = g.Wait()
	notifier.Stopping()
	return err
}

func deviceLabel(ctrl *torch.Controller) string {
	if !ctrl.Available() {
		return "no device"
	}
	return ctrl.DeviceID()
}
