package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/torchnode/internal/events"
	"github.com/smazurov/torchnode/internal/logging"
	"github.com/smazurov/torchnode/internal/torch"
	"github.com/spf13/cobra"
)

// CreateSignalCmd creates the signal command.
func CreateSignalCmd() *cobra.Command {
	var sysfsRoot string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:       "signal <sos|strobe>",
		Short:     "Run a signal pattern on the flash",
		Long:      `Runs the SOS or strobe pattern for the given duration (0 runs until interrupted), then turns the flash off.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(torch.ModeSOS), string(torch.ModeStrobe)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.GetLogger("torch")
			bus := events.New()
			ctrl := torch.NewController(torch.NewHardware(sysfsRoot, logging.GetLogger("hardware")), logger,
				torch.WithEventBus(bus))

			unsubscribe := bus.Subscribe(func(e events.SignalFlashEvent) {
				logger.Debug("Flash", "pattern", e.Pattern, "duration_ms", e.DurationMs)
			})
			defer unsubscribe()

			if !ctrl.Available() {
				logger.Warn("No flash device, pattern will only be simulated")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "running %s on %q, press Ctrl+C to stop\n", args[0], ctrl.DeviceID())
			return runSignal(ctx, ctrl, torch.Mode(args[0]), duration)
		},
	}

	cmd.Flags().StringVar(&sysfsRoot, "sysfs-root", torch.DefaultSysfsRoot, "LED class directory")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "How long to run the pattern (0 = until interrupted)")

	return cmd
}

// runSignal enables mode, waits for duration or ctx, and disposes the controller.
func runSignal(ctx context.Context, ctrl *torch.Controller, mode torch.Mode, duration time.Duration) error {
	defer ctrl.Dispose()

	switch mode {
	case torch.ModeSOS:
		ctrl.SetSOSMode(true)
	case torch.ModeStrobe:
		ctrl.SetStrobeMode(true)
	default:
		return fmt.Errorf("unknown signal %q", mode)
	}

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	<-ctx.Done()
	return nil
}
