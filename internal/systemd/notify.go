package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports service state to systemd. Outside systemd every call is a no-op.
type Notifier struct {
	logger *slog.Logger
	notify func(unsetEnvironment bool, state string) (bool, error)
}

// NewNotifier returns a notifier using NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger, notify: daemon.SdNotify}
}

// Ready tells systemd that startup is complete.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// RunWatchdog pings the systemd watchdog at half the configured interval until
// ctx is cancelled. It returns immediately when the watchdog is disabled.
func (n *Notifier) RunWatchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", "error", err)
		return nil
	}
	if interval <= 0 {
		return nil
	}
	return n.watchdogLoop(ctx, interval/2)
}

func (n *Notifier) watchdogLoop(ctx context.Context, period time.Duration) error {
	n.logger.Info("Systemd watchdog enabled", "period", period)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
