package torch

import "log/slog"

// NewHardware returns a sysfs backend when root holds at least one flash LED,
// otherwise a no-op backend. An empty root means DefaultSysfsRoot.
func NewHardware(root string, logger *slog.Logger) Hardware {
	hw := newSysfs(root)

	ids, err := hw.ListAvailableDevices()
	if err != nil || len(ids) == 0 {
		logger.Info("No flash LED found, using no-op torch hardware", "root", hw.root, "error", err)
		return newNoop(logger)
	}

	logger.Info("Detected flash LED, using sysfs torch hardware", "root", hw.root, "devices", ids)
	return hw
}
