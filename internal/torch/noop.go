package torch

import "log/slog"

// noop implements Hardware for systems without a flash unit
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{
		logger: logger,
	}
}

// ListAvailableDevices returns an empty list since no flash unit is available
func (n *noop) ListAvailableDevices() ([]string, error) {
	return []string{}, nil
}

func (n *noop) QueryMaxStrengthLevel(_ string) (int, error) {
	return 1, nil
}

func (n *noop) SetTorchStrength(deviceID string, level int) error {
	n.logger.Debug("Torch control not available (no-op)", "device", deviceID, "op", OpStrength, "level", level)
	return nil
}

func (n *noop) SetTorchOn(deviceID string) error {
	n.logger.Debug("Torch control not available (no-op)", "device", deviceID, "op", OpOn)
	return nil
}

func (n *noop) SetTorchOff(deviceID string) error {
	n.logger.Debug("Torch control not available (no-op)", "device", deviceID, "op", OpOff)
	return nil
}
