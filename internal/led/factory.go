package led

import (
	"os"
	"strings"

	"github.com/smazurov/torchnode/internal/logging"
)

const (
	deviceTreeModelPath = "/proc/device-tree/model"
	defaultSysfsRoot    = "/sys/class/leds"
)

// board maps a device tree model substring to its indicator LEDs.
type board struct {
	match string
	leds  map[string]string // LED type -> sysfs name
}

var boards = []board{
	{"NanoPC-T6", map[string]string{"user": "usr_led", "system": "sys_led"}},
	{"Orange Pi", map[string]string{"blue": "blue_led", "green": "green_led"}},
	{"Raspberry Pi", map[string]string{"act": "ACT"}},
}

// New creates an indicator controller based on board detection.
// Falls back to a no-op controller when the board has no known indicator.
func New(logger logging.Logger) Controller {
	return newForBoard(detectBoard(deviceTreeModelPath), defaultSysfsRoot, logger)
}

func newForBoard(model, root string, logger logging.Logger) Controller {
	logger.Info("Detecting board for status LED", "board_model", model)

	for _, b := range boards {
		if strings.Contains(model, b.match) {
			logger.Info("Detected board, using sysfs status LED", "board", b.match)
			return newSysfs(root, b.leds)
		}
	}

	logger.Info("No status LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated
	return strings.TrimRight(string(data), "\x00")
}
