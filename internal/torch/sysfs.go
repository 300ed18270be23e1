package torch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where the Linux LED class exposes flash units.
const DefaultSysfsRoot = "/sys/class/leds"

// Trigger values written to the LED trigger attribute.
const (
	triggerNone      = "none"       // Manual brightness control
	triggerDefaultOn = "default-on" // Kernel-driven full on
)

// sysfs implements Hardware using the Linux LED class interface.
// Device IDs are LED class names such as "white:flash".
type sysfs struct {
	root string
}

func newSysfs(root string) *sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &sysfs{root: root}
}

// isFlashName reports whether an LED class entry looks like a camera flash or torch.
func isFlashName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "flash") || strings.Contains(lower, "torch")
}

// ListAvailableDevices returns flash LEDs that expose a brightness attribute, sorted by name.
func (s *sysfs) ListAvailableDevices() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read LED class directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !isFlashName(name) {
			continue
		}
		if _, statErr := os.Stat(filepath.Join(s.root, name, "brightness")); statErr != nil {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// QueryMaxStrengthLevel reads max_brightness for the device.
func (s *sysfs) QueryMaxStrengthLevel(deviceID string) (int, error) {
	ledPath, err := s.devicePath(deviceID)
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(filepath.Join(ledPath, "max_brightness"))
	if err != nil {
		return 0, fmt.Errorf("failed to read max_brightness: %w", err)
	}

	level, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid max_brightness %q: %w", strings.TrimSpace(string(data)), err)
	}
	return level, nil
}

// SetTorchStrength switches to manual control and writes the brightness level.
func (s *sysfs) SetTorchStrength(deviceID string, level int) error {
	maxLevel, err := s.QueryMaxStrengthLevel(deviceID)
	if err != nil {
		return err
	}
	if level < 1 || level > maxLevel {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrLevelOutOfRange, level, maxLevel)
	}

	if err := s.writeAttr(deviceID, "trigger", triggerNone); err != nil {
		return err
	}
	return s.writeAttr(deviceID, "brightness", strconv.Itoa(level))
}

// SetTorchOn hands the LED to the default-on trigger, which drives it at full brightness.
func (s *sysfs) SetTorchOn(deviceID string) error {
	return s.writeAttr(deviceID, "trigger", triggerDefaultOn)
}

// SetTorchOff returns the LED to manual control and zeroes its brightness.
func (s *sysfs) SetTorchOff(deviceID string) error {
	if err := s.writeAttr(deviceID, "trigger", triggerNone); err != nil {
		return err
	}
	return s.writeAttr(deviceID, "brightness", "0")
}

func (s *sysfs) devicePath(deviceID string) (string, error) {
	if deviceID == "" || strings.ContainsRune(deviceID, filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
	}

	ledPath := filepath.Join(s.root, deviceID)
	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %q not found at %s", ErrUnknownDevice, deviceID, ledPath)
	}
	return ledPath, nil
}

func (s *sysfs) writeAttr(deviceID, attr, value string) error {
	ledPath, err := s.devicePath(deviceID)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(ledPath, attr), []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to set LED %s: %w", attr, err)
	}
	return nil
}
