package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

// sysfs implements Controller using the Linux LED class interface
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{
		root: root,
		leds: leds,
	}
}

// triggerFor maps an indicator pattern to a kernel trigger.
func triggerFor(pattern string) string {
	switch pattern {
	case PatternSolid:
		return "none"
	case PatternBlink, PatternHeartbeat:
		return "heartbeat"
	default:
		return pattern // raw trigger names pass through
	}
}

// Set controls an LED's state and optional pattern
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	sysfsName, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}

	ledPath := filepath.Join(s.root, sysfsName)
	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return fmt.Errorf("LED %q not found at %s", ledType, ledPath)
	}

	if pattern != "" {
		trigger := triggerFor(pattern)
		if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte(trigger), 0o644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
		// The heartbeat trigger drives brightness itself
		if trigger == "heartbeat" && enabled {
			return nil
		}
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(ledPath, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	sort.Strings(types)
	return types
}

func (s *sysfs) Patterns() []string {
	return slices.Clone(supportedPatterns)
}

var supportedPatterns = []string{PatternSolid, PatternBlink, PatternHeartbeat}
