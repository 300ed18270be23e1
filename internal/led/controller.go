package led

// Controller abstracts board indicator LEDs across different SBC boards.
type Controller interface {
	// Set controls an LED's state and optional pattern.
	//   ledType: board-specific LED identifier (e.g., "user", "system", "act")
	//   enabled: whether the LED should be lit
	//   pattern: "solid", "blink", "heartbeat" or a raw trigger name;
	//            empty string leaves the trigger unchanged
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types supported by this controller, sorted.
	Available() []string

	// Patterns returns the patterns supported by this controller.
	Patterns() []string
}

// Indicator patterns used by the Manager.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
)
