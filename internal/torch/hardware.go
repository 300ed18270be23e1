package torch

// Hardware abstracts a flash unit that can be driven as a torch.
// Implementations handle platform-specific device naming and capabilities.
// Every method may fail; callers are expected to absorb errors.
type Hardware interface {
	// ListAvailableDevices returns the identifiers of flash-capable devices.
	// An empty result means the platform has no usable torch.
	ListAvailableDevices() ([]string, error)

	// QueryMaxStrengthLevel returns the highest strength level the device accepts.
	QueryMaxStrengthLevel(deviceID string) (int, error)

	// SetTorchStrength turns the torch on at a level in [1, max].
	SetTorchStrength(deviceID string, level int) error

	// SetTorchOn turns the torch on without graduated strength control.
	SetTorchOn(deviceID string) error

	// SetTorchOff turns the torch off.
	SetTorchOff(deviceID string) error
}

// Hardware command names, used in logs, errors and fault events.
const (
	OpStrength = "strength"
	OpOn       = "on"
	OpOff      = "off"
)

// fallbackPolicy maps a failed command to the simpler command tried next.
// Commands without an entry have no fallback.
var fallbackPolicy = map[string]string{
	OpStrength: OpOn,
}
