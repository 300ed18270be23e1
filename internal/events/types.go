package events

// Event type constants for kelindar/event.
const (
	TypeTorchPowerChanged uint32 = iota + 1
	TypeBrightnessChanged
	TypeSOSModeChanged
	TypeStrobeModeChanged
	TypeSignalJob
	TypeSignalFlash
	TypeHardwareFault
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TorchPowerChangedEvent is published when the steady torch is switched on or off.
type TorchPowerChangedEvent struct {
	On        bool   `json:"on"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for TorchPowerChangedEvent.
func (e TorchPowerChangedEvent) Type() uint32 { return TypeTorchPowerChanged }

// BrightnessChangedEvent is published when the brightness fraction changes.
// Level is the hardware strength the fraction maps to.
type BrightnessChangedEvent struct {
	Brightness float64 `json:"brightness"`
	Level      int     `json:"level"`
	Timestamp  string  `json:"timestamp"`
}

// Type returns the event type identifier for BrightnessChangedEvent.
func (e BrightnessChangedEvent) Type() uint32 { return TypeBrightnessChanged }

// SOSModeChangedEvent is published when SOS mode is enabled or disabled.
type SOSModeChangedEvent struct {
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SOSModeChangedEvent.
func (e SOSModeChangedEvent) Type() uint32 { return TypeSOSModeChanged }

// StrobeModeChangedEvent is published when strobe mode is enabled or disabled.
type StrobeModeChangedEvent struct {
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StrobeModeChangedEvent.
func (e StrobeModeChangedEvent) Type() uint32 { return TypeStrobeModeChanged }

// Signal job actions.
const (
	SignalJobStarted = "started"
	SignalJobStopped = "stopped"
)

// SignalJobEvent tracks the lifecycle of a timed signal job.
type SignalJobEvent struct {
	JobID     string `json:"job_id"`
	Pattern   string `json:"pattern"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SignalJobEvent.
func (e SignalJobEvent) Type() uint32 { return TypeSignalJob }

// SignalFlashEvent is published after each completed flash of a signal pattern.
type SignalFlashEvent struct {
	JobID      string  `json:"job_id"`
	Pattern    string  `json:"pattern"`
	DurationMs float64 `json:"duration_ms"`
	Timestamp  string  `json:"timestamp"`
}

// Type returns the event type identifier for SignalFlashEvent.
func (e SignalFlashEvent) Type() uint32 { return TypeSignalFlash }

// HardwareFaultEvent is published when a torch hardware command fails.
// Kind is either "rejected" or "unavailable".
type HardwareFaultEvent struct {
	Device    string `json:"device"`
	Op        string `json:"op"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for HardwareFaultEvent.
func (e HardwareFaultEvent) Type() uint32 { return TypeHardwareFault }
