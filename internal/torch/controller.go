package torch

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/smazurov/torchnode/internal/events"
)

// State is a snapshot of the four observable torch fields.
type State struct {
	On           bool    `json:"on"`
	Brightness   float64 `json:"brightness"`
	SOSActive    bool    `json:"sos_active"`
	StrobeActive bool    `json:"strobe_active"`
}

// Controller coordinates the steady torch and the mutually exclusive signal modes.
//
// Public operations are serialized and never return errors: hardware failures are
// logged, published as HardwareFaultEvent and otherwise absorbed. Every field change
// is published on the event bus with its own event type.
type Controller struct {
	hw     Hardware
	bus    *events.Bus
	logger *slog.Logger
	clock  clockwork.Clock

	deviceID string
	maxLevel int

	opMu sync.Mutex // serializes public operations
	hwMu sync.Mutex // guards hardware writes

	on           value[bool]
	brightness   value[float64]
	sosActive    value[bool]
	strobeActive value[bool]
	mode         *modeMachine

	job      *signalJob
	disposed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for signal timing. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithEventBus publishes state changes, flashes and faults on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithInitialBrightness sets the starting brightness fraction. Default is 1.
func WithInitialBrightness(v float64) Option {
	return func(c *Controller) {
		c.brightness.Set(clampFraction(v))
	}
}

// NewController queries the hardware once for a device and its strength range.
// Without a device the controller still tracks state but skips hardware calls.
func NewController(hw Hardware, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		hw:       hw,
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		maxLevel: 1,
		mode:     newModeMachine(logger),
	}
	c.brightness.Set(1)

	for _, opt := range opts {
		opt(c)
	}

	c.initCapability()
	return c
}

func (c *Controller) initCapability() {
	ids, err := c.hw.ListAvailableDevices()
	if err != nil || len(ids) == 0 {
		c.logger.Warn("No flash-capable device found, torch hardware calls disabled", "error", err)
		c.fault("", "list", &HardwareError{Op: "list", Kind: ErrDeviceUnavailable, Err: err})
		return
	}
	c.deviceID = ids[0]

	level, err := c.hw.QueryMaxStrengthLevel(c.deviceID)
	switch {
	case err != nil:
		c.logger.Warn("Failed to query max strength level, assuming 1", "device", c.deviceID, "error", err)
	case level < 1:
		c.logger.Warn("Device reported invalid max strength level, assuming 1", "device", c.deviceID, "level", level)
	default:
		c.maxLevel = level
	}

	c.logger.Info("Torch controller ready", "device", c.deviceID, "max_level", c.maxLevel)
}

// DeviceID returns the driven device, or "" when no device is available.
func (c *Controller) DeviceID() string {
	return c.deviceID
}

// MaxStrengthLevel returns the device's maximum strength level (at least 1).
func (c *Controller) MaxStrengthLevel() int {
	return c.maxLevel
}

// Available reports whether a hardware device backs the controller.
func (c *Controller) Available() bool {
	return c.deviceID != ""
}

// StrengthLevel returns the level the current brightness maps to.
func (c *Controller) StrengthLevel() int {
	return c.levelFor(c.brightness.Get())
}

// IsOn reports the steady torch flag.
func (c *Controller) IsOn() bool { return c.on.Get() }

// Brightness returns the brightness fraction in [0,1].
func (c *Controller) Brightness() float64 { return c.brightness.Get() }

// IsSOSActive reports whether SOS mode is enabled.
func (c *Controller) IsSOSActive() bool { return c.sosActive.Get() }

// IsStrobeActive reports whether strobe mode is enabled.
func (c *Controller) IsStrobeActive() bool { return c.strobeActive.Get() }

// Mode returns the current signal mode.
func (c *Controller) Mode() Mode {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.mode.Mode()
}

// State returns a snapshot reflecting the last completed operation.
func (c *Controller) State() State {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return State{
		On:           c.on.Get(),
		Brightness:   c.brightness.Get(),
		SOSActive:    c.sosActive.Get(),
		StrobeActive: c.strobeActive.Get(),
	}
}

// ToggleTorch flips the steady torch flag and applies it to the hardware.
// While a signal mode runs, the change is applied when the mode ends.
func (c *Controller) ToggleTorch() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.disposed {
		return
	}

	on := !c.on.Get()
	c.on.Set(on)
	c.publish(events.TorchPowerChangedEvent{On: on, Timestamp: c.timestamp()})
	c.logger.Debug("Torch toggled", "on", on)

	if c.signalActive() {
		c.logger.Debug("Signal mode active, steady output deferred", "mode", c.mode.Current())
		return
	}
	c.applySteady()
}

// SetBrightness stores a brightness fraction, clamped into [0,1], and re-applies
// it when the torch is on.
func (c *Controller) SetBrightness(v float64) {
	v = clampFraction(v)

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.disposed {
		return
	}

	if c.brightness.Set(v) {
		c.publish(events.BrightnessChangedEvent{
			Brightness: v,
			Level:      c.levelFor(v),
			Timestamp:  c.timestamp(),
		})
	}

	if c.on.Get() && !c.signalActive() {
		c.applySteady()
	}
}

// SetSOSMode enables or disables the SOS signal.
func (c *Controller) SetSOSMode(enable bool) {
	c.setSignalMode(ModeSOS, enable)
}

// SetStrobeMode enables or disables the strobe signal.
func (c *Controller) SetStrobeMode(enable bool) {
	c.setSignalMode(ModeStrobe, enable)
}

func (c *Controller) setSignalMode(mode Mode, enable bool) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.disposed {
		return
	}

	current := c.mode.Mode()

	if !enable {
		if current != mode {
			return
		}
		c.stopJob()
		if err := c.mode.stop(context.Background()); err != nil {
			c.logger.Warn("Unexpected mode transition failure", "mode", mode, "error", err)
		}
		c.setModeFlag(mode, false)
		c.applySteady()
		return
	}

	if current == mode {
		c.logger.Debug("Signal mode already active", "mode", mode)
		return
	}

	// Only one job may exist: the previous one has returned before the next starts.
	c.stopJob()
	if current != ModeSteady {
		c.setModeFlag(current, false)
	}
	if err := c.mode.start(context.Background(), mode); err != nil {
		c.logger.Warn("Unexpected mode transition failure", "mode", mode, "error", err)
		return
	}
	c.setModeFlag(mode, true)

	pattern, _ := patternFor(mode)
	c.startJob(pattern)
}

// Dispose stops any signal job and forces the torch off.
// Later calls, and every other operation after it, are no-ops.
func (c *Controller) Dispose() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true

	c.stopJob()
	if c.deviceID != "" {
		c.hwMu.Lock()
		_ = c.command(OpOff, 0)
		c.hwMu.Unlock()
	}
	c.logger.Info("Torch controller disposed")
}

func (c *Controller) signalActive() bool {
	return c.mode.Mode() != ModeSteady
}

func (c *Controller) setModeFlag(mode Mode, active bool) {
	switch mode {
	case ModeSOS:
		if c.sosActive.Set(active) {
			c.publish(events.SOSModeChangedEvent{Active: active, Timestamp: c.timestamp()})
		}
	case ModeStrobe:
		if c.strobeActive.Set(active) {
			c.publish(events.StrobeModeChangedEvent{Active: active, Timestamp: c.timestamp()})
		}
	}
}

// applySteady drives the hardware from isOn and brightness.
func (c *Controller) applySteady() {
	if c.deviceID == "" {
		return
	}

	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	if c.on.Get() {
		level := c.levelFor(c.brightness.Get())
		c.logger.Debug("Applying steady torch", "level", level)
		_ = c.command(OpStrength, level)
		return
	}
	_ = c.command(OpOff, 0)
}

// levelFor maps a fraction to a strength level in [1, maxLevel].
// A fraction that rounds to 0 still means "on at the lowest level".
func (c *Controller) levelFor(v float64) int {
	level := int(math.Round(v * float64(c.maxLevel)))
	if level < 1 {
		return 1
	}
	if level > c.maxLevel {
		return c.maxLevel
	}
	return level
}

// command runs a hardware command through the fallback policy. hwMu must be held.
func (c *Controller) command(op string, level int) error {
	err := c.exec(op, level)
	if err == nil {
		return nil
	}

	rejected := &HardwareError{Op: op, Device: c.deviceID, Kind: ErrHardwareRejected, Err: err}
	c.fault(c.deviceID, op, rejected)

	if fb, ok := fallbackPolicy[op]; ok {
		c.logger.Warn("Torch command rejected, falling back", "op", op, "fallback", fb, "level", level, "error", err)
		fbErr := c.exec(fb, level)
		if fbErr == nil {
			return nil
		}
		c.fault(c.deviceID, fb, &HardwareError{Op: fb, Device: c.deviceID, Kind: ErrHardwareRejected, Err: fbErr})
		err = fbErr
	}

	unavailable := &HardwareError{Op: op, Device: c.deviceID, Kind: ErrDeviceUnavailable, Err: err}
	c.logger.Warn("Torch command failed", "op", op, "level", level, "error", err)
	c.fault(c.deviceID, op, unavailable)
	return unavailable
}

func (c *Controller) exec(op string, level int) error {
	switch op {
	case OpStrength:
		return c.hw.SetTorchStrength(c.deviceID, level)
	case OpOn:
		return c.hw.SetTorchOn(c.deviceID)
	default:
		return c.hw.SetTorchOff(c.deviceID)
	}
}

func (c *Controller) fault(device, op string, err *HardwareError) {
	c.publish(events.HardwareFaultEvent{
		Device:    device,
		Op:        op,
		Kind:      faultKind(err),
		Error:     err.Error(),
		Timestamp: c.timestamp(),
	})
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func (c *Controller) timestamp() string {
	return c.clock.Now().Format(time.RFC3339)
}

func clampFraction(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
