package torch

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable means no flash unit could serve the command.
	ErrDeviceUnavailable = errors.New("torch device unavailable")
	// ErrHardwareRejected means the flash unit refused a command.
	ErrHardwareRejected = errors.New("torch command rejected")
	// ErrLevelOutOfRange is returned for strength levels outside [1, max].
	ErrLevelOutOfRange = errors.New("strength level out of range")
	// ErrUnknownDevice is returned for device identifiers the backend does not know.
	ErrUnknownDevice = errors.New("unknown torch device")
)

// Fault kinds reported in HardwareFaultEvent.
const (
	FaultRejected    = "rejected"
	FaultUnavailable = "unavailable"
)

// HardwareError describes a failed hardware command.
// Kind is ErrHardwareRejected or ErrDeviceUnavailable.
type HardwareError struct {
	Op     string
	Device string
	Kind   error
	Err    error
}

func (e *HardwareError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s on %q: %v", e.Kind, e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("%v: %s on %q", e.Kind, e.Op, e.Device)
}

func (e *HardwareError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func faultKind(err error) string {
	if errors.Is(err, ErrDeviceUnavailable) {
		return FaultUnavailable
	}
	return FaultRejected
}
