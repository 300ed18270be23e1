package torch

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errFlashBusy = errors.New("flash busy")

// hwCall records a single hardware command.
type hwCall struct {
	op     string
	device string
	level  int
}

// fakeHardware records commands and fails them on demand.
type fakeHardware struct {
	mu       sync.Mutex
	devices  []string
	listErr  error
	maxLevel int
	maxErr   error

	failStrength bool
	failOn       bool
	failOff      bool

	calls []hwCall
}

func newFakeHardware(maxLevel int) *fakeHardware {
	return &fakeHardware{
		devices:  []string{"white:flash"},
		maxLevel: maxLevel,
	}
}

func (f *fakeHardware) ListAvailableDevices() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, f.listErr
}

func (f *fakeHardware) QueryMaxStrengthLevel(_ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxLevel, f.maxErr
}

func (f *fakeHardware) SetTorchStrength(deviceID string, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hwCall{OpStrength, deviceID, level})
	if f.failStrength {
		return errFlashBusy
	}
	return nil
}

func (f *fakeHardware) SetTorchOn(deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hwCall{OpOn, deviceID, 0})
	if f.failOn {
		return errFlashBusy
	}
	return nil
}

func (f *fakeHardware) SetTorchOff(deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hwCall{OpOff, deviceID, 0})
	if f.failOff {
		return errFlashBusy
	}
	return nil
}

func (f *fakeHardware) Calls() []hwCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]hwCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeHardware) Last() (hwCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return hwCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

func (f *fakeHardware) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeHardware) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
