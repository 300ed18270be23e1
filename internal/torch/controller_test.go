package torch

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/smazurov/torchnode/internal/events"
)

// waitForTimer blocks until the signal job is parked on the fake clock.
func waitForTimer(t *testing.T, fc *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("signal job never waited on the clock: %v", err)
	}
}

func lastCall(t *testing.T, hw *fakeHardware) hwCall {
	t.Helper()
	call, ok := hw.Last()
	if !ok {
		t.Fatal("No hardware calls made")
	}
	return call
}

func TestController_InitCapability(t *testing.T) {
	tests := []struct {
		name      string
		devices   []string
		maxLevel  int
		maxErr    error
		wantID    string
		wantLevel int
	}{
		{"reported level", []string{"white:flash", "amber:flash"}, 15, nil, "white:flash", 15},
		{"query failure", []string{"white:flash"}, 15, errFlashBusy, "white:flash", 1},
		{"zero level", []string{"white:flash"}, 0, nil, "white:flash", 1},
		{"no devices", []string{}, 15, nil, "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := newFakeHardware(tt.maxLevel)
			hw.devices = tt.devices
			hw.maxErr = tt.maxErr

			ctrl := NewController(hw, discardLogger())
			defer ctrl.Dispose()

			if ctrl.DeviceID() != tt.wantID {
				t.Errorf("DeviceID() = %q, want %q", ctrl.DeviceID(), tt.wantID)
			}
			if ctrl.MaxStrengthLevel() != tt.wantLevel {
				t.Errorf("MaxStrengthLevel() = %d, want %d", ctrl.MaxStrengthLevel(), tt.wantLevel)
			}
			if ctrl.Available() != (tt.wantID != "") {
				t.Errorf("Available() = %v, want %v", ctrl.Available(), tt.wantID != "")
			}
		})
	}
}

func TestController_BrightnessToStrength(t *testing.T) {
	tests := []struct {
		brightness float64
		want       int
	}{
		{0, 1},
		{0.04, 1},
		{0.26, 3},
		{0.5, 5},
		{0.74, 7},
		{0.96, 10},
		{1, 10},
	}

	for _, tt := range tests {
		hw := newFakeHardware(10)
		ctrl := NewController(hw, discardLogger())

		ctrl.ToggleTorch()
		ctrl.SetBrightness(tt.brightness)

		call := lastCall(t, hw)
		want := int(math.Max(1, math.Round(tt.brightness*10)))
		if call.op != OpStrength || call.level != tt.want || call.level != want {
			t.Errorf("brightness %.2f: last call = %+v, want strength %d", tt.brightness, call, tt.want)
		}
		ctrl.Dispose()
	}
}

func TestController_LowestLevelWithSingleStepDevice(t *testing.T) {
	hw := newFakeHardware(1)
	ctrl := NewController(hw, discardLogger())
	defer ctrl.Dispose()

	ctrl.SetBrightness(0)
	ctrl.ToggleTorch()

	call := lastCall(t, hw)
	if call.op != OpStrength || call.level != 1 {
		t.Errorf("Expected strength 1, got %+v", call)
	}
	if hw.Count(OpOff) != 0 {
		t.Error("Zero brightness must not turn the torch off")
	}
}

func TestController_HalfBrightness(t *testing.T) {
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger(), WithInitialBrightness(0.5))
	defer ctrl.Dispose()

	ctrl.ToggleTorch()

	call := lastCall(t, hw)
	if call.op != OpStrength || call.level != 5 {
		t.Errorf("Expected strength 5, got %+v", call)
	}
	if call.device != "white:flash" {
		t.Errorf("Expected device white:flash, got %q", call.device)
	}
}

func TestController_ToggleOff(t *testing.T) {
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger())
	defer ctrl.Dispose()

	ctrl.ToggleTorch()
	ctrl.ToggleTorch()

	if ctrl.IsOn() {
		t.Error("Expected torch to be off after two toggles")
	}
	if call := lastCall(t, hw); call.op != OpOff {
		t.Errorf("Expected off command, got %+v", call)
	}
}

func TestController_SetBrightnessWhileOff(t *testing.T) {
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger())
	defer ctrl.Dispose()

	ctrl.SetBrightness(0.3)

	if calls := hw.Calls(); len(calls) != 0 {
		t.Errorf("Expected no hardware calls while off, got %+v", calls)
	}
	if ctrl.Brightness() != 0.3 {
		t.Errorf("Brightness() = %v, want 0.3", ctrl.Brightness())
	}
}

func TestController_SetBrightnessClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{1.5, 1},
		{math.NaN(), 0},
		{0.42, 0.42},
	}

	ctrl := NewController(newFakeHardware(10), discardLogger())
	defer ctrl.Dispose()

	for _, tt := range tests {
		ctrl.SetBrightness(tt.in)
		if got := ctrl.Brightness(); got != tt.want {
			t.Errorf("SetBrightness(%v): Brightness() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestController_FallbackToPlainOn(t *testing.T) {
	hw := newFakeHardware(10)
	hw.failStrength = true
	ctrl := NewController(hw, discardLogger())
	defer ctrl.Dispose()

	ctrl.ToggleTorch()

	calls := hw.Calls()
	if len(calls) != 2 || calls[0].op != OpStrength || calls[1].op != OpOn {
		t.Fatalf("Expected strength then plain on, got %+v", calls)
	}
	if !ctrl.IsOn() {
		t.Error("Logical state must stay on when the hardware rejects a level")
	}
}

func TestController_FallbackExhausted(t *testing.T) {
	bus := events.New()
	faults := make(chan events.HardwareFaultEvent, 10)
	unsub := bus.Subscribe(func(e events.HardwareFaultEvent) { faults <- e })
	defer unsub()

	hw := newFakeHardware(10)
	hw.failStrength = true
	hw.failOn = true
	ctrl := NewController(hw, discardLogger(), WithEventBus(bus))
	defer ctrl.Dispose()

	ctrl.ToggleTorch()

	if !ctrl.IsOn() {
		t.Error("Logical state must stay on when the hardware fails")
	}

	kinds := map[string]int{}
	timeout := time.After(time.Second)
	for len(kinds) < 2 || kinds[FaultRejected] < 2 {
		select {
		case e := <-faults:
			kinds[e.Kind]++
		case <-timeout:
			t.Fatalf("Expected two rejected and one unavailable fault, got %v", kinds)
		}
	}
	if kinds[FaultUnavailable] != 1 {
		t.Errorf("Expected one unavailable fault, got %v", kinds)
	}
}

func TestController_CommandErrorClassification(t *testing.T) {
	hw := newFakeHardware(10)
	hw.failOff = true
	ctrl := NewController(hw, discardLogger())
	defer ctrl.Dispose()

	ctrl.hwMu.Lock()
	err := ctrl.command(OpOff, 0)
	ctrl.hwMu.Unlock()

	if err == nil {
		t.Fatal("Expected an error for a failing off command")
	}
	if !errors.Is(err, ErrDeviceUnavailable) || !errors.Is(err, errFlashBusy) {
		t.Errorf("Expected error to wrap ErrDeviceUnavailable and the cause, got %v", err)
	}
	if hw.Count(OpOn) != 0 {
		t.Error("Off has no fallback command")
	}
}

func TestController_NoDeviceIsNoop(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	hw.devices = nil
	ctrl := NewController(hw, discardLogger(), WithClock(fc))

	ctrl.ToggleTorch()
	ctrl.SetBrightness(0.2)
	ctrl.SetSOSMode(true)
	waitForTimer(t, fc)
	fc.Advance(time.Second)
	ctrl.SetStrobeMode(true)

	state := ctrl.State()
	if !state.On || state.Brightness != 0.2 || state.SOSActive || !state.StrobeActive {
		t.Errorf("Unexpected state %+v", state)
	}

	ctrl.Dispose()

	if calls := hw.Calls(); len(calls) != 0 {
		t.Errorf("Expected no hardware calls without a device, got %+v", calls)
	}
}

func TestController_SOSSequence(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(15)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	start := fc.Now()
	ctrl.SetSOSMode(true)

	for cycle := range 2 {
		for i, step := range SOS.Steps {
			waitForTimer(t, fc)
			call := lastCall(t, hw)
			if step.On && (call.op != OpStrength || call.level != 15) {
				t.Fatalf("cycle %d step %d: expected full strength, got %+v", cycle, i, call)
			}
			if !step.On && call.op != OpOff {
				t.Fatalf("cycle %d step %d: expected torch off during gap, got %+v", cycle, i, call)
			}
			fc.Advance(step.Duration)
		}
		if elapsed := fc.Since(start); elapsed != time.Duration(cycle+1)*SOS.CycleDuration() {
			t.Fatalf("cycle %d finished after %v", cycle, elapsed)
		}
	}

	if got := hw.Count(OpStrength); got != 2*SOS.Flashes() {
		t.Errorf("Expected %d flashes, got %d", 2*SOS.Flashes(), got)
	}
}

func TestController_StrobeSequence(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(4)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.SetStrobeMode(true)

	for range 4 {
		for _, step := range Strobe.Steps {
			waitForTimer(t, fc)
			if step.Duration != 70*time.Millisecond {
				t.Fatalf("Unexpected strobe step %+v", step)
			}
			fc.Advance(step.Duration)
		}
	}

	waitForTimer(t, fc)
	if got := hw.Count(OpOff); got != 4*Strobe.Flashes() {
		t.Errorf("Expected %d completed flashes, got %d", 4*Strobe.Flashes(), got)
	}
}

func TestController_SOSCancelsStrobe(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(8)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.SetStrobeMode(true)
	waitForTimer(t, fc)

	ctrl.SetSOSMode(true)

	state := ctrl.State()
	if !state.SOSActive || state.StrobeActive {
		t.Fatalf("Expected only SOS active, got %+v", state)
	}
	if ctrl.Mode() != ModeSOS {
		t.Errorf("Mode() = %q, want %q", ctrl.Mode(), ModeSOS)
	}

	// The SOS job opens with a 250ms dot, not a 70ms strobe flash.
	waitForTimer(t, fc)
	fc.Advance(Strobe.Steps[0].Duration)
	if call := lastCall(t, hw); call.op != OpStrength {
		t.Errorf("Expected SOS dot still lit after 70ms, got %+v", call)
	}
	fc.Advance(dotDuration - Strobe.Steps[0].Duration)
	waitForTimer(t, fc)
	if call := lastCall(t, hw); call.op != OpOff {
		t.Errorf("Expected dot to end after 250ms, got %+v", call)
	}
}

func TestController_StrobeCancelsSOS(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(8)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.SetSOSMode(true)
	waitForTimer(t, fc)

	ctrl.SetStrobeMode(true)

	state := ctrl.State()
	if state.SOSActive || !state.StrobeActive {
		t.Fatalf("Expected only strobe active, got %+v", state)
	}

	waitForTimer(t, fc)
	fc.Advance(strobeDuration)
	waitForTimer(t, fc)
	if call := lastCall(t, hw); call.op != OpOff {
		t.Errorf("Expected strobe flash to end after 70ms, got %+v", call)
	}
}

func TestController_SwitchLatency(t *testing.T) {
	hw := newFakeHardware(8)
	ctrl := NewController(hw, discardLogger())
	defer ctrl.Dispose()

	ctrl.SetStrobeMode(true)
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	ctrl.SetSOSMode(true)
	if elapsed := time.Since(start); elapsed > 140*time.Millisecond {
		t.Errorf("Switching strobe to SOS took %v", elapsed)
	}

	// Land inside the first 250ms dot
	time.Sleep(100 * time.Millisecond)

	start = time.Now()
	ctrl.SetStrobeMode(true)
	if elapsed := time.Since(start); elapsed > 140*time.Millisecond {
		t.Errorf("Switching SOS to strobe took %v", elapsed)
	}
}

func TestController_DisableRestoresSteady(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger(), WithClock(fc), WithInitialBrightness(0.5))
	defer ctrl.Dispose()

	ctrl.ToggleTorch()
	ctrl.SetSOSMode(true)
	waitForTimer(t, fc)

	ctrl.SetSOSMode(false)

	call := lastCall(t, hw)
	if call.op != OpStrength || call.level != 5 {
		t.Fatalf("Expected steady strength 5 after SOS, got %+v", call)
	}
	if !ctrl.IsOn() {
		t.Error("isOn must be untouched by signal modes")
	}

	hw.Reset()
	fc.Advance(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if calls := hw.Calls(); len(calls) != 0 {
		t.Errorf("Expected no flashes after disabling, got %+v", calls)
	}
}

func TestController_DisableWhileOffTurnsOff(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.SetStrobeMode(true)
	waitForTimer(t, fc)
	ctrl.SetStrobeMode(false)

	if call := lastCall(t, hw); call.op != OpOff {
		t.Errorf("Expected off after disabling strobe, got %+v", call)
	}
	if ctrl.IsStrobeActive() {
		t.Error("Strobe should be inactive")
	}
}

func TestController_SOSOnOffBeforeFirstFlash(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	bus := events.New()
	flashes := make(chan events.SignalFlashEvent, 10)
	unsub := bus.Subscribe(func(e events.SignalFlashEvent) { flashes <- e })
	defer unsub()

	ctrl := NewController(hw, discardLogger(), WithClock(fc), WithEventBus(bus))
	defer ctrl.Dispose()

	ctrl.SetSOSMode(true)
	ctrl.SetSOSMode(false)

	if call := lastCall(t, hw); call.op != OpOff {
		t.Fatalf("Expected off command, got %+v", call)
	}
	if got := hw.Count(OpStrength); got > 1 {
		t.Errorf("Expected at most the first dot to start, got %d strength commands", got)
	}

	fc.Advance(SOS.CycleDuration())
	select {
	case e := <-flashes:
		t.Errorf("Unexpected completed flash %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestController_DisposeAlwaysOff(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Controller)
	}{
		{"steady on", func(c *Controller) { c.ToggleTorch() }},
		{"sos", func(c *Controller) { c.SetSOSMode(true) }},
		{"strobe", func(c *Controller) { c.SetStrobeMode(true) }},
		{"idle", func(_ *Controller) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := clockwork.NewFakeClock()
			hw := newFakeHardware(10)
			ctrl := NewController(hw, discardLogger(), WithClock(fc))

			tt.setup(ctrl)
			ctrl.Dispose()

			if call := lastCall(t, hw); call.op != OpOff {
				t.Fatalf("Expected off after Dispose, got %+v", call)
			}

			hw.Reset()
			fc.Advance(10 * time.Second)
			ctrl.ToggleTorch()
			ctrl.SetSOSMode(true)
			ctrl.Dispose()
			time.Sleep(10 * time.Millisecond)

			if calls := hw.Calls(); len(calls) != 0 {
				t.Errorf("Expected no hardware calls after Dispose, got %+v", calls)
			}
		})
	}
}

func TestController_ToggleDuringSignalDeferred(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger(), WithClock(fc), WithInitialBrightness(0.3))
	defer ctrl.Dispose()

	ctrl.SetSOSMode(true)
	waitForTimer(t, fc)
	before := len(hw.Calls())

	ctrl.ToggleTorch()
	ctrl.SetBrightness(0.8)

	if after := len(hw.Calls()); after != before {
		t.Errorf("Steady changes must not touch the hardware while SOS runs (%d -> %d calls)", before, after)
	}
	if !ctrl.IsOn() || !ctrl.IsSOSActive() {
		t.Error("Toggle must not disturb SOS mode")
	}

	ctrl.SetSOSMode(false)
	if call := lastCall(t, hw); call.op != OpStrength || call.level != 8 {
		t.Errorf("Expected deferred strength 8, got %+v", call)
	}
}

func TestController_DisableInactiveModeIsNoop(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.SetStrobeMode(true)
	waitForTimer(t, fc)
	before := len(hw.Calls())

	ctrl.SetSOSMode(false)

	if !ctrl.IsStrobeActive() || ctrl.Mode() != ModeStrobe {
		t.Error("Disabling SOS must not stop strobe")
	}
	if after := len(hw.Calls()); after != before {
		t.Errorf("Expected no hardware calls, got %d new", after-before)
	}
}

func TestController_EnableActiveModeKeepsJob(t *testing.T) {
	fc := clockwork.NewFakeClock()
	hw := newFakeHardware(10)
	ctrl := NewController(hw, discardLogger(), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.SetSOSMode(true)
	waitForTimer(t, fc)
	job := ctrl.job

	ctrl.SetSOSMode(true)

	if ctrl.job != job {
		t.Error("Re-enabling SOS should keep the running job")
	}
	if got := hw.Count(OpStrength); got != 1 {
		t.Errorf("Expected the first dot only, got %d strength commands", got)
	}
}

func TestController_PublishesFieldChanges(t *testing.T) {
	bus := events.New()
	power := make(chan events.TorchPowerChangedEvent, 4)
	brightness := make(chan events.BrightnessChangedEvent, 4)
	sos := make(chan events.SOSModeChangedEvent, 4)
	strobe := make(chan events.StrobeModeChangedEvent, 4)

	defer bus.Subscribe(func(e events.TorchPowerChangedEvent) { power <- e })()
	defer bus.Subscribe(func(e events.BrightnessChangedEvent) { brightness <- e })()
	defer bus.Subscribe(func(e events.SOSModeChangedEvent) { sos <- e })()
	defer bus.Subscribe(func(e events.StrobeModeChangedEvent) { strobe <- e })()

	fc := clockwork.NewFakeClock()
	ctrl := NewController(newFakeHardware(10), discardLogger(), WithEventBus(bus), WithClock(fc))
	defer ctrl.Dispose()

	ctrl.ToggleTorch()
	if e := <-power; !e.On {
		t.Error("Expected power on event")
	}

	ctrl.SetBrightness(0.3)
	ctrl.SetBrightness(0.3)
	if e := <-brightness; e.Brightness != 0.3 || e.Level != 3 {
		t.Errorf("Unexpected brightness event %+v", e)
	}
	select {
	case e := <-brightness:
		t.Errorf("Unchanged brightness must not publish, got %+v", e)
	case <-time.After(20 * time.Millisecond):
	}

	ctrl.SetSOSMode(true)
	if e := <-sos; !e.Active {
		t.Error("Expected SOS active event")
	}

	ctrl.SetStrobeMode(true)
	if e := <-sos; e.Active {
		t.Error("Expected SOS inactive event when strobe takes over")
	}
	if e := <-strobe; !e.Active {
		t.Error("Expected strobe active event")
	}
}

func TestController_SignalJobEvents(t *testing.T) {
	bus := events.New()
	jobs := make(chan events.SignalJobEvent, 8)
	defer bus.Subscribe(func(e events.SignalJobEvent) { jobs <- e })()

	fc := clockwork.NewFakeClock()
	ctrl := NewController(newFakeHardware(10), discardLogger(), WithEventBus(bus), WithClock(fc))

	ctrl.SetStrobeMode(true)
	ctrl.SetSOSMode(true)
	ctrl.Dispose()

	want := []struct{ pattern, action string }{
		{"strobe", events.SignalJobStarted},
		{"strobe", events.SignalJobStopped},
		{"sos", events.SignalJobStarted},
		{"sos", events.SignalJobStopped},
	}
	var firstID string
	for i, w := range want {
		select {
		case e := <-jobs:
			if e.Pattern != w.pattern || e.Action != w.action {
				t.Errorf("event %d = %s/%s, want %s/%s", i, e.Pattern, e.Action, w.pattern, w.action)
			}
			if i == 0 {
				firstID = e.JobID
			}
			if i == 1 && e.JobID != firstID {
				t.Error("Start and stop events should share a job id")
			}
		case <-time.After(time.Second):
			t.Fatalf("Missing job event %d", i)
		}
	}
}
