package torch

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// Mode is the signal mode of the controller. Exactly one mode is current.
type Mode string

// Controller modes.
const (
	ModeSteady Mode = "steady" // Torch follows isOn and brightness
	ModeSOS    Mode = "sos"    // SOS pattern job owns the hardware
	ModeStrobe Mode = "strobe" // Strobe pattern job owns the hardware
)

const (
	eventStartSOS    = "start_sos"
	eventStartStrobe = "start_strobe"
	eventStopSignal  = "stop_signal"
)

// modeMachine keeps the signal modes mutually exclusive.
type modeMachine struct {
	*fsm.FSM
}

func newModeMachine(logger *slog.Logger) *modeMachine {
	events := fsm.Events{
		{Name: eventStartSOS, Src: []string{string(ModeSteady), string(ModeStrobe)}, Dst: string(ModeSOS)},
		{Name: eventStartStrobe, Src: []string{string(ModeSteady), string(ModeSOS)}, Dst: string(ModeStrobe)},
		{Name: eventStopSignal, Src: []string{string(ModeSOS), string(ModeStrobe)}, Dst: string(ModeSteady)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			logger.Debug("Torch mode changed", "event", e.Event, "from", e.Src, "to", e.Dst)
		},
	}

	return &modeMachine{FSM: fsm.NewFSM(string(ModeSteady), events, callbacks)}
}

// Mode returns the current mode.
func (m *modeMachine) Mode() Mode {
	return Mode(m.Current())
}

// start moves into the given signal mode.
func (m *modeMachine) start(ctx context.Context, mode Mode) error {
	switch mode {
	case ModeSOS:
		return m.Event(ctx, eventStartSOS)
	case ModeStrobe:
		return m.Event(ctx, eventStartStrobe)
	default:
		return fsm.UnknownEventError{Event: "start_" + string(mode)}
	}
}

// stop returns to steady mode.
func (m *modeMachine) stop(ctx context.Context) error {
	return m.Event(ctx, eventStopSignal)
}

// patternFor returns the signal pattern driven in mode.
func patternFor(mode Mode) (Pattern, bool) {
	switch mode {
	case ModeSOS:
		return SOS, true
	case ModeStrobe:
		return Strobe, true
	default:
		return Pattern{}, false
	}
}
