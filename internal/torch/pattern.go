package torch

import "time"

// Step is one timed segment of a signal pattern.
// On steps flash the torch at full strength and turn it off when the duration ends.
type Step struct {
	On       bool
	Duration time.Duration
}

// Pattern is a named sequence of steps repeated until the signal is stopped.
type Pattern struct {
	Name  string
	Steps []Step
}

// Signal timings in the Morse convention used by the SOS pattern.
const (
	dotDuration    = 250 * time.Millisecond
	dashDuration   = 750 * time.Millisecond
	symbolGap      = 250 * time.Millisecond
	letterGap      = 500 * time.Millisecond
	wordGap        = 1500 * time.Millisecond
	strobeDuration = 70 * time.Millisecond
)

// SOS flashes "... --- ..." followed by a word gap.
var SOS = Pattern{
	Name: string(ModeSOS),
	Steps: concat(
		repeat(3, flash(dotDuration), gap(symbolGap)),
		[]Step{gap(letterGap)},
		repeat(3, flash(dashDuration), gap(symbolGap)),
		[]Step{gap(letterGap)},
		repeat(3, flash(dotDuration), gap(symbolGap)),
		[]Step{gap(wordGap)},
	),
}

// Strobe flashes in short equal on/off bursts.
var Strobe = Pattern{
	Name:  string(ModeStrobe),
	Steps: repeat(3, flash(strobeDuration), gap(strobeDuration)),
}

// CycleDuration returns the time one pass over the steps takes.
func (p Pattern) CycleDuration() time.Duration {
	var total time.Duration
	for _, s := range p.Steps {
		total += s.Duration
	}
	return total
}

// Flashes returns the number of on steps in one cycle.
func (p Pattern) Flashes() int {
	n := 0
	for _, s := range p.Steps {
		if s.On {
			n++
		}
	}
	return n
}

func flash(d time.Duration) Step { return Step{On: true, Duration: d} }

func gap(d time.Duration) Step { return Step{Duration: d} }

func repeat(n int, steps ...Step) []Step {
	out := make([]Step, 0, n*len(steps))
	for range n {
		out = append(out, steps...)
	}
	return out
}

func concat(parts ...[]Step) []Step {
	var out []Step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
