// Package console is a line-oriented presentation for the torch controller:
// it reads commands from an input stream and renders state to an output stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/smazurov/torchnode/internal/events"
	"github.com/smazurov/torchnode/internal/logging"
	"github.com/smazurov/torchnode/internal/torch"
)

const (
	defaultLogLines = 20
	eventBuffer     = 64
)

var (
	// ErrUnknownCommand is returned for commands the console does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command has missing or malformed arguments.
	ErrUsage = errors.New("usage")
)

// Torch is the controller surface the console drives.
type Torch interface {
	ToggleTorch()
	SetBrightness(v float64)
	SetSOSMode(enable bool)
	SetStrobeMode(enable bool)
	State() torch.State
}

// Console reads commands and renders controller state.
type Console struct {
	torch  Torch
	in     io.Reader
	out    io.Writer
	bus    *events.Bus
	logs   *logging.RingBuffer
	logger *slog.Logger
	prompt string
	onQuit func()
}

// Option configures a Console.
type Option func(*Console)

// WithEventBus renders published field changes and faults as they happen.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Console) {
		c.bus = bus
	}
}

// WithLogBuffer enables the "logs" command.
func WithLogBuffer(rb *logging.RingBuffer) Option {
	return func(c *Console) {
		c.logs = rb
	}
}

// WithPrompt sets the prompt printed before each command. Default is "> ".
func WithPrompt(prompt string) Option {
	return func(c *Console) {
		c.prompt = prompt
	}
}

// WithQuitHandler runs fn when the user quits. End of input does not call it.
func WithQuitHandler(fn func()) Option {
	return func(c *Console) {
		c.onQuit = fn
	}
}

// New creates a console over in and out.
func New(t Torch, in io.Reader, out io.Writer, logger *slog.Logger, opts ...Option) *Console {
	c := &Console{
		torch:  t,
		in:     in,
		out:    out,
		logger: logger,
		prompt: "> ",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes commands until "quit", end of input or ctx cancellation.
// A blocked read on in is abandoned when ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go c.readLines(ctx, lines, readErr)

	var updates chan any
	if c.bus != nil {
		updates = make(chan any, eventBuffer)
		for _, unsubscribe := range c.subscribe(updates) {
			defer unsubscribe()
		}
	}

	c.printf("torch console ready, type \"help\" for commands\n")
	c.printState()
	c.printf("%s", c.prompt)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read console input: %w", err)
			}
			c.logger.Debug("Console input closed")
			return nil

		case line := <-lines:
			quit, err := c.Execute(line)
			if err != nil {
				c.printf("error: %v\n", err)
			}
			if quit {
				if c.onQuit != nil {
					c.onQuit()
				}
				return nil
			}
			c.printf("%s", c.prompt)

		case ev := <-updates:
			c.renderEvent(ev)
		}
	}
}

func (c *Console) readLines(ctx context.Context, lines chan<- string, readErr chan<- error) {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	readErr <- scanner.Err()
}

func (c *Console) subscribe(ch chan any) []func() {
	return []func(){
		events.SubscribeToChannel[events.TorchPowerChangedEvent](c.bus, ch),
		events.SubscribeToChannel[events.BrightnessChangedEvent](c.bus, ch),
		events.SubscribeToChannel[events.SOSModeChangedEvent](c.bus, ch),
		events.SubscribeToChannel[events.StrobeModeChangedEvent](c.bus, ch),
		events.SubscribeToChannel[events.HardwareFaultEvent](c.bus, ch),
	}
}

// Execute runs a single command line. quit reports whether the console should stop.
func (c *Console) Execute(line string) (quit bool, err error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]
	c.logger.Debug("Console command", "cmd", cmd, "args", args)

	switch cmd {
	case "toggle", "t":
		c.torch.ToggleTorch()
	case "on", "off":
		if c.torch.State().On != (cmd == "on") {
			c.torch.ToggleTorch()
		}
	case "brightness", "b":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: brightness <0..1|0..100%%>", ErrUsage)
		}
		v, err := ParseBrightness(args[0])
		if err != nil {
			return false, err
		}
		c.torch.SetBrightness(v)
	case "sos", "strobe":
		enable, err := parseSwitch(cmd, args)
		if err != nil {
			return false, err
		}
		if cmd == "sos" {
			c.torch.SetSOSMode(enable)
		} else {
			c.torch.SetStrobeMode(enable)
		}
	case "status", "s":
	case "logs":
		return false, c.printLogs(args)
	case "help", "?":
		c.printf("%s", helpText)
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("%w %q, type \"help\"", ErrUnknownCommand, cmd)
	}

	c.printState()
	return false, nil
}

// ParseBrightness accepts a fraction in [0,1] or a percentage such as "40%".
func ParseBrightness(s string) (float64, error) {
	s = strings.TrimSpace(s)
	scale := 1.0
	upper := 1.0
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		s, scale, upper = pct, 100, 100
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: invalid brightness %q", ErrUsage, s)
	}
	if v < 0 || v > upper {
		return 0, fmt.Errorf("%w: brightness %v out of range [0,%v]", ErrUsage, v, upper)
	}
	return v / scale, nil
}

func parseSwitch(cmd string, args []string) (bool, error) {
	if len(args) == 1 {
		switch args[0] {
		case "on", "1", "true":
			return true, nil
		case "off", "0", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s on|off", ErrUsage, cmd)
}

func (c *Console) printLogs(args []string) error {
	if c.logs == nil {
		return errors.New("log history not available")
	}

	if len(args) > 2 {
		return fmt.Errorf("%w: logs [n] [module]", ErrUsage)
	}

	n := defaultLogLines
	module := ""
	for _, arg := range args {
		parsed, err := strconv.Atoi(arg)
		switch {
		case err != nil && module == "":
			module = arg
		case err == nil && parsed > 0:
			n = parsed
		default:
			return fmt.Errorf("%w: logs [n] [module]", ErrUsage)
		}
	}

	for _, entry := range c.logs.Tail(n, module) {
		c.printf("%s\n", logging.FormatLogLine(entry))
	}
	return nil
}

func (c *Console) printState() {
	c.printf("%s\n", FormatState(c.torch.State()))
}

// FormatState renders a state snapshot on one line.
func FormatState(s torch.State) string {
	mode := "steady"
	switch {
	case s.SOSActive:
		mode = "sos"
	case s.StrobeActive:
		mode = "strobe"
	}
	return fmt.Sprintf("torch=%s brightness=%.0f%% mode=%s", onOff(s.On), s.Brightness*100, mode)
}

func (c *Console) renderEvent(ev any) {
	var msg string
	switch e := ev.(type) {
	case events.TorchPowerChangedEvent:
		msg = "torch " + onOff(e.On)
	case events.BrightnessChangedEvent:
		msg = fmt.Sprintf("brightness %.0f%% (level %d)", e.Brightness*100, e.Level)
	case events.SOSModeChangedEvent:
		msg = "sos " + onOff(e.Active)
	case events.StrobeModeChangedEvent:
		msg = "strobe " + onOff(e.Active)
	case events.HardwareFaultEvent:
		msg = fmt.Sprintf("hardware fault: %s %s: %s", e.Op, e.Kind, e.Error)
	default:
		return
	}
	c.printf("* %s\n", msg)
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Debug("Console write failed", "error", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

const helpText = `commands:
  toggle | t              switch the steady torch
  on | off                switch the steady torch to a fixed state
  brightness | b <v>      set brightness: fraction 0..1 or percentage 0..100%
  sos on|off              SOS signal
  strobe on|off           strobe signal
  status | s              print current state
  logs [n] [module]       print the last n log lines (default 20)
  help | ?                this help
  quit | exit | q         leave the console
`
