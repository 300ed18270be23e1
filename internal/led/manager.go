package led

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/smazurov/torchnode/internal/events"
)

// preferredIndicators are tried in order when picking the LED to drive.
var preferredIndicators = []string{"system", "act", "green", "user", "blue"}

// Manager mirrors torch state onto a board indicator LED:
// a running signal mode blinks, a steady torch is solid, otherwise the LED is off.
type Manager struct {
	controller   Controller
	eventBus     *events.Bus
	logger       *slog.Logger
	ledType      string
	unsubscribes []func()

	mu         sync.Mutex
	torchOn    bool
	sosOn      bool
	strobeOn   bool
	lastStatus string
}

// NewManager creates a manager driving the first preferred LED the controller offers.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		ledType:    pickIndicator(controller.Available()),
	}
}

func pickIndicator(available []string) string {
	for _, name := range preferredIndicators {
		if slices.Contains(available, name) {
			return name
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return "system"
}

// Start subscribes to torch events and turns the indicator off.
func (m *Manager) Start() {
	m.unsubscribes = append(m.unsubscribes,
		m.eventBus.Subscribe(func(e events.TorchPowerChangedEvent) {
			m.update(func() { m.torchOn = e.On })
		}),
		m.eventBus.Subscribe(func(e events.SOSModeChangedEvent) {
			m.update(func() { m.sosOn = e.Active })
		}),
		m.eventBus.Subscribe(func(e events.StrobeModeChangedEvent) {
			m.update(func() { m.strobeOn = e.Active })
		}),
	)
	m.update(func() {})
	m.logger.Info("Status LED manager started", "led_type", m.ledType)
}

// Stop unsubscribes and turns the indicator off.
func (m *Manager) Stop() {
	for _, unsubscribe := range m.unsubscribes {
		unsubscribe()
	}
	m.unsubscribes = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.controller.Set(m.ledType, false, "none"); err != nil {
		m.logger.Warn("Failed to turn status LED off", "error", err)
	}
	m.lastStatus = ""
	m.logger.Info("Status LED manager stopped")
}

// Status returns the indicator state last written: "blink", "solid" or "off".
func (m *Manager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStatus
}

// GetController returns the underlying LED controller.
func (m *Manager) GetController() Controller {
	return m.controller
}

func (m *Manager) update(apply func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apply()

	status := "off"
	switch {
	case m.sosOn || m.strobeOn:
		status = PatternBlink
	case m.torchOn:
		status = PatternSolid
	}
	if status == m.lastStatus {
		return
	}

	var err error
	if status == "off" {
		err = m.controller.Set(m.ledType, false, "none")
	} else {
		err = m.controller.Set(m.ledType, true, status)
	}
	if err != nil {
		m.logger.Warn("Failed to set status LED", "status", status, "error", err)
		return
	}
	m.lastStatus = status
	m.logger.Debug("Status LED updated", "status", status)
}
