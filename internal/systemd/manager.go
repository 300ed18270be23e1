package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the user unit the torch daemon is installed as.
const DefaultUnit = "torchnode.service"

// Actions accepted by Manager.Control.
const (
	ActionStatus  = "status"
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

// Manager handles systemd service lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager creates a new systemd manager with a user-level D-Bus connection.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to user D-Bus: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// GetServiceStatus retrieves the ActiveState property of a unit.
func (m *Manager) GetServiceStatus(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	return strings.Trim(prop.Value.String(), `"`), nil
}

// StartService starts a unit and waits for the job to finish.
func (m *Manager) StartService(ctx context.Context, unit string) error {
	return m.runJob(ctx, unit, m.conn.StartUnitContext)
}

// StopService stops a unit and waits for the job to finish.
func (m *Manager) StopService(ctx context.Context, unit string) error {
	return m.runJob(ctx, unit, m.conn.StopUnitContext)
}

// RestartService restarts a unit and waits for the job to finish.
func (m *Manager) RestartService(ctx context.Context, unit string) error {
	return m.runJob(ctx, unit, m.conn.RestartUnitContext)
}

// Control runs action against unit and returns the resulting ActiveState.
func (m *Manager) Control(ctx context.Context, action, unit string) (string, error) {
	var err error
	switch action {
	case ActionStatus:
	case ActionStart:
		err = m.StartService(ctx, unit)
	case ActionStop:
		err = m.StopService(ctx, unit)
	case ActionRestart:
		err = m.RestartService(ctx, unit)
	default:
		return "", fmt.Errorf("unknown service action %q", action)
	}
	if err != nil {
		return "", fmt.Errorf("failed to %s %s: %w", action, unit, err)
	}
	return m.GetServiceStatus(ctx, unit)
}

type unitJob func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (m *Manager) runJob(ctx context.Context, unit string, job unitJob) error {
	done := make(chan string, 1)
	if _, err := job(ctx, unit, "replace", done); err != nil {
		return err
	}

	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("job finished with result %q", result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
