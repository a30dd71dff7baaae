package events

import (
	"time"

	"github.com/jmercadier/chargeshare/core/model"
)

// Event is the marker interface implemented by every bus event.
type Event interface{ isEvent() }

// SessionEvent is published for each charging-session state transition.
// EnergyKWh is only set on the transition to completed.
type SessionEvent struct {
	SessionID     string
	ReservationID string
	ChargerID     string
	From          model.SessionStatus
	To            model.SessionStatus
	EnergyKWh     float64
	At            time.Time
}

func (SessionEvent) isEvent() {}

// SimulationAction describes what happened to an engine.
type SimulationAction string

const (
	SimulationStarted   SimulationAction = "started"
	SimulationStopped   SimulationAction = "stopped"
	SimulationCompleted SimulationAction = "completed"
)

// SimulationEvent is published when an engine starts or stops.
type SimulationEvent struct {
	ChargerID string
	VehicleID string
	Action    SimulationAction
	EnergyKWh float64
	At        time.Time
}

func (SimulationEvent) isEvent() {}

// ReminderEvent is published for each reservation reminder fan-out.
type ReminderEvent struct {
	ReservationID string
	Kind          string
	At            time.Time
}

func (ReminderEvent) isEvent() {}

// WatchdogEvent is published for each confirmation-timeout escalation.
type WatchdogEvent struct {
	SessionID string
	Kind      model.TimeoutWarningKind
	At        time.Time
}

func (WatchdogEvent) isEvent() {}
