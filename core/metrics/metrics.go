// Package metrics defines the observability sink the engine records into.
// Implementations live under infra/metrics.
package metrics

import (
	"time"

	"github.com/jmercadier/chargeshare/core/model"
)

// SessionTransition records one charging-session state change.
type SessionTransition struct {
	SessionID string
	ChargerID string
	From      model.SessionStatus
	To        model.SessionStatus
	// EnergyKWh is set on the transition to completed.
	EnergyKWh float64
	Time      time.Time
}

// SimulationSample is one point of a live engine's energy feed.
type SimulationSample struct {
	ChargerID string
	VehicleID string
	Sample    model.EnergySample
	Time      time.Time
}

// ReminderRecord counts one reminder fan-out.
type ReminderRecord struct {
	ReservationID string
	Kind          string
	Time          time.Time
}

// EscalationRecord counts one confirmation-timeout escalation.
type EscalationRecord struct {
	SessionID string
	Kind      model.TimeoutWarningKind
	Time      time.Time
}

// Sink records engine events for observability purposes.
type Sink interface {
	RecordSessionTransition(t SessionTransition) error
	RecordActiveSimulations(count int) error
	RecordReminder(r ReminderRecord) error
	RecordEscalation(e EscalationRecord) error
}

// SampleRecorder is implemented by sinks that ingest raw energy samples.
type SampleRecorder interface {
	RecordSimulationSample(s SimulationSample) error
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) RecordSessionTransition(SessionTransition) error { return nil }
func (NopSink) RecordActiveSimulations(int) error               { return nil }
func (NopSink) RecordReminder(ReminderRecord) error             { return nil }
func (NopSink) RecordEscalation(EscalationRecord) error         { return nil }

// Config enables the available sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port" yaml:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled" yaml:"influx_enabled"`
	InfluxURL         string `json:"influx_url" yaml:"influx_url"`
	InfluxToken       string `json:"influx_token" yaml:"influx_token"`
	InfluxOrg         string `json:"influx_org" yaml:"influx_org"`
	InfluxBucket      string `json:"influx_bucket" yaml:"influx_bucket"`
}

// SetDefaults fills the standard Prometheus port.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "2112"
	}
}
