package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/jmercadier/chargeshare/core/metrics"
	"github.com/jmercadier/chargeshare/infra/logger"
)

// InfluxSink writes engine events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSessionTransition writes the state change as a session_transition point.
func (s *InfluxSink) RecordSessionTransition(t coremetrics.SessionTransition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("session_transition").
		AddTag("session_id", t.SessionID).
		AddTag("charger_id", t.ChargerID).
		AddTag("from", string(t.From)).
		AddTag("to", string(t.To)).
		AddTag("component", "session_machine").
		AddField("energy_kwh", round3(t.EnergyKWh)).
		SetTime(t.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordActiveSimulations persists the current simulation count.
func (s *InfluxSink) RecordActiveSimulations(count int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("active_simulations").
		AddTag("component", "simulation_registry").
		AddField("count", count).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordReminder writes one reminder fan-out.
func (s *InfluxSink) RecordReminder(r coremetrics.ReminderRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("reservation_reminder").
		AddTag("reservation_id", r.ReservationID).
		AddTag("kind", r.Kind).
		AddTag("component", "reminder_scheduler").
		AddField("count", 1).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEscalation writes one confirmation-timeout escalation.
func (s *InfluxSink) RecordEscalation(e coremetrics.EscalationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("confirmation_escalation").
		AddTag("session_id", e.SessionID).
		AddTag("kind", string(e.Kind)).
		AddTag("component", "session_watchdog").
		AddField("count", 1).
		SetTime(e.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSimulationSample writes a live energy sample from a running engine.
func (s *InfluxSink) RecordSimulationSample(ev coremetrics.SimulationSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_sample").
		AddTag("charger_id", ev.ChargerID).
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("component", "simulation_engine").
		AddField("power_kw", round3(ev.Sample.PowerKW)).
		AddField("energy_kwh", round3(ev.Sample.EnergyKWh)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
