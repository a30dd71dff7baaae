package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmercadier/chargeshare/core/logger"
	coremetrics "github.com/jmercadier/chargeshare/core/metrics"
	"github.com/jmercadier/chargeshare/core/model"
)

// PromSink records session and reminder activity in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	energy      prometheus.Histogram
	reminders   *prometheus.CounterVec
	escalations *prometheus.CounterVec
	active      prometheus.Gauge
}

// NewPromSink registers engine metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_transitions_total",
		Help: "Total number of charging-session state transitions",
	}, []string{"from", "to"})
	energy := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_energy_kwh",
		Help:    "Energy delivered per completed charging session",
		Buckets: prometheus.LinearBuckets(0, 2, 15),
	})
	reminders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_reminders_total",
		Help: "Total number of reservation reminders sent",
	}, []string{"kind"})
	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "confirmation_escalations_total",
		Help: "Total number of confirmation-timeout warnings and auto-cancels",
	}, []string{"kind"})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_simulations",
		Help: "Number of charging simulations currently running",
	})

	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(energy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			energy = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reminders); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reminders = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(escalations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			escalations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(active); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			active = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		transitions: transitions,
		energy:      energy,
		reminders:   reminders,
		escalations: escalations,
		active:      active,
	}, nil
}

// RecordSessionTransition increments the transition counter and, for
// completed sessions, observes the delivered energy.
func (s *PromSink) RecordSessionTransition(t coremetrics.SessionTransition) error {
	s.transitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	if t.To == model.SessionCompleted {
		s.energy.Observe(t.EnergyKWh)
	}
	return nil
}

// RecordActiveSimulations sets the gauge to the number of running engines.
func (s *PromSink) RecordActiveSimulations(count int) error {
	if s.active != nil {
		s.active.Set(float64(count))
	}
	return nil
}

// RecordReminder increments the reminder counter for the given kind.
func (s *PromSink) RecordReminder(r coremetrics.ReminderRecord) error {
	s.reminders.WithLabelValues(r.Kind).Inc()
	return nil
}

// RecordEscalation increments the watchdog escalation counter.
func (s *PromSink) RecordEscalation(e coremetrics.EscalationRecord) error {
	s.escalations.WithLabelValues(string(e.Kind)).Inc()
	return nil
}

// StartPromServer exposes /metrics on the configured port. It blocks until
// the server exits and is expected to run in its own goroutine.
func StartPromServer(cfg coremetrics.Config, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Infof("prometheus metrics listening on %s", srv.Addr)
	return srv.ListenAndServe()
}
