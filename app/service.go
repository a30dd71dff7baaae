// Package app wires the stores, the session machine, the simulation
// registry and the background jobs into one runnable service.
package app

import (
	"context"
	"fmt"

	"github.com/jmercadier/chargeshare/config"
	"github.com/jmercadier/chargeshare/core/charger"
	"github.com/jmercadier/chargeshare/core/events"
	corehistory "github.com/jmercadier/chargeshare/core/history"
	coremetrics "github.com/jmercadier/chargeshare/core/metrics"
	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/notify"
	"github.com/jmercadier/chargeshare/core/recommend"
	"github.com/jmercadier/chargeshare/core/reservation"
	"github.com/jmercadier/chargeshare/core/session"
	"github.com/jmercadier/chargeshare/core/simulation"
	"github.com/jmercadier/chargeshare/infra/history"
	"github.com/jmercadier/chargeshare/infra/logger"
	"github.com/jmercadier/chargeshare/infra/metrics"
	"github.com/jmercadier/chargeshare/infra/mqtt"
	"github.com/jmercadier/chargeshare/internal/eventbus"
	"github.com/jmercadier/chargeshare/jobs/reminder"
	"github.com/jmercadier/chargeshare/jobs/watchdog"
)

// Service orchestrates the booking engine and its background jobs.
type Service struct {
	Chargers     *charger.MemoryStore
	Reservations *reservation.MemoryStore
	Sessions     *session.MemoryStore
	Machine      *session.Machine
	Ranker       *recommend.Ranker
	Registry     *simulation.Registry

	reminder *reminder.Scheduler
	watchdog *watchdog.Watchdog
	bus      *eventbus.Bus[events.Event]
	sink     coremetrics.Sink
	notifier *mqtt.PushNotifier
	closer   interface{ Close() error }
	log      logger.Logger

	promEnabled bool
	promCfg     coremetrics.Config
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	notifiers := notify.Multi{notify.LogNotifier{Log: logger.New("notify")}}
	var push *mqtt.PushNotifier
	if cfg.MQTT.Enabled {
		var err error
		push, err = mqtt.NewPushNotifier(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifiers = append(notifiers, push)
	}

	var hist corehistory.Writer
	var closer interface{ Close() error }
	if cfg.History.Backend == "sqlite" {
		w, err := history.NewSQLiteWriter(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		hist = w
		closer = w
	} else {
		hist = corehistory.NewMemoryWriter()
	}

	bus := eventbus.New[events.Event]()
	chargers := charger.NewMemoryStore()
	reservations := reservation.NewMemoryStore()
	sessions := session.NewMemoryStore()
	registry := simulation.NewRegistry(cfg.Simulation, nil, bus, logger.New("simulation"))
	machine := session.NewMachine(sessions, reservations, chargers, registry,
		notifiers, hist, bus, logger.New("session"))
	ranker := recommend.NewRanker(cfg.Recommend, reservations, logger.New("recommend"))

	svc := &Service{
		Chargers:     chargers,
		Reservations: reservations,
		Sessions:     sessions,
		Machine:      machine,
		Ranker:       ranker,
		Registry:     registry,
		reminder:     reminder.New(cfg.Reminder, reservations, notifiers, bus, logger.New("reminder")),
		watchdog:     watchdog.New(cfg.Watchdog, sessions, machine, notifiers, bus, logger.New("watchdog")),
		bus:          bus,
		sink:         sink,
		notifier:     push,
		closer:       closer,
		log:          logg,
		promEnabled:  cfg.Metrics.PrometheusEnabled,
		promCfg:      cfg.Metrics,
	}
	return svc, nil
}

// Run starts the background jobs and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.reminder.Run(ctx)
	go s.watchdog.Run(ctx)
	go s.forwardEvents(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(s.promCfg, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.log.Infof("service started")
	<-ctx.Done()
	return nil
}

// forwardEvents bridges bus events into the metrics sink.
func (s *Service) forwardEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case events.SessionEvent:
				err := s.sink.RecordSessionTransition(coremetrics.SessionTransition{
					SessionID: ev.SessionID,
					ChargerID: ev.ChargerID,
					From:      ev.From,
					To:        ev.To,
					EnergyKWh: ev.EnergyKWh,
					Time:      ev.At,
				})
				if err != nil {
					s.log.Warnf("record transition: %v", err)
				}
			case events.SimulationEvent:
				if err := s.sink.RecordActiveSimulations(len(s.Registry.ListActive())); err != nil {
					s.log.Warnf("record simulations: %v", err)
				}
				if rec, ok := s.sink.(coremetrics.SampleRecorder); ok {
					err := rec.RecordSimulationSample(coremetrics.SimulationSample{
						ChargerID: ev.ChargerID,
						VehicleID: ev.VehicleID,
						Sample:    model.EnergySample{Timestamp: ev.At, EnergyKWh: ev.EnergyKWh},
						Time:      ev.At,
					})
					if err != nil {
						s.log.Warnf("record sample: %v", err)
					}
				}
			case events.ReminderEvent:
				err := s.sink.RecordReminder(coremetrics.ReminderRecord{
					ReservationID: ev.ReservationID,
					Kind:          ev.Kind,
					Time:          ev.At,
				})
				if err != nil {
					s.log.Warnf("record reminder: %v", err)
				}
			case events.WatchdogEvent:
				err := s.sink.RecordEscalation(coremetrics.EscalationRecord{
					SessionID: ev.SessionID,
					Kind:      ev.Kind,
					Time:      ev.At,
				})
				if err != nil {
					s.log.Warnf("record escalation: %v", err)
				}
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
