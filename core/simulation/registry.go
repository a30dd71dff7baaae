package simulation

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/events"
	"github.com/jmercadier/chargeshare/core/logger"
	"github.com/jmercadier/chargeshare/internal/eventbus"
)

// Registry owns the live engines, keyed by charger id. It is the sole
// mutator of engine lifecycle and enforces one running engine per charger.
type Registry struct {
	cfg Config
	rng Rand
	now func() time.Time
	log logger.Logger
	bus *eventbus.Bus[events.Event]

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry builds a Registry. A nil rng falls back to a time-seeded
// math/rand source; either way the source is shared by all engines behind
// a lock. A nil bus disables event publication.
func NewRegistry(cfg Config, rng Rand, bus *eventbus.Bus[events.Event], log logger.Logger) *Registry {
	cfg.SetDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Registry{
		cfg:     cfg,
		rng:     &lockedRand{src: rng},
		now:     time.Now,
		log:     log,
		bus:     bus,
		engines: make(map[string]*Engine),
	}
}

// SetClock overrides the time source, used by tests.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Acquire creates and starts an engine for the charger. It fails with a
// conflict if a running engine already exists for that charger. An engine
// that self-completed is replaced.
func (r *Registry) Acquire(chargerID, vehicleID string, powerKW float64) (*Engine, error) {
	if chargerID == "" {
		return nil, errs.Validationf("charger id must not be empty")
	}
	if powerKW <= 0 {
		return nil, errs.Validationf("power output must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.engines[chargerID]; ok && existing.Running() {
		return nil, errs.Conflictf("charger %s already has a running simulation", chargerID)
	}
	eng := NewEngine(chargerID, vehicleID, powerKW, r.cfg, r.rng, r.now, r.log)
	eng.SetOnComplete(func(snap Snapshot) {
		r.publish(events.SimulationEvent{
			ChargerID: chargerID,
			VehicleID: vehicleID,
			Action:    events.SimulationCompleted,
			EnergyKWh: snap.EnergyDeliveredKWh,
			At:        r.now(),
		})
	})
	eng.Start()
	r.engines[chargerID] = eng
	r.publish(events.SimulationEvent{ChargerID: chargerID, VehicleID: vehicleID, Action: events.SimulationStarted, At: r.now()})
	return eng, nil
}

// Release stops the charger's engine, removes it and returns the terminal
// snapshot.
func (r *Registry) Release(chargerID string) (Snapshot, error) {
	r.mu.Lock()
	eng, ok := r.engines[chargerID]
	if ok {
		delete(r.engines, chargerID)
	}
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, errs.NotFoundf("no simulation for charger %s", chargerID)
	}
	snap := eng.Stop()
	r.publish(events.SimulationEvent{
		ChargerID: chargerID,
		VehicleID: snap.VehicleID,
		Action:    events.SimulationStopped,
		EnergyKWh: snap.EnergyDeliveredKWh,
		At:        r.now(),
	})
	return snap, nil
}

// ForceRelease is the best-effort variant used on cancellation paths. It
// never fails; a missing engine is only logged.
func (r *Registry) ForceRelease(chargerID string) {
	if _, err := r.Release(chargerID); err != nil {
		r.log.Warnf("force release charger %s: %v", chargerID, err)
	}
}

// ActiveSimulation is one entry of the registry's point-in-time view.
type ActiveSimulation struct {
	ChargerID string        `json:"charger_id"`
	VehicleID string        `json:"vehicle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	EnergyKWh float64       `json:"energy_kwh"`
	PowerKW   float64       `json:"power_kw"`
}

// ListActive returns a snapshot of all running engines.
func (r *Registry) ListActive() []ActiveSimulation {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.mu.Unlock()

	out := make([]ActiveSimulation, 0, len(engines))
	for _, e := range engines {
		snap := e.Snapshot()
		if !snap.Running {
			continue
		}
		power := 0.0
		if n := len(snap.Samples); n > 0 {
			power = snap.Samples[n-1].PowerKW
		}
		out = append(out, ActiveSimulation{
			ChargerID: snap.ChargerID,
			VehicleID: snap.VehicleID,
			StartedAt: snap.StartedAt,
			Duration:  snap.Duration,
			EnergyKWh: snap.EnergyDeliveredKWh,
			PowerKW:   power,
		})
	}
	return out
}

func (r *Registry) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
