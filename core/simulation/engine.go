package simulation

import (
	"sync"
	"time"

	"github.com/jmercadier/chargeshare/core/logger"
	"github.com/jmercadier/chargeshare/core/model"
)

// Rand is the source of randomness for targets and tick jitter. It is
// satisfied by *math/rand.Rand and replaced with a fixed source in tests.
type Rand interface {
	Float64() float64
}

// lockedRand serializes draws from a shared source. math/rand.Rand is not
// safe for concurrent use and every engine ticks on its own goroutine.
type lockedRand struct {
	mu  sync.Mutex
	src Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// Snapshot is a point-in-time or terminal view of an engine.
type Snapshot struct {
	ChargerID          string               `json:"charger_id"`
	VehicleID          string               `json:"vehicle_id"`
	PowerOutputKW      float64              `json:"power_output_kw"`
	Running            bool                 `json:"running"`
	StartedAt          time.Time            `json:"started_at"`
	EndedAt            time.Time            `json:"ended_at,omitempty"`
	Duration           time.Duration        `json:"duration"`
	EnergyDeliveredKWh float64              `json:"energy_delivered_kwh"`
	Cost               float64              `json:"cost"`
	Samples            []model.EnergySample `json:"samples,omitempty"`
}

// Engine simulates energy delivery for one charger. All state is guarded
// by its own mutex; ticks run on the engine's goroutine and stop either on
// Stop or once the randomized target energy is reached.
type Engine struct {
	chargerID  string
	vehicleID  string
	powerKW    float64
	cfg        Config
	rng        Rand
	now        func() time.Time
	log        logger.Logger
	onComplete func(Snapshot)

	mu         sync.Mutex
	running    bool
	startedAt  time.Time
	endedAt    time.Time
	cumulative float64
	samples    []model.EnergySample
	targetKWh  float64
	stopCh     chan struct{}
}

// NewEngine builds an engine. Callers normally go through the Registry.
func NewEngine(chargerID, vehicleID string, powerKW float64, cfg Config, rng Rand, now func() time.Time, log logger.Logger) *Engine {
	cfg.SetDefaults()
	if now == nil {
		now = time.Now
	}
	return &Engine{
		chargerID: chargerID,
		vehicleID: vehicleID,
		powerKW:   powerKW,
		cfg:       cfg,
		rng:       rng,
		now:       now,
		log:       log,
	}
}

// SetOnComplete installs the callback fired with the terminal snapshot
// when the engine reaches its target on its own. It must be set before
// Start and must not call back into the engine.
func (e *Engine) SetOnComplete(fn func(Snapshot)) { e.onComplete = fn }

// Start marks the engine running, resets its sample log, emits the initial
// zero-energy sample and begins ticking. Starting a running engine is a
// no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.startedAt = e.now()
	e.endedAt = time.Time{}
	e.cumulative = 0
	e.targetKWh = e.cfg.TargetMinKWh + e.rng.Float64()*(e.cfg.TargetMaxKWh-e.cfg.TargetMinKWh)
	e.samples = []model.EnergySample{{Timestamp: e.startedAt, PowerKW: 0, EnergyKWh: 0}}
	e.stopCh = make(chan struct{})
	stop := e.stopCh
	e.mu.Unlock()

	e.log.Infof("simulation started for charger %s (target %.2f kWh)", e.chargerID, e.targetKWh)
	go e.run(stop)
}

func (e *Engine) run(stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("simulation for charger %s panicked: %v", e.chargerID, r)
		}
	}()
	ticker := time.NewTicker(time.Duration(e.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := e.tick(); done {
				return
			}
		}
	}
}

// tick emits one sample and reports whether the engine completed on its
// own by reaching the target energy.
func (e *Engine) tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return true
	}
	tickHours := (time.Duration(e.cfg.TickSeconds) * time.Second).Hours()
	jitter := e.cfg.JitterMin + e.rng.Float64()*(e.cfg.JitterMax-e.cfg.JitterMin)
	power := e.powerKW * jitter
	energy := power * tickHours
	e.cumulative += energy
	e.samples = append(e.samples, model.EnergySample{
		Timestamp: e.now(),
		PowerKW:   power,
		EnergyKWh: energy,
	})
	if e.cumulative >= e.targetKWh {
		e.running = false
		e.endedAt = e.now()
		e.log.Infof("simulation for charger %s self-completed at %.2f kWh", e.chargerID, e.cumulative)
		if e.onComplete != nil {
			e.onComplete(e.snapshotLocked())
		}
		return true
	}
	return false
}

// Stop halts ticking and returns the terminal snapshot. Stopping a
// non-running engine is a no-op returning the last known snapshot.
func (e *Engine) Stop() Snapshot {
	e.mu.Lock()
	if e.running {
		e.running = false
		e.endedAt = e.now()
		close(e.stopCh)
	} else if e.stopCh != nil {
		// Self-completed: the run goroutine already exited, release it.
		select {
		case <-e.stopCh:
		default:
			close(e.stopCh)
		}
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	return snap
}

// Snapshot returns a read-only view of the engine's state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// RecentSamples returns the n most recent samples, oldest first.
func (e *Engine) RecentSamples(n int) []model.EnergySample {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.samples) {
		n = len(e.samples)
	}
	out := make([]model.EnergySample, n)
	copy(out, e.samples[len(e.samples)-n:])
	return out
}

// Running reports whether the engine is still ticking.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) snapshotLocked() Snapshot {
	end := e.endedAt
	ref := end
	if e.running || ref.IsZero() {
		ref = e.now()
	}
	samples := make([]model.EnergySample, len(e.samples))
	copy(samples, e.samples)
	return Snapshot{
		ChargerID:          e.chargerID,
		VehicleID:          e.vehicleID,
		PowerOutputKW:      e.powerKW,
		Running:            e.running,
		StartedAt:          e.startedAt,
		EndedAt:            end,
		Duration:           ref.Sub(e.startedAt),
		EnergyDeliveredKWh: e.cumulative,
		Cost:               e.cumulative * e.cfg.FlatRateKWh,
		Samples:            samples,
	}
}
