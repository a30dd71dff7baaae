package simulation

import (
	"sync"
	"testing"
	"time"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/events"
	"github.com/jmercadier/chargeshare/internal/eventbus"
)

// fixedRand always returns the same value so targets and jitter are
// deterministic.
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

var simNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestEngine(powerKW float64) (*Engine, *time.Time) {
	now := simNow
	clock := func() time.Time { return now }
	// Huge tick period so the background ticker never fires during the
	// test; ticks are driven synchronously via tick().
	cfg := Config{TickSeconds: 3600, TargetMinKWh: 50, TargetMaxKWh: 50}
	e := NewEngine("ch1", "v1", powerKW, cfg, fixedRand{0.5}, clock, nopLogger{})
	return e, &now
}

func TestEngineStartEmitsZeroSample(t *testing.T) {
	e, _ := newTestEngine(10)
	e.Start()
	defer e.Stop()
	samples := e.RecentSamples(0)
	if len(samples) != 1 || samples[0].EnergyKWh != 0 || samples[0].PowerKW != 0 {
		t.Fatalf("expected a single zero sample, got %#v", samples)
	}
}

func TestEngineTickAccumulates(t *testing.T) {
	e, now := newTestEngine(10)
	e.Start()
	defer e.Stop()

	*now = now.Add(time.Hour)
	if done := e.tick(); done {
		t.Fatalf("engine completed too early")
	}
	snap := e.Snapshot()
	// One hour at 10 kW with jitter factor 1.0.
	if snap.EnergyDeliveredKWh < 9.9 || snap.EnergyDeliveredKWh > 10.1 {
		t.Fatalf("unexpected energy %.3f", snap.EnergyDeliveredKWh)
	}
	if len(snap.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(snap.Samples))
	}
}

func TestEngineSelfStopsAtTarget(t *testing.T) {
	now := simNow
	cfg := Config{TickSeconds: 3600, TargetMinKWh: 5, TargetMaxKWh: 5}
	e := NewEngine("ch1", "v1", 10, cfg, fixedRand{0.5}, func() time.Time { return now }, nopLogger{})
	e.Start()

	// Target is fixed at 5 kWh; one hour at 10 kW crosses it.
	now = now.Add(time.Hour)
	if done := e.tick(); !done {
		t.Fatalf("engine should self-complete once target is crossed")
	}
	if e.Running() {
		t.Fatalf("engine still running after self-completion")
	}
	snap := e.Stop()
	if snap.EndedAt.IsZero() {
		t.Fatalf("terminal snapshot has no end time")
	}
}

func TestEngineStopIdempotent(t *testing.T) {
	e, now := newTestEngine(10)
	e.Start()
	*now = now.Add(30 * time.Minute)
	first := e.Stop()
	second := e.Stop()
	if first.Running || second.Running {
		t.Fatalf("stopped engine reports running")
	}
	if !first.EndedAt.Equal(second.EndedAt) {
		t.Fatalf("second stop moved the end time")
	}
}

func TestEngineSnapshotInvariants(t *testing.T) {
	e, now := newTestEngine(7)
	e.Start()
	*now = now.Add(10 * time.Minute)
	e.tick()
	snap := e.Stop()
	if snap.EnergyDeliveredKWh < 0 {
		t.Fatalf("negative energy %v", snap.EnergyDeliveredKWh)
	}
	if snap.Duration < 0 {
		t.Fatalf("negative duration %v", snap.Duration)
	}
	if snap.Cost != snap.EnergyDeliveredKWh*0.25 {
		t.Fatalf("cost %.4f does not match flat rate", snap.Cost)
	}
}

func TestRecentSamplesLimit(t *testing.T) {
	e, now := newTestEngine(1)
	e.Start()
	defer e.Stop()
	for i := 0; i < 5; i++ {
		*now = now.Add(time.Minute)
		e.tick()
	}
	got := e.RecentSamples(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	all := e.RecentSamples(0)
	if !got[2].Timestamp.Equal(all[len(all)-1].Timestamp) {
		t.Fatalf("recent samples are not the newest")
	}
}

func TestEnginesDrawFromSharedSourceConcurrently(t *testing.T) {
	// Huge target so neither engine self-completes while ticking.
	cfg := Config{TickSeconds: 3600, TargetMinKWh: 1e6, TargetMaxKWh: 1e6}
	r := NewRegistry(cfg, nil, nil, nopLogger{})
	a, err := r.Acquire("ch1", "v1", 11)
	if err != nil {
		t.Fatalf("acquire ch1: %v", err)
	}
	b, err := r.Acquire("ch2", "v2", 22)
	if err != nil {
		t.Fatalf("acquire ch2: %v", err)
	}
	defer r.ForceRelease("ch1")
	defer r.ForceRelease("ch2")

	const ticks = 200
	var wg sync.WaitGroup
	for _, e := range []*Engine{a, b} {
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			for i := 0; i < ticks; i++ {
				e.tick()
			}
		}(e)
	}
	wg.Wait()

	if got := len(a.RecentSamples(0)); got != ticks+1 {
		t.Fatalf("ch1 sample count %d", got)
	}
	if got := len(b.RecentSamples(0)); got != ticks+1 {
		t.Fatalf("ch2 sample count %d", got)
	}
}

func TestRegistryPublishesSelfCompletion(t *testing.T) {
	bus := eventbus.New[events.Event]()
	defer bus.Close()
	cfg := Config{TickSeconds: 3600, TargetMinKWh: 5, TargetMaxKWh: 5}
	r := NewRegistry(cfg, fixedRand{0.5}, bus, nopLogger{})
	now := simNow
	r.SetClock(func() time.Time { return now })
	sub := bus.Subscribe()

	eng, err := r.Acquire("ch1", "v1", 10)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	started, ok := (<-sub).(events.SimulationEvent)
	if !ok || started.Action != events.SimulationStarted {
		t.Fatalf("expected started event, got %#v", started)
	}

	// One hour at 10 kW crosses the 5 kWh target.
	now = now.Add(time.Hour)
	if done := eng.tick(); !done {
		t.Fatalf("engine should self-complete once target is crossed")
	}
	completed, ok := (<-sub).(events.SimulationEvent)
	if !ok || completed.Action != events.SimulationCompleted {
		t.Fatalf("expected completed event, got %#v", completed)
	}
	if completed.EnergyKWh <= 0 {
		t.Fatalf("completed event carries no energy: %#v", completed)
	}
}

func newTestRegistry() *Registry {
	cfg := Config{TickSeconds: 3600}
	r := NewRegistry(cfg, fixedRand{0.5}, nil, nopLogger{})
	r.SetClock(func() time.Time { return simNow })
	return r
}

func TestRegistryAcquireConflict(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Acquire("ch1", "v1", 11); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := r.Acquire("ch1", "v2", 11); !errs.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// A different charger is unaffected.
	if _, err := r.Acquire("ch2", "v2", 11); err != nil {
		t.Fatalf("independent charger: %v", err)
	}
}

func TestRegistryReleaseReturnsSnapshot(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Acquire("ch1", "v1", 11); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	snap, err := r.Release("ch1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if snap.EnergyDeliveredKWh < 0 || snap.Duration < 0 {
		t.Fatalf("invalid terminal snapshot %#v", snap)
	}
	if _, err := r.Release("ch1"); !errs.IsNotFound(err) {
		t.Fatalf("expected not-found on second release, got %v", err)
	}
}

func TestRegistryForceReleaseMissing(t *testing.T) {
	r := newTestRegistry()
	r.ForceRelease("ghost") // must not panic or fail
}

func TestRegistryListActive(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Acquire("ch1", "v1", 11); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := r.Acquire("ch2", "v2", 22); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	r.ForceRelease("ch2")
	active := r.ListActive()
	if len(active) != 1 || active[0].ChargerID != "ch1" {
		t.Fatalf("unexpected active set %#v", active)
	}
	if active[0].Duration < 0 {
		t.Fatalf("negative duration")
	}
}
