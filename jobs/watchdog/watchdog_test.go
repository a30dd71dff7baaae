package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/notify"
	"github.com/jmercadier/chargeshare/core/session"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

type fakeCanceller struct {
	mu        sync.Mutex
	cancelled []string
	store     *session.MemoryStore
}

func (f *fakeCanceller) Cancel(ctx context.Context, id, by, reason string) (model.ChargingSession, error) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, id)
	f.mu.Unlock()
	sess, err := f.store.Get(ctx, id)
	if err != nil {
		return model.ChargingSession{}, err
	}
	return f.store.CompareAndSwapStatus(ctx, id, sess.Status, func(s *model.ChargingSession) {
		s.Status = model.SessionCancelled
		s.CancelledBy = by
		s.CancellationReason = reason
	})
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify(context.Context, string, notify.Kind, map[string]any) error {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
	return nil
}

var wdNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T, createdAgo time.Duration) (*Watchdog, *session.MemoryStore, *fakeCanceller, *countingNotifier) {
	t.Helper()
	store := session.NewMemoryStore()
	if _, err := store.Create(context.Background(), model.ChargingSession{
		ID:            "s1",
		ReservationID: "r1",
		ChargerID:     "ch1",
		UserID:        "user1",
		OwnerID:       "owner1",
		Status:        model.SessionWaitingConfirmations,
		CreatedAt:     wdNow.Add(-createdAgo),
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	canceller := &fakeCanceller{store: store}
	sink := &countingNotifier{}
	w := New(Config{}, store, canceller, sink, nil, nopLogger{})
	w.SetClock(func() time.Time { return wdNow })
	return w, store, canceller, sink
}

func TestFreshSessionUntouched(t *testing.T) {
	w, store, canceller, sink := setup(t, 2*time.Minute)
	w.Tick(context.Background())
	sess, _ := store.Get(context.Background(), "s1")
	if len(sess.TimeoutWarnings) != 0 || len(canceller.cancelled) != 0 || sink.count != 0 {
		t.Fatalf("fresh session escalated: %#v", sess.TimeoutWarnings)
	}
}

func TestFirstWarningAtFiveMinutes(t *testing.T) {
	w, store, _, sink := setup(t, 6*time.Minute)
	w.Tick(context.Background())
	w.Tick(context.Background()) // repeated ticks must not duplicate
	sess, _ := store.Get(context.Background(), "s1")
	if len(sess.TimeoutWarnings) != 1 || sess.TimeoutWarnings[0].Kind != model.Warning5Min {
		t.Fatalf("unexpected warnings %#v", sess.TimeoutWarnings)
	}
	if sink.count != 2 {
		t.Fatalf("expected one fan-out to two parties, got %d", sink.count)
	}
}

func TestSecondWarningAtTenMinutes(t *testing.T) {
	w, store, _, _ := setup(t, 11*time.Minute)
	w.Tick(context.Background())
	sess, _ := store.Get(context.Background(), "s1")
	if !sess.HasWarning(model.Warning10Min) {
		t.Fatalf("second warning missing: %#v", sess.TimeoutWarnings)
	}
}

func TestAutoCancelAtFifteenMinutes(t *testing.T) {
	w, store, canceller, _ := setup(t, 16*time.Minute)
	w.Tick(context.Background())
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "s1" {
		t.Fatalf("session not auto-cancelled: %#v", canceller.cancelled)
	}
	sess, _ := store.Get(context.Background(), "s1")
	if sess.Status != model.SessionCancelled {
		t.Fatalf("status %s after auto-cancel", sess.Status)
	}
	if !sess.HasWarning(model.AutoCancel15Min) {
		t.Fatalf("auto-cancel warning missing: %#v", sess.TimeoutWarnings)
	}
	// A later tick sees a terminal session and leaves it alone.
	w.Tick(context.Background())
	if len(canceller.cancelled) != 1 {
		t.Fatalf("terminal session cancelled again")
	}
}

func TestChargingSessionIgnored(t *testing.T) {
	w, store, canceller, _ := setup(t, 30*time.Minute)
	if _, err := store.CompareAndSwapStatus(context.Background(), "s1", model.SessionWaitingConfirmations, func(s *model.ChargingSession) {
		s.Status = model.SessionCharging
	}); err != nil {
		t.Fatalf("cas: %v", err)
	}
	w.Tick(context.Background())
	if len(canceller.cancelled) != 0 {
		t.Fatalf("charging session must not be escalated")
	}
}
