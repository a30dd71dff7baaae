package session

import (
	"context"
	"sync"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

// Store persists charging sessions. Transitions go through
// CompareAndSwapStatus so two concurrent writers cannot both commit from
// the same observed state.
type Store interface {
	Get(ctx context.Context, id string) (model.ChargingSession, error)
	// Create stores a new session. It fails with a conflict if a
	// non-terminal session already exists for the reservation or the
	// charger.
	Create(ctx context.Context, s model.ChargingSession) (model.ChargingSession, error)
	// FindActiveByReservation returns the reservation's non-terminal
	// session, if any.
	FindActiveByReservation(ctx context.Context, reservationID string) (model.ChargingSession, bool, error)
	// CompareAndSwapStatus applies mutate to the stored session only if
	// its status still equals expect, and returns the updated session.
	// A changed status is reported as a conflict, not overwritten.
	CompareAndSwapStatus(ctx context.Context, id string, expect model.SessionStatus, mutate func(*model.ChargingSession)) (model.ChargingSession, error)
	// AppendWarning records a watchdog escalation without touching the
	// status. Appending an already-present kind is a no-op.
	AppendWarning(ctx context.Context, id string, w model.TimeoutWarning) error
	// ListNonTerminal returns every session that can still transition.
	ListNonTerminal(ctx context.Context) ([]model.ChargingSession, error)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.ChargingSession
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.ChargingSession{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.ChargingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.data[id]
	if !ok {
		return model.ChargingSession{}, errs.NotFoundf("session %s not found", id)
	}
	return sess, nil
}

func (s *MemoryStore) Create(_ context.Context, sess model.ChargingSession) (model.ChargingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.data {
		if other.Status.Terminal() {
			continue
		}
		if other.ReservationID == sess.ReservationID {
			return model.ChargingSession{}, errs.Conflictf("reservation %s already has an active session", sess.ReservationID)
		}
		if other.ChargerID == sess.ChargerID {
			return model.ChargingSession{}, errs.Conflictf("charger %s already has an active session", sess.ChargerID)
		}
	}
	s.data[sess.ID] = sess
	return sess, nil
}

func (s *MemoryStore) FindActiveByReservation(_ context.Context, reservationID string) (model.ChargingSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.data {
		if sess.ReservationID == reservationID && !sess.Status.Terminal() {
			return sess, true, nil
		}
	}
	return model.ChargingSession{}, false, nil
}

func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, id string, expect model.SessionStatus, mutate func(*model.ChargingSession)) (model.ChargingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[id]
	if !ok {
		return model.ChargingSession{}, errs.NotFoundf("session %s not found", id)
	}
	if sess.Status != expect {
		return model.ChargingSession{}, errs.Conflictf("session %s changed concurrently (now %s)", id, sess.Status)
	}
	mutate(&sess)
	s.data[id] = sess
	return sess, nil
}

func (s *MemoryStore) AppendWarning(_ context.Context, id string, w model.TimeoutWarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[id]
	if !ok {
		return errs.NotFoundf("session %s not found", id)
	}
	if sess.HasWarning(w.Kind) {
		return nil
	}
	sess.TimeoutWarnings = append(sess.TimeoutWarnings, w)
	s.data[id] = sess
	return nil
}

func (s *MemoryStore) ListNonTerminal(_ context.Context) ([]model.ChargingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ChargingSession
	for _, sess := range s.data {
		if !sess.Status.Terminal() {
			out = append(out, sess)
		}
	}
	return out, nil
}
