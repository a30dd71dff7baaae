package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

// MemoryStore is the in-memory Store used by tests and single-process
// deployments. One write lock serializes check-then-insert, which makes
// Create's overlap validation atomic.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.Reservation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Reservation{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return model.Reservation{}, errs.NotFoundf("reservation %s not found", id)
	}
	return r, nil
}

func (s *MemoryStore) Create(_ context.Context, r model.Reservation) (model.Reservation, error) {
	if err := r.Validate(); err != nil {
		return model.Reservation{}, errs.Validationf("reservation: %v", err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.ReservationUpcoming
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[r.ID]; ok {
		return model.Reservation{}, errs.Conflictf("reservation %s already exists", r.ID)
	}
	for _, other := range s.data {
		if other.ChargerID != r.ChargerID || !other.Pending() {
			continue
		}
		if other.StartTime.Before(r.EndTime) && other.EndTime.After(r.StartTime) {
			return model.Reservation{}, errs.Conflictf("charger %s already booked from %s to %s",
				r.ChargerID, other.StartTime.Format(time.RFC3339), other.EndTime.Format(time.RFC3339))
		}
	}
	s.data[r.ID] = r
	return r, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status model.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return errs.NotFoundf("reservation %s not found", id)
	}
	r.Status = status
	s.data[id] = r
	return nil
}

func (s *MemoryStore) MarkPreNotified(_ context.Context, id string) error {
	return s.update(id, func(r *model.Reservation) { r.PreNotified = true })
}

func (s *MemoryStore) MarkStartNotified(_ context.Context, id string) error {
	return s.update(id, func(r *model.Reservation) { r.StartNotified = true })
}

func (s *MemoryStore) update(id string, apply func(*model.Reservation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return errs.NotFoundf("reservation %s not found", id)
	}
	apply(&r)
	s.data[id] = r
	return nil
}

func (s *MemoryStore) OverlappingForCharger(_ context.Context, chargerID string, from, to time.Time, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	allowed := map[model.ReservationStatus]bool{}
	for _, st := range statuses {
		allowed[st] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.data {
		if r.ChargerID != chargerID {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Status] {
			continue
		}
		if r.StartTime.Before(to) && r.EndTime.After(from) {
			out = append(out, r)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) StartingBetween(_ context.Context, from, to time.Time, status model.ReservationStatus) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.data {
		if r.Status != status {
			continue
		}
		if !r.StartTime.Before(from) && r.StartTime.Before(to) {
			out = append(out, r)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) BusyIntervalsForCharger(ctx context.Context, chargerID string, from, to time.Time) ([]model.BusyInterval, error) {
	pending, err := s.OverlappingForCharger(ctx, chargerID, from, to,
		[]model.ReservationStatus{model.ReservationUpcoming, model.ReservationActive})
	if err != nil {
		return nil, err
	}
	out := make([]model.BusyInterval, 0, len(pending))
	for _, r := range pending {
		out = append(out, busyInterval(r))
	}
	return out, nil
}

func (s *MemoryStore) BusyIntervalsForVehicle(_ context.Context, vehicleID string, from, to time.Time) ([]model.BusyInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BusyInterval
	for _, r := range s.data {
		if r.VehicleID != vehicleID || !r.Pending() {
			continue
		}
		if r.StartTime.Before(to) && r.EndTime.After(from) {
			out = append(out, busyInterval(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func busyInterval(r model.Reservation) model.BusyInterval {
	return model.BusyInterval{
		Start:      r.StartTime,
		End:        r.EndTime,
		SourceKind: model.SourceReservation,
		SourceID:   r.ID,
		Status:     string(r.Status),
	}
}

func sortByStart(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].StartTime.Before(rs[j].StartTime) })
}
