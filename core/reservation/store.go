// Package reservation defines the booking store the orchestration engine
// depends on, plus an in-memory reference implementation.
package reservation

import (
	"context"
	"time"

	"github.com/jmercadier/chargeshare/core/model"
)

// Store is the reservation persistence interface. Create must treat the
// overlap check and the insert as one atomic allocation: the in-memory
// implementation serializes writes under a single lock, a SQL
// implementation must rely on a conflict constraint over
// (charger_id, time range).
type Store interface {
	Get(ctx context.Context, id string) (model.Reservation, error)
	// Create validates the reservation, rejects overlapping bookings for
	// the same charger with a conflict error and stores it.
	Create(ctx context.Context, r model.Reservation) (model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status model.ReservationStatus) error
	// MarkPreNotified / MarkStartNotified set the reminder idempotency
	// flags.
	MarkPreNotified(ctx context.Context, id string) error
	MarkStartNotified(ctx context.Context, id string) error

	// OverlappingForCharger returns reservations for the charger whose
	// range overlaps [from, to) with a status in statuses, sorted by
	// start time.
	OverlappingForCharger(ctx context.Context, chargerID string, from, to time.Time, statuses []model.ReservationStatus) ([]model.Reservation, error)
	// StartingBetween returns reservations in the given status whose
	// start time falls inside [from, to), sorted by start time.
	StartingBetween(ctx context.Context, from, to time.Time, status model.ReservationStatus) ([]model.Reservation, error)

	// BusyIntervalsForCharger and BusyIntervalsForVehicle feed the gap
	// search with pending bookings clipped to [from, to).
	BusyIntervalsForCharger(ctx context.Context, chargerID string, from, to time.Time) ([]model.BusyInterval, error)
	BusyIntervalsForVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]model.BusyInterval, error)
}
