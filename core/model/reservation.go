package model

import (
	"fmt"
	"time"
)

// ReservationStatus is the lifecycle state of a booking.
type ReservationStatus string

const (
	ReservationUpcoming  ReservationStatus = "upcoming"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation books a charger for a vehicle over a time range.
type Reservation struct {
	ID        string            `json:"id"`
	ChargerID string            `json:"charger_id"`
	VehicleID string            `json:"vehicle_id"`
	UserID    string            `json:"user_id"`
	OwnerID   string            `json:"owner_id,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Status    ReservationStatus `json:"status"`

	// PreNotified and StartNotified keep the reminder scheduler
	// exactly-once per reminder category.
	PreNotified   bool `json:"pre_notified"`
	StartNotified bool `json:"start_notified"`
}

// Validate checks the reservation time range.
func (r Reservation) Validate() error {
	if r.ChargerID == "" || r.VehicleID == "" {
		return fmt.Errorf("charger and vehicle ids must not be empty")
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("end time must be after start time")
	}
	return nil
}

// Pending reports whether the reservation may still be executed.
func (r Reservation) Pending() bool {
	return r.Status == ReservationUpcoming || r.Status == ReservationActive
}

// IntervalSourceKind tags where a busy interval came from.
type IntervalSourceKind string

const (
	SourceReservation IntervalSourceKind = "reservation"
	SourceSession     IntervalSourceKind = "session"
)

// BusyInterval is a time range during which a resource is unavailable.
type BusyInterval struct {
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	SourceKind IntervalSourceKind `json:"source_kind,omitempty"`
	SourceID   string             `json:"source_id,omitempty"`
	Status     string             `json:"status,omitempty"`
}

// Duration returns the interval length; zero-length or inverted intervals
// report a non-positive duration and are ignored by the scheduler.
func (b BusyInterval) Duration() time.Duration { return b.End.Sub(b.Start) }
