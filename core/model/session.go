package model

import "time"

// SessionStatus is the state of a charging session's dual-confirmation
// lifecycle.
type SessionStatus string

const (
	SessionWaitingConfirmations SessionStatus = "waiting_confirmations"
	SessionAdminConfirmed       SessionStatus = "admin_confirmed"
	SessionUserConfirmed        SessionStatus = "user_confirmed"
	SessionReadyToStart         SessionStatus = "ready_to_start"
	SessionCharging             SessionStatus = "charging"
	SessionCompleted            SessionStatus = "completed"
	SessionCancelled            SessionStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// ConfirmRole identifies which party acknowledges a session.
type ConfirmRole string

const (
	RoleAdmin ConfirmRole = "admin"
	RoleUser  ConfirmRole = "user"
)

// TimeoutWarningKind enumerates the confirmation-timeout escalation steps.
type TimeoutWarningKind string

const (
	Warning5Min     TimeoutWarningKind = "warning_5min"
	Warning10Min    TimeoutWarningKind = "warning_10min"
	AutoCancel15Min TimeoutWarningKind = "auto_cancel_15min"
)

// TimeoutWarning records one escalation issued by the session watchdog.
type TimeoutWarning struct {
	Timestamp time.Time          `json:"timestamp"`
	Kind      TimeoutWarningKind `json:"kind"`
}

// EnergySample is one point of the simulated real-time energy feed.
type EnergySample struct {
	Timestamp time.Time `json:"timestamp"`
	PowerKW   float64   `json:"power_kw"`
	EnergyKWh float64   `json:"energy_kwh"`
}

// CostBreakdown splits the final price of a completed session.
type CostBreakdown struct {
	EnergyCost  float64 `json:"energy_cost"`
	ParkingCost float64 `json:"parking_cost"`
	TotalCost   float64 `json:"total_cost"`
}

// ChargingSession tracks one reservation's execution from the initial
// handshake to completion or cancellation. At most one non-terminal
// session exists per reservation and per charger.
type ChargingSession struct {
	ID            string `json:"id"`
	ReservationID string `json:"reservation_id"`
	ChargerID     string `json:"charger_id"`
	VehicleID     string `json:"vehicle_id"`
	// UserID is the paying party, OwnerID the charger owner.
	UserID  string `json:"user_id"`
	OwnerID string `json:"owner_id"`

	Status SessionStatus `json:"status"`

	AdminConfirmedAt *time.Time `json:"admin_confirmed_at,omitempty"`
	UserConfirmedAt  *time.Time `json:"user_confirmed_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`

	EnergyDeliveredKWh float64        `json:"energy_delivered_kwh"`
	CurrentPowerKW     float64        `json:"current_power_kw"`
	Cost               CostBreakdown  `json:"cost"`
	Samples            []EnergySample `json:"samples,omitempty"`

	CancelledBy        string `json:"cancelled_by,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`

	TimeoutWarnings []TimeoutWarning `json:"timeout_warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Confirmed reports whether the given role has already acknowledged.
func (s ChargingSession) Confirmed(role ConfirmRole) bool {
	if role == RoleAdmin {
		return s.AdminConfirmedAt != nil
	}
	return s.UserConfirmedAt != nil
}

// HasWarning reports whether a warning of the given kind was already issued.
func (s ChargingSession) HasWarning(kind TimeoutWarningKind) bool {
	for _, w := range s.TimeoutWarnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// HistoryRecord is the permanent trace of a completed session.
type HistoryRecord struct {
	SessionID     string         `json:"session_id"`
	ReservationID string         `json:"reservation_id"`
	ChargerID     string         `json:"charger_id"`
	VehicleID     string         `json:"vehicle_id"`
	UserID        string         `json:"user_id"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at"`
	EnergyKWh     float64        `json:"energy_kwh"`
	Cost          CostBreakdown  `json:"cost"`
	Samples       []EnergySample `json:"samples,omitempty"`
}
