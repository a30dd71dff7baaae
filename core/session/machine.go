package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/events"
	"github.com/jmercadier/chargeshare/core/history"
	"github.com/jmercadier/chargeshare/core/logger"
	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/notify"
	"github.com/jmercadier/chargeshare/core/reservation"
	"github.com/jmercadier/chargeshare/core/simulation"
	"github.com/jmercadier/chargeshare/internal/eventbus"
)

// ChargerSource resolves charger records for tariff lookups.
type ChargerSource interface {
	GetCharger(ctx context.Context, id string) (model.Charger, error)
}

// Machine orchestrates charging sessions. It is the sole mutator of
// session status; the simulation registry is the sole mutator of engine
// lifecycle.
type Machine struct {
	sessions     Store
	reservations reservation.Store
	chargers     ChargerSource
	sim          *simulation.Registry
	notifier     notify.Notifier
	history      history.Writer
	bus          *eventbus.Bus[events.Event]
	log          logger.Logger
	now          func() time.Time
}

// NewMachine wires a Machine. The bus may be nil.
func NewMachine(sessions Store, reservations reservation.Store, chargers ChargerSource, sim *simulation.Registry, notifier notify.Notifier, hist history.Writer, bus *eventbus.Bus[events.Event], log logger.Logger) *Machine {
	return &Machine{
		sessions:     sessions,
		reservations: reservations,
		chargers:     chargers,
		sim:          sim,
		notifier:     notifier,
		history:      hist,
		bus:          bus,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the time source, used by tests.
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

// Initiate creates the session for a reservation and notifies both
// parties. If a non-terminal session already exists for the reservation it
// is returned as-is.
func (m *Machine) Initiate(ctx context.Context, reservationID string) (model.ChargingSession, error) {
	if existing, ok, err := m.sessions.FindActiveByReservation(ctx, reservationID); err != nil {
		return model.ChargingSession{}, errs.Transient("find session", err)
	} else if ok {
		return existing, nil
	}

	res, err := m.reservations.Get(ctx, reservationID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	if !res.Pending() {
		return model.ChargingSession{}, errs.Conflictf("reservation %s is %s, not executable", res.ID, res.Status)
	}

	sess := model.ChargingSession{
		ID:            uuid.NewString(),
		ReservationID: res.ID,
		ChargerID:     res.ChargerID,
		VehicleID:     res.VehicleID,
		UserID:        res.UserID,
		OwnerID:       res.OwnerID,
		Status:        model.SessionWaitingConfirmations,
		CreatedAt:     m.now(),
	}
	sess, err = m.sessions.Create(ctx, sess)
	if err != nil {
		// A concurrent Initiate for the same reservation may have won the
		// create; return its session to keep Initiate idempotent.
		if errs.IsConflict(err) {
			if existing, ok, ferr := m.sessions.FindActiveByReservation(ctx, reservationID); ferr == nil && ok {
				return existing, nil
			}
		}
		return model.ChargingSession{}, err
	}
	m.publish(sess, "", model.SessionWaitingConfirmations)
	m.notifyBoth(ctx, sess, notify.KindSessionInitiated, map[string]any{
		"reservation_id": res.ID,
		"charger_id":     res.ChargerID,
	})
	return sess, nil
}

// Confirm records one party's acknowledgment. When both parties have
// confirmed the session becomes ready to start.
func (m *Machine) Confirm(ctx context.Context, sessionID string, role model.ConfirmRole) (model.ChargingSession, error) {
	if role != model.RoleAdmin && role != model.RoleUser {
		return model.ChargingSession{}, errs.Validationf("unknown confirmation role %q", role)
	}
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	switch sess.Status {
	case model.SessionWaitingConfirmations, model.SessionAdminConfirmed, model.SessionUserConfirmed:
	default:
		return model.ChargingSession{}, errs.Conflictf("session %s is past the confirmation phase (%s)", sessionID, sess.Status)
	}
	if sess.Confirmed(role) {
		return model.ChargingSession{}, errs.Conflictf("role %s already confirmed session %s", role, sessionID)
	}

	next := model.SessionAdminConfirmed
	other := model.RoleUser
	if role == model.RoleUser {
		next = model.SessionUserConfirmed
		other = model.RoleAdmin
	}
	bothConfirmed := sess.Confirmed(other)
	if bothConfirmed {
		next = model.SessionReadyToStart
	}

	ts := m.now()
	updated, err := m.sessions.CompareAndSwapStatus(ctx, sessionID, sess.Status, func(s *model.ChargingSession) {
		if role == model.RoleAdmin {
			s.AdminConfirmedAt = &ts
		} else {
			s.UserConfirmedAt = &ts
		}
		s.Status = next
	})
	if err != nil {
		return model.ChargingSession{}, err
	}
	m.publish(updated, sess.Status, next)

	kind := notify.KindSessionConfirmed
	payload := map[string]any{"role": string(role)}
	if bothConfirmed {
		kind = notify.KindReadyToStart
		payload["message"] = "both parties confirmed, charging may begin"
	}
	m.notifyBoth(ctx, updated, kind, payload)
	return updated, nil
}

// Start begins charging: it acquires a simulation engine for the charger
// and transitions to charging. The session is left untouched when engine
// acquisition fails.
func (m *Machine) Start(ctx context.Context, sessionID string) (model.ChargingSession, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	if sess.Status != model.SessionReadyToStart {
		return model.ChargingSession{}, errs.Conflictf("session %s is %s, expected %s", sessionID, sess.Status, model.SessionReadyToStart)
	}

	charger, err := m.chargers.GetCharger(ctx, sess.ChargerID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	if _, err := m.sim.Acquire(charger.ID, sess.VehicleID, charger.PowerOutputKW); err != nil {
		return model.ChargingSession{}, err
	}

	ts := m.now()
	updated, err := m.sessions.CompareAndSwapStatus(ctx, sessionID, model.SessionReadyToStart, func(s *model.ChargingSession) {
		s.Status = model.SessionCharging
		s.StartedAt = &ts
		s.CurrentPowerKW = charger.PowerOutputKW
	})
	if err != nil {
		// Roll the engine back so the charger is not left occupied.
		m.sim.ForceRelease(charger.ID)
		return model.ChargingSession{}, err
	}
	m.publish(updated, model.SessionReadyToStart, model.SessionCharging)
	m.notifyBoth(ctx, updated, notify.KindChargingStarted, map[string]any{
		"charger_id": charger.ID,
		"power_kw":   charger.PowerOutputKW,
	})

	if err := m.reservations.UpdateStatus(ctx, sess.ReservationID, model.ReservationActive); err != nil {
		m.log.Warnf("mark reservation %s active: %v", sess.ReservationID, err)
	}
	return updated, nil
}

// Stop ends charging, settles the cost and persists the history record.
func (m *Machine) Stop(ctx context.Context, sessionID, stoppedBy string) (model.ChargingSession, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	if sess.Status != model.SessionCharging {
		return model.ChargingSession{}, errs.Conflictf("session %s is %s, expected %s", sessionID, sess.Status, model.SessionCharging)
	}

	charger, err := m.chargers.GetCharger(ctx, sess.ChargerID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	snap, err := m.sim.Release(sess.ChargerID)
	if err != nil {
		// The engine is gone (e.g. lost on restart); settle with what the
		// session already carries.
		m.log.Warnf("release simulation for charger %s: %v", sess.ChargerID, err)
	}

	ts := m.now()
	started := sess.CreatedAt
	if sess.StartedAt != nil {
		started = *sess.StartedAt
	}
	duration := ts.Sub(started)
	cost := model.CostBreakdown{
		EnergyCost:  snap.EnergyDeliveredKWh * charger.EnergyTariff,
		ParkingCost: duration.Hours() * charger.ParkingTariff,
	}
	cost.TotalCost = cost.EnergyCost + cost.ParkingCost

	updated, err := m.sessions.CompareAndSwapStatus(ctx, sessionID, model.SessionCharging, func(s *model.ChargingSession) {
		s.Status = model.SessionCompleted
		s.EndedAt = &ts
		s.EnergyDeliveredKWh = snap.EnergyDeliveredKWh
		s.CurrentPowerKW = 0
		s.Cost = cost
		s.Samples = snap.Samples
	})
	if err != nil {
		return model.ChargingSession{}, err
	}
	m.publish(updated, model.SessionCharging, model.SessionCompleted)

	if err := m.history.Append(ctx, model.HistoryRecord{
		SessionID:     updated.ID,
		ReservationID: updated.ReservationID,
		ChargerID:     updated.ChargerID,
		VehicleID:     updated.VehicleID,
		UserID:        updated.UserID,
		StartedAt:     started,
		EndedAt:       ts,
		EnergyKWh:     snap.EnergyDeliveredKWh,
		Cost:          cost,
		Samples:       snap.Samples,
	}); err != nil {
		m.log.Errorf("append history for session %s: %v", updated.ID, err)
	}
	if err := m.reservations.UpdateStatus(ctx, updated.ReservationID, model.ReservationCompleted); err != nil {
		m.log.Warnf("mark reservation %s completed: %v", updated.ReservationID, err)
	}

	m.notifyBoth(ctx, updated, notify.KindChargingStopped, map[string]any{
		"stopped_by": stoppedBy,
		"summary": fmt.Sprintf("charged %.2f kWh in %s for %.2f (energy %.2f + parking %.2f)",
			snap.EnergyDeliveredKWh, formatDuration(duration), cost.TotalCost, cost.EnergyCost, cost.ParkingCost),
	})
	return updated, nil
}

// Cancel aborts a non-terminal session. A running simulation is stopped
// best-effort; simulator errors never block the cancellation.
func (m *Machine) Cancel(ctx context.Context, sessionID, cancelledBy, reason string) (model.ChargingSession, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.ChargingSession{}, err
	}
	if sess.Status.Terminal() {
		return model.ChargingSession{}, errs.Conflictf("session %s is already %s", sessionID, sess.Status)
	}
	if sess.Status == model.SessionCharging {
		m.sim.ForceRelease(sess.ChargerID)
	}

	ts := m.now()
	updated, err := m.sessions.CompareAndSwapStatus(ctx, sessionID, sess.Status, func(s *model.ChargingSession) {
		s.Status = model.SessionCancelled
		s.EndedAt = &ts
		s.CancelledBy = cancelledBy
		s.CancellationReason = reason
		s.CurrentPowerKW = 0
	})
	if err != nil {
		return model.ChargingSession{}, err
	}
	m.publish(updated, sess.Status, model.SessionCancelled)

	if err := m.reservations.UpdateStatus(ctx, updated.ReservationID, model.ReservationCancelled); err != nil {
		m.log.Warnf("mark reservation %s cancelled: %v", updated.ReservationID, err)
	}
	m.notifyBoth(ctx, updated, notify.KindSessionCancelled, map[string]any{
		"cancelled_by": cancelledBy,
		"reason":       reason,
	})
	return updated, nil
}

// notifyBoth fans a notification out to the paying user and the charger
// owner. Delivery failures are logged, never propagated.
func (m *Machine) notifyBoth(ctx context.Context, sess model.ChargingSession, kind notify.Kind, payload map[string]any) {
	base := map[string]any{"session_id": sess.ID}
	for k, v := range payload {
		base[k] = v
	}
	if err := m.notifier.Notify(ctx, sess.UserID, kind, base); err != nil {
		m.log.Warnf("notify user %s (%s): %v", sess.UserID, kind, err)
	}
	if sess.OwnerID == "" {
		return
	}
	if err := m.notifier.Notify(ctx, sess.OwnerID, kind, base); err != nil {
		m.log.Warnf("notify owner %s (%s): %v", sess.OwnerID, kind, err)
	}
}

func (m *Machine) publish(sess model.ChargingSession, from, to model.SessionStatus) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.SessionEvent{
		SessionID:     sess.ID,
		ReservationID: sess.ReservationID,
		ChargerID:     sess.ChargerID,
		From:          from,
		To:            to,
		EnergyKWh:     sess.EnergyDeliveredKWh,
		At:            m.now(),
	})
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	min := (d % time.Hour) / time.Minute
	if h == 0 {
		return fmt.Sprintf("%dmin", min)
	}
	return fmt.Sprintf("%dh%02dmin", h, min)
}
