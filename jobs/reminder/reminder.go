// Package reminder implements the reservation reminder scheduler: a
// periodic scan over upcoming reservations that fires "starting soon" and
// "starting now" notifications exactly once per reservation.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/jmercadier/chargeshare/core/events"
	"github.com/jmercadier/chargeshare/core/logger"
	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/notify"
	"github.com/jmercadier/chargeshare/core/reservation"
	"github.com/jmercadier/chargeshare/internal/eventbus"
)

// Config defines the scan period and the look-ahead window.
type Config struct {
	// TickSeconds is the scan period.
	TickSeconds int `json:"tick_seconds" yaml:"tick_seconds"`
	// PreWindowMinutes is the "starting soon" look-ahead.
	PreWindowMinutes int `json:"pre_window_minutes" yaml:"pre_window_minutes"`
}

// SetDefaults fills unset fields with the standard windows.
func (c *Config) SetDefaults() {
	if c.TickSeconds == 0 {
		c.TickSeconds = 60
	}
	if c.PreWindowMinutes == 0 {
		c.PreWindowMinutes = 10
	}
}

// Validate checks the configured windows.
func (c Config) Validate() error {
	if c.TickSeconds < 0 || c.PreWindowMinutes < 0 {
		return fmt.Errorf("reminder windows must not be negative")
	}
	return nil
}

// Scheduler periodically scans upcoming reservations and reminds both the
// holder and the charger owner.
type Scheduler struct {
	cfg      Config
	store    reservation.Store
	notifier notify.Notifier
	bus      *eventbus.Bus[events.Event]
	log      logger.Logger
	now      func() time.Time
}

// New builds a Scheduler. The bus may be nil.
func New(cfg Config, store reservation.Store, notifier notify.Notifier, bus *eventbus.Bus[events.Event], log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{cfg: cfg, store: store, notifier: notifier, bus: bus, log: log, now: time.Now}
}

// SetClock overrides the time source, used by tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Run ticks immediately once, so a restart does not delay reminders, then
// on the fixed period until the context is cancelled. A failing tick is
// logged and never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.Tick(ctx)
	ticker := time.NewTicker(time.Duration(s.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scan. It is exported so tests and the service can
// drive scans directly.
func (s *Scheduler) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("reminder tick panicked: %v", r)
		}
	}()
	now := s.now()
	s.remindStartingSoon(ctx, now)
	s.remindStartingNow(ctx, now)
}

func (s *Scheduler) remindStartingSoon(ctx context.Context, now time.Time) {
	window := time.Duration(s.cfg.PreWindowMinutes) * time.Minute
	upcoming, err := s.store.StartingBetween(ctx, now, now.Add(window), model.ReservationUpcoming)
	if err != nil {
		s.log.Errorf("scan starting-soon reservations: %v", err)
		return
	}
	for _, res := range upcoming {
		if res.PreNotified {
			continue
		}
		minutes := int(res.StartTime.Sub(now).Minutes())
		s.fanOut(ctx, res, notify.KindStartingSoon, map[string]any{
			"starts_in_minutes": minutes,
		})
		if err := s.store.MarkPreNotified(ctx, res.ID); err != nil {
			s.log.Errorf("mark reservation %s pre-notified: %v", res.ID, err)
			continue
		}
		s.publish(res, "starting_soon")
	}
}

func (s *Scheduler) remindStartingNow(ctx context.Context, now time.Time) {
	// The "now" window spans one tick on each side so every start time is
	// observed by at least one scan.
	tick := time.Duration(s.cfg.TickSeconds) * time.Second
	starting, err := s.store.StartingBetween(ctx, now.Add(-tick), now.Add(tick), model.ReservationUpcoming)
	if err != nil {
		s.log.Errorf("scan starting-now reservations: %v", err)
		return
	}
	for _, res := range starting {
		if res.StartNotified {
			continue
		}
		s.fanOut(ctx, res, notify.KindStartingNow, nil)
		if err := s.store.MarkStartNotified(ctx, res.ID); err != nil {
			s.log.Errorf("mark reservation %s start-notified: %v", res.ID, err)
			continue
		}
		s.publish(res, "starting_now")
	}
}

// fanOut reminds the reservation holder and, when one exists, the charger
// owner. Delivery failures are logged and swallowed.
func (s *Scheduler) fanOut(ctx context.Context, res model.Reservation, kind notify.Kind, payload map[string]any) {
	base := map[string]any{
		"reservation_id": res.ID,
		"charger_id":     res.ChargerID,
		"start_time":     res.StartTime.Format(time.RFC3339),
	}
	for k, v := range payload {
		base[k] = v
	}
	if err := s.notifier.Notify(ctx, res.UserID, kind, base); err != nil {
		s.log.Warnf("remind user %s: %v", res.UserID, err)
	}
	if res.OwnerID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, res.OwnerID, kind, base); err != nil {
		s.log.Warnf("remind owner %s: %v", res.OwnerID, err)
	}
}

func (s *Scheduler) publish(res model.Reservation, kind string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.ReminderEvent{ReservationID: res.ID, Kind: kind, At: s.now()})
}
