// Package watchdog escalates charging sessions stuck in the confirmation
// phase: warnings after 5 and 10 minutes, automatic cancellation after
// 15. It runs on the same periodic mechanism as the reminder scheduler.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/jmercadier/chargeshare/core/events"
	"github.com/jmercadier/chargeshare/core/logger"
	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/notify"
	"github.com/jmercadier/chargeshare/core/session"
	"github.com/jmercadier/chargeshare/internal/eventbus"
)

// Config defines the scan period and escalation thresholds.
type Config struct {
	TickSeconds       int `json:"tick_seconds" yaml:"tick_seconds"`
	FirstWarnMinutes  int `json:"first_warn_minutes" yaml:"first_warn_minutes"`
	SecondWarnMinutes int `json:"second_warn_minutes" yaml:"second_warn_minutes"`
	AutoCancelMinutes int `json:"auto_cancel_minutes" yaml:"auto_cancel_minutes"`
}

// SetDefaults fills unset fields with the standard thresholds.
func (c *Config) SetDefaults() {
	if c.TickSeconds == 0 {
		c.TickSeconds = 60
	}
	if c.FirstWarnMinutes == 0 {
		c.FirstWarnMinutes = 5
	}
	if c.SecondWarnMinutes == 0 {
		c.SecondWarnMinutes = 10
	}
	if c.AutoCancelMinutes == 0 {
		c.AutoCancelMinutes = 15
	}
}

// Validate checks that thresholds escalate.
func (c Config) Validate() error {
	if c.FirstWarnMinutes >= c.SecondWarnMinutes || c.SecondWarnMinutes >= c.AutoCancelMinutes {
		return fmt.Errorf("watchdog thresholds must escalate: first < second < cancel")
	}
	return nil
}

// Canceller is the subset of the session machine the watchdog drives.
type Canceller interface {
	Cancel(ctx context.Context, sessionID, cancelledBy, reason string) (model.ChargingSession, error)
}

// Watchdog periodically escalates unconfirmed sessions.
type Watchdog struct {
	cfg      Config
	sessions session.Store
	machine  Canceller
	notifier notify.Notifier
	bus      *eventbus.Bus[events.Event]
	log      logger.Logger
	now      func() time.Time
}

// New builds a Watchdog. The bus may be nil.
func New(cfg Config, sessions session.Store, machine Canceller, notifier notify.Notifier, bus *eventbus.Bus[events.Event], log logger.Logger) *Watchdog {
	cfg.SetDefaults()
	return &Watchdog{cfg: cfg, sessions: sessions, machine: machine, notifier: notifier, bus: bus, log: log, now: time.Now}
}

// SetClock overrides the time source, used by tests.
func (w *Watchdog) SetClock(now func() time.Time) { w.now = now }

// Run ticks immediately once, then on the fixed period until the context
// is cancelled. A failing tick never stops the loop.
func (w *Watchdog) Run(ctx context.Context) {
	w.Tick(ctx)
	ticker := time.NewTicker(time.Duration(w.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick performs one escalation scan.
func (w *Watchdog) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("watchdog tick panicked: %v", r)
		}
	}()
	sessions, err := w.sessions.ListNonTerminal(ctx)
	if err != nil {
		w.log.Errorf("list sessions: %v", err)
		return
	}
	now := w.now()
	for _, sess := range sessions {
		switch sess.Status {
		case model.SessionWaitingConfirmations, model.SessionAdminConfirmed, model.SessionUserConfirmed:
		default:
			continue
		}
		age := now.Sub(sess.CreatedAt)
		switch {
		case age >= time.Duration(w.cfg.AutoCancelMinutes)*time.Minute:
			w.autoCancel(ctx, sess, now)
		case age >= time.Duration(w.cfg.SecondWarnMinutes)*time.Minute:
			w.warn(ctx, sess, model.Warning10Min, now)
		case age >= time.Duration(w.cfg.FirstWarnMinutes)*time.Minute:
			w.warn(ctx, sess, model.Warning5Min, now)
		}
	}
}

func (w *Watchdog) warn(ctx context.Context, sess model.ChargingSession, kind model.TimeoutWarningKind, now time.Time) {
	if sess.HasWarning(kind) {
		return
	}
	if err := w.sessions.AppendWarning(ctx, sess.ID, model.TimeoutWarning{Timestamp: now, Kind: kind}); err != nil {
		w.log.Errorf("append warning for session %s: %v", sess.ID, err)
		return
	}
	payload := map[string]any{"session_id": sess.ID, "warning": string(kind)}
	if err := w.notifier.Notify(ctx, sess.UserID, notify.KindTimeoutWarning, payload); err != nil {
		w.log.Warnf("warn user %s: %v", sess.UserID, err)
	}
	if sess.OwnerID != "" {
		if err := w.notifier.Notify(ctx, sess.OwnerID, notify.KindTimeoutWarning, payload); err != nil {
			w.log.Warnf("warn owner %s: %v", sess.OwnerID, err)
		}
	}
	w.publish(sess.ID, kind, now)
}

func (w *Watchdog) autoCancel(ctx context.Context, sess model.ChargingSession, now time.Time) {
	if err := w.sessions.AppendWarning(ctx, sess.ID, model.TimeoutWarning{Timestamp: now, Kind: model.AutoCancel15Min}); err != nil {
		w.log.Errorf("append auto-cancel warning for session %s: %v", sess.ID, err)
	}
	if _, err := w.machine.Cancel(ctx, sess.ID, "system", "confirmation timeout"); err != nil {
		w.log.Errorf("auto-cancel session %s: %v", sess.ID, err)
		return
	}
	w.publish(sess.ID, model.AutoCancel15Min, now)
}

func (w *Watchdog) publish(sessionID string, kind model.TimeoutWarningKind, at time.Time) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.WatchdogEvent{SessionID: sessionID, Kind: kind, At: at})
}
