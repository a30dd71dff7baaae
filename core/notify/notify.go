// Package notify defines the notification sink the orchestration engine
// fans side effects out to. Delivery is fire-and-forget: a failing sink
// never aborts the state transition that triggered it.
package notify

import (
	"context"

	"github.com/jmercadier/chargeshare/core/logger"
)

// Kind identifies the notification category.
type Kind string

const (
	KindSessionInitiated Kind = "session_initiated"
	KindSessionConfirmed Kind = "session_confirmed"
	KindReadyToStart     Kind = "ready_to_start"
	KindChargingStarted  Kind = "charging_started"
	KindChargingStopped  Kind = "charging_stopped"
	KindSessionCancelled Kind = "session_cancelled"
	KindTimeoutWarning   Kind = "timeout_warning"
	KindStartingSoon     Kind = "reservation_starting_soon"
	KindStartingNow      Kind = "reservation_starting_now"
)

// Notifier delivers one notification to one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error
}

// LogNotifier writes notifications to the log. It is the default sink and
// the fallback when no push transport is configured.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) Notify(_ context.Context, userID string, kind Kind, payload map[string]any) error {
	fields := map[string]any{"user_id": userID, "kind": string(kind)}
	for k, v := range payload {
		fields[k] = v
	}
	n.Log.Debugw("notification", fields)
	return nil
}

// Multi fans a notification out to several sinks. Errors are collected by
// the caller-provided logger inside each sink; Multi returns the first
// error only for observability and is still safe to ignore.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, userID, kind, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
