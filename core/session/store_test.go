package session

import (
	"context"
	"testing"
	"time"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

func testSession(id, reservationID, chargerID string) model.ChargingSession {
	return model.ChargingSession{
		ID:            id,
		ReservationID: reservationID,
		ChargerID:     chargerID,
		UserID:        "u1",
		Status:        model.SessionWaitingConfirmations,
	}
}

func TestCreateEnforcesSingleActivePerCharger(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create(context.Background(), testSession("s1", "r1", "ch1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(context.Background(), testSession("s2", "r2", "ch1")); !errs.IsConflict(err) {
		t.Fatalf("expected charger conflict, got %v", err)
	}
	if _, err := s.Create(context.Background(), testSession("s3", "r1", "ch2")); !errs.IsConflict(err) {
		t.Fatalf("expected reservation conflict, got %v", err)
	}
}

func TestCreateAllowsAfterTerminal(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create(context.Background(), testSession("s1", "r1", "ch1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CompareAndSwapStatus(context.Background(), "s1", model.SessionWaitingConfirmations, func(c *model.ChargingSession) {
		c.Status = model.SessionCancelled
	}); err != nil {
		t.Fatalf("cas: %v", err)
	}
	if _, err := s.Create(context.Background(), testSession("s2", "r2", "ch1")); err != nil {
		t.Fatalf("terminal session should not block charger: %v", err)
	}
}

func TestCompareAndSwapRejectsStaleWriter(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create(context.Background(), testSession("s1", "r1", "ch1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	// First writer wins.
	if _, err := s.CompareAndSwapStatus(context.Background(), "s1", model.SessionWaitingConfirmations, func(c *model.ChargingSession) {
		c.Status = model.SessionAdminConfirmed
	}); err != nil {
		t.Fatalf("first cas: %v", err)
	}
	// Second writer still expects the old status and must be rejected.
	_, err := s.CompareAndSwapStatus(context.Background(), "s1", model.SessionWaitingConfirmations, func(c *model.ChargingSession) {
		c.Status = model.SessionAdminConfirmed
	})
	if !errs.IsConflict(err) {
		t.Fatalf("expected conflict for stale writer, got %v", err)
	}
}

func TestAppendWarningIdempotentPerKind(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create(context.Background(), testSession("s1", "r1", "ch1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	w := model.TimeoutWarning{Timestamp: time.Now(), Kind: model.Warning5Min}
	if err := s.AppendWarning(context.Background(), "s1", w); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendWarning(context.Background(), "s1", w); err != nil {
		t.Fatalf("second append: %v", err)
	}
	sess, _ := s.Get(context.Background(), "s1")
	if len(sess.TimeoutWarnings) != 1 {
		t.Fatalf("warning duplicated: %#v", sess.TimeoutWarnings)
	}
}

func TestListNonTerminal(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create(context.Background(), testSession("s1", "r1", "ch1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(context.Background(), testSession("s2", "r2", "ch2")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CompareAndSwapStatus(context.Background(), "s2", model.SessionWaitingConfirmations, func(c *model.ChargingSession) {
		c.Status = model.SessionCompleted
	}); err != nil {
		t.Fatalf("cas: %v", err)
	}
	out, err := s.ListNonTerminal(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "s1" {
		t.Fatalf("unexpected list %#v", out)
	}
}
