package history

import (
	"context"
	"testing"
	"time"

	"github.com/jmercadier/chargeshare/core/model"
)

func TestSQLiteWriter_PersistQuery(t *testing.T) {
	w, err := NewSQLiteWriter("file:test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rec := model.HistoryRecord{
		SessionID:     "sess1",
		ReservationID: "res1",
		ChargerID:     "chg1",
		VehicleID:     "veh1",
		UserID:        "user1",
		StartedAt:     start,
		EndedAt:       start.Add(90 * time.Minute),
		EnergyKWh:     8.2,
		Cost:          model.CostBreakdown{EnergyCost: 2.05, ParkingCost: 3, TotalCost: 5.05},
		Samples: []model.EnergySample{
			{Timestamp: start, PowerKW: 0, EnergyKWh: 0},
			{Timestamp: start.Add(time.Minute), PowerKW: 10.4, EnergyKWh: 0.17},
		},
	}
	if err := w.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, err := w.ListByUser(context.Background(), "user1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	got := out[0]
	if got.EnergyKWh != 8.2 || got.Cost.TotalCost != 5.05 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Samples) != 2 {
		t.Fatalf("samples not round-tripped: %d", len(got.Samples))
	}
	if !got.EndedAt.Equal(rec.EndedAt) {
		t.Fatalf("ended at mismatch: %v", got.EndedAt)
	}
}

func TestSQLiteWriter_AppendIdempotent(t *testing.T) {
	w, err := NewSQLiteWriter("file:test2.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()
	rec := model.HistoryRecord{SessionID: "sess1", UserID: "user1", EnergyKWh: 1}
	if err := w.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	rec.EnergyKWh = 2
	if err := w.Append(context.Background(), rec); err != nil {
		t.Fatalf("second append: %v", err)
	}
	out, err := w.ListByUser(context.Background(), "user1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].EnergyKWh != 2 {
		t.Fatalf("expected single updated record, got %+v", out)
	}
}

func TestSQLiteWriter_ListOrder(t *testing.T) {
	w, err := NewSQLiteWriter("file:test3.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := model.HistoryRecord{
			SessionID: id,
			UserID:    "user1",
			EndedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := w.Append(context.Background(), rec); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	out, err := w.ListByUser(context.Background(), "user1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 || out[0].SessionID != "c" {
		t.Fatalf("expected most recent first, got %+v", out)
	}
}
