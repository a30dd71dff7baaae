package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func busyAt(startMin, endMin int) model.BusyInterval {
	return model.BusyInterval{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestMergeDisjointSorted(t *testing.T) {
	busy := []model.BusyInterval{
		busyAt(30, 40),
		busyAt(10, 20),
		busyAt(15, 25),
		busyAt(25, 30),
		busyAt(50, 50), // zero duration, dropped
	}
	merged := Merge(busy, base, base.Add(2*time.Hour))
	if len(merged) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %#v", len(merged), merged)
	}
	if !merged[0].Start.Equal(base.Add(10 * time.Minute)) || !merged[0].End.Equal(base.Add(40*time.Minute)) {
		t.Fatalf("unexpected first block %#v", merged[0])
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Start.Before(merged[i-1].End) {
			t.Fatalf("blocks overlap: %#v", merged)
		}
	}
}

func TestMergeClipsToHorizon(t *testing.T) {
	busy := []model.BusyInterval{busyAt(-30, 10), busyAt(100, 200)}
	horizon := base.Add(2 * time.Hour)
	merged := Merge(busy, base, horizon)
	if len(merged) != 2 {
		t.Fatalf("expected 2 blocks, got %#v", merged)
	}
	if merged[0].Start.Before(base) {
		t.Fatalf("block starts before now: %#v", merged[0])
	}
	if merged[1].End.After(horizon) {
		t.Fatalf("block ends after horizon: %#v", merged[1])
	}
}

func TestFindEarliestGapBeforeFirstBlock(t *testing.T) {
	busy := []model.BusyInterval{busyAt(10, 20)}
	gap, err := FindEarliestGap(busy, base, base.Add(2*time.Hour), 5*time.Minute)
	if err != nil {
		t.Fatalf("gap error: %v", err)
	}
	if !gap.Start.Equal(base) || !gap.End.Equal(base.Add(5*time.Minute)) {
		t.Fatalf("expected [0,5] gap, got %#v", gap)
	}
}

func TestFindEarliestGapAfterBlock(t *testing.T) {
	busy := []model.BusyInterval{busyAt(0, 20)}
	gap, err := FindEarliestGap(busy, base, base.Add(2*time.Hour), 5*time.Minute)
	if err != nil {
		t.Fatalf("gap error: %v", err)
	}
	if !gap.Start.Equal(base.Add(20*time.Minute)) || !gap.End.Equal(base.Add(25*time.Minute)) {
		t.Fatalf("expected [20,25] gap, got %#v", gap)
	}
}

func TestFindEarliestGapEmptyBusySet(t *testing.T) {
	gap, err := FindEarliestGap(nil, base, base.Add(time.Hour), 30*time.Minute)
	if err != nil {
		t.Fatalf("gap error: %v", err)
	}
	if !gap.Start.Equal(base) {
		t.Fatalf("first gap should start at now, got %#v", gap)
	}
}

func TestFindEarliestGapNoGap(t *testing.T) {
	busy := []model.BusyInterval{busyAt(0, 110)}
	_, err := FindEarliestGap(busy, base, base.Add(2*time.Hour), 30*time.Minute)
	if !errors.Is(err, ErrNoGap) {
		t.Fatalf("expected ErrNoGap, got %v", err)
	}
}

func TestFindEarliestGapInvalidDuration(t *testing.T) {
	_, err := FindEarliestGap(nil, base, base.Add(time.Hour), 0)
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFindEarliestGapNeverOverlapsBusy(t *testing.T) {
	busy := []model.BusyInterval{
		busyAt(5, 15),
		busyAt(20, 30),
		busyAt(28, 45),
		busyAt(60, 70),
	}
	horizon := base.Add(90 * time.Minute)
	for _, req := range []time.Duration{time.Minute, 5 * time.Minute, 14 * time.Minute, 20 * time.Minute} {
		gap, err := FindEarliestGap(busy, base, horizon, req)
		if err != nil {
			t.Fatalf("req %v: %v", req, err)
		}
		if gap.Start.Before(base) || gap.End.After(horizon) {
			t.Fatalf("req %v: gap leaves horizon: %#v", req, gap)
		}
		if !RangeFree(busy, gap.Start, gap.End) {
			t.Fatalf("req %v: gap overlaps busy interval: %#v", req, gap)
		}
	}
}

func TestLargestGap(t *testing.T) {
	busy := []model.BusyInterval{busyAt(10, 20), busyAt(30, 60)}
	gap, err := LargestGap(busy, base, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("largest gap: %v", err)
	}
	// Free ranges are [0,10), [20,30) and [60,90); the tail wins.
	if !gap.Start.Equal(base.Add(60*time.Minute)) || gap.Duration() != 30*time.Minute {
		t.Fatalf("unexpected largest gap %#v", gap)
	}
}

func TestLargestGapFullyBusy(t *testing.T) {
	busy := []model.BusyInterval{busyAt(0, 60)}
	if _, err := LargestGap(busy, base, base.Add(time.Hour)); !errors.Is(err, ErrNoGap) {
		t.Fatalf("expected ErrNoGap, got %v", err)
	}
}

func TestRangeFree(t *testing.T) {
	busy := []model.BusyInterval{busyAt(10, 20)}
	if !RangeFree(busy, base, base.Add(10*time.Minute)) {
		t.Fatalf("adjacent range should be free")
	}
	if RangeFree(busy, base.Add(15*time.Minute), base.Add(25*time.Minute)) {
		t.Fatalf("overlapping range should be busy")
	}
	if !RangeFree(busy, base.Add(20*time.Minute), base.Add(30*time.Minute)) {
		t.Fatalf("range starting at block end should be free")
	}
}
