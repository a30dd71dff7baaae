package schedule

import (
	"sort"
	"time"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

// Gap is a free time range within the search horizon.
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the gap length.
func (g Gap) Duration() time.Duration { return g.End.Sub(g.Start) }

// ErrNoGap is returned when no qualifying gap exists before the horizon.
var ErrNoGap = errs.NotFoundf("no availability gap before horizon")

// Merge clips the busy intervals to [now, horizonEnd), drops intervals that
// collapse to nothing and merges overlapping or adjacent ones into a
// minimal ordered set of disjoint busy blocks. Source attribution is lost
// on merge.
func Merge(busy []model.BusyInterval, now, horizonEnd time.Time) []model.BusyInterval {
	clipped := make([]model.BusyInterval, 0, len(busy))
	for _, b := range busy {
		start, end := b.Start, b.End
		if start.Before(now) {
			start = now
		}
		if end.After(horizonEnd) {
			end = horizonEnd
		}
		if !end.After(start) {
			continue
		}
		clipped = append(clipped, model.BusyInterval{Start: start, End: end})
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	merged := clipped[:0]
	for _, iv := range clipped {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// FindEarliestGap returns the earliest free range of the required duration
// within [now, horizonEnd). It returns ErrNoGap when no such range exists.
func FindEarliestGap(busy []model.BusyInterval, now, horizonEnd time.Time, required time.Duration) (Gap, error) {
	if required <= 0 {
		return Gap{}, errs.Validationf("required duration must be positive")
	}
	if !horizonEnd.After(now) {
		return Gap{}, errs.Validationf("horizon must end after now")
	}

	cursor := now
	for _, block := range Merge(busy, now, horizonEnd) {
		if block.Start.Sub(cursor) >= required {
			return Gap{Start: cursor, End: cursor.Add(required)}, nil
		}
		if block.End.After(cursor) {
			cursor = block.End
		}
		if !cursor.Before(horizonEnd) {
			return Gap{}, ErrNoGap
		}
	}
	if horizonEnd.Sub(cursor) >= required {
		return Gap{Start: cursor, End: cursor.Add(required)}, nil
	}
	return Gap{}, ErrNoGap
}

// LargestGap returns the longest free range within [now, horizonEnd).
// It returns ErrNoGap when the horizon is fully busy.
func LargestGap(busy []model.BusyInterval, now, horizonEnd time.Time) (Gap, error) {
	if !horizonEnd.After(now) {
		return Gap{}, errs.Validationf("horizon must end after now")
	}

	var best Gap
	cursor := now
	for _, block := range Merge(busy, now, horizonEnd) {
		if free := block.Start.Sub(cursor); free > best.Duration() {
			best = Gap{Start: cursor, End: block.Start}
		}
		if block.End.After(cursor) {
			cursor = block.End
		}
	}
	if free := horizonEnd.Sub(cursor); free > best.Duration() {
		best = Gap{Start: cursor, End: horizonEnd}
	}
	if best.Duration() <= 0 {
		return Gap{}, ErrNoGap
	}
	return best, nil
}

// RangeFree reports whether [start, end) overlaps no busy interval. A range
// is busy iff some interval satisfies start < end' && end > start'.
func RangeFree(busy []model.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Start.Before(end) && b.End.After(start) {
			return false
		}
	}
	return true
}
