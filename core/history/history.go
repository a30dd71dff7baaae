// Package history defines the permanent record store for completed
// charging sessions.
package history

import (
	"context"
	"sort"
	"sync"

	"github.com/jmercadier/chargeshare/core/model"
)

// Writer appends completed sessions as permanent historical records.
type Writer interface {
	Append(ctx context.Context, rec model.HistoryRecord) error
	// ListByUser returns the user's records, most recent first.
	ListByUser(ctx context.Context, userID string) ([]model.HistoryRecord, error)
}

// MemoryWriter keeps records in memory, used by tests and as a fallback
// when no database path is configured.
type MemoryWriter struct {
	mu   sync.RWMutex
	recs []model.HistoryRecord
}

// NewMemoryWriter creates an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter { return &MemoryWriter{} }

func (w *MemoryWriter) Append(_ context.Context, rec model.HistoryRecord) error {
	w.mu.Lock()
	w.recs = append(w.recs, rec)
	w.mu.Unlock()
	return nil
}

func (w *MemoryWriter) ListByUser(_ context.Context, userID string) ([]model.HistoryRecord, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []model.HistoryRecord
	for _, r := range w.recs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	return out, nil
}

// Len reports the number of stored records.
func (w *MemoryWriter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.recs)
}
