// Package charger keeps the shared-charger catalog the recommendation
// and session flows resolve tariffs and locations from.
package charger

import (
	"context"
	"sort"
	"sync"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

// Store is the charger catalog.
type Store interface {
	Put(ctx context.Context, c model.Charger) error
	GetCharger(ctx context.Context, id string) (model.Charger, error)
	// ListActive returns chargers available for new reservations.
	ListActive(ctx context.Context) ([]model.Charger, error)
}

// MemoryStore is the in-memory catalog implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	chargers map[string]model.Charger
}

// NewMemoryStore creates an empty catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chargers: make(map[string]model.Charger)}
}

// Put validates and upserts the charger.
func (s *MemoryStore) Put(_ context.Context, c model.Charger) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.chargers[c.ID] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetCharger(_ context.Context, id string) (model.Charger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chargers[id]
	if !ok {
		return model.Charger{}, errs.NotFoundf("charger %s not found", id)
	}
	return c, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]model.Charger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Charger, 0, len(s.chargers))
	for _, c := range s.chargers {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
