package charger

import (
	"context"
	"testing"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/model"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := model.Charger{ID: "chg1", Name: "Home box", PowerOutputKW: 11, Active: true}
	if err := s.Put(ctx, c); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetCharger(ctx, "chg1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PowerOutputKW != 11 {
		t.Fatalf("unexpected charger: %+v", got)
	}
	if _, err := s.GetCharger(ctx, "missing"); !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreListActive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, c := range []model.Charger{
		{ID: "b", Name: "Street box", Active: true},
		{ID: "a", Name: "Garage box", Active: true},
		{ID: "c", Name: "Broken box", Active: false},
	} {
		if err := s.Put(ctx, c); err != nil {
			t.Fatalf("put %s: %v", c.ID, err)
		}
	}
	out, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("unexpected list: %+v", out)
	}
}
