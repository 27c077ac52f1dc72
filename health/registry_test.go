package health

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/jonwraymond/memocache/cache"
)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.NewStore(10, 0, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestRegistryChecker_Healthy(t *testing.T) {
	reg := cache.NewTagRegistry()
	s1, s2 := newTestStore(t), newTestStore(t)
	reg.Register("users", s1)
	reg.Register("posts", s1)
	reg.Register("posts", s2)

	c := NewRegistryChecker(reg, RegistryCheckerConfig{MaxStores: 5})
	if c.Name() != "memo-registry" {
		t.Errorf("Name() = %q, want memo-registry", c.Name())
	}

	r := c.Check(context.Background())
	if r.Status != StatusHealthy {
		t.Fatalf("Status = %v, want healthy (%s)", r.Status, r.Message)
	}
	if r.Details["stores"] != 2 || r.Details["tags"] != 2 || r.Details["max_stores"] != 5 {
		t.Errorf("Details = %v", r.Details)
	}
	runtime.KeepAlive(s1)
	runtime.KeepAlive(s2)
}

func TestRegistryChecker_Degraded(t *testing.T) {
	reg := cache.NewTagRegistry()
	stores := []*cache.Store{newTestStore(t), newTestStore(t), newTestStore(t)}
	for _, s := range stores {
		reg.Register("t", s)
	}

	r := NewRegistryChecker(reg, RegistryCheckerConfig{Name: "catalog", MaxStores: 2}).Check(context.Background())
	if r.Status != StatusDegraded {
		t.Fatalf("Status = %v, want degraded", r.Status)
	}
	if r.Details["stores"] != 3 {
		t.Errorf("stores = %v, want 3", r.Details["stores"])
	}
	runtime.KeepAlive(stores)
}

func TestRegistryChecker_NoThreshold(t *testing.T) {
	reg := cache.NewTagRegistry()
	s := newTestStore(t)
	reg.Register("t", s)

	r := NewRegistryChecker(reg, RegistryCheckerConfig{}).Check(context.Background())
	if r.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", r.Status)
	}
	if _, ok := r.Details["max_stores"]; ok {
		t.Error("max_stores should be absent without a threshold")
	}
	runtime.KeepAlive(s)
}

func TestRegistryChecker_Prunes(t *testing.T) {
	reg := cache.NewTagRegistry()
	keep := newTestStore(t)
	reg.Register("keep", keep)

	func() {
		s, err := cache.NewStore(10, 0, nil)
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		reg.Register("gone", s)
	}()

	runtime.GC()
	runtime.GC()

	r := NewRegistryChecker(reg, RegistryCheckerConfig{MaxStores: 1}).Check(context.Background())
	if r.Status != StatusHealthy {
		t.Fatalf("Status = %v, want healthy after pruning (%s)", r.Status, r.Message)
	}
	if r.Details["pruned"] != 1 || r.Details["tags"] != 1 {
		t.Errorf("Details = %v, want pruned=1 tags=1", r.Details)
	}
	runtime.KeepAlive(keep)
}

func TestRegistryChecker_Errors(t *testing.T) {
	r := NewRegistryChecker(nil, RegistryCheckerConfig{}).Check(context.Background())
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrNilRegistry) {
		t.Errorf("nil registry: %v %v", r.Status, r.Error)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = NewRegistryChecker(cache.NewTagRegistry(), RegistryCheckerConfig{}).Check(ctx)
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, context.Canceled) {
		t.Errorf("cancelled: %v %v", r.Status, r.Error)
	}
}

func TestRegistryChecker_InAggregator(t *testing.T) {
	agg := NewAggregator()
	agg.Register("memo-registry", NewRegistryChecker(cache.NewTagRegistry(), RegistryCheckerConfig{}))

	results := agg.CheckAll(context.Background())
	if agg.OverallStatus(results) != StatusHealthy {
		t.Errorf("overall = %v, want healthy", agg.OverallStatus(results))
	}
}
