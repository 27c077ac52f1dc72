package cache

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkStore_Get_Hit measures store hit performance.
func BenchmarkStore_Get_Hit(b *testing.B) {
	s, _ := NewStore(DefaultMaxSize, 0, nil)
	s.Set("key", "value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Get("key")
	}
}

// BenchmarkStore_Set measures write performance with eviction.
func BenchmarkStore_Set(b *testing.B) {
	s, _ := NewStore(DefaultMaxSize, 0, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set(fmt.Sprintf("key-%d", i), i)
	}
}

// BenchmarkKeyer_Small measures key derivation for a few primitives.
func BenchmarkKeyer_Small(b *testing.B) {
	k := NewDeepKeyer()
	args := []any{"user", 42, true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.Key(nil, args)
	}
}

// BenchmarkKeyer_Nested measures key derivation for nested maps and slices.
func BenchmarkKeyer_Nested(b *testing.B) {
	k := NewDeepKeyer()
	args := []any{map[string]any{
		"query":   "select",
		"filters": map[string]any{"status": "open", "owner": "me", "labels": []any{"a", "b", "c"}},
		"page":    map[string]any{"size": 50, "offset": 100},
	}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.Key(nil, args)
	}
}

// BenchmarkMethod_Hit measures a memoized call served from the cache.
func BenchmarkMethod_Hit(b *testing.B) {
	m, _ := NewMethod(func(_ context.Context, _ *counterOwner, args ...any) (any, error) {
		return args[0], nil
	}, Options{Registry: NewTagRegistry(), Tags: []string{"bench"}})
	o := &counterOwner{}
	ctx := context.Background()
	_, _ = m.Call(ctx, o, "k")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Call(ctx, o, "k")
	}
}

// BenchmarkTagRegistry_Clear measures clearing a tag with many stores.
func BenchmarkTagRegistry_Clear(b *testing.B) {
	reg := NewTagRegistry()
	stores := make([]*Store, 100)
	for i := range stores {
		stores[i], _ = NewStore(10, 0, nil)
		reg.Register("t", stores[i])
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Clear("t")
	}
}
