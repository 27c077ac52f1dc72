package cache

import (
	"sort"
	"sync"
	"weak"
)

// TagRegistry maps tag names to the stores registered under them so that
// unrelated receivers can be invalidated together.
//
// Stores are held weakly: a store whose receiver has been collected drops
// out of the registry on the next Clear, Len or Prune.
type TagRegistry struct {
	mu       sync.Mutex
	tags     map[string]map[weak.Pointer[Store]]struct{}
	recorder Recorder
}

// NewTagRegistry creates an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{
		tags:     make(map[string]map[weak.Pointer[Store]]struct{}),
		recorder: nopRecorder{},
	}
}

var processRegistry = NewTagRegistry()

// DefaultRegistry returns the process-wide registry used by members whose
// Options.Registry is nil.
func DefaultRegistry() *TagRegistry {
	return processRegistry
}

// Clear clears every store registered under any of tags in the default
// registry and returns how many distinct stores were cleared.
func Clear(tags ...string) int {
	return processRegistry.Clear(tags...)
}

// SetRecorder installs the recorder notified after each Clear.
// A nil recorder disables notifications.
func (r *TagRegistry) SetRecorder(rec Recorder) {
	if rec == nil {
		rec = nopRecorder{}
	}
	r.mu.Lock()
	r.recorder = rec
	r.mu.Unlock()
}

// Register adds s under tag. Registering the same pair again has no effect.
func (r *TagRegistry) Register(tag string, s *Store) {
	if s == nil {
		return
	}
	wp := weak.Make(s)

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.tags[tag]
	if !ok {
		set = make(map[weak.Pointer[Store]]struct{})
		r.tags[tag] = set
	}
	set[wp] = struct{}{}
}

// Clear clears each store registered under any of tags exactly once and
// returns the number of distinct stores cleared. Unknown tags are ignored.
func (r *TagRegistry) Clear(tags ...string) int {
	r.mu.Lock()
	seen := make(map[*Store]struct{})
	for _, tag := range tags {
		set, ok := r.tags[tag]
		if !ok {
			continue
		}
		for wp := range set {
			s := wp.Value()
			if s == nil {
				delete(set, wp)
				continue
			}
			seen[s] = struct{}{}
		}
	}
	rec := r.recorder
	r.mu.Unlock()

	for s := range seen {
		s.Clear()
	}
	rec.Cleared(tags, len(seen))
	return len(seen)
}

// Tags returns the registered tag names in sorted order.
func (r *TagRegistry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		names = append(names, tag)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live stores registered under tag.
func (r *TagRegistry) Len(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneTagLocked(tag)
}

// Prune drops entries whose store has been collected, removes tags left
// empty, and returns the number of entries dropped.
func (r *TagRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for tag, set := range r.tags {
		before := len(set)
		live := r.pruneTagLocked(tag)
		dropped += before - live
		if live == 0 {
			delete(r.tags, tag)
		}
	}
	return dropped
}

// Stores returns the number of distinct live stores across all tags.
func (r *TagRegistry) Stores() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[weak.Pointer[Store]]struct{})
	for _, set := range r.tags {
		for wp := range set {
			if wp.Value() != nil {
				seen[wp] = struct{}{}
			}
		}
	}
	return len(seen)
}

func (r *TagRegistry) pruneTagLocked(tag string) int {
	set := r.tags[tag]
	for wp := range set {
		if wp.Value() == nil {
			delete(set, wp)
		}
	}
	return len(set)
}
