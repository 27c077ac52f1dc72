package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

// Store is a bounded key/value store with least-recently-used eviction and
// optional per-entry expiry. One Store exists per receiver and member.
type Store struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, storeEntry]
	size    int
	ttl     time.Duration
	onEvict func(key string)
	now     func() time.Time

	// flight coalesces concurrent misses when Options.Coalesce is set.
	flight singleflight.Group
}

type storeEntry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

// NewStore creates a store holding at most size entries. Entries expire ttl
// after insertion; ttl <= 0 disables expiry. onEvict, if not nil, is called
// with the key of every entry dropped by capacity or age.
func NewStore(size int, ttl time.Duration, onEvict func(key string)) (*Store, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	if ttl < 0 {
		ttl = 0
	}
	s := &Store{
		size:    size,
		ttl:     ttl,
		onEvict: onEvict,
		now:     time.Now,
	}
	lru, err := simplelru.NewLRU(size, s.evicted)
	if err != nil {
		return nil, err
	}
	s.lru = lru
	return s, nil
}

func (s *Store) evicted(key string, _ storeEntry) {
	if s.onEvict != nil {
		s.onEvict(key)
	}
}

// Has reports whether a live entry exists for key. It does not count as a use.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lru.Peek(key)
	if !ok {
		return false
	}
	if s.expired(entry) {
		s.lru.Remove(key)
		return false
	}
	return true
}

// Get returns the value stored under key and marks it most recently used.
// Expired entries are removed and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if s.expired(entry) {
		s.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set inserts or overwrites the value under key, restarting its lifetime.
// When the store is full, expired entries are purged before the least
// recently used live entry is evicted.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lru.Contains(key) && s.lru.Len() >= s.size {
		s.removeExpiredLocked()
	}

	entry := storeEntry{value: value}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.lru.Add(key, entry)
}

// Clear removes all entries without reporting them as evictions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A fresh list keeps Purge from firing the eviction callback.
	lru, err := simplelru.NewLRU(s.size, s.evicted)
	if err != nil {
		s.lru.Purge()
		return
	}
	s.lru = lru
}

// Len returns the number of entries, including expired ones not yet purged.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// RemoveExpired purges all expired entries and returns how many were removed.
func (s *Store) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeExpiredLocked()
}

func (s *Store) removeExpiredLocked() int {
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for _, key := range s.lru.Keys() {
		entry, ok := s.lru.Peek(key)
		if ok && s.expired(entry) {
			s.lru.Remove(key)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(entry storeEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}
