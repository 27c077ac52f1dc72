package cache

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxSize is the entry limit used when Options.MaxSize is zero.
const DefaultMaxSize = 1000

// Options configures a memoized member. It is copied at setup and never
// mutated afterwards.
type Options struct {
	// Name labels the member in logs, metrics and spans.
	Name string

	// HashFunc derives the key from the call. Its result is used verbatim.
	// If nil, arguments are deep-hashed.
	HashFunc HashFunc

	// Tags registers every store of this member under the given names.
	Tags []string

	// MaxSize is the maximum number of entries per receiver.
	// Zero selects DefaultMaxSize so that the zero Options caches.
	// A negative value disables caching, as does Disabled.
	MaxSize int

	// Disabled turns caching off. Every call runs the computation and no
	// store is created or tagged.
	Disabled bool

	// TTL expires entries this long after insertion.
	// Zero or negative means entries never expire by age.
	TTL time.Duration

	// Coalesce runs concurrent misses for the same key on the same
	// receiver only once.
	Coalesce bool

	// Registry receives tag registrations. If nil, DefaultRegistry is used.
	Registry *TagRegistry

	// Recorder observes hits, misses and evictions. If nil, nothing is recorded.
	Recorder Recorder
}

// DefaultOptions returns the default member options.
// MaxSize: 1000, TTL: none, no tags.
func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize}
}

// Validate checks the options for setup errors.
func (o Options) Validate() error {
	for i, tag := range o.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: tags[%d] is empty", ErrInvalidTag, i)
		}
	}
	return nil
}

// Enabled reports whether these options cache anything at all.
func (o Options) Enabled() bool {
	return !o.Disabled && o.MaxSize >= 0
}

// EffectiveMaxSize returns the store capacity, applying the default.
func (o Options) EffectiveMaxSize() int {
	if o.MaxSize == 0 {
		return DefaultMaxSize
	}
	return o.MaxSize
}

// EffectiveTTL returns the entry lifetime, or zero when entries do not expire.
func (o Options) EffectiveTTL() time.Duration {
	if o.TTL < 0 {
		return 0
	}
	return o.TTL
}

// normalize returns a private copy with defaults applied.
func (o Options) normalize() Options {
	o.MaxSize = o.EffectiveMaxSize()
	o.TTL = o.EffectiveTTL()
	if len(o.Tags) > 0 {
		tags := make([]string, len(o.Tags))
		copy(tags, o.Tags)
		o.Tags = tags
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	return o
}
