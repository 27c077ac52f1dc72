package cache

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// Sentinel errors for memoization.
var (
	ErrUnsupportedMember = errors.New("cache: only methods and accessors can be memoized")
	ErrNilOwner          = errors.New("cache: receiver is nil")
	ErrAccessorArgs      = errors.New("cache: accessors take no arguments")
	ErrArgCount          = errors.New("cache: wrong number of arguments")
	ErrArgType           = errors.New("cache: argument type mismatch")
	ErrReceiverType      = errors.New("cache: receiver type mismatch")
	ErrInvalidSize       = errors.New("cache: store size must be positive")
	ErrInvalidTag        = errors.New("cache: tag is invalid")
	ErrUnhashable        = errors.New("cache: value cannot be hashed")
)

// Kind distinguishes the two member shapes that can be memoized.
type Kind int

const (
	// KindMethod is a callable member taking zero or more arguments.
	KindMethod Kind = iota
	// KindAccessor is a read-only member taking no arguments.
	KindAccessor
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindAccessor:
		return "accessor"
	default:
		return "unknown"
	}
}

// Owner is implemented by any type that embeds Instance.
type Owner interface {
	memoInstance() *Instance
}

// Instance holds the stores of every memoized member for one receiver.
// Embed it by value; it must not be copied after first use.
//
// Its fields are unexported so the cached state never shows up in JSON
// output or in deep-hashed keys.
type Instance struct {
	mu     sync.Mutex
	stores map[*memoizer]*Store
}

func (in *Instance) memoInstance() *Instance { return in }

// storeFor returns the store for m, creating it on first use.
func (in *Instance) storeFor(m *memoizer) (*Store, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if s, ok := in.stores[m]; ok {
		return s, nil
	}
	s, err := m.newStore()
	if err != nil {
		return nil, err
	}
	if in.stores == nil {
		in.stores = make(map[*memoizer]*Store)
	}
	in.stores[m] = s
	return s, nil
}

// Event describes a memoized call for a Recorder.
type Event struct {
	Member string
	Kind   Kind
	Key    string
	Tags   []string
}

// Recorder receives notifications about cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: recording is best-effort and must not panic.
type Recorder interface {
	// Hit is called when a live entry satisfied the call.
	Hit(ctx context.Context, ev Event)

	// Compute is called on a miss, before the computation runs. The
	// returned context is passed to the computation and done is called
	// with its error once it returns.
	Compute(ctx context.Context, ev Event) (_ context.Context, done func(err error))

	// Evict is called when an entry leaves a store by capacity or age.
	Evict(ev Event)

	// Cleared is called after a tag clear with the number of stores cleared.
	Cleared(tags []string, stores int)
}

type nopRecorder struct{}

func (nopRecorder) Hit(context.Context, Event) {}
func (nopRecorder) Compute(ctx context.Context, _ Event) (context.Context, func(error)) {
	return ctx, func(error) {}
}
func (nopRecorder) Evict(Event)           {}
func (nopRecorder) Cleared([]string, int) {}

// noValue marks a cached nil result so it differs from a missing entry.
type noValue struct{}

func wrapResult(v any) any {
	if isNil(v) {
		return noValue{}
	}
	return v
}

func unwrapResult(v any) any {
	if _, ok := v.(noValue); ok {
		return nil
	}
	return v
}

// isNil reports whether v is nil or a typed nil of a nillable kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
