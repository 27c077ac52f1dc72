package cache

import (
	"context"
	"fmt"
)

// ComputeFunc runs the underlying member for one call.
type ComputeFunc func(ctx context.Context) (any, error)

// memoizer holds the setup-time state of one memoized member and runs the
// per-call algorithm. Its identity keys the stores inside each Instance.
type memoizer struct {
	name  string
	kind  Kind
	opts  Options
	keyer Keyer
}

func newMemoizer(kind Kind, opts Options) (*memoizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalize()

	var keyer Keyer = NewDeepKeyer()
	if opts.HashFunc != nil {
		keyer = funcKeyer{fn: opts.HashFunc}
	}

	name := opts.Name
	if name == "" {
		name = kind.String()
	}

	return &memoizer{
		name:  name,
		kind:  kind,
		opts:  opts,
		keyer: keyer,
	}, nil
}

func (m *memoizer) event(key string) Event {
	return Event{Member: m.name, Kind: m.kind, Key: key, Tags: m.opts.Tags}
}

func (m *memoizer) newStore() (*Store, error) {
	return NewStore(m.opts.MaxSize, m.opts.TTL, func(key string) {
		m.opts.Recorder.Evict(m.event(key))
	})
}

// call returns the cached result for args on owner, computing and storing
// it on a miss. Errors from the key derivation or the computation are
// returned unchanged and nothing is cached.
func (m *memoizer) call(ctx context.Context, owner Owner, args []any, compute ComputeFunc) (any, error) {
	if isNil(owner) {
		return nil, ErrNilOwner
	}

	// Caching disabled
	if !m.opts.Enabled() {
		return compute(ctx)
	}

	store, err := owner.memoInstance().storeFor(m)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create store for %s: %w", m.name, err)
	}

	for _, tag := range m.opts.Tags {
		m.opts.Registry.Register(tag, store)
	}

	key, err := m.keyer.Key(owner, args)
	if err != nil {
		return nil, err
	}

	// Check cache
	if cached, ok := store.Get(key); ok {
		m.opts.Recorder.Hit(ctx, m.event(key))
		return unwrapResult(cached), nil
	}

	if !m.opts.Coalesce {
		return m.compute(ctx, store, key, compute)
	}

	v, err, _ := store.flight.Do(key, func() (any, error) {
		// Another caller may have stored the result while we waited.
		if cached, ok := store.Get(key); ok {
			m.opts.Recorder.Hit(ctx, m.event(key))
			return unwrapResult(cached), nil
		}
		return m.compute(ctx, store, key, compute)
	})
	return v, err
}

func (m *memoizer) compute(ctx context.Context, store *Store, key string, compute ComputeFunc) (any, error) {
	ctx, done := m.opts.Recorder.Compute(ctx, m.event(key))
	result, err := compute(ctx)
	done(err)
	if err != nil {
		// Don't cache errors
		return nil, err
	}

	store.Set(key, wrapResult(result))
	return result, nil
}
