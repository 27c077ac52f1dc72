package cache

import (
	"context"
	"fmt"
	"reflect"
)

// MethodFunc is the underlying implementation of a memoized method.
type MethodFunc[T Owner, R any] func(ctx context.Context, recv T, args ...any) (R, error)

// AccessorFunc is the underlying implementation of a memoized accessor.
type AccessorFunc[T Owner, R any] func(ctx context.Context, recv T) (R, error)

// Method is a memoized method of receiver type T.
type Method[T Owner, R any] struct {
	m  *memoizer
	fn MethodFunc[T, R]
}

// NewMethod memoizes fn with the given options.
func NewMethod[T Owner, R any](fn MethodFunc[T, R], opts Options) (*Method[T, R], error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: method function is nil", ErrUnsupportedMember)
	}
	m, err := newMemoizer(KindMethod, opts)
	if err != nil {
		return nil, err
	}
	return &Method[T, R]{m: m, fn: fn}, nil
}

// MustMethod is like NewMethod but panics on a setup error.
// It is intended for package-level declarations.
func MustMethod[T Owner, R any](fn MethodFunc[T, R], opts Options) *Method[T, R] {
	m, err := NewMethod(fn, opts)
	if err != nil {
		panic(err)
	}
	return m
}

// Call returns the cached result for args on recv, computing it on a miss.
func (mt *Method[T, R]) Call(ctx context.Context, recv T, args ...any) (R, error) {
	v, err := mt.m.call(ctx, recv, args, func(ctx context.Context) (any, error) {
		return mt.fn(ctx, recv, args...)
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return resultAs[R](v), nil
}

// Accessor is a memoized read-only member of receiver type T.
type Accessor[T Owner, R any] struct {
	m  *memoizer
	fn AccessorFunc[T, R]
}

// NewAccessor memoizes fn with the given options.
func NewAccessor[T Owner, R any](fn AccessorFunc[T, R], opts Options) (*Accessor[T, R], error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: accessor function is nil", ErrUnsupportedMember)
	}
	m, err := newMemoizer(KindAccessor, opts)
	if err != nil {
		return nil, err
	}
	return &Accessor[T, R]{m: m, fn: fn}, nil
}

// MustAccessor is like NewAccessor but panics on a setup error.
func MustAccessor[T Owner, R any](fn AccessorFunc[T, R], opts Options) *Accessor[T, R] {
	a, err := NewAccessor(fn, opts)
	if err != nil {
		panic(err)
	}
	return a
}

// Get returns the cached value for recv, computing it on a miss.
func (a *Accessor[T, R]) Get(ctx context.Context, recv T) (R, error) {
	v, err := a.m.call(ctx, recv, nil, func(ctx context.Context) (any, error) {
		return a.fn(ctx, recv)
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return resultAs[R](v), nil
}

func resultAs[R any](v any) R {
	if v == nil {
		var zero R
		return zero
	}
	return v.(R)
}

var (
	contextType = reflect.TypeFor[context.Context]()
	ownerType   = reflect.TypeFor[Owner]()
	errorType   = reflect.TypeFor[error]()
)

// Member is a memoized function whose shape is discovered at setup.
type Member struct {
	m  *memoizer
	fn reflect.Value
}

// Memoize memoizes target, which must be a function of one of the forms
//
//	func(ctx context.Context, recv T, args...) (R, error) // method
//	func(ctx context.Context, recv T) (R, error)          // accessor
//
// where T implements Owner. Parameters after recv may be fixed or
// variadic. Any other target fails with ErrUnsupportedMember.
func Memoize(target any, opts Options) (*Member, error) {
	fn := reflect.ValueOf(target)
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedMember, target)
	}

	t := fn.Type()
	if t.NumIn() < 2 || t.In(0) != contextType || !t.In(1).Implements(ownerType) {
		return nil, fmt.Errorf("%w: %s must take (context.Context, receiver, ...)", ErrUnsupportedMember, t)
	}
	if t.NumOut() != 2 || t.Out(1) != errorType {
		return nil, fmt.Errorf("%w: %s must return (value, error)", ErrUnsupportedMember, t)
	}

	kind := KindMethod
	if t.NumIn() == 2 {
		kind = KindAccessor
	}

	m, err := newMemoizer(kind, opts)
	if err != nil {
		return nil, err
	}
	return &Member{m: m, fn: fn}, nil
}

// MustMemoize is like Memoize but panics on a setup error.
func MustMemoize(target any, opts Options) *Member {
	mb, err := Memoize(target, opts)
	if err != nil {
		panic(err)
	}
	return mb
}

// Kind reports whether the member is a method or an accessor.
func (mb *Member) Kind() Kind {
	return mb.m.kind
}

// Name returns the member's label.
func (mb *Member) Name() string {
	return mb.m.name
}

// Call invokes the member on recv with args through the cache.
// Accessors must be called without arguments.
func (mb *Member) Call(ctx context.Context, recv Owner, args ...any) (any, error) {
	if isNil(recv) {
		return nil, ErrNilOwner
	}
	if mb.m.kind == KindAccessor && len(args) > 0 {
		return nil, fmt.Errorf("%w: %s got %d", ErrAccessorArgs, mb.m.name, len(args))
	}

	in, err := mb.inputs(recv, args)
	if err != nil {
		return nil, err
	}

	return mb.m.call(ctx, recv, args, func(ctx context.Context) (any, error) {
		in[0] = reflect.ValueOf(&ctx).Elem()
		out := mb.fn.Call(in)
		if errv := out[1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
		if isNil(out[0].Interface()) {
			return nil, nil
		}
		return out[0].Interface(), nil
	})
}

// inputs converts recv and args to call values. Slot 0 is filled with the
// context when the call runs.
func (mb *Member) inputs(recv Owner, args []any) ([]reflect.Value, error) {
	t := mb.fn.Type()

	rv := reflect.ValueOf(recv)
	if !rv.Type().AssignableTo(t.In(1)) {
		return nil, fmt.Errorf("%w: %s expects %s, got %s", ErrReceiverType, mb.m.name, t.In(1), rv.Type())
	}

	fixed := t.NumIn() - 2
	if t.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!t.IsVariadic() && len(args) != fixed) {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrArgCount, mb.m.name, fixed, len(args))
	}

	in := make([]reflect.Value, 2, 2+len(args))
	in[1] = rv
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = t.In(i + 2)
		} else {
			pt = t.In(t.NumIn() - 1).Elem()
		}
		av, err := argValue(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", ErrArgType, mb.m.name, i, err)
		}
		in = append(in, av)
	}
	return in, nil
}

func argValue(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", pt)
	}
	av := reflect.ValueOf(arg)
	if !av.Type().AssignableTo(pt) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", av.Type(), pt)
	}
	return av, nil
}
