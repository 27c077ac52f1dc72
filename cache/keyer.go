package cache

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"fmt"
	"maps"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// circularMarker replaces a reference already seen in the same encoding pass.
// Strings are always quoted, so no value can encode to this token.
const circularMarker = "<circular>"

// keyPrefix is prepended to deep-hashed keys.
const keyPrefix = "memo:"

// HashFunc maps a call to its cache key. recv is the receiver of the call.
type HashFunc func(recv any, args []any) (string, error)

// Keyer generates cache keys from call arguments.
//
// Contract:
// - Determinism: same inputs must produce same key within one process.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key for a call on recv with args.
	Key(recv any, args []any) (string, error)
}

// funcKeyer adapts a HashFunc to Keyer.
type funcKeyer struct {
	fn HashFunc
}

func (k funcKeyer) Key(recv any, args []any) (string, error) {
	return k.fn(recv, args)
}

// DeepKeyer derives keys from the structural content of the arguments.
//
// Maps and structs are encoded with their members sorted by name and slices
// keep their order. Each pointer, map or slice is expanded the first time it
// is met in a call's arguments; any later occurrence is written as a fixed
// marker. Two distinct values with equal content produce the same key.
type DeepKeyer struct{}

// NewDeepKeyer creates a new deep keyer.
func NewDeepKeyer() *DeepKeyer {
	return &DeepKeyer{}
}

// Key generates a deterministic cache key.
// Format: memo:<hash>
// where hash is the hex SHA-256 of the canonical encoding of args.
func (k *DeepKeyer) Key(_ any, args []any) (string, error) {
	canonical, err := k.Canonical(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return keyPrefix + hex.EncodeToString(sum[:]), nil
}

// Canonical returns the canonical text encoding of args.
func (k *DeepKeyer) Canonical(args []any) (string, error) {
	e := newEncoder()
	e.buf.WriteByte('[')
	for i, arg := range args {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(reflect.ValueOf(arg)); err != nil {
			return "", fmt.Errorf("cache: failed to canonicalize argument %d: %w", i, err)
		}
	}
	e.buf.WriteByte(']')
	return e.buf.String(), nil
}

// visit identifies a reference seen during one encoding pass.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// encoder writes one canonical encoding. Every reference it meets is
// recorded in seen for the rest of the pass, so each is expanded once.
type encoder struct {
	buf  strings.Builder
	seen map[visit]struct{}
}

func newEncoder() *encoder {
	return &encoder{seen: make(map[visit]struct{})}
}

var (
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	instanceType      = reflect.TypeFor[Instance]()
)

func (e *encoder) encode(v reflect.Value) error {
	if !v.IsValid() {
		e.buf.WriteString("null")
		return nil
	}

	if v.Type().Implements(textMarshalerType) && v.CanInterface() {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return err
		}
		e.buf.WriteString(strconv.Quote(string(text)))
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		e.buf.WriteString(formatFloat(v.Float(), 32))
	case reflect.Float64:
		e.buf.WriteString(formatFloat(v.Float(), 64))
	case reflect.Complex64, reflect.Complex128:
		e.buf.WriteString(strconv.FormatComplex(v.Complex(), 'g', -1, 128))
	case reflect.String:
		e.buf.WriteString(strconv.Quote(v.String()))
	case reflect.Interface:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.encode(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		if e.revisit(visit{ptr: v.Pointer(), typ: v.Type()}) {
			return nil
		}
		return e.encode(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		if e.revisit(visit{ptr: v.Pointer(), typ: v.Type()}) {
			return nil
		}
		return e.encodeMap(v)
	case reflect.Slice:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		if v.Len() == 0 {
			e.buf.WriteString("[]")
			return nil
		}
		if e.revisit(visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}) {
			return nil
		}
		return e.encodeList(v)
	case reflect.Array:
		return e.encodeList(v)
	case reflect.Struct:
		return e.encodeStruct(v)
	case reflect.Chan:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		fmt.Fprintf(&e.buf, "<chan %#x>", v.Pointer())
	case reflect.UnsafePointer:
		fmt.Fprintf(&e.buf, "<ptr %#x>", v.Pointer())
	case reflect.Func:
		if v.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnhashable, v.Type())
	default:
		return fmt.Errorf("%w: %s", ErrUnhashable, v.Type())
	}
	return nil
}

// revisit records ref as seen. If it was already seen in this pass it writes
// the circular marker and returns true.
func (e *encoder) revisit(ref visit) bool {
	if _, seen := e.seen[ref]; seen {
		e.buf.WriteString(circularMarker)
		return true
	}
	e.seen[ref] = struct{}{}
	return false
}

func (e *encoder) encodeList(v reflect.Value) error {
	e.buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(v.Index(i)); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

// objectField is one member of an encoded object. name is already in its
// encoded form.
type objectField struct {
	name  string
	value reflect.Value
}

func (e *encoder) encodeMap(v reflect.Value) error {
	members := make([]objectField, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		name, err := keyText(v.Type().Key(), iter.Key())
		if err != nil {
			return err
		}
		members = append(members, objectField{name: name, value: iter.Value()})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	// Distinct keys with equal content, such as two pointers to equal
	// values, are ordered by their values.
	for i := 0; i < len(members); {
		j := i + 1
		for j < len(members) && members[j].name == members[i].name {
			j++
		}
		if j-i > 1 {
			if err := e.orderTies(members[i:j]); err != nil {
				return err
			}
		}
		i = j
	}
	return e.writeObject(members)
}

// orderTies sorts members by a trial encoding of their values taken from
// the current seen state, so the real pass visits them in a fixed order.
func (e *encoder) orderTies(members []objectField) error {
	type trial struct {
		member objectField
		text   string
	}
	trials := make([]trial, len(members))
	for i, m := range members {
		sub := &encoder{seen: maps.Clone(e.seen)}
		if err := sub.encode(m.value); err != nil {
			return err
		}
		trials[i] = trial{member: m, text: sub.buf.String()}
	}
	sort.SliceStable(trials, func(i, j int) bool { return trials[i].text < trials[j].text })
	for i, t := range trials {
		members[i] = t.member
	}
	return nil
}

// keyText encodes a map key. Keys of a string-kinded map key type are
// quoted. Any other key is written as its dynamic type followed by its
// encoding in parentheses, so 1 and "1" in a map[any]any stay distinct.
// Keys are encoded on their own and do not share the seen set.
func keyText(keyType reflect.Type, k reflect.Value) (string, error) {
	if keyType.Kind() == reflect.String {
		return strconv.Quote(k.String()), nil
	}
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	sub := newEncoder()
	if err := sub.encode(k); err != nil {
		return "", err
	}
	return k.Type().String() + "(" + sub.buf.String() + ")", nil
}

// encodeStruct encodes exported fields under their JSON names. Unexported
// fields are skipped, except embedded structs whose exported fields are
// still reachable.
func (e *encoder) encodeStruct(v reflect.Value) error {
	t := v.Type()
	members := make([]objectField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type == instanceType || f.Name == "_" {
			continue
		}
		if !f.IsExported() && !(f.Anonymous && f.Type.Kind() == reflect.Struct) {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		members = append(members, objectField{name: strconv.Quote(name), value: v.Field(i)})
	}
	// Fields sharing a name keep declaration order.
	sort.SliceStable(members, func(i, j int) bool { return members[i].name < members[j].name })
	return e.writeObject(members)
}

// writeObject encodes members in the order given.
func (e *encoder) writeObject(members []objectField) error {
	e.buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.buf.WriteString(m.name)
		e.buf.WriteByte(':')
		if err := e.encode(m.value); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// formatFloat writes integral values without an exponent so that 3 and 3.0
// encode alike, matching encoding/json's number format.
func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	format := byte('f')
	if abs := math.Abs(f); abs != 0 {
		if abs < 1e-6 || abs >= 1e21 {
			format = 'e'
		}
	}
	return strconv.FormatFloat(f, format, -1, bits)
}

// Ensure the keyers implement Keyer
var (
	_ Keyer = (*DeepKeyer)(nil)
	_ Keyer = funcKeyer{}
)
