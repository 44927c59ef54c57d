// Package marshal produces isolated copies of values that cross the
// repository boundary.
//
// Scalars pass through untouched. Values implementing Copier supply their own
// copy. Everything else is deep-copied field by field, keeping the dynamic
// type of every value, including values held in interfaces. Only exported
// struct fields survive; types that encode themselves as JSON (time.Time,
// big.Int) are copied through their JSON form.
package marshal

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrNotCopyable is returned when a value has no custom copy and cannot be
// deep-copied (cycles, channels, funcs).
var ErrNotCopyable = errors.New("value cannot be copied")

// Copier is implemented by types that know how to copy themselves.
// The returned value must share no mutable state with the receiver.
type Copier interface {
	MarshalCopy() (any, error)
}

// Error describes a failed copy.
type Error struct {
	Type reflect.Type
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("marshal %v: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotCopyable) match every copy failure.
func (e *Error) Is(target error) bool {
	return target == ErrNotCopyable
}

// Copy returns a deep copy of v.
func Copy(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if IsScalar(v) {
		return v, nil
	}
	if c, ok := v.(Copier); ok {
		out, err := c.MarshalCopy()
		if err != nil {
			return nil, &Error{Type: reflect.TypeOf(v), Err: err}
		}
		return out, nil
	}
	out, err := deepCopy(reflect.ValueOf(v), map[visit]bool{})
	if err != nil {
		return nil, &Error{Type: reflect.TypeOf(v), Err: err}
	}
	return out.Interface(), nil
}

// CopyAs is the typed form of Copy.
func CopyAs[T any](v T) (T, error) {
	var zero T
	out, err := Copy(v)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	typed, ok := out.(T)
	if !ok {
		return zero, &Error{
			Type: reflect.TypeOf(v),
			Err:  fmt.Errorf("copy returned %T", out),
		}
	}
	return typed, nil
}

// IsScalar reports whether v is an immutable value that needs no copy.
func IsScalar(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

var (
	copierType      = reflect.TypeFor[Copier]()
	jsonMarshaler   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshaler = reflect.TypeFor[json.Unmarshaler]()
)

// visit identifies a reference value on the current copy path.
type visit struct {
	ptr uintptr
	typ reflect.Type
}

// deepCopy returns a copy of v of the same type. active holds the references
// being copied on the current path; meeting one again means a cycle.
func deepCopy(v reflect.Value, active map[visit]bool) (reflect.Value, error) {
	t := v.Type()

	if t.Kind() != reflect.Interface && t.Implements(copierType) && !isNilRef(v) {
		out, err := v.Interface().(Copier).MarshalCopy()
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.ValueOf(out)
		if !rv.IsValid() || !rv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("MarshalCopy of %v returned %T", t, out)
		}
		dst := reflect.New(t).Elem()
		dst.Set(rv)
		return dst, nil
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		dst := reflect.New(t).Elem()
		dst.Set(v)
		return dst, nil

	case reflect.Interface:
		dst := reflect.New(t).Elem()
		if v.IsNil() {
			return dst, nil
		}
		elem, err := deepCopy(v.Elem(), active)
		if err != nil {
			return reflect.Value{}, err
		}
		dst.Set(elem)
		return dst, nil

	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		key := visit{ptr: v.Pointer(), typ: t}
		if active[key] {
			return reflect.Value{}, fmt.Errorf("cycle through %v", t)
		}
		active[key] = true
		defer delete(active, key)

		elem, err := deepCopy(v.Elem(), active)
		if err != nil {
			return reflect.Value{}, err
		}
		dst := reflect.New(t.Elem())
		dst.Elem().Set(elem)
		return dst, nil

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		key := visit{ptr: v.Pointer(), typ: t}
		if active[key] {
			return reflect.Value{}, fmt.Errorf("cycle through %v", t)
		}
		active[key] = true
		defer delete(active, key)

		dst := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := deepCopy(iter.Key(), active)
			if err != nil {
				return reflect.Value{}, err
			}
			val, err := deepCopy(iter.Value(), active)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			dst.SetMapIndex(k, val)
		}
		return dst, nil

	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(t), nil
		}
		key := visit{ptr: v.Pointer(), typ: t}
		if v.Len() > 0 {
			if active[key] {
				return reflect.Value{}, fmt.Errorf("cycle through %v", t)
			}
			active[key] = true
			defer delete(active, key)
		}

		dst := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := range v.Len() {
			elem, err := deepCopy(v.Index(i), active)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			dst.Index(i).Set(elem)
		}
		return dst, nil

	case reflect.Array:
		dst := reflect.New(t).Elem()
		for i := range v.Len() {
			elem, err := deepCopy(v.Index(i), active)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			dst.Index(i).Set(elem)
		}
		return dst, nil

	case reflect.Struct:
		if encodesAsJSON(t) {
			return jsonCopy(v)
		}
		dst := reflect.New(t).Elem()
		for i := range t.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			field, err := deepCopy(v.Field(i), active)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", t.Field(i).Name, err)
			}
			dst.Field(i).Set(field)
		}
		return dst, nil

	default:
		return reflect.Value{}, fmt.Errorf("unsupported kind %v", t.Kind())
	}
}

func isNilRef(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// encodesAsJSON reports whether a struct type carries its state in its own
// JSON encoding rather than in exported fields.
func encodesAsJSON(t reflect.Type) bool {
	ptr := reflect.PointerTo(t)
	return (t.Implements(jsonMarshaler) || ptr.Implements(jsonMarshaler)) &&
		ptr.Implements(jsonUnmarshaler)
}

func jsonCopy(v reflect.Value) (reflect.Value, error) {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(v.Type())
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}
