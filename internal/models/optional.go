package models

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state JSON field: absent, explicit null, or a value.
// Partial updates need all three states — an absent field leaves the current
// value untouched while an explicit null clears it — so a plain pointer is
// not enough.
//
// The zero Optional is the absent state. Combined with the `omitzero` struct
// tag, absent fields round-trip without being emitted.
type Optional[T any] struct {
	present bool
	null    bool
	value   T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{present: true, value: v}
}

// Null returns an Optional in the explicit-null state.
func Null[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Present reports whether the field appeared in the document at all.
func (o Optional[T]) Present() bool { return o.present }

// IsNull reports whether the field was an explicit null.
func (o Optional[T]) IsNull() bool { return o.present && o.null }

// Get returns the value and whether a non-null value is held.
func (o Optional[T]) Get() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// IsZero reports the absent state; used by encoding/json's omitzero.
func (o Optional[T]) IsZero() bool { return !o.present }

// MarshalJSON encodes null for the explicit-null state, otherwise the value.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON is only invoked for fields present in the document, so any
// call moves the Optional out of the absent state.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}
