// Package patch models request fields whose presence matters: a field can be absent,
// present with null, or present with a value.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is a tri-state optional value for partial updates.
type Field[T any] struct {
	// Set is true when the field appeared in the request, even as null.
	Set   bool
	Value *T
}

// Absent returns a field that was not supplied.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

// Null returns a field explicitly supplied as null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// Of returns a field supplied with v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// IsNull reports whether the field was supplied as null.
func (f Field[T]) IsNull() bool {
	return f.Set && f.Value == nil
}

// HasValue reports whether the field was supplied with a non-null value.
func (f Field[T]) HasValue() bool {
	return f.Set && f.Value != nil
}

// UnmarshalJSON is only invoked for keys present in the document, which is what makes
// absence observable.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// MarshalJSON writes the value or null. Absent fields should be omitted by the caller.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}
