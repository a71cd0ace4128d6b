// Package codec maps typed values to and from the raw byte payloads stored
// in a secret vault.
//
// Encode is total: every value has an encoding. Decode is partial: it
// reports false for input that fails validation and never panics.
// Integer and floating point values use the host's native byte order; the
// items they are written to never leave the device.
package codec

import (
	"sort"
)

// Codec encodes and decodes values of type T.
type Codec[T any] interface {
	// Encode returns the payload for v.
	Encode(v T) []byte
	// Decode parses a payload. It returns false when data is malformed.
	Decode(data []byte) (T, bool)
	// Name identifies the codec, e.g. "string" or "int".
	Name() string
}

// Decode applies c to an optional payload. An absent payload decodes to
// absent.
func Decode[T any](c Codec[T], data []byte, present bool) (T, bool) {
	if !present {
		var zero T
		return zero, false
	}
	return c.Decode(data)
}

type funcCodec[T any] struct {
	name string
	enc  func(T) []byte
	dec  func([]byte) (T, bool)
}

func (f funcCodec[T]) Encode(v T) []byte { return f.enc(v) }
func (f funcCodec[T]) Decode(data []byte) (T, bool) { return f.dec(data) }
func (f funcCodec[T]) Name() string { return f.name }

// Func builds a Codec from a pair of functions.
func Func[T any](name string, enc func(T) []byte, dec func([]byte) (T, bool)) Codec[T] {
	return funcCodec[T]{name: name, enc: enc, dec: dec}
}

// Text is a type-erased codec that converts between payloads and their
// textual form, for command line use.
type Text interface {
	Name() string
	// Parse converts s to a payload.
	Parse(s string) ([]byte, error)
	// Format renders a payload, reporting false if it does not decode.
	Format(data []byte) (string, bool)
}

var registry = map[string]Text{}

func register(t Text) {
	registry[t.Name()] = t
}

// Lookup returns the built-in text codec with the given name.
func Lookup(name string) (Text, bool) {
	t, ok := registry[name]
	return t, ok
}

// Names returns the names of all built-in codecs, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
