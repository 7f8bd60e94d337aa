// Package ring holds fixed pattern lists that are read cyclically.
package ring

import "errors"

var ErrEmptyRing = errors.New("empty ring")

// Element is either a single value or a chord of simultaneous values.
type Element[T any] struct {
	values []T
	chord  bool
}

func Scalar[T any](v T) Element[T] {
	return Element[T]{values: []T{v}}
}

func Chord[T any](vs ...T) Element[T] {
	return Element[T]{values: append([]T(nil), vs...), chord: true}
}

func (e Element[T]) IsChord() bool { return e.chord }

// Value returns the scalar value, or the first value of a chord.
func (e Element[T]) Value() T {
	var zero T
	if len(e.values) == 0 {
		return zero
	}
	return e.values[0]
}

// Values returns every value; a scalar yields a one element slice.
func (e Element[T]) Values() []T {
	return append([]T(nil), e.values...)
}

type Ring[T any] []Element[T]

func New[T any](elems ...Element[T]) Ring[T] {
	return Ring[T](append([]Element[T](nil), elems...))
}

// Of builds a ring of scalars.
func Of[T any](vs ...T) Ring[T] {
	r := make(Ring[T], len(vs))
	for i, v := range vs {
		r[i] = Scalar(v)
	}
	return r
}

// At indexes cyclically; negative indexes count from the end.
func (r Ring[T]) At(i int) (Element[T], error) {
	if len(r) == 0 {
		return Element[T]{}, ErrEmptyRing
	}
	i %= len(r)
	if i < 0 {
		i += len(r)
	}
	return r[i], nil
}

// Ticker hands out successive positions for a key.
type Ticker interface {
	Tick(key string) int
}

// Pick advances key on t and returns the element at the previous position.
func Pick[T any](r Ring[T], t Ticker, key string) (Element[T], error) {
	return r.At(t.Tick(key))
}
