package types

import (
	"fmt"
	"time"
)

// Status is the coarse phase of a cached entry.
type Status int

const (
	// StatusEmpty means the entry was never fetched.
	StatusEmpty Status = iota

	// StatusLoading means a fetch is in flight. The previous settlement, if
	// any, is retained in the State.
	StatusLoading

	// StatusSettled means the latest fetch finished with a value or an error.
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "Empty"
	case StatusLoading:
		return "Loading"
	case StatusSettled:
		return "Settled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

/*
State is an immutable snapshot of an entry.

Consumers always observe exactly one of:
  - Empty
  - Loading (with or without a previous result)
  - Settled with a value
  - Settled with an error
*/
type State[V any] struct {
	Status Status

	// Value and Err hold the latest settled result. While Loading they hold
	// the previous settlement when HasValue is true.
	Value V
	Err   error

	// HasValue reports whether Value/Err carry a settled result.
	HasValue bool

	// SettledAt is the time of the latest settlement, zero if none.
	SettledAt time.Time

	// Generation is the fetch generation this snapshot belongs to.
	Generation uint64
}

func (s State[V]) IsEmpty() bool   { return s.Status == StatusEmpty }
func (s State[V]) IsLoading() bool { return s.Status == StatusLoading }
func (s State[V]) IsSettled() bool { return s.Status == StatusSettled }

// IsOK reports whether the state is settled without error.
func (s State[V]) IsOK() bool { return s.Status == StatusSettled && s.Err == nil }

// IsErr reports whether the state is settled with an error.
func (s State[V]) IsErr() bool { return s.Status == StatusSettled && s.Err != nil }

// OK returns the value when a successful result is available, including the
// one retained while a refetch is loading.
func (s State[V]) OK() (V, bool) {
	if s.HasValue && s.Err == nil {
		return s.Value, true
	}
	var zero V
	return zero, false
}

// Result returns the settled value and error. Check HasValue first: a state
// without a result returns the zero value and a nil error.
func (s State[V]) Result() (V, error) {
	return s.Value, s.Err
}

// Loading returns the state moved into StatusLoading, keeping any result.
func (s State[V]) Loading(generation uint64) State[V] {
	s.Status = StatusLoading
	s.Generation = generation
	return s
}

// Settled builds the state produced by a finished fetch.
func Settled[V any](v V, err error, at time.Time, generation uint64) State[V] {
	return State[V]{
		Status:     StatusSettled,
		Value:      v,
		Err:        err,
		HasValue:   true,
		SettledAt:  at,
		Generation: generation,
	}
}

func (s State[V]) String() string {
	switch s.Status {
	case StatusSettled:
		if s.Err != nil {
			return fmt.Sprintf("Settled(Err(%v))", s.Err)
		}
		return fmt.Sprintf("Settled(Ok(%v))", s.Value)
	case StatusLoading:
		if s.HasValue {
			if s.Err != nil {
				return fmt.Sprintf("Loading(Err(%v))", s.Err)
			}
			return fmt.Sprintf("Loading(Ok(%v))", s.Value)
		}
		return "Loading"
	default:
		return s.Status.String()
	}
}
