package types

import (
	"context"
	"reflect"
)

// Capability is the contract between the cache and whatever produces values.
type Capability[K comparable, V any] interface {

	/*
		Run is called when the cache needs a value for key.
		1. Store finds the entry empty or stale
		2. Store bumps the entry generation and marks it Loading
		3. Store calls Run(key) exactly once for that generation
		4. Store settles the entry with the value or the error

		Run may be invoked concurrently for different keys and its result may be
		thrown away if a newer fetch was started for the same key in the meantime.
		Timeouts are the capability's business: ctx is only canceled when the
		store is closed.
	*/
	Run(ctx context.Context, key K) (V, error)
}

// Matcher is an optional extension of Capability. When implemented, the store
// asks it which cached keys an invalidation for target touches, e.g. every
// page of a user's posts for that user's id.
type Matcher[K comparable] interface {
	Matches(key, target K) bool
}

// Named is an optional extension of Capability used to label logs and metrics.
type Named interface {
	Name() string
}

// CapabilityFunc adapts a plain function into a Capability.
type CapabilityFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

func (f CapabilityFunc[K, V]) Run(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

// CapabilityName returns the label used for a capability: its Name when it
// implements Named, otherwise its Go type.
func CapabilityName(c any) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	t := reflect.TypeOf(c)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
