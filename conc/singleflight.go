package conc

import "golang.org/x/sync/singleflight"

// Singleflight wraps golang.org/x/sync/singleflight.Group into generic one.
type Singleflight[T any] struct {
	internal singleflight.Group
}

// SingleflightResult is a generic Result wrapper for DoChan.
type SingleflightResult[T any] struct {
	Val    T
	Err    error
	Shared bool
}

// DoChan registers the call for key before returning, so a second DoChan for
// the same key made after this one returns is guaranteed to join the same
// execution as long as fn has not finished.
func (sf *Singleflight[T]) DoChan(key string, fn func() (T, error)) <-chan SingleflightResult[T] {
	raw := sf.internal.DoChan(key, func() (any, error) {
		return fn()
	})
	ch := make(chan SingleflightResult[T], 1)
	go func() {
		r := <-raw
		var t T
		if r.Val != nil {
			t = r.Val.(T)
		}
		ch <- SingleflightResult[T]{
			Val:    t,
			Err:    r.Err,
			Shared: r.Shared,
		}
	}()
	return ch
}
