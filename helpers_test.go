package query_test

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/krisalay/query-cache/types"
)

// countingCapability returns "value-<key>-<call>" and counts its calls.
// When release is not nil every call blocks until it is closed.
type countingCapability struct {
	calls   atomic.Int64
	release chan struct{}
}

func (c *countingCapability) Run(ctx context.Context, key int) (string, error) {
	n := c.calls.Inc()
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("value-%d-%d", key, n), nil
}

type result struct {
	value string
	err   error
}

type call struct {
	key   int
	reply chan result
}

// scriptedCapability hands every call to the test, which decides when and
// how it completes.
type scriptedCapability struct {
	calls chan call
}

func newScripted() *scriptedCapability {
	return &scriptedCapability{calls: make(chan call, 16)}
}

func (s *scriptedCapability) Run(ctx context.Context, key int) (string, error) {
	c := call{key: key, reply: make(chan result, 1)}
	s.calls <- c
	select {
	case r := <-c.reply:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// pending returns the number of calls the test has not picked up yet.
func (s *scriptedCapability) pending() int {
	return len(s.calls)
}

// recorder collects the states delivered to one listener.
type recorder struct {
	mu     sync.Mutex
	states []types.State[string]
}

func (r *recorder) listen(s types.State[string]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []types.State[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.State[string], len(r.states))
	copy(out, r.states)
	return out
}

func (r *recorder) statuses() []types.Status {
	var out []types.Status
	for _, s := range r.all() {
		out = append(out, s.Status)
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recorder) last() types.State[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return types.State[string]{}
	}
	return r.states[len(r.states)-1]
}
