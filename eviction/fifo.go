// This file implements FIFO eviction.

package eviction

type fifo[K comparable] struct {
	// queue keeps keys in the order they were inserted. Index 0 is the oldest key.
	queue []K

	// set keeps track of which keys are currently in the queue.
	set map[K]struct{}
}

func newFIFO[K comparable]() *fifo[K] {
	return &fifo[K]{set: make(map[K]struct{})}
}

// OnGet is ignored: FIFO only cares about insertion order.
func (f *fifo[K]) OnGet(K) {}

func (f *fifo[K]) OnPut(k K) {
	if _, ok := f.set[k]; ok {
		return
	}
	f.queue = append(f.queue, k)
	f.set[k] = struct{}{}
}

// Evict removes the oldest eligible key.
func (f *fifo[K]) Evict(eligible func(K) bool) (K, bool) {
	for i, k := range f.queue {
		if eligible != nil && !eligible(k) {
			continue
		}
		f.queue = append(f.queue[:i], f.queue[i+1:]...)
		delete(f.set, k)
		return k, true
	}
	var zero K
	return zero, false
}

func (f *fifo[K]) Remove(k K) {
	if _, ok := f.set[k]; !ok {
		return
	}
	delete(f.set, k)

	for i, v := range f.queue {
		if v == k {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
}
