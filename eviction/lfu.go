// This file implements LFU eviction.

package eviction

// lfuNode represents one key tracked by LFU.
type lfuNode[K comparable] struct {
	key  K
	freq int // how many times this key was looked up
	seq  uint64
}

type lfu[K comparable] struct {
	nodes map[K]*lfuNode[K]

	// seq breaks frequency ties: the older key goes first.
	seq uint64
}

func newLFU[K comparable]() *lfu[K] {
	return &lfu[K]{nodes: make(map[K]*lfuNode[K])}
}

func (l *lfu[K]) OnGet(k K) {
	if n, ok := l.nodes[k]; ok {
		n.freq++
	}
}

// OnPut starts a new key at frequency 1.
func (l *lfu[K]) OnPut(k K) {
	if _, ok := l.nodes[k]; ok {
		return
	}
	l.seq++
	l.nodes[k] = &lfuNode[K]{key: k, freq: 1, seq: l.seq}
}

// Evict scans for the eligible key with the lowest frequency.
// Unlike plain LFU we cannot keep a single minFreq bucket: the least used key
// may be pinned by a subscriber, so the scan has to skip it.
func (l *lfu[K]) Evict(eligible func(K) bool) (K, bool) {
	var victim *lfuNode[K]
	for _, n := range l.nodes {
		if eligible != nil && !eligible(n.key) {
			continue
		}
		if victim == nil || n.freq < victim.freq || (n.freq == victim.freq && n.seq < victim.seq) {
			victim = n
		}
	}
	if victim == nil {
		var zero K
		return zero, false
	}
	delete(l.nodes, victim.key)
	return victim.key, true
}

func (l *lfu[K]) Remove(k K) {
	delete(l.nodes, k)
}
