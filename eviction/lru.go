// This file implements LRU eviction.

package eviction

// lruNode represents ONE key inside the LRU structure. We use a doubly-linked list to track usage order.
type lruNode[K comparable] struct {
	key  K
	prev *lruNode[K]
	next *lruNode[K]
}

type lru[K comparable] struct {
	// nodes maps keys to their list nodes so they can be moved in O(1).
	nodes map[K]*lruNode[K]

	// head points to the MOST recently used key
	head *lruNode[K]

	// tail points to the LEAST recently used key
	tail *lruNode[K]
}

func newLRU[K comparable]() *lru[K] {
	return &lru[K]{nodes: make(map[K]*lruNode[K])}
}

// OnGet marks the key as most recently used.
func (l *lru[K]) OnGet(k K) {
	if n, ok := l.nodes[k]; ok {
		l.moveToFront(n)
	}
}

// OnPut tracks a new key at the front. Known keys are left where they are.
func (l *lru[K]) OnPut(k K) {
	if _, ok := l.nodes[k]; ok {
		return
	}
	n := &lruNode[K]{key: k}
	l.nodes[k] = n
	l.addFront(n)
}

// Evict walks from the tail (least recently used) towards the head and
// removes the first eligible key.
func (l *lru[K]) Evict(eligible func(K) bool) (K, bool) {
	for n := l.tail; n != nil; n = n.prev {
		if eligible != nil && !eligible(n.key) {
			continue
		}
		l.remove(n)
		delete(l.nodes, n.key)
		return n.key, true
	}
	var zero K
	return zero, false
}

func (l *lru[K]) Remove(k K) {
	if n, ok := l.nodes[k]; ok {
		l.remove(n)
		delete(l.nodes, k)
	}
}

func (l *lru[K]) addFront(n *lruNode[K]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n

	if l.tail == nil {
		l.tail = n
	}
}

func (l *lru[K]) remove(n *lruNode[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (l *lru[K]) moveToFront(n *lruNode[K]) {
	l.remove(n)
	l.addFront(n)
}
