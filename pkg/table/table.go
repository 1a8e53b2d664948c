// Package table implements the hash-partitioned key/value table shared by
// every protocol's multi-version table (component A). Each partition owns
// its own mutex, so unrelated keys never contend on the same lock.
package table

import "sync"

// Hasher produces a stable partition hash for a key. Keys used with this
// package implement Hasher directly (key.StorageKey.Hash), so no separate
// hash-function type parameter is needed.
type Hasher interface {
	Hash() uint64
}

// Partitioned is a generic hash-partitioned map: K must be both comparable
// (for map lookups) and a Hasher (to pick a partition).
type Partitioned[K comparable, V any] struct {
	locks      []sync.Mutex
	partitions []map[K]V
	n          uint64
}

// New creates a Partitioned table with the given number of partitions.
// partitions is clamped to at least 1.
func New[K comparable, V any](partitions int) *Partitioned[K, V] {
	if partitions < 1 {
		partitions = 1
	}
	t := &Partitioned[K, V]{
		locks:      make([]sync.Mutex, partitions),
		partitions: make([]map[K]V, partitions),
		n:          uint64(partitions),
	}
	for i := range t.partitions {
		t.partitions[i] = make(map[K]V)
	}
	return t
}

func partitionOf[K comparable](k K, n uint64) uint64 {
	h, ok := any(k).(Hasher)
	if !ok {
		return 0
	}
	return h.Hash() % n
}

// Get runs vmap against the stored value for k, if present, while holding
// k's partition lock. It is a no-op if k has never been written.
func (t *Partitioned[K, V]) Get(k K, vmap func(v V)) {
	p := partitionOf(k, t.n)
	t.locks[p].Lock()
	defer t.locks[p].Unlock()
	if v, ok := t.partitions[p][k]; ok {
		vmap(v)
	}
}

// Put runs vmap against the slot for k, creating the zero value first if
// absent, while holding k's partition lock, then stores back whatever vmap
// left behind.
func (t *Partitioned[K, V]) Put(k K, vmap func(v *V)) {
	p := partitionOf(k, t.n)
	t.locks[p].Lock()
	defer t.locks[p].Unlock()
	v := t.partitions[p][k]
	vmap(&v)
	t.partitions[p][k] = v
}

// Delete removes k from the table entirely.
func (t *Partitioned[K, V]) Delete(k K) {
	p := partitionOf(k, t.n)
	t.locks[p].Lock()
	defer t.locks[p].Unlock()
	delete(t.partitions[p], k)
}

// Len returns the total number of keys across all partitions. Intended for
// tests and diagnostics, not hot paths: it locks every partition in turn.
func (t *Partitioned[K, V]) Len() int {
	total := 0
	for i := range t.partitions {
		t.locks[i].Lock()
		total += len(t.partitions[i])
		t.locks[i].Unlock()
	}
	return total
}
