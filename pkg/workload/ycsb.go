package workload

import (
	"sync"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
)

// YCSB generates fixed-shape transactions over a flat keyspace: five
// reads followed by five writes, each touching a key chosen by the
// configured generator; every write stores a value derived from the sum
// of the five read keys. One contract address backs every key, matching the
// original benchmark's single-storage-space layout.
type YCSB struct {
	mu      sync.Mutex
	address key.Address
	keys    KeyGenerator
	nextID  uint64
}

// NewYCSB builds a generator over numElements keys; zipfExponent > 0
// selects a Zipfian key distribution, 0 a uniform one.
func NewYCSB(numElements uint64, zipfExponent float64) *YCSB {
	return &YCSB{
		address: key.AddressFromUint64(1),
		keys:    NewKeyGenerator(numElements, zipfExponent, 1),
	}
}

// Next builds the next transaction's program: five reads, then five
// writes, each to an independently chosen key.
func (w *YCSB) Next() *txn.Handle {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.mu.Unlock()

	readKeys := make([]key.StorageKey, 5)
	writeKeys := make([]key.StorageKey, 5)
	for i := range readKeys {
		readKeys[i] = key.New(w.address, key.SlotFromUint64(w.keys.Next()))
	}
	for i := range writeKeys {
		writeKeys[i] = key.New(w.address, key.SlotFromUint64(w.keys.Next()))
	}

	program := make(txn.Program, 0, 10)
	for _, k := range readKeys {
		k := k
		program = append(program, func(h *txn.Handle) { h.Read(k) })
	}
	for _, k := range writeKeys {
		k := k
		program = append(program, func(h *txn.Handle) {
			acc := uint64(0)
			for _, rk := range readKeys {
				acc += h.Read(rk).Uint64()
			}
			h.Write(k, key.WordFromUint64(acc+1))
		})
	}

	h := txn.New(id, program, txn.Basic)
	return h
}
