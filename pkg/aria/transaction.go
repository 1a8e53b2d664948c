// Package aria implements the deterministic batch protocol: a four-phase
// optimistic round (execute, reserve, verify, commit) with a pessimistic
// lock-ordered fallback for transactions that conflict within the batch
// (components G, H, I).
package aria

import (
	"sync/atomic"
	"time"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
)

// Transaction wraps a txn.Handle with Aria's per-batch local buffers: every
// read and write during the optimistic execute phase stays local until
// Commit (or the fallback path) publishes it to the shared table.
type Transaction struct {
	ID           uint64
	BatchID      uint64
	Handle       *txn.Handle
	StartTime    time.Time
	FlagConflict bool

	LocalGet map[key.StorageKey]key.Word
	LocalPut map[key.StorageKey]key.Word

	committed atomic.Bool
}

// NewTransaction wraps a handle for a given global transaction id and the
// batch that id belongs to.
func NewTransaction(id, batchID uint64, h *txn.Handle) *Transaction {
	return &Transaction{
		ID:        id,
		BatchID:   batchID,
		Handle:    h,
		StartTime: time.Now(),
		LocalGet:  make(map[key.StorageKey]key.Word),
		LocalPut:  make(map[key.StorageKey]key.Word),
	}
}

// Committed reports whether this transaction's writes have been
// published, either via the batch commit phase or the fallback path.
func (tx *Transaction) Committed() bool { return tx.committed.Load() }

func (tx *Transaction) markCommitted() { tx.committed.Store(true) }

// installExecuteHandlers wires the handle's storage callbacks for the
// optimistic execute phase: reads check local_put then local_get before
// falling through to the batch's committed snapshot, and writes never
// leave the local_put buffer (component H).
func (tx *Transaction) installExecuteHandlers(table *ReservationTable) {
	tx.Handle.UpdateGetStorageHandler(func(k key.StorageKey) key.Word {
		if v, ok := tx.LocalPut[k]; ok {
			return v
		}
		if v, ok := tx.LocalGet[k]; ok {
			return v
		}
		v := table.Read(k)
		tx.LocalGet[k] = v
		return v
	})
	tx.Handle.UpdateSetStorageHandler(func(k key.StorageKey, v key.Word) {
		tx.LocalPut[k] = v
	})
}

// installFallbackHandlers wires the handle directly against the live
// table: the fallback path runs serialized behind a lock dependency, so
// there is no need to buffer reads or writes locally.
func (tx *Transaction) installFallbackHandlers(table *ReservationTable) {
	tx.Handle.UpdateGetStorageHandler(func(k key.StorageKey) key.Word {
		return table.Read(k)
	})
	tx.Handle.UpdateSetStorageHandler(func(k key.StorageKey, v key.Word) {
		table.Commit(k, v)
	})
}
