// Package sparkle implements the Sparkle speculative protocol: a
// multi-version table with whole-transaction re-execution on abort
// (components C and E).
package sparkle

import (
	"sync/atomic"
	"time"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
)

// getTuple is one recorded read: the key, the value observed, and the
// writer_id of the version it was read from (0 = genesis default).
type getTuple struct {
	Key     key.StorageKey
	Value   key.Word
	Version uint64
}

// putTuple is one recorded (not-yet-committed, or committed) write.
type putTuple struct {
	Key   key.StorageKey
	Value key.Word
}

// Transaction wraps a txn.Handle with the bookkeeping the Sparkle MVT and
// engine need: the local read/write cache consulted before falling
// through to the shared table, and the monolithic abort signal.
type Transaction struct {
	ID             uint64
	Handle         *txn.Handle
	ExecutionCount int
	StartTime      time.Time

	rerunFlag atomic.Bool
	berunFlag atomic.Bool

	tuplesGet []getTuple
	tuplesPut []putTuple

	mvt *MVT
}

// NewTransaction wraps a handle for the Sparkle engine. mvt is the shared
// multi-version table it reads through when a key is neither in its own
// write-set nor its own read cache.
func NewTransaction(id uint64, h *txn.Handle, mvt *MVT) *Transaction {
	tx := &Transaction{ID: id, Handle: h, StartTime: time.Now(), mvt: mvt}
	h.UpdateSetStorageHandler(tx.handleSet)
	h.UpdateGetStorageHandler(tx.handleGet)
	return tx
}

// QueueID satisfies queue.Identified so *Transaction can live in a
// queue.Priority ordered by ascending id.
func (tx *Transaction) QueueID() uint64 { return tx.ID }

func (tx *Transaction) handleSet(k key.StorageKey, v key.Word) {
	tx.tuplesPut = append(tx.tuplesPut, putTuple{Key: k, Value: v})
	if tx.rerunFlag.Load() {
		tx.Handle.Break()
	}
}

func (tx *Transaction) handleGet(k key.StorageKey) key.Word {
	for i := len(tx.tuplesPut) - 1; i >= 0; i-- {
		if tx.tuplesPut[i].Key == k {
			return tx.tuplesPut[i].Value
		}
	}
	for _, t := range tx.tuplesGet {
		if t.Key == k {
			return t.Value
		}
	}
	v, version := tx.mvt.Get(tx, k)
	tx.tuplesGet = append(tx.tuplesGet, getTuple{Key: k, Value: v, Version: version})
	return v
}

func (tx *Transaction) reset() {
	tx.tuplesGet = tx.tuplesGet[:0]
	tx.tuplesPut = tx.tuplesPut[:0]
	tx.rerunFlag.Store(false)
	tx.Handle.ApplyCheckpoint(0)
}
