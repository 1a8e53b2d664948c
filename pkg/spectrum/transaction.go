// Package spectrum implements the Spectrum speculative protocol: like
// Sparkle, but abort signals carry the causing key so a stale transaction
// rolls back only to the checkpoint taken just before that read, instead
// of restarting from scratch (components D and F).
package spectrum

import (
	"sync"
	"time"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
)

// getTuple is one recorded read, including the checkpoint taken
// immediately after the value was returned (spec.md §9: the checkpoint
// must be made strictly after the read returns, but before the
// interpreter observes it in any way that persists).
type getTuple struct {
	Key          key.StorageKey
	Value        key.Word
	Version      uint64
	PutLenAtRead int
	CheckpointID int
}

type putTuple struct {
	Key   key.StorageKey
	Value key.Word
}

// Transaction wraps a txn.Handle with Spectrum's bookkeeping: the local
// read/write cache, and rerunKeys — the set of keys whose writer changed
// underneath this transaction, protected by its own mutex since both the
// owning worker and other workers' table.Put calls touch it.
type Transaction struct {
	ID        uint64
	Handle    *txn.Handle
	StartTime time.Time

	mu         sync.Mutex
	rerunKeys  []key.StorageKey
	shouldWait uint64

	tuplesGet []getTuple
	tuplesPut []putTuple

	mvt *MVT
}

// NewTransaction wraps a handle for the Spectrum engine.
func NewTransaction(id uint64, h *txn.Handle, mvt *MVT) *Transaction {
	tx := &Transaction{ID: id, Handle: h, StartTime: time.Now(), mvt: mvt}
	h.UpdateSetStorageHandler(tx.handleSet)
	h.UpdateGetStorageHandler(tx.handleGet)
	return tx
}

// QueueID satisfies queue.Identified.
func (tx *Transaction) QueueID() uint64 { return tx.ID }

// HasRerunKeys reports whether any key has caused this transaction to
// need a partial rollback.
func (tx *Transaction) HasRerunKeys() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.rerunKeys) != 0
}

// AddRerunKeys records that k's writer changed underneath this
// transaction, caused by a transaction with id cause_id. should_wait
// tracks the largest such cause across every recorded key.
func (tx *Transaction) AddRerunKeys(k key.StorageKey, causeID uint64) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.rerunKeys = append(tx.rerunKeys, k)
	if causeID > tx.shouldWait {
		tx.shouldWait = causeID
	}
}

// swapRerunKeys atomically takes ownership of the current rerun key set,
// leaving the transaction's own set empty.
func (tx *Transaction) swapRerunKeys() []key.StorageKey {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	keys := tx.rerunKeys
	tx.rerunKeys = nil
	return keys
}

func (tx *Transaction) handleSet(k key.StorageKey, v key.Word) {
	tx.tuplesPut = append(tx.tuplesPut, putTuple{Key: k, Value: v})
	if tx.HasRerunKeys() {
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
	if tx.HasRerunKeys() {
		tx.Handle.Break()
		return key.ZeroWord
	}
	v, version := tx.mvt.Get(tx, k)
	// The checkpoint must be taken right here: after the value has been
	// returned to the caller but before the interpreter has done
	// anything observable with it (spec.md §9).
	checkpointID := tx.Handle.MakeCheckpoint()
	tx.tuplesGet = append(tx.tuplesGet, getTuple{
		Key:          k,
		Value:        v,
		Version:      version,
		PutLenAtRead: len(tx.tuplesPut),
		CheckpointID: checkpointID,
	})
	return v
}
