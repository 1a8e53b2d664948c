package aria

import (
	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/table"
)

// slot is the reservation-table entry for a single key: the committed
// value plus the current batch's reservation bookkeeping (component G).
// The batchIDGet/batchIDPut stamps let a stale reservation from a past
// batch be discarded lazily, the first time the key is touched again,
// rather than requiring an explicit sweep between batches.
type slot struct {
	value key.Word

	batchIDGet uint64
	batchIDPut uint64

	reservedGetTx *Transaction
	reservedPutTx *Transaction
}

func ensureSlot(s **slot) *slot {
	if *s == nil {
		*s = &slot{}
	}
	return *s
}

// ReservationTable is the shared table transactions reserve reads/writes
// against during the execute/reserve phases, and commit into once a
// batch resolves.
type ReservationTable struct {
	t *table.Partitioned[key.StorageKey, *slot]
}

// NewReservationTable builds a table hash-partitioned the same way the
// MVCC tables in sparkle/spectrum are.
func NewReservationTable(partitions int) *ReservationTable {
	return &ReservationTable{t: table.New[key.StorageKey, *slot](partitions)}
}

// Read returns the last committed value for a key, ignoring reservations.
func (r *ReservationTable) Read(k key.StorageKey) key.Word {
	var v key.Word
	r.t.Get(k, func(s *slot) {
		if s != nil {
			v = s.value
		}
	})
	return v
}

// Commit installs a value as the key's new committed state.
func (r *ReservationTable) Commit(k key.StorageKey, v key.Word) {
	r.t.Put(k, func(sp **slot) {
		s := ensureSlot(sp)
		s.value = v
	})
}

// ReserveGet keeps the lowest-id transaction that wants to read k this
// batch as the reservation's owner.
func (r *ReservationTable) ReserveGet(tx *Transaction, k key.StorageKey) {
	r.t.Put(k, func(sp **slot) {
		s := ensureSlot(sp)
		if s.batchIDGet != tx.BatchID {
			s.reservedGetTx = nil
			s.batchIDGet = tx.BatchID
		}
		if s.reservedGetTx == nil || s.reservedGetTx.ID > tx.ID {
			s.reservedGetTx = tx
		}
	})
}

// ReservePut mirrors ReserveGet for writers.
func (r *ReservationTable) ReservePut(tx *Transaction, k key.StorageKey) {
	r.t.Put(k, func(sp **slot) {
		s := ensureSlot(sp)
		if s.batchIDPut != tx.BatchID {
			s.reservedPutTx = nil
			s.batchIDPut = tx.BatchID
		}
		if s.reservedPutTx == nil || s.reservedPutTx.ID > tx.ID {
			s.reservedPutTx = tx
		}
	})
}

// CompareReservedGet reports whether tx still owns k's read reservation
// for its own batch: either nobody reserved it (can't happen once tx
// itself has) or tx is the lowest-id reader.
func (r *ReservationTable) CompareReservedGet(tx *Transaction, k key.StorageKey) bool {
	eq := true
	r.t.Get(k, func(s *slot) {
		if s == nil {
			return
		}
		eq = s.batchIDGet == tx.BatchID && (s.reservedGetTx == nil || s.reservedGetTx.ID == tx.ID)
	})
	return eq
}

// CompareReservedPut mirrors CompareReservedGet for writers.
func (r *ReservationTable) CompareReservedPut(tx *Transaction, k key.StorageKey) bool {
	eq := true
	r.t.Get(k, func(s *slot) {
		if s == nil {
			return
		}
		eq = s.batchIDPut == tx.BatchID && (s.reservedPutTx == nil || s.reservedPutTx.ID == tx.ID)
	})
	return eq
}
