package aria

import (
	"testing"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
)

func newTx(id, batchID uint64) *Transaction {
	h := txn.New(id, nil, txn.Basic)
	return NewTransaction(id, batchID, h)
}

func TestReservationTable_ReserveGetKeepsLowestID(t *testing.T) {
	rt := NewReservationTable(4)
	k := key.New(key.AddressFromUint64(1), key.SlotFromUint64(0))
	hi := newTx(5, 0)
	lo := newTx(2, 0)

	rt.ReserveGet(hi, k)
	rt.ReserveGet(lo, k)

	if !rt.CompareReservedGet(lo, k) {
		t.Fatalf("expected the lowest-id transaction to own the reservation")
	}
	if rt.CompareReservedGet(hi, k) {
		t.Fatalf("expected the higher-id transaction to be displaced")
	}
}

func TestReservationTable_ReservePutKeepsLowestID(t *testing.T) {
	rt := NewReservationTable(4)
	k := key.New(key.AddressFromUint64(1), key.SlotFromUint64(1))
	hi := newTx(9, 0)
	lo := newTx(3, 0)

	rt.ReservePut(hi, k)
	rt.ReservePut(lo, k)

	if !rt.CompareReservedPut(lo, k) {
		t.Fatalf("expected the lowest-id transaction to own the put reservation")
	}
	if rt.CompareReservedPut(hi, k) {
		t.Fatalf("expected the higher-id transaction to be displaced")
	}
}

func TestReservationTable_StaleReservationDoesNotCarryAcrossBatches(t *testing.T) {
	rt := NewReservationTable(4)
	k := key.New(key.AddressFromUint64(2), key.SlotFromUint64(0))

	batch0 := newTx(1, 0)
	rt.ReserveGet(batch0, k)

	batch1 := newTx(1, 1)
	if rt.CompareReservedGet(batch1, k) {
		t.Fatalf("expected a stale reservation from a past batch to not carry over")
	}
	rt.ReserveGet(batch1, k)
	if !rt.CompareReservedGet(batch1, k) {
		t.Fatalf("expected batch1's own reservation to hold once made")
	}
}

func TestReservationTable_CommitAndRead(t *testing.T) {
	rt := NewReservationTable(4)
	k := key.New(key.AddressFromUint64(3), key.SlotFromUint64(0))
	rt.Commit(k, key.WordFromUint64(42))
	if got := rt.Read(k); got != key.WordFromUint64(42) {
		t.Fatalf("expected committed value to be readable, got %v", got)
	}
}
