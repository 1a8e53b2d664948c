package spectrum

import (
	"testing"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
)

type noopStats struct{}

func (noopStats) JournalExecute()     {}
func (noopStats) JournalCommit(int64) {}

func TestPartialRollback_RollsBackOnlyToInvalidatedRead(t *testing.T) {
	mvt := NewMVT(4)
	ka := key.New(key.AddressFromUint64(1), key.SlotFromUint64(0))
	kb := key.New(key.AddressFromUint64(1), key.SlotFromUint64(1))

	readsA, readsB := 0, 0
	program := txn.Program{
		func(h *txn.Handle) { readsA++; h.Read(ka) },
		func(h *txn.Handle) { readsB++; h.Read(kb) },
	}
	h := txn.New(5, program, txn.CopyOnWrite)
	tx := NewTransaction(5, h, mvt)

	eng := &Engine{mvt: mvt, stats: noopStats{}}
	eng.execute(tx)
	if !h.Done() {
		t.Fatalf("expected first execution to run to completion")
	}
	if readsA != 1 || readsB != 1 {
		t.Fatalf("expected one read of each key, got a=%d b=%d", readsA, readsB)
	}

	// A smaller-id transaction now writes ka, invalidating tx's first read.
	cause := newScenarioTx(1, mvt)
	mvt.Put(cause, ka, key.WordFromUint64(99))

	if !tx.HasRerunKeys() {
		t.Fatalf("expected tx to be marked for rollback")
	}

	eng.partialRollback(tx)

	if readsA != 2 {
		t.Fatalf("expected ka's read to be redone, got %d", readsA)
	}
	if readsB != 2 {
		t.Fatalf("expected kb's read to also be redone since it came after ka in program order, got %d", readsB)
	}
	if len(tx.tuplesGet) != 2 {
		t.Fatalf("expected both reads re-recorded after rollback, got %d", len(tx.tuplesGet))
	}
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	if _, err := New(nil, noopStats{}, Config{}); err == nil {
		t.Fatalf("expected a configuration error for zero-value Config")
	}
}
