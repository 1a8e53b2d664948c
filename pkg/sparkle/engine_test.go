package sparkle_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/sparkle"
	"github.com/fluxledger/dcc/pkg/txn"
	"github.com/stretchr/testify/require"
)

// constWorkload hands out identical single-write programs against a
// shared counter key, forever.
type constWorkload struct {
	k key.StorageKey
}

func (w constWorkload) Next() *txn.Handle {
	program := txn.Program{
		func(h *txn.Handle) {
			v := h.Read(w.k)
			h.Write(w.k, key.WordFromUint64(v.Uint64()+1))
		},
	}
	return txn.New(0, program, txn.Basic)
}

type countingStats struct {
	mu       sync.Mutex
	commits  int
	executes int
}

func (s *countingStats) JournalExecute() {
	s.mu.Lock()
	s.executes++
	s.mu.Unlock()
}

func (s *countingStats) JournalCommit(int64) {
	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
}

func TestEngine_FinalizesInAscendingOrder(t *testing.T) {
	k := key.New(key.AddressFromUint64(1), key.SlotFromUint64(1))
	wl := constWorkload{k: k}
	stats := &countingStats{}

	eng, err := sparkle.New(wl, stats, sparkle.Config{
		NumExecutors:    2,
		NumDispatchers:  1,
		TablePartitions: 4,
	})
	require.NoError(t, err)

	eng.Start()
	deadline := time.After(500 * time.Millisecond)
	for eng.LastFinalized() < 20 {
		select {
		case <-deadline:
			t.Fatalf("only finalized %d transactions in time", eng.LastFinalized())
		default:
		}
	}
	eng.Stop()

	require.GreaterOrEqual(t, stats.commits, 20)
}

func TestEngine_RejectsInvalidConfig(t *testing.T) {
	_, err := sparkle.New(constWorkload{}, &countingStats{}, sparkle.Config{})
	require.Error(t, err)
}
