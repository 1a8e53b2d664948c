package aria

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fluxledger/dcc/pkg/errors"
	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/txn"
	"github.com/fluxledger/dcc/pkg/xlog"
)

// Workload supplies the next handle to run; the same contract sparkle
// and spectrum use.
type Workload interface {
	Next() *txn.Handle
}

// Statistics receives execution/commit journal events.
type Statistics interface {
	JournalExecute()
	JournalCommit(latencyMicros int64)
}

// Config configures a batch round. EnableReordering relaxes the verify
// rule from waw||war to waw||(raw&&war): a pure write-after-read with no
// matching read-after-write can be resolved by committing in id order
// instead of forcing an abort.
type Config struct {
	NumThreads       int
	TablePartitions  int
	BatchSize        int
	EnableReordering bool
	Backend          txn.Backend
}

func (c Config) validate() error {
	if c.NumThreads <= 0 {
		return &errors.ConfigurationError{Protocol: "aria", Reason: "num_threads must be positive"}
	}
	if c.TablePartitions <= 0 {
		return &errors.ConfigurationError{Protocol: "aria", Reason: "table_partitions must be positive"}
	}
	if c.BatchSize <= 0 {
		return &errors.ConfigurationError{Protocol: "aria", Reason: "batch_size must be positive"}
	}
	return nil
}

// Engine drives Aria's deterministic batch rounds: execute, reserve,
// verify, commit, and — only for the transactions that conflicted — a
// lock-ordered fallback pass (components H and I).
type Engine struct {
	cfg      Config
	runID    uuid.UUID
	workload Workload
	stats    Statistics

	table *ReservationTable

	txCounter atomic.Uint64
	stopFlag  atomic.Bool
	wg        sync.WaitGroup
}

// New validates cfg and builds an Engine ready to Start.
func New(workload Workload, stats Statistics, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	runID, err := uuid.NewV7()
	if err != nil {
		panic(err) // entropy source exhausted, not recoverable
	}
	return &Engine{
		cfg:      cfg,
		runID:    runID,
		workload: workload,
		stats:    stats,
		table:    NewReservationTable(cfg.TablePartitions),
	}, nil
}

// RunID returns the identifier minted for this engine instance at
// construction time, stable for the engine's whole lifetime.
func (e *Engine) RunID() string { return e.runID.String() }

// Start launches the batch-processing loop in the background.
func (e *Engine) Start() {
	log := xlog.WithProtocol("aria")
	log.Info().Str("run_id", e.runID.String()).Int("threads", e.cfg.NumThreads).Int("batch_size", e.cfg.BatchSize).Msg("starting")
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for !e.stopFlag.Load() {
			e.runBatch()
		}
		log.Info().Msg("batch loop stopped")
	}()
}

// Stop requests the loop exit after its current batch and waits for it.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.wg.Wait()
}

// Read returns a key's committed value, letting a caller (tests, a
// conservation-invariant checker) observe state once Stop has drained the
// batch loop.
func (e *Engine) Read(k key.StorageKey) key.Word {
	return e.table.Read(k)
}

// nextTransaction materializes the next slot in a batch, generating it
// from the workload on first touch. id is global and strictly
// increasing; batch_id buckets ids into fixed-size batches.
func (e *Engine) nextTransaction() *Transaction {
	id := e.txCounter.Add(1) - 1
	h := e.workload.Next()
	h.Backend = e.cfg.Backend
	return NewTransaction(id, id/uint64(e.cfg.BatchSize), h)
}

// parallelEach fans a per-item function out across at most concurrency
// goroutines and waits for all of them, mirroring the fixed-size thread
// pool the original ParallelEach submits each batch phase to.
func parallelEach(batch []*Transaction, concurrency int, fn func(*Transaction)) {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	wg.Add(len(batch))
	for _, tx := range batch {
		tx := tx
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			fn(tx)
		}()
	}
	wg.Wait()
}

// runBatch executes one full round: build a batch, execute+reserve,
// verify+commit the non-conflicting transactions, then — only if some
// transaction conflicted — resolve the rest through the lock-ordered
// fallback.
func (e *Engine) runBatch() {
	batch := make([]*Transaction, e.cfg.BatchSize)
	for i := range batch {
		if e.stopFlag.Load() {
			return
		}
		batch[i] = e.nextTransaction()
	}

	parallelEach(batch, e.cfg.NumThreads, func(tx *Transaction) {
		e.execute(tx)
		e.reserve(tx)
		e.stats.JournalExecute()
	})

	var hasConflict atomic.Bool
	parallelEach(batch, e.cfg.NumThreads, func(tx *Transaction) {
		e.verify(tx)
		if tx.FlagConflict {
			hasConflict.Store(true)
			return
		}
		e.commit(tx)
		e.stats.JournalCommit(time.Since(tx.StartTime).Microseconds())
	})

	if !hasConflict.Load() {
		return
	}

	lockTable := NewLockTable(e.cfg.TablePartitions)
	parallelEach(batch, e.cfg.NumThreads, func(tx *Transaction) {
		if !tx.FlagConflict {
			return
		}
		e.prepareLockTable(tx, lockTable)
	})

	parallelEach(batch, e.cfg.NumThreads, func(tx *Transaction) {
		if !tx.FlagConflict {
			return
		}
		e.fallback(tx, lockTable)
		e.stats.JournalExecute()
		e.stats.JournalCommit(time.Since(tx.StartTime).Microseconds())
	})
}

// execute runs a transaction's program against its local read/write
// buffers, viewing a snapshot of the table as of the start of the batch.
func (e *Engine) execute(tx *Transaction) {
	tx.installExecuteHandlers(e.table)
	tx.Handle.Execute()
}

// reserve journals the lowest-id reader/writer of every key the
// transaction touched into the shared reservation table.
func (e *Engine) reserve(tx *Transaction) {
	for k := range tx.LocalGet {
		e.table.ReserveGet(tx, k)
	}
	for k := range tx.LocalPut {
		e.table.ReservePut(tx, k)
	}
}

// verify recomputes the three conflict flags from the reservation table
// and combines them into flag_conflict under the configured strategy.
func (e *Engine) verify(tx *Transaction) {
	var war, raw, waw bool
	for k := range tx.LocalGet {
		// the value this transaction read may already be stale: some
		// lower-id transaction also wants to write this key.
		raw = raw || !e.table.CompareReservedPut(tx, k)
	}
	for k := range tx.LocalPut {
		// this key was already read by a lower-id transaction; writing
		// it now would invalidate that read.
		war = war || !e.table.CompareReservedGet(tx, k)
	}
	for k := range tx.LocalPut {
		// a lower-id transaction also wants to write this key.
		waw = waw || !e.table.CompareReservedPut(tx, k)
	}
	if e.cfg.EnableReordering {
		tx.FlagConflict = waw || (raw && war)
	} else {
		tx.FlagConflict = waw || war
	}
}

// commit publishes a non-conflicting transaction's buffered writes.
func (e *Engine) commit(tx *Transaction) {
	for k, v := range tx.LocalPut {
		e.table.Commit(k, v)
	}
	tx.markCommitted()
}

// prepareLockTable registers a conflicting transaction as a dependent
// reader/writer of every key it touched, for the fallback pass to
// compute wait-on relationships from.
func (e *Engine) prepareLockTable(tx *Transaction, lockTable *LockTable) {
	for k := range tx.LocalGet {
		lockTable.addGetDep(k, tx)
	}
	for k := range tx.LocalPut {
		lockTable.addPutDep(k, tx)
	}
}

// fallback re-executes a conflicting transaction directly against the
// live table, after waiting for the highest-id lower-id transaction that
// shares one of its keys to commit. This serializes conflicting
// transactions in id order without taking any lock explicitly.
func (e *Engine) fallback(tx *Transaction, lockTable *LockTable) {
	tx.installFallbackHandlers(e.table)

	var shouldWait *Transaction
	consider := func(other *Transaction) {
		if other.ID < tx.ID && (shouldWait == nil || other.ID > shouldWait.ID) {
			shouldWait = other
		}
	}
	for k := range tx.LocalPut {
		lockTable.get(k, func(s *lockSlot) {
			for _, other := range s.depsGet {
				consider(other)
			}
			for _, other := range s.depsPut {
				consider(other)
			}
		})
	}
	for k := range tx.LocalGet {
		lockTable.get(k, func(s *lockSlot) {
			for _, other := range s.depsPut {
				consider(other)
			}
		})
	}

	for shouldWait != nil && !shouldWait.Committed() {
		runtime.Gosched()
	}

	tx.Handle.Reset()
	tx.LocalGet = make(map[key.StorageKey]key.Word)
	tx.LocalPut = make(map[key.StorageKey]key.Word)
	tx.Handle.Execute()
	tx.markCommitted()
}
