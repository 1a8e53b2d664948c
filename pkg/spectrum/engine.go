package spectrum

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fluxledger/dcc/pkg/errors"
	"github.com/fluxledger/dcc/pkg/queue"
	"github.com/fluxledger/dcc/pkg/txn"
	"github.com/fluxledger/dcc/pkg/xlog"
)

// Workload yields a fresh program to execute on each call.
type Workload interface {
	Next() *txn.Handle
}

// Statistics is the §6 statistics sink contract.
type Statistics interface {
	JournalExecute()
	JournalCommit(latencyMicros int64)
}

// Config holds Spectrum's construction options (spec.md §6 table).
type Config struct {
	NumExecutors    int
	TablePartitions int
	Backend         txn.Backend
}

func (c Config) validate() error {
	if c.NumExecutors <= 0 {
		return &errors.ConfigurationError{Protocol: "spectrum", Reason: "num_executors must be positive"}
	}
	if c.TablePartitions <= 0 {
		return &errors.ConfigurationError{Protocol: "spectrum", Reason: "table_partitions must be positive"}
	}
	return nil
}

// Engine is the Spectrum protocol (component F): Sparkle's state machine
// with step 3 replaced by a partial rollback to the checkpoint taken
// immediately before the first invalidated read.
type Engine struct {
	cfg       Config
	runID     uuid.UUID
	workload  Workload
	stats     Statistics
	mvt       *MVT
	queues    []*queue.Priority[*Transaction]
	lastExec  atomic.Uint64
	lastFinal atomic.Uint64
	stopFlag  atomic.Bool
	wg        sync.WaitGroup
}

// New validates cfg and builds a Spectrum engine.
func New(workload Workload, stats Statistics, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	runID, err := uuid.NewV7()
	if err != nil {
		panic(err) // entropy source exhausted, not recoverable
	}
	e := &Engine{
		cfg:      cfg,
		runID:    runID,
		workload: workload,
		stats:    stats,
		mvt:      NewMVT(cfg.TablePartitions),
		queues:   make([]*queue.Priority[*Transaction], cfg.NumExecutors),
	}
	e.lastExec.Store(1)
	for i := range e.queues {
		e.queues[i] = queue.NewPriority[*Transaction]()
	}
	return e, nil
}

// Start launches the executor goroutines. Unlike Sparkle, Spectrum has no
// separate dispatcher pool: each executor generates its own work when its
// local queue runs dry (mirrors the original's single-role executor).
func (e *Engine) Start() {
	e.stopFlag.Store(false)
	logger := xlog.WithProtocol("spectrum")
	logger.Info().Str("run_id", e.runID.String()).Int("executors", e.cfg.NumExecutors).Str("backend", e.cfg.Backend.String()).Msg("starting")

	for i := 0; i < e.cfg.NumExecutors; i++ {
		e.wg.Add(1)
		go e.runExecutor(e.queues[i])
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.wg.Wait()
	xlog.WithProtocol("spectrum").Info().Msg("stopped")
}

// LastFinalized returns the id of the most recently finalized transaction.
func (e *Engine) LastFinalized() uint64 { return e.lastFinal.Load() }

// RunID returns the identifier minted for this engine instance at
// construction time, stable for the engine's whole lifetime.
func (e *Engine) RunID() string { return e.runID.String() }

// create generates a fresh transaction, runs its first execution, and —
// mirroring Sparkle's step 1+2 — attempts to commit its writes right away
// unless that very execution already picked up a rerun key (another
// worker's write landed on one of its reads mid-flight).
func (e *Engine) create() *Transaction {
	id := e.lastExec.Add(1) - 1
	h := e.workload.Next()
	h.Backend = e.cfg.Backend
	tx := NewTransaction(id, h, e.mvt)
	e.execute(tx)
	if !tx.HasRerunKeys() {
		e.commitAttempt(tx)
	}
	return tx
}

func (e *Engine) execute(tx *Transaction) {
	e.stats.JournalExecute()
	tx.Handle.Execute()
}

func (e *Engine) runExecutor(q *queue.Priority[*Transaction]) {
	defer e.wg.Done()
	for !e.stopFlag.Load() {
		tx, ok := q.Pop()
		if !ok {
			q.Push(e.create())
			continue
		}
		if e.lastFinal.Load() < tx.shouldWait {
			q.Push(tx)
			continue
		}
		e.drive(tx, q)
	}
}

// drive runs one transaction through spec.md §4.F's state machine.
func (e *Engine) drive(tx *Transaction, q *queue.Priority[*Transaction]) {
	for {
		if e.stopFlag.Load() {
			q.Push(tx)
			return
		}
		if tx.HasRerunKeys() {
			e.partialRollback(tx)
			if tx.HasRerunKeys() {
				continue
			}
			e.commitAttempt(tx)
			continue
		}
		if e.lastFinal.Load()+1 == tx.ID {
			e.finalize(tx)
			return
		}
		q.Push(tx)
		return
	}
}

func (e *Engine) commitAttempt(tx *Transaction) {
	for _, p := range tx.tuplesPut {
		if tx.HasRerunKeys() {
			return
		}
		e.mvt.Put(tx, p.Key, p.Value)
	}
}

// partialRollback implements spec.md §4.F steps 1-6: rewind only to the
// earliest invalidated read, not to the start of the program.
func (e *Engine) partialRollback(tx *Transaction) {
	rerunKeys := tx.swapRerunKeys()

	backTo := -1
	for _, k := range rerunKeys {
		for i, g := range tx.tuplesGet {
			if g.Key != k {
				continue
			}
			if backTo == -1 || i < backTo {
				backTo = i
			}
			break
		}
	}
	if backTo == -1 {
		return
	}

	target := tx.tuplesGet[backTo]
	tx.Handle.ApplyCheckpoint(target.CheckpointID)

	for i := target.PutLenAtRead; i < len(tx.tuplesPut); i++ {
		e.mvt.RegretPut(tx, tx.tuplesPut[i].Key)
	}
	for i := backTo; i < len(tx.tuplesGet); i++ {
		e.mvt.RegretGet(tx, tx.tuplesGet[i].Key, tx.tuplesGet[i].Version)
	}
	tx.tuplesPut = tx.tuplesPut[:target.PutLenAtRead]
	tx.tuplesGet = tx.tuplesGet[:backTo]

	e.execute(tx)
}

func (e *Engine) finalize(tx *Transaction) {
	e.lastFinal.Add(1)
	for _, g := range tx.tuplesGet {
		e.mvt.ClearGet(tx, g.Key, g.Version)
	}
	for _, p := range tx.tuplesPut {
		e.mvt.ClearPut(tx, p.Key)
	}
	latency := time.Since(tx.StartTime).Microseconds()
	e.stats.JournalCommit(latency)
}
