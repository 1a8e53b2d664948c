package sparkle

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

// Workload yields a fresh program to execute on each call (component §6,
// "workload source"). Declared locally so this package stays decoupled
// from pkg/workload's concrete generators.
type Workload interface {
	Next() *txn.Handle
}

// Statistics is the §6 statistics sink contract: a count of (re-)execution
// attempts and a latency sample per finalized transaction.
type Statistics interface {
	JournalExecute()
	JournalCommit(latencyMicros int64)
}

// Config holds Sparkle's construction options (spec.md §6 table).
type Config struct {
	NumExecutors    int
	NumDispatchers  int
	TablePartitions int
}

func (c Config) validate() error {
	if c.NumExecutors <= 0 {
		return &errors.ConfigurationError{Protocol: "sparkle", Reason: "num_executors must be positive"}
	}
	if c.NumDispatchers <= 0 {
		return &errors.ConfigurationError{Protocol: "sparkle", Reason: "num_dispatchers must be positive"}
	}
	if c.TablePartitions <= 0 {
		return &errors.ConfigurationError{Protocol: "sparkle", Reason: "table_partitions must be positive"}
	}
	return nil
}

// Engine is the Sparkle protocol (component E): a worker pool driving
// transactions through the MVT with whole-transaction re-execution on
// abort.
type Engine struct {
	cfg        Config
	runID      uuid.UUID
	workload   Workload
	stats      Statistics
	mvt        *MVT
	queues     []*queue.Priority[*Transaction]
	lastExec   atomic.Uint64
	lastFinal  atomic.Uint64
	stopFlag   atomic.Bool
	wg         sync.WaitGroup
}

// New validates cfg and builds a Sparkle engine. The engine does not start
// any goroutines until Start is called.
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

// Start launches the dispatcher and executor goroutines.
func (e *Engine) Start() {
	e.stopFlag.Store(false)
	logger := xlog.WithProtocol("sparkle")
	logger.Info().Str("run_id", e.runID.String()).Int("executors", e.cfg.NumExecutors).Int("dispatchers", e.cfg.NumDispatchers).Msg("starting")

	for i := 0; i < e.cfg.NumExecutors; i++ {
		e.wg.Add(1)
		go e.runExecutor(e.queues[i])
	}
	for i := 0; i < e.cfg.NumDispatchers; i++ {
		e.wg.Add(1)
		go e.runDispatcher()
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.wg.Wait()
	xlog.WithProtocol("sparkle").Info().Msg("stopped")
}

// LastFinalized returns the id of the most recently finalized transaction.
func (e *Engine) LastFinalized() uint64 { return e.lastFinal.Load() }

// RunID returns the identifier minted for this engine instance at
// construction time, stable for the engine's whole lifetime.
func (e *Engine) RunID() string { return e.runID.String() }

func (e *Engine) runDispatcher() {
	defer e.wg.Done()
	for !e.stopFlag.Load() {
		h := e.workload.Next()
		id := e.lastExec.Add(1) - 1
		tx := NewTransaction(id, h, e.mvt)
		e.queues[id%uint64(len(e.queues))].Push(tx)
	}
}

func (e *Engine) runExecutor(q *queue.Priority[*Transaction]) {
	defer e.wg.Done()
	for !e.stopFlag.Load() {
		tx, ok := q.Pop()
		if !ok {
			continue
		}
		e.drive(tx, q)
	}
}

// drive runs one transaction through the state machine of spec.md §4.E
// until it is either finalized, requeued (awaiting a lower-id peer), or
// pushed back on shutdown.
func (e *Engine) drive(tx *Transaction, q *queue.Priority[*Transaction]) {
	if !tx.berunFlag.Load() {
		tx.berunFlag.Store(true)
		e.execute(tx)
		if tx.rerunFlag.Load() {
			q.Push(tx)
			return
		}
		e.commitAttempt(tx)
	}

	for {
		if e.stopFlag.Load() {
			q.Push(tx)
			return
		}
		if tx.rerunFlag.Load() {
			e.rerun(tx, q)
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

func (e *Engine) execute(tx *Transaction) {
	e.stats.JournalExecute()
	tx.ExecutionCount++
	tx.Handle.Execute()
}

func (e *Engine) commitAttempt(tx *Transaction) {
	for _, p := range tx.tuplesPut {
		if tx.rerunFlag.Load() {
			return
		}
		e.mvt.Put(tx, p.Key, p.Value)
	}
}

func (e *Engine) rerun(tx *Transaction, q *queue.Priority[*Transaction]) {
	for _, g := range tx.tuplesGet {
		e.mvt.RegretGet(tx, g.Key, g.Version)
	}
	for _, p := range tx.tuplesPut {
		e.mvt.RegretPut(tx, p.Key)
	}
	tx.reset()
	e.execute(tx)
	if tx.rerunFlag.Load() {
		return
	}
	e.commitAttempt(tx)
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
