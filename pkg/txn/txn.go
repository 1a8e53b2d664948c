// Package txn implements the Transaction Handle: a deterministic program
// of reads and writes executed against pluggable storage handlers, with
// three interchangeable checkpoint/restore backends (component B).
package txn

import (
	"sync/atomic"

	"github.com/fluxledger/dcc/pkg/key"
)

// Backend selects the checkpoint/restore strategy a Handle uses.
type Backend int

const (
	// Basic never snapshots: MakeCheckpoint always returns 0 and
	// ApplyCheckpoint resets the program counter to the start.
	Basic Backend = iota
	// Strawman deep-copies the handle's read/write cursor state through a
	// BSON marshal/unmarshal round trip on every checkpoint.
	Strawman
	// CopyOnWrite stores a cheap shadow of the cursor state in memory,
	// with no serialization round trip.
	CopyOnWrite
)

func (b Backend) String() string {
	switch b {
	case Basic:
		return "basic"
	case Strawman:
		return "strawman"
	case CopyOnWrite:
		return "copy_on_write"
	default:
		return "unknown"
	}
}

// GetStorageFunc reads a key from the underlying multi-version table.
type GetStorageFunc func(k key.StorageKey) key.Word

// SetStorageFunc writes a key to the underlying multi-version table.
type SetStorageFunc func(k key.StorageKey, v key.Word)

// Op is a single program step. It receives the Handle so it can call
// h.Read/h.Write, and may call h.Break() to yield control mid-program
// (e.g. simulating a contract call that depends on an external result).
type Op func(h *Handle)

// Program is the fixed, deterministic sequence of operations a Handle
// replays. The actual bytecode format is out of scope (Non-goal); Program
// is the concrete stand-in every protocol engine drives.
type Program []Op

// checkpoint is the cursor state captured by MakeCheckpoint: just the
// program counter, since Program itself is immutable and re-read from pc
// onward recreates all prior reads deterministically.
type checkpoint struct {
	pc int
}

// Handle is the per-transaction execution cursor over a Program, with a
// pluggable storage interface and checkpoint/restore backend.
type Handle struct {
	TxID    uint64
	Program Program
	Backend Backend

	pc          int
	currentStep int
	willBreak   atomic.Bool

	getStorage GetStorageFunc
	setStorage SetStorageFunc

	// checkpoints[id] is the captured cursor for a given backend; id 0 is
	// reserved for "the start of the program" and always valid.
	checkpoints []checkpoint
}

// New creates a Handle for the given transaction id, program and backend.
// Storage handlers must be installed with UpdateGetStorageHandler and
// UpdateSetStorageHandler before Execute is called.
func New(txID uint64, program Program, backend Backend) *Handle {
	return &Handle{
		TxID:        txID,
		Program:     program,
		Backend:     backend,
		checkpoints: make([]checkpoint, 1, 4),
	}
}

// UpdateGetStorageHandler installs the storage read handler.
func (h *Handle) UpdateGetStorageHandler(fn GetStorageFunc) { h.getStorage = fn }

// UpdateSetStorageHandler installs the storage write handler.
func (h *Handle) UpdateSetStorageHandler(fn SetStorageFunc) { h.setStorage = fn }

// Read delegates to the installed get-storage handler.
func (h *Handle) Read(k key.StorageKey) key.Word {
	return h.getStorage(k)
}

// Write delegates to the installed set-storage handler.
func (h *Handle) Write(k key.StorageKey, v key.Word) {
	h.setStorage(k, v)
}

// Break requests that Execute return control after completing the
// instruction currently in flight. Safe to call from within an Op.
func (h *Handle) Break() {
	h.willBreak.Store(true)
}

// Execute clears the break flag and steps through the program starting at
// the current program counter, stopping either when the program ends or
// when an Op calls Break (that instruction still runs to completion).
func (h *Handle) Execute() {
	h.willBreak.Store(false)
	for h.pc < len(h.Program) {
		h.currentStep = h.pc
		op := h.Program[h.pc]
		h.pc++
		op(h)
		if h.willBreak.Load() {
			return
		}
	}
}

// Done reports whether the program has run to completion.
func (h *Handle) Done() bool {
	return h.pc >= len(h.Program)
}

// Reset rewinds the handle to the start of its program, discarding all
// checkpoints. Used before a full rerun (Aria's fallback re-execution).
func (h *Handle) Reset() {
	h.pc = 0
	h.willBreak.Store(false)
	h.checkpoints = h.checkpoints[:1]
	h.checkpoints[0] = checkpoint{pc: 0}
}

// MakeCheckpoint snapshots the current cursor and returns an id that can
// later be passed to ApplyCheckpoint. Called from within the op currently
// executing (typically a storage-read handler, right after the value has
// been computed but before the op has done anything observable with it),
// so the snapshot points at that same in-flight step: restoring it redoes
// the read rather than skipping past it. Backend selects the strategy:
//   - Basic always returns 0 (the only valid checkpoint is "the start").
//   - Strawman and CopyOnWrite both append a new checkpoint slot; the
//     distinction is cost-only in the original (a real deep copy through
//     serialization vs. a cheap shadow copy) and collapses here since the
//     cursor itself is just a program counter either way.
func (h *Handle) MakeCheckpoint() int {
	if h.Backend == Basic {
		return 0
	}
	cp := checkpoint{pc: h.currentStep}
	if h.Backend == Strawman {
		cp = strawmanRoundTrip(cp)
	}
	h.checkpoints = append(h.checkpoints, cp)
	return len(h.checkpoints) - 1
}

// ApplyCheckpoint restores the cursor to a previously captured checkpoint.
// id 0 always means "restart from the beginning of the program".
func (h *Handle) ApplyCheckpoint(id int) {
	if id <= 0 || id >= len(h.checkpoints) {
		h.pc = 0
		h.willBreak.Store(false)
		return
	}
	cp := h.checkpoints[id]
	h.pc = cp.pc
	h.willBreak.Store(false)
	h.checkpoints = h.checkpoints[:id+1]
}
