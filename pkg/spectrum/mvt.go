package spectrum

import (
	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/table"
)

type entry struct {
	value   key.Word
	version uint64
	readers map[*Transaction]struct{}
}

type versionList struct {
	entries        []*entry
	readersDefault map[*Transaction]struct{}
}

// MVT is the Spectrum multi-version table (component D): identical to
// Sparkle's except Put calls AddRerunKeys on stale readers instead of
// setting a monolithic flag, carrying the causing writer's id so the
// reader can compute a partial rollback target.
type MVT struct {
	table *table.Partitioned[key.StorageKey, *versionList]
}

// NewMVT creates an MVT with the given number of partitions.
func NewMVT(partitions int) *MVT {
	return &MVT{table: table.New[key.StorageKey, *versionList](partitions)}
}

func ensure(vl **versionList) *versionList {
	if *vl == nil {
		*vl = &versionList{readersDefault: make(map[*Transaction]struct{})}
	}
	return *vl
}

// Get finds the largest version entry with writer id <= tx.ID and
// registers tx as a reader.
func (m *MVT) Get(tx *Transaction, k key.StorageKey) (key.Word, uint64) {
	var value key.Word
	var version uint64
	m.table.Put(k, func(vlp **versionList) {
		vl := ensure(vlp)
		for i := len(vl.entries) - 1; i >= 0; i-- {
			e := vl.entries[i]
			if e.version > tx.ID {
				continue
			}
			value = e.value
			version = e.version
			e.readers[tx] = struct{}{}
			return
		}
		version = 0
		vl.readersDefault[tx] = struct{}{}
	})
	return value, version
}

// Put installs a version at writer_id = tx.ID, overwriting an existing
// entry at the same id. Every reader of the newest entry with writer id
// <= tx.ID (the version the new write shadows, or tx's own entry when
// overwriting), and every default-value reader, is told to partially roll
// back if its id is larger than tx.ID. Readers of entries with a larger
// writer id are left alone.
func (m *MVT) Put(tx *Transaction, k key.StorageKey, v key.Word) {
	m.table.Put(k, func(vlp **versionList) {
		vl := ensure(vlp)

		for r := range vl.readersDefault {
			if r.ID > tx.ID {
				r.AddRerunKeys(k, tx.ID)
			}
		}

		insertAt := 0
		for i := len(vl.entries) - 1; i >= 0; i-- {
			e := vl.entries[i]
			if e.version > tx.ID {
				continue
			}
			for r := range e.readers {
				if r.ID > tx.ID {
					r.AddRerunKeys(k, tx.ID)
				}
			}
			if e.version == tx.ID {
				e.value = v
				return
			}
			insertAt = i + 1
			break
		}
		newEntry := &entry{value: v, version: tx.ID, readers: make(map[*Transaction]struct{})}
		vl.entries = append(vl.entries, nil)
		copy(vl.entries[insertAt+1:], vl.entries[insertAt:])
		vl.entries[insertAt] = newEntry
	})
}

// RegretGet removes tx from the reader set of the version it previously
// read (or readersDefault when version == 0).
func (m *MVT) RegretGet(tx *Transaction, k key.StorageKey, version uint64) {
	m.table.Put(k, func(vlp **versionList) {
		vl := ensure(vlp)
		for _, e := range vl.entries {
			if e.version == version {
				delete(e.readers, tx)
				break
			}
		}
		if version == 0 {
			delete(vl.readersDefault, tx)
		}
	})
}

// RegretPut removes tx's version entry and aborts every reader it had.
func (m *MVT) RegretPut(tx *Transaction, k key.StorageKey) {
	m.table.Put(k, func(vlp **versionList) {
		vl := ensure(vlp)
		idx := -1
		for i, e := range vl.entries {
			if e.version == tx.ID {
				for r := range e.readers {
					r.AddRerunKeys(k, tx.ID)
				}
				idx = i
				break
			}
		}
		if idx >= 0 {
			vl.entries = append(vl.entries[:idx], vl.entries[idx+1:]...)
		}
	})
}

// ClearGet drops tx's reader registration at finalize time.
func (m *MVT) ClearGet(tx *Transaction, k key.StorageKey, version uint64) {
	m.table.Put(k, func(vlp **versionList) {
		vl := ensure(vlp)
		for _, e := range vl.entries {
			if e.version == version {
				delete(e.readers, tx)
				break
			}
		}
		if version == 0 {
			delete(vl.readersDefault, tx)
		}
	})
}

// ClearPut drops every version with writer id < tx.ID.
func (m *MVT) ClearPut(tx *Transaction, k key.StorageKey) {
	m.table.Put(k, func(vlp **versionList) {
		vl := ensure(vlp)
		i := 0
		for i < len(vl.entries) && vl.entries[i].version < tx.ID {
			i++
		}
		vl.entries = vl.entries[i:]
	})
}
