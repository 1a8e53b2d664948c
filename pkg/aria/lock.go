package aria

import (
	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/table"
)

// lockSlot records which conflicting transactions in the current batch
// touched a key, so the fallback path can compute a wait dependency
// without re-scanning the whole batch per key (component I).
type lockSlot struct {
	depsGet []*Transaction
	depsPut []*Transaction
}

func ensureLockSlot(s **lockSlot) *lockSlot {
	if *s == nil {
		*s = &lockSlot{}
	}
	return *s
}

// LockTable is rebuilt fresh for every batch that needs a fallback pass.
type LockTable struct {
	t *table.Partitioned[key.StorageKey, *lockSlot]
}

// NewLockTable allocates an empty lock table for one batch.
func NewLockTable(partitions int) *LockTable {
	return &LockTable{t: table.New[key.StorageKey, *lockSlot](partitions)}
}

func (l *LockTable) addGetDep(k key.StorageKey, tx *Transaction) {
	l.t.Put(k, func(sp **lockSlot) {
		s := ensureLockSlot(sp)
		s.depsGet = append(s.depsGet, tx)
	})
}

func (l *LockTable) addPutDep(k key.StorageKey, tx *Transaction) {
	l.t.Put(k, func(sp **lockSlot) {
		s := ensureLockSlot(sp)
		s.depsPut = append(s.depsPut, tx)
	})
}

func (l *LockTable) get(k key.StorageKey, fn func(*lockSlot)) {
	l.t.Get(k, func(s *lockSlot) {
		if s != nil {
			fn(s)
		}
	})
}
