package errors

import (
	"fmt"
)

// ConfigurationError reports an invalid combination of protocol
// construction options (spec.md §7): it fails immediately at construction,
// before any worker starts.
type ConfigurationError struct {
	Protocol string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %s", e.Protocol, e.Reason)
}

// DuplicateKeyError is raised by a unique B+Tree index on a colliding key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in unique index", e.Key)
}

// TransactionFinishedError is returned when an operation targets a
// transaction that already committed, aborted or was discarded.
type TransactionFinishedError struct {
	TxID uint64
}

func (e *TransactionFinishedError) Error() string {
	return fmt.Sprintf("transaction %d already finished", e.TxID)
}

// UnknownBackendError is returned when a txn.Backend value outside the
// three known variants (Basic/Strawman/CopyOnWrite) is requested.
type UnknownBackendError struct {
	Backend int
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown interpreter backend %d", e.Backend)
}

// InvalidCheckpointError is returned by ApplyCheckpoint for an id that was
// never produced by MakeCheckpoint on this handle.
type InvalidCheckpointError struct {
	CheckpointID int
}

func (e *InvalidCheckpointError) Error() string {
	return fmt.Sprintf("invalid checkpoint id %d", e.CheckpointID)
}
