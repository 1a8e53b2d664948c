// Package key defines the storage key and value types shared by every
// protocol: K = (address, slot) per spec.md §3, with a 32-byte Word as the
// value type (default value is the all-zero word).
package key

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Address is a 20-byte account identifier, Ethereum-style.
type Address [20]byte

// Slot is the 32-byte storage word address within an account.
type Slot [32]byte

// Word is a 32-byte stored value. The zero Word is the genesis default.
type Word [32]byte

// ZeroWord is the default value returned for a key that was never written.
var ZeroWord = Word{}

// StorageKey is the compound key K = (address, word) of spec.md §3.
type StorageKey struct {
	Address Address
	Slot    Slot
}

// New builds a StorageKey from an address and a slot.
func New(addr Address, slot Slot) StorageKey {
	return StorageKey{Address: addr, Slot: slot}
}

// Hash returns a stable uint64 hash of the key, used to route it to a
// table partition. Keccak (sha3) is the natural fit for Ethereum-style
// 20/32-byte identifiers and matches the hash family the wider retrieval
// pack reaches for via golang.org/x/crypto.
func (k StorageKey) Hash() uint64 {
	h := sha3.NewLegacyKeccak256()
	h.Write(k.Address[:])
	h.Write(k.Slot[:])
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

func (k StorageKey) String() string {
	return fmt.Sprintf("%x:%x", k.Address, k.Slot)
}

// AddressFromUint64 builds a test/demo Address out of a small integer,
// right-aligned in the 20-byte identifier.
func AddressFromUint64(v uint64) Address {
	var a Address
	binary.BigEndian.PutUint64(a[12:], v)
	return a
}

// SlotFromUint64 builds a test/demo Slot out of a small integer.
func SlotFromUint64(v uint64) Slot {
	var s Slot
	binary.BigEndian.PutUint64(s[24:], v)
	return s
}

// WordFromUint64 builds a Word out of a small integer.
func WordFromUint64(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

// Uint64 reinterprets the low 8 bytes of a Word as a big-endian integer,
// the inverse of WordFromUint64. Used by workload generators and tests.
func (w Word) Uint64() uint64 {
	return binary.BigEndian.Uint64(w[24:])
}
