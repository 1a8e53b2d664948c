package workload

import (
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/fluxledger/dcc/pkg/btree"
	"github.com/fluxledger/dcc/pkg/key"
	"github.com/fluxledger/dcc/pkg/query"
	"github.com/fluxledger/dcc/pkg/txn"
	"github.com/fluxledger/dcc/pkg/types"
)

// AccountRecord names one Smallbank account. The directory of these is
// what a deployment would hand out to a client driver, so it round-trips
// through msgpack rather than staying process-local.
type AccountRecord struct {
	ID   uint64 `msgpack:"id"`
	Name string `msgpack:"name"`
}

// Smallbank reproduces the classic six-transaction Smallbank benchmark
// (Balance, DepositChecking, TransactSavings, Amalgamate, WriteCheck,
// SendPayment) over a fixed set of accounts, each holding a checking and
// a savings balance. Every account's two balances live at the same
// contract address, slots 2*id (checking) and 2*id+1 (savings).
type Smallbank struct {
	mu      sync.Mutex
	address key.Address
	keys    KeyGenerator

	numAccounts uint64
	directory   *btree.BPlusTree // IntKey(id) -> id, an ordered account index
	nextID      uint64
}

// NewSmallbank builds a generator over numAccounts accounts; zipfExponent
// > 0 selects a Zipfian account-access distribution, 0 a uniform one,
// matching the original benchmark's hot-account skew knob.
func NewSmallbank(numAccounts uint64, zipfExponent float64) *Smallbank {
	s := &Smallbank{
		address:     key.AddressFromUint64(1),
		keys:        NewKeyGenerator(numAccounts, zipfExponent, 2),
		numAccounts: numAccounts,
		directory:   btree.NewUniqueTree(32),
	}
	for i := uint64(0); i < numAccounts; i++ {
		_ = s.directory.Insert(types.IntKey(i), int64(i))
	}
	return s
}

// CheckingKey returns the storage key backing an account's checking
// balance, for a caller reading committed state directly off an engine.
func (s *Smallbank) CheckingKey(id uint64) key.StorageKey {
	return s.checkingKey(id)
}

// SavingsKey returns the storage key backing an account's savings
// balance, for a caller reading committed state directly off an engine.
func (s *Smallbank) SavingsKey(id uint64) key.StorageKey {
	return s.savingsKey(id)
}

func (s *Smallbank) checkingKey(id uint64) key.StorageKey {
	return key.New(s.address, key.SlotFromUint64(2*id))
}

func (s *Smallbank) savingsKey(id uint64) key.StorageKey {
	return key.New(s.address, key.SlotFromUint64(2*id+1))
}

// ExportDirectory serializes the account directory (id and a generated
// display name) for handing to a client driver or another process.
func (s *Smallbank) ExportDirectory() ([]byte, error) {
	records := make([]AccountRecord, 0, s.numAccounts)
	for _, r := range query.Scan(s.directory, query.GreaterOrEqual(types.IntKey(0))) {
		id := uint64(r.DataPtr)
		records = append(records, AccountRecord{ID: id, Name: accountName(id)})
	}
	return msgpack.Marshal(records)
}

// ImportDirectory decodes a directory previously produced by
// ExportDirectory, e.g. to seed a second process with the same accounts.
func ImportDirectory(data []byte) ([]AccountRecord, error) {
	var records []AccountRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func accountName(id uint64) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	if id == 0 {
		return "account_a"
	}
	n := id
	var suffix []byte
	for n > 0 {
		suffix = append([]byte{alphabet[n%26]}, suffix...)
		n /= 26
	}
	return "account_" + string(suffix)
}

// Next picks one of the six Smallbank operations (the account key
// generator's next draw modulo six) and builds its program against
// accounts drawn from the same generator.
func (s *Smallbank) Next() *txn.Handle {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	option := s.nextOption()
	s.mu.Unlock()

	var program txn.Program
	switch option {
	case 0:
		program = s.balanceProgram()
	case 1:
		program = s.depositCheckingProgram()
	case 2:
		program = s.transactSavingsProgram()
	case 3:
		program = s.amalgamateProgram()
	case 4:
		program = s.writeCheckProgram()
	default:
		program = s.sendPaymentProgram()
	}
	return txn.New(id, program, txn.Basic)
}

func (s *Smallbank) nextOption() uint64 {
	return s.keys.Next() % 6
}

func (s *Smallbank) randomAccount() uint64 { return s.keys.Next() }

// Balance reads both balances of one account; a pure read-only query.
func (s *Smallbank) balanceProgram() txn.Program {
	acct := s.randomAccount()
	ck, sk := s.checkingKey(acct), s.savingsKey(acct)
	return txn.Program{
		func(h *txn.Handle) { h.Read(ck) },
		func(h *txn.Handle) { h.Read(sk) },
	}
}

// DepositChecking adds a fixed amount to one account's checking balance.
func (s *Smallbank) depositCheckingProgram() txn.Program {
	acct := s.randomAccount()
	ck := s.checkingKey(acct)
	const amount = 10
	return txn.Program{
		func(h *txn.Handle) {
			h.Write(ck, key.WordFromUint64(h.Read(ck).Uint64()+amount))
		},
	}
}

// TransactSavings subtracts a fixed amount from one account's savings
// balance, or adds it instead when the balance is below that amount.
func (s *Smallbank) transactSavingsProgram() txn.Program {
	acct := s.randomAccount()
	sk := s.savingsKey(acct)
	const amount = 5
	return txn.Program{
		func(h *txn.Handle) {
			balance := h.Read(sk).Uint64()
			if balance < amount {
				h.Write(sk, key.WordFromUint64(balance+amount))
				return
			}
			h.Write(sk, key.WordFromUint64(balance-amount))
		},
	}
}

// Amalgamate moves the entirety of one account's checking and savings
// balances into a second account's checking balance.
func (s *Smallbank) amalgamateProgram() txn.Program {
	from, to := s.randomAccount(), s.randomAccount()
	fromCk, fromSk := s.checkingKey(from), s.savingsKey(from)
	toCk := s.checkingKey(to)
	return txn.Program{
		func(h *txn.Handle) {
			total := h.Read(fromCk).Uint64() + h.Read(fromSk).Uint64()
			h.Write(fromCk, key.ZeroWord)
			h.Write(fromSk, key.ZeroWord)
			h.Write(toCk, key.WordFromUint64(h.Read(toCk).Uint64()+total))
		},
	}
}

// WriteCheck debits an account's checking balance, applying a penalty if
// the combined checking+savings balance can't cover it — mirroring the
// original benchmark's overdraft-fee behavior.
func (s *Smallbank) writeCheckProgram() txn.Program {
	acct := s.randomAccount()
	ck, sk := s.checkingKey(acct), s.savingsKey(acct)
	const amount = 8
	const penalty = 1
	return txn.Program{
		func(h *txn.Handle) {
			total := h.Read(ck).Uint64() + h.Read(sk).Uint64()
			if total < amount {
				h.Write(ck, key.WordFromUint64(h.Read(ck).Uint64()+penalty))
				return
			}
			h.Write(ck, key.WordFromUint64(h.Read(ck).Uint64()-amount))
		},
	}
}

// SendPayment moves a fixed amount from one account's checking balance to
// another's, only if the sender can cover it.
func (s *Smallbank) sendPaymentProgram() txn.Program {
	from, to := s.randomAccount(), s.randomAccount()
	fromCk, toCk := s.checkingKey(from), s.checkingKey(to)
	const amount = 3
	return txn.Program{
		func(h *txn.Handle) {
			balance := h.Read(fromCk).Uint64()
			if balance < amount {
				return
			}
			h.Write(fromCk, key.WordFromUint64(balance-amount))
			h.Write(toCk, key.WordFromUint64(h.Read(toCk).Uint64()+amount))
		},
	}
}

// VerifyConservation sums every account's checking and savings balance
// through a committed-state reader and checks the total matches want,
// the invariant every Smallbank transaction type above preserves.
func (s *Smallbank) VerifyConservation(read func(key.StorageKey) key.Word, want uint64) bool {
	total := uint64(0)
	for _, r := range query.Scan(s.directory, query.GreaterOrEqual(types.IntKey(0))) {
		id := uint64(r.DataPtr)
		total += read(s.checkingKey(id)).Uint64()
		total += read(s.savingsKey(id)).Uint64()
	}
	return total == want
}
