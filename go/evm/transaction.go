// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package evm

//go:generate mockgen -source transaction.go -destination transaction_mock.go -package evm

// Transaction is the top-level request of an execution. It is not modified
// during a run and should not be reused for more than one run.
type Transaction struct {
	Sender   Address
	Origin   Address // < the externally owned account; defaults to Sender
	Value    Value   // < the value transferred to the entry account
	GasPrice Value
	Block    BlockParameters
	Logs     LogSink // < receives the logs of a successful run; may be nil
}

// LogSink returns the configured sink or a sink discarding all logs.
func (t *Transaction) LogSink() LogSink {
	if t.Logs == nil {
		return NullLogSink{}
	}
	return t.Logs
}

// BlockParameters describe the block a transaction is executed in.
type BlockParameters struct {
	ChainID     Word
	BlockNumber int64
	Timestamp   int64
	Coinbase    Address
	GasLimit    Gas
	PrevRandao  Hash
	BaseFee     Value
	Revision    Revision

	// BlockHashes resolves the hash of recent blocks. If nil, all block
	// hashes are reported as zero.
	BlockHashes func(number int64) Hash
}

// GetBlockHash returns the hash of the given block or zero if unknown.
func (b *BlockParameters) GetBlockHash(number int64) Hash {
	if b.BlockHashes == nil {
		return Hash{}
	}
	return b.BlockHashes(number)
}

// AccessStatus is the EIP-2929 temperature of an account or storage slot.
type AccessStatus bool

const (
	ColdAccess AccessStatus = false
	WarmAccess AccessStatus = true
)

// Snapshot identifies a point in the mutation history of a transaction
// context to which it can be rolled back.
type Snapshot int

// TransactionContext is the journaled view of the world state used while
// executing a transaction. All mutations performed through it can be undone
// up to a previously created snapshot.
type TransactionContext interface {
	WorldState

	CreateSnapshot() Snapshot
	RestoreSnapshot(Snapshot) error

	// GetCommittedStorage returns the value a slot had at the beginning of
	// the transaction.
	GetCommittedStorage(Address, Key) (Word, error)

	AccessAccount(Address) AccessStatus
	AccessStorage(Address, Key) AccessStatus
	IsAddressInAccessList(Address) bool
	IsSlotInAccessList(Address, Key) (addressPresent, slotPresent bool)

	EmitLog(Log)
	GetLogs() []Log

	// SelfDestruct marks the account for removal at the end of the
	// transaction and moves its balance to the beneficiary. The result is
	// true if the account was not yet marked.
	SelfDestruct(addr Address, beneficiary Address) (bool, error)
	HasSelfDestructed(Address) bool
	SelfDestructed() []Address
}
