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

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

//go:generate mockgen -source world_state.go -destination world_state_mock.go -package evm

// WorldState is an interface to access and manipulate the state of the
// accounts an execution runs against. Each account has a balance, a nonce,
// optional code and a sparse storage in which zero-valued slots are absent.
//
// Mutations must be visible to subsequent reads. Errors are only returned for
// failures of the underlying backend.
type WorldState interface {
	AccountExists(Address) (bool, error)
	CreateAccount(addr Address, balance Value, code Code) error
	RemoveAccount(Address) error

	GetBalance(Address) (Value, error)
	SetBalance(Address, Value) error

	GetNonce(Address) (uint64, error)
	SetNonce(Address, uint64) error

	GetCode(Address) (Code, error)
	GetCodeHash(Address) (Hash, error)
	SetCode(Address, Code) error

	GetStorage(Address, Key) (Word, error)
	SetStorage(Address, Key, Word) error
}

// AccountState is a handle on a single account of a world state.
type AccountState struct {
	Address Address
	State   WorldState
}

// Account returns a handle on the given account of the state.
func Account(state WorldState, addr Address) AccountState {
	return AccountState{Address: addr, State: state}
}

func (a AccountState) Exists() (bool, error) {
	return a.State.AccountExists(a.Address)
}

func (a AccountState) Balance() (Value, error) {
	return a.State.GetBalance(a.Address)
}

func (a AccountState) SetBalance(v Value) error {
	return a.State.SetBalance(a.Address, v)
}

func (a AccountState) Nonce() (uint64, error) {
	return a.State.GetNonce(a.Address)
}

// IncrementNonce raises the nonce of the account by one.
func (a AccountState) IncrementNonce() error {
	nonce, err := a.State.GetNonce(a.Address)
	if err != nil {
		return err
	}
	return a.State.SetNonce(a.Address, nonce+1)
}

func (a AccountState) Code() (Code, error) {
	return a.State.GetCode(a.Address)
}

// HasCode reports whether the account holds non-empty code.
func (a AccountState) HasCode() (bool, error) {
	code, err := a.State.GetCode(a.Address)
	return len(code) > 0, err
}

func (a AccountState) Storage(key Key) (Word, error) {
	return a.State.GetStorage(a.Address, key)
}

func (a AccountState) SetStorage(key Key, value Word) error {
	return a.State.SetStorage(a.Address, key, value)
}

func (a AccountState) String() string {
	return fmt.Sprintf("account(%v)", a.Address)
}

// Keccak256 hashes the concatenation of the given byte slices.
func Keccak256(data ...[]byte) Hash {
	return Hash(crypto.Keccak256Hash(data...))
}

// EmptyCodeHash is the hash of an empty code.
var EmptyCodeHash = Keccak256()

// StorageStatus is an enum utilized to indicate the effect of a storage
// slot update on the respective slot in the context of the current
// transaction.
type StorageStatus int

const (
	// The comment indicates the storage values for the corresponding
	// configuration. X, Y, Z are non-zero numbers, distinct from each other,
	// while 0 is zero.
	//
	// <original> -> <current> -> <new>
	StorageAssigned         StorageStatus = iota
	StorageAdded                          // 0 -> 0 -> Z
	StorageDeleted                        // X -> X -> 0
	StorageModified                       // X -> X -> Z
	StorageDeletedAdded                   // X -> 0 -> Z
	StorageModifiedDeleted                // X -> Y -> 0
	StorageDeletedRestored                // X -> 0 -> X
	StorageAddedDeleted                   // 0 -> Y -> 0
	StorageModifiedRestored               // X -> Y -> X
)

func (s StorageStatus) String() string {
	switch s {
	case StorageAssigned:
		return "StorageAssigned"
	case StorageAdded:
		return "StorageAdded"
	case StorageAddedDeleted:
		return "StorageAddedDeleted"
	case StorageDeletedRestored:
		return "StorageDeletedRestored"
	case StorageDeletedAdded:
		return "StorageDeletedAdded"
	case StorageDeleted:
		return "StorageDeleted"
	case StorageModified:
		return "StorageModified"
	case StorageModifiedDeleted:
		return "StorageModifiedDeleted"
	case StorageModifiedRestored:
		return "StorageModifiedRestored"
	}
	return fmt.Sprintf("StorageStatus(%d)", s)
}

// GetStorageStatus classifies the update of a slot with the given original
// (=committed at the start of the transaction), current, and new value.
func GetStorageStatus(original, current, new Word) StorageStatus {
	var zero = Word{}

	if current == new {
		return StorageAssigned
	}
	switch {
	case original == zero && current == zero:
		return StorageAdded
	case original != zero && current == original && new == zero:
		return StorageDeleted
	case original != zero && current == original:
		return StorageModified
	case original != zero && current == zero && new == original:
		return StorageDeletedRestored
	case original != zero && current == zero:
		return StorageDeletedAdded
	case original != zero && new == zero:
		return StorageModifiedDeleted
	case original != zero && new == original:
		return StorageModifiedRestored
	case original == zero && new == zero:
		return StorageAddedDeleted
	}
	return StorageAssigned
}
