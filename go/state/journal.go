// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"errors"
	"slices"

	"github.com/Fantom-foundation/evmcore/go/evm"
)

var _ evm.TransactionContext = (*Journal)(nil)

// StorageLister is implemented by world states able to enumerate the
// storage of an account. The journal uses it to undo account removals.
type StorageLister interface {
	ListStorage(evm.Address) (Storage, error)
}

// Journal is a transaction context on top of a world state. Mutations are
// written through to the underlying state and recorded in an undo log, so
// that any of them can be rolled back to a previously created snapshot.
//
// Besides state mutations, the journal tracks the EIP-2929 access lists, the
// storage values committed before the transaction, emitted logs and accounts
// marked for destruction. All of these except the committed values are
// subject to rollback as well.
//
// Errors of the underlying state are reported as *evm.StateError.
type Journal struct {
	state      evm.WorldState
	undo       []func() error
	committed  map[slot]evm.Word
	accounts   map[evm.Address]struct{}
	slots      map[slot]struct{}
	logs       []evm.Log
	destructed []evm.Address
}

type slot struct {
	addr evm.Address
	key  evm.Key
}

// NewJournal creates a journal for a single transaction on the given state.
func NewJournal(state evm.WorldState) *Journal {
	return &Journal{
		state:     state,
		committed: map[slot]evm.Word{},
		accounts:  map[evm.Address]struct{}{},
		slots:     map[slot]struct{}{},
	}
}

// State returns the world state this journal writes to.
func (j *Journal) State() evm.WorldState {
	return j.state
}

func (j *Journal) CreateSnapshot() evm.Snapshot {
	return evm.Snapshot(len(j.undo))
}

// RestoreSnapshot undoes all mutations recorded since the given snapshot
// was created, in reverse order. Failing undo operations do not stop the
// rollback; their errors are reported together.
func (j *Journal) RestoreSnapshot(snapshot evm.Snapshot) error {
	var errs []error
	for len(j.undo) > int(snapshot) {
		last := len(j.undo) - 1
		op := j.undo[last]
		j.undo = j.undo[:last]
		if err := op(); err != nil {
			errs = append(errs, err)
		}
	}
	return evm.WrapStateError("undo", evm.Address{}, errors.Join(errs...))
}

func (j *Journal) record(op func() error) {
	j.undo = append(j.undo, op)
}

// write applies a mutation of the account at addr to the state and records
// the given undo operation once the mutation succeeded. If the account did
// not exist before, removing it is the undo operation.
func (j *Journal) write(name string, addr evm.Address, apply, undo func() error) error {
	exists, err := j.AccountExists(addr)
	if err != nil {
		return err
	}
	if err := apply(); err != nil {
		return evm.WrapStateError(name, addr, err)
	}
	if !exists {
		undo = func() error {
			return j.state.RemoveAccount(addr)
		}
	}
	j.record(undo)
	return nil
}

func (j *Journal) AccountExists(addr evm.Address) (bool, error) {
	found, err := j.state.AccountExists(addr)
	return found, evm.WrapStateError("account lookup", addr, err)
}

func (j *Journal) CreateAccount(addr evm.Address, balance evm.Value, code evm.Code) error {
	oldBalance, err := j.GetBalance(addr)
	if err != nil {
		return err
	}
	oldCode, err := j.GetCode(addr)
	if err != nil {
		return err
	}
	return j.write("create account", addr, func() error {
		return j.state.CreateAccount(addr, balance, code)
	}, func() error {
		return j.state.CreateAccount(addr, oldBalance, oldCode)
	})
}

// RemoveAccount deletes an account. If the underlying state implements
// StorageLister, the account's storage is restored on rollback as well.
func (j *Journal) RemoveAccount(addr evm.Address) error {
	exists, err := j.AccountExists(addr)
	if err != nil || !exists {
		return err
	}
	balance, err := j.GetBalance(addr)
	if err != nil {
		return err
	}
	nonce, err := j.GetNonce(addr)
	if err != nil {
		return err
	}
	code, err := j.GetCode(addr)
	if err != nil {
		return err
	}
	var storage Storage
	if lister, ok := j.state.(StorageLister); ok {
		if storage, err = lister.ListStorage(addr); err != nil {
			return evm.WrapStateError("list storage", addr, err)
		}
	}
	if err := j.state.RemoveAccount(addr); err != nil {
		return evm.WrapStateError("remove account", addr, err)
	}
	j.record(func() error {
		if err := j.state.CreateAccount(addr, balance, code); err != nil {
			return err
		}
		if err := j.state.SetNonce(addr, nonce); err != nil {
			return err
		}
		for key, value := range storage {
			if err := j.state.SetStorage(addr, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

func (j *Journal) GetBalance(addr evm.Address) (evm.Value, error) {
	balance, err := j.state.GetBalance(addr)
	return balance, evm.WrapStateError("get balance", addr, err)
}

func (j *Journal) SetBalance(addr evm.Address, value evm.Value) error {
	old, err := j.GetBalance(addr)
	if err != nil {
		return err
	}
	return j.write("set balance", addr, func() error {
		return j.state.SetBalance(addr, value)
	}, func() error {
		return j.state.SetBalance(addr, old)
	})
}

func (j *Journal) GetNonce(addr evm.Address) (uint64, error) {
	nonce, err := j.state.GetNonce(addr)
	return nonce, evm.WrapStateError("get nonce", addr, err)
}

func (j *Journal) SetNonce(addr evm.Address, nonce uint64) error {
	old, err := j.GetNonce(addr)
	if err != nil {
		return err
	}
	return j.write("set nonce", addr, func() error {
		return j.state.SetNonce(addr, nonce)
	}, func() error {
		return j.state.SetNonce(addr, old)
	})
}

func (j *Journal) GetCode(addr evm.Address) (evm.Code, error) {
	code, err := j.state.GetCode(addr)
	return code, evm.WrapStateError("get code", addr, err)
}

func (j *Journal) GetCodeHash(addr evm.Address) (evm.Hash, error) {
	hash, err := j.state.GetCodeHash(addr)
	return hash, evm.WrapStateError("get code hash", addr, err)
}

func (j *Journal) SetCode(addr evm.Address, code evm.Code) error {
	old, err := j.GetCode(addr)
	if err != nil {
		return err
	}
	return j.write("set code", addr, func() error {
		return j.state.SetCode(addr, code)
	}, func() error {
		return j.state.SetCode(addr, old)
	})
}

func (j *Journal) GetStorage(addr evm.Address, key evm.Key) (evm.Word, error) {
	value, err := j.state.GetStorage(addr, key)
	return value, evm.WrapStateError("get storage", addr, err)
}

func (j *Journal) SetStorage(addr evm.Address, key evm.Key, value evm.Word) error {
	// The committed value must be captured before the first modification.
	if _, err := j.GetCommittedStorage(addr, key); err != nil {
		return err
	}
	old, err := j.GetStorage(addr, key)
	if err != nil {
		return err
	}
	return j.write("set storage", addr, func() error {
		return j.state.SetStorage(addr, key, value)
	}, func() error {
		return j.state.SetStorage(addr, key, old)
	})
}

// GetCommittedStorage returns the value of the slot at the time it was
// first touched in this transaction.
func (j *Journal) GetCommittedStorage(addr evm.Address, key evm.Key) (evm.Word, error) {
	s := slot{addr, key}
	if value, found := j.committed[s]; found {
		return value, nil
	}
	value, err := j.GetStorage(addr, key)
	if err != nil {
		return evm.Word{}, err
	}
	j.committed[s] = value
	return value, nil
}

func (j *Journal) AccessAccount(addr evm.Address) evm.AccessStatus {
	if _, found := j.accounts[addr]; found {
		return evm.WarmAccess
	}
	j.accounts[addr] = struct{}{}
	j.record(func() error {
		delete(j.accounts, addr)
		return nil
	})
	return evm.ColdAccess
}

func (j *Journal) AccessStorage(addr evm.Address, key evm.Key) evm.AccessStatus {
	s := slot{addr, key}
	if _, found := j.slots[s]; found {
		return evm.WarmAccess
	}
	j.slots[s] = struct{}{}
	j.record(func() error {
		delete(j.slots, s)
		return nil
	})
	return evm.ColdAccess
}

func (j *Journal) IsAddressInAccessList(addr evm.Address) bool {
	_, found := j.accounts[addr]
	return found
}

func (j *Journal) IsSlotInAccessList(addr evm.Address, key evm.Key) (addressPresent, slotPresent bool) {
	_, addressPresent = j.accounts[addr]
	_, slotPresent = j.slots[slot{addr, key}]
	return
}

func (j *Journal) EmitLog(log evm.Log) {
	log.Topics = slices.Clone(log.Topics)
	log.Data = slices.Clone(log.Data)
	j.logs = append(j.logs, log)
	j.record(func() error {
		j.logs = j.logs[:len(j.logs)-1]
		return nil
	})
}

// GetLogs returns the logs emitted and not rolled back so far, in emission
// order.
func (j *Journal) GetLogs() []evm.Log {
	return slices.Clone(j.logs)
}

func (j *Journal) SelfDestruct(addr evm.Address, beneficiary evm.Address) (bool, error) {
	balance, err := j.GetBalance(addr)
	if err != nil {
		return false, err
	}
	if beneficiary != addr && !balance.IsZero() {
		target, err := j.GetBalance(beneficiary)
		if err != nil {
			return false, err
		}
		if err := j.SetBalance(beneficiary, evm.Add(target, balance)); err != nil {
			return false, err
		}
	}
	if !balance.IsZero() {
		if err := j.SetBalance(addr, evm.Value{}); err != nil {
			return false, err
		}
	}
	if j.HasSelfDestructed(addr) {
		return false, nil
	}
	j.destructed = append(j.destructed, addr)
	j.record(func() error {
		j.destructed = j.destructed[:len(j.destructed)-1]
		return nil
	})
	return true, nil
}

func (j *Journal) HasSelfDestructed(addr evm.Address) bool {
	return slices.Contains(j.destructed, addr)
}

// SelfDestructed lists the accounts marked for destruction in the order
// they were marked.
func (j *Journal) SelfDestructed() []evm.Address {
	return slices.Clone(j.destructed)
}
