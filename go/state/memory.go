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
	"bytes"
	"encoding/json"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"golang.org/x/exp/maps"
)

var _ evm.WorldState = (*Memory)(nil)

// Memory is an in-memory world state. It exclusively owns its accounts; the
// content can only be observed through copies. Memory is not safe for
// concurrent use; independent executions should work on clones.
type Memory struct {
	accounts map[evm.Address]*Account
}

// NewMemory creates an in-memory world state initialized with a copy of the
// given accounts.
func NewMemory(accounts Accounts) *Memory {
	res := &Memory{accounts: make(map[evm.Address]*Account, len(accounts))}
	for addr, account := range accounts {
		clone := account.Clone()
		clone.Storage = clone.Storage.withoutZeros()
		res.accounts[addr] = &clone
	}
	return res
}

// Accounts returns a copy of the current content of the state.
func (m *Memory) Accounts() Accounts {
	res := make(Accounts, len(m.accounts))
	for addr, account := range m.accounts {
		res[addr] = account.Clone()
	}
	return res
}

// Clone creates an independent copy of this state.
func (m *Memory) Clone() *Memory {
	return NewMemory(m.Accounts())
}

// Addresses lists the addresses of all existing accounts in no particular order.
func (m *Memory) Addresses() []evm.Address {
	return maps.Keys(m.accounts)
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Accounts())
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var accounts Accounts
	if err := json.Unmarshal(data, &accounts); err != nil {
		return err
	}
	*m = *NewMemory(accounts)
	return nil
}

func (m *Memory) AccountExists(addr evm.Address) (bool, error) {
	_, found := m.accounts[addr]
	return found, nil
}

// CreateAccount creates an empty account with the given balance and code.
// If the account exists, its balance and code are replaced.
func (m *Memory) CreateAccount(addr evm.Address, balance evm.Value, code evm.Code) error {
	account := m.getOrCreate(addr)
	account.Balance = balance
	account.Code = bytes.Clone(code)
	return nil
}

func (m *Memory) RemoveAccount(addr evm.Address) error {
	delete(m.accounts, addr)
	return nil
}

func (m *Memory) GetBalance(addr evm.Address) (evm.Value, error) {
	if account, found := m.accounts[addr]; found {
		return account.Balance, nil
	}
	return evm.Value{}, nil
}

func (m *Memory) SetBalance(addr evm.Address, value evm.Value) error {
	m.getOrCreate(addr).Balance = value
	return nil
}

func (m *Memory) GetNonce(addr evm.Address) (uint64, error) {
	if account, found := m.accounts[addr]; found {
		return account.Nonce, nil
	}
	return 0, nil
}

func (m *Memory) SetNonce(addr evm.Address, nonce uint64) error {
	m.getOrCreate(addr).Nonce = nonce
	return nil
}

func (m *Memory) GetCode(addr evm.Address) (evm.Code, error) {
	if account, found := m.accounts[addr]; found {
		return account.Code, nil
	}
	return nil, nil
}

// GetCodeHash returns the hash of the code of an account, or zero if the
// account does not exist.
func (m *Memory) GetCodeHash(addr evm.Address) (evm.Hash, error) {
	account, found := m.accounts[addr]
	if !found {
		return evm.Hash{}, nil
	}
	return evm.Keccak256(account.Code), nil
}

func (m *Memory) SetCode(addr evm.Address, code evm.Code) error {
	m.getOrCreate(addr).Code = bytes.Clone(code)
	return nil
}

func (m *Memory) GetStorage(addr evm.Address, key evm.Key) (evm.Word, error) {
	if account, found := m.accounts[addr]; found {
		return account.Storage[key], nil
	}
	return evm.Word{}, nil
}

// SetStorage updates a slot. Writing zero removes the slot.
func (m *Memory) SetStorage(addr evm.Address, key evm.Key, value evm.Word) error {
	account := m.getOrCreate(addr)
	if value == (evm.Word{}) {
		delete(account.Storage, key)
		return nil
	}
	if account.Storage == nil {
		account.Storage = Storage{}
	}
	account.Storage[key] = value
	return nil
}

// ListStorage returns a copy of the non-zero storage slots of an account.
func (m *Memory) ListStorage(addr evm.Address) (Storage, error) {
	if account, found := m.accounts[addr]; found {
		return account.Storage.Clone(), nil
	}
	return nil, nil
}

func (m *Memory) getOrCreate(addr evm.Address) *Account {
	account, found := m.accounts[addr]
	if !found {
		account = &Account{}
		m.accounts[addr] = account
	}
	return account
}
