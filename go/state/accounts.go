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
	"fmt"
	"maps"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ----------------------------------------------------------------------------
// Accounts
// ----------------------------------------------------------------------------

// Accounts is a plain value description of a set of accounts. It is used to
// initialize world states and to inspect or compare their content.
type Accounts map[evm.Address]Account

// Equal compares two account sets, ignoring empty accounts.
func (s Accounts) Equal(other Accounts) bool {
	return equalMapsIgnoringZero(s, other, func(a, b Account) bool {
		return a.Equal(&b)
	})
}

func (s Accounts) Clone() Accounts {
	if s == nil {
		return nil
	}
	res := make(Accounts, len(s))
	for k, v := range s {
		res[k] = v.Clone()
	}
	return res
}

// Diff lists human readable differences between two account sets.
func (s Accounts) Diff(other Accounts) []string {
	return diffMaps("", s, other, func(address evm.Address, a, b Account) []string {
		if a.Equal(&b) {
			return nil
		}
		return a.Diff(fmt.Sprintf("%v/", address), &b)
	})
}

// ----------------------------------------------------------------------------
// Account
// ----------------------------------------------------------------------------

// Account represents an account in a world state.
type Account struct {
	Balance evm.Value
	Nonce   uint64
	Code    evm.Code
	Storage Storage
}

func (a *Account) Equal(other *Account) bool {
	return a.Balance == other.Balance &&
		a.Nonce == other.Nonce &&
		bytes.Equal(a.Code, other.Code) &&
		a.Storage.Equal(other.Storage)
}

func (a *Account) Clone() Account {
	return Account{
		Balance: a.Balance,
		Nonce:   a.Nonce,
		Code:    bytes.Clone(a.Code),
		Storage: a.Storage.Clone(),
	}
}

func (a *Account) Diff(prefix string, other *Account) []string {
	var res []string
	if a.Balance != other.Balance {
		res = append(res, fmt.Sprintf("different balance: %v != %v", a.Balance, other.Balance))
	}
	if a.Nonce != other.Nonce {
		res = append(res, fmt.Sprintf("different nonce: %v != %v", a.Nonce, other.Nonce))
	}
	if !bytes.Equal(a.Code, other.Code) {
		res = append(res, fmt.Sprintf("different code: 0x%x != 0x%x", a.Code, other.Code))
	}
	res = append(res, a.Storage.Diff("storage/", other.Storage)...)
	for i, diff := range res {
		res[i] = prefix + diff
	}
	return res
}

type accountJSON struct {
	Balance evm.Value      `json:"balance"`
	Nonce   hexutil.Uint64 `json:"nonce"`
	Code    hexutil.Bytes  `json:"code"`
	Storage Storage        `json:"storage,omitempty"`
}

// MarshalJSON encodes the account with balance, nonce and code in hex.
func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{
		Balance: a.Balance,
		Nonce:   hexutil.Uint64(a.Nonce),
		Code:    hexutil.Bytes(a.Code),
		Storage: a.Storage,
	})
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var raw accountJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Account{
		Balance: raw.Balance,
		Nonce:   uint64(raw.Nonce),
		Code:    evm.Code(raw.Code),
		Storage: raw.Storage.withoutZeros(),
	}
	return nil
}

// ----------------------------------------------------------------------------
// Storage
// ----------------------------------------------------------------------------

// Storage represents the storage of an account. Zero-valued entries are
// equivalent to absent entries.
type Storage map[evm.Key]evm.Word

func (s Storage) Equal(other Storage) bool {
	return equalMapsIgnoringZero(s, other, func(a, b evm.Word) bool {
		return a == b
	})
}

func (s Storage) Clone() Storage {
	return maps.Clone(s)
}

func (s Storage) Diff(prefix string, other Storage) []string {
	return diffMaps(prefix, s, other, func(k evm.Key, a, b evm.Word) []string {
		if a == b {
			return nil
		}
		return []string{
			fmt.Sprintf("different value for key %v: %v != %v", k, a, b),
		}
	})
}

func (s Storage) withoutZeros() Storage {
	if len(s) == 0 {
		return nil
	}
	res := make(Storage, len(s))
	for k, v := range s {
		if v != (evm.Word{}) {
			res[k] = v
		}
	}
	return res
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// equalMapsIgnoringZero compares two maps, ignoring zero-valued entries.
func equalMapsIgnoringZero[K comparable, V any](a, b map[K]V, equal func(V, V) bool) bool {
	for k, v := range a {
		if !equal(v, b[k]) {
			return false
		}
	}
	for k, v := range b {
		if !equal(v, a[k]) {
			return false
		}
	}
	return true
}

// diffMaps compares two maps and returns a list of differences.
func diffMaps[K comparable, V any](prefix string, a, b map[K]V, diff func(K, V, V) []string) []string {
	var diffs []string
	for k, v := range a {
		diffs = append(diffs, diff(k, v, b[k])...)
	}
	for k, v := range b {
		if _, overlap := a[k]; !overlap {
			diffs = append(diffs, diff(k, a[k], v)...)
		}
	}
	for i, diff := range diffs {
		diffs[i] = prefix + diff
	}
	return diffs
}
