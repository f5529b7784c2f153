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
	"errors"
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// failingDatabase is a database failing all writes once broken.
type failingDatabase struct {
	*memorydb.Database
	broken bool
}

var errInjected = errors.New("injected failure")

func (db *failingDatabase) Put(key []byte, value []byte) error {
	if db.broken {
		return errInjected
	}
	return db.Database.Put(key, value)
}

func (db *failingDatabase) Has(key []byte) (bool, error) {
	if db.broken {
		return false, errInjected
	}
	return db.Database.Has(key)
}

var _ ethdb.KeyValueStore = (*failingDatabase)(nil)

func TestKVStore_ExportReproducesImport(t *testing.T) {
	accounts := Accounts{
		{1}: {Balance: evm.NewValue(1, 2), Nonce: 12, Code: evm.Code{1, 2, 3}, Storage: Storage{{1}: {1}, {2}: {2}}},
		{2}: {Balance: evm.NewValue(7)},
	}
	store := NewInMemoryKVStore()
	if err := store.Import(accounts); err != nil {
		t.Fatal(err)
	}

	exported, err := store.Export()
	if err != nil {
		t.Fatal(err)
	}
	if !accounts.Equal(exported) {
		t.Errorf("unexpected exported accounts: %v", accounts.Diff(exported))
	}
}

func TestKVStore_CodeIsSharedByHash(t *testing.T) {
	store := NewInMemoryKVStore()
	code := evm.Code{0x60, 0x00}
	for _, addr := range []evm.Address{{1}, {2}} {
		if err := store.SetCode(addr, code); err != nil {
			t.Fatal(err)
		}
	}

	for _, addr := range []evm.Address{{1}, {2}} {
		got, err := store.GetCode(addr)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(code, got) {
			t.Errorf("unexpected code of %v, wanted %x, got %x", addr, code, got)
		}
	}

	if err := store.SetCode(evm.Address{1}, nil); err != nil {
		t.Fatal(err)
	}
	hash, err := store.GetCodeHash(evm.Address{1})
	if err != nil {
		t.Fatal(err)
	}
	if hash != evm.EmptyCodeHash {
		t.Errorf("cleared code should have the empty code hash, got %v", hash)
	}
}

func TestKVStore_BackendFailuresAreStateErrors(t *testing.T) {
	db := &failingDatabase{Database: memorydb.New()}
	store := NewKVStore(db)
	if err := store.SetBalance(evm.Address{1}, evm.NewValue(1)); err != nil {
		t.Fatal(err)
	}

	db.broken = true
	var stateErr *evm.StateError

	_, err := store.GetBalance(evm.Address{1})
	if !errors.As(err, &stateErr) || !errors.Is(err, errInjected) {
		t.Errorf("expected a state error wrapping the injected failure, got %v", err)
	}
	if err := store.SetStorage(evm.Address{1}, evm.Key{1}, evm.Word{1}); !errors.As(err, &stateErr) {
		t.Errorf("expected a state error, got %v", err)
	}
	if _, err := store.AccountExists(evm.Address{1}); !errors.As(err, &stateErr) {
		t.Errorf("expected a state error, got %v", err)
	}
}
