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

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var _ evm.WorldState = (*KVStore)(nil)

// KVStore is a world state persisted in a key-value database. Accounts are
// stored RLP encoded, code is stored by its hash and storage slots are
// stored individually. Failures of the database are reported as
// *evm.StateError.
type KVStore struct {
	db ethdb.KeyValueStore
}

var (
	accountPrefix = []byte("a")
	codePrefix    = []byte("c")
	storagePrefix = []byte("s")
)

// storedAccount is the RLP representation of an account.
type storedAccount struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash []byte
}

// NewKVStore creates a world state on top of the given database.
func NewKVStore(db ethdb.KeyValueStore) *KVStore {
	return &KVStore{db: db}
}

// NewInMemoryKVStore creates a world state backed by a fresh in-memory
// database.
func NewInMemoryKVStore() *KVStore {
	return NewKVStore(memorydb.New())
}

// Import writes the given accounts into the store.
func (s *KVStore) Import(accounts Accounts) error {
	for addr, account := range accounts {
		if err := s.CreateAccount(addr, account.Balance, account.Code); err != nil {
			return err
		}
		if err := s.SetNonce(addr, account.Nonce); err != nil {
			return err
		}
		for key, value := range account.Storage {
			if err := s.SetStorage(addr, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Export reads all accounts from the store.
func (s *KVStore) Export() (Accounts, error) {
	res := Accounts{}
	it := s.db.NewIterator(accountPrefix, nil)
	defer it.Release()
	for it.Next() {
		var addr evm.Address
		copy(addr[:], it.Key()[len(accountPrefix):])
		account, err := s.decodeAccount(addr, it.Value())
		if err != nil {
			return nil, err
		}
		code, err := s.GetCode(addr)
		if err != nil {
			return nil, err
		}
		storage, err := s.ListStorage(addr)
		if err != nil {
			return nil, err
		}
		res[addr] = Account{
			Balance: evm.ValueFromUint256(account.Balance),
			Nonce:   account.Nonce,
			Code:    code,
			Storage: storage,
		}
	}
	if err := it.Error(); err != nil {
		return nil, evm.WrapStateError("export", evm.Address{}, err)
	}
	return res, nil
}

func (s *KVStore) AccountExists(addr evm.Address) (bool, error) {
	found, err := s.db.Has(accountKey(addr))
	return found, evm.WrapStateError("account lookup", addr, err)
}

func (s *KVStore) CreateAccount(addr evm.Address, balance evm.Value, code evm.Code) error {
	account, _, err := s.getAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = balance.ToUint256()
	if err := s.putCode(addr, &account, code); err != nil {
		return err
	}
	return s.putAccount(addr, &account)
}

func (s *KVStore) RemoveAccount(addr evm.Address) error {
	batch := s.db.NewBatch()
	if err := batch.Delete(accountKey(addr)); err != nil {
		return evm.WrapStateError("remove account", addr, err)
	}
	it := s.db.NewIterator(storageKeyPrefix(addr), nil)
	for it.Next() {
		if err := batch.Delete(bytes.Clone(it.Key())); err != nil {
			it.Release()
			return evm.WrapStateError("remove account", addr, err)
		}
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return evm.WrapStateError("remove account", addr, err)
	}
	return evm.WrapStateError("remove account", addr, batch.Write())
}

func (s *KVStore) GetBalance(addr evm.Address) (evm.Value, error) {
	account, _, err := s.getAccount(addr)
	if err != nil {
		return evm.Value{}, err
	}
	return evm.ValueFromUint256(account.Balance), nil
}

func (s *KVStore) SetBalance(addr evm.Address, value evm.Value) error {
	account, _, err := s.getAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = value.ToUint256()
	return s.putAccount(addr, &account)
}

func (s *KVStore) GetNonce(addr evm.Address) (uint64, error) {
	account, _, err := s.getAccount(addr)
	return account.Nonce, err
}

func (s *KVStore) SetNonce(addr evm.Address, nonce uint64) error {
	account, _, err := s.getAccount(addr)
	if err != nil {
		return err
	}
	account.Nonce = nonce
	return s.putAccount(addr, &account)
}

func (s *KVStore) GetCode(addr evm.Address) (evm.Code, error) {
	account, found, err := s.getAccount(addr)
	if err != nil || !found || len(account.CodeHash) == 0 {
		return nil, err
	}
	code, err := s.db.Get(append(bytes.Clone(codePrefix), account.CodeHash...))
	if err != nil {
		return nil, evm.WrapStateError("get code", addr, err)
	}
	return code, nil
}

func (s *KVStore) GetCodeHash(addr evm.Address) (evm.Hash, error) {
	account, found, err := s.getAccount(addr)
	if err != nil || !found {
		return evm.Hash{}, err
	}
	if len(account.CodeHash) == 0 {
		return evm.EmptyCodeHash, nil
	}
	return evm.Hash(account.CodeHash), nil
}

func (s *KVStore) SetCode(addr evm.Address, code evm.Code) error {
	account, _, err := s.getAccount(addr)
	if err != nil {
		return err
	}
	if err := s.putCode(addr, &account, code); err != nil {
		return err
	}
	return s.putAccount(addr, &account)
}

func (s *KVStore) GetStorage(addr evm.Address, key evm.Key) (evm.Word, error) {
	value, err := s.get("get storage", addr, storageKey(addr, key))
	return evm.WordFromBytes(value), err
}

func (s *KVStore) SetStorage(addr evm.Address, key evm.Key, value evm.Word) error {
	if _, found, err := s.getAccount(addr); err != nil {
		return err
	} else if !found {
		if err := s.putAccount(addr, &storedAccount{}); err != nil {
			return err
		}
	}
	if value == (evm.Word{}) {
		return evm.WrapStateError("set storage", addr, s.db.Delete(storageKey(addr, key)))
	}
	return evm.WrapStateError("set storage", addr, s.db.Put(storageKey(addr, key), value[:]))
}

// ListStorage returns the non-zero storage slots of an account.
func (s *KVStore) ListStorage(addr evm.Address) (Storage, error) {
	prefix := storageKeyPrefix(addr)
	it := s.db.NewIterator(prefix, nil)
	defer it.Release()
	var res Storage
	for it.Next() {
		if res == nil {
			res = Storage{}
		}
		var key evm.Key
		copy(key[:], it.Key()[len(prefix):])
		res[key] = evm.WordFromBytes(it.Value())
	}
	return res, evm.WrapStateError("list storage", addr, it.Error())
}

func (s *KVStore) getAccount(addr evm.Address) (storedAccount, bool, error) {
	data, err := s.get("get account", addr, accountKey(addr))
	if err != nil || data == nil {
		return storedAccount{Balance: new(uint256.Int)}, false, err
	}
	account, err := s.decodeAccount(addr, data)
	return account, err == nil, err
}

func (s *KVStore) decodeAccount(addr evm.Address, data []byte) (storedAccount, error) {
	var account storedAccount
	if err := rlp.DecodeBytes(data, &account); err != nil {
		return storedAccount{Balance: new(uint256.Int)}, evm.WrapStateError("decode account", addr, err)
	}
	if account.Balance == nil {
		account.Balance = new(uint256.Int)
	}
	return account, nil
}

func (s *KVStore) putAccount(addr evm.Address, account *storedAccount) error {
	data, err := rlp.EncodeToBytes(account)
	if err != nil {
		return evm.WrapStateError("encode account", addr, err)
	}
	return evm.WrapStateError("put account", addr, s.db.Put(accountKey(addr), data))
}

func (s *KVStore) putCode(addr evm.Address, account *storedAccount, code evm.Code) error {
	if len(code) == 0 {
		account.CodeHash = nil
		return nil
	}
	hash := evm.Keccak256(code)
	account.CodeHash = hash[:]
	return evm.WrapStateError("put code", addr, s.db.Put(append(bytes.Clone(codePrefix), hash[:]...), code))
}

// get returns nil if the key is not present.
func (s *KVStore) get(op string, addr evm.Address, key []byte) ([]byte, error) {
	found, err := s.db.Has(key)
	if err != nil || !found {
		return nil, evm.WrapStateError(op, addr, err)
	}
	data, err := s.db.Get(key)
	return data, evm.WrapStateError(op, addr, err)
}

func accountKey(addr evm.Address) []byte {
	return append(bytes.Clone(accountPrefix), addr[:]...)
}

func storageKeyPrefix(addr evm.Address) []byte {
	return append(bytes.Clone(storagePrefix), addr[:]...)
}

func storageKey(addr evm.Address, key evm.Key) []byte {
	return append(storageKeyPrefix(addr), key[:]...)
}
