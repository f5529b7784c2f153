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
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"go.uber.org/mock/gomock"
)

func TestJournal_RestoreSnapshotUndoesStateMutations(t *testing.T) {
	initial := Accounts{
		{1}: {Balance: evm.NewValue(100), Nonce: 1, Code: evm.Code{1}, Storage: Storage{{1}: {1}}},
	}
	backend := NewMemory(initial)
	journal := NewJournal(backend)

	snapshot := journal.CreateSnapshot()
	mutations := map[string]func() error{
		"balance":        func() error { return journal.SetBalance(evm.Address{1}, evm.NewValue(50)) },
		"nonce":          func() error { return journal.SetNonce(evm.Address{1}, 2) },
		"code":           func() error { return journal.SetCode(evm.Address{1}, evm.Code{2}) },
		"clear slot":     func() error { return journal.SetStorage(evm.Address{1}, evm.Key{1}, evm.Word{}) },
		"new slot":       func() error { return journal.SetStorage(evm.Address{1}, evm.Key{2}, evm.Word{2}) },
		"new balance":    func() error { return journal.SetBalance(evm.Address{2}, evm.NewValue(50)) },
		"create account": func() error { return journal.CreateAccount(evm.Address{3}, evm.NewValue(1), evm.Code{3}) },
	}
	for name, mutate := range mutations {
		if err := mutate(); err != nil {
			t.Fatalf("failed to apply %s: %v", name, err)
		}
	}

	if initial.Equal(backend.Accounts()) {
		t.Fatalf("mutations should be visible in the world state")
	}
	if err := journal.RestoreSnapshot(snapshot); err != nil {
		t.Fatalf("failed to restore snapshot: %v", err)
	}
	if !initial.Equal(backend.Accounts()) {
		t.Errorf("unexpected state after rollback: %v", initial.Diff(backend.Accounts()))
	}

	for _, addr := range []evm.Address{{2}, {3}} {
		exists, err := backend.AccountExists(addr)
		if err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Errorf("account %v should have been removed", addr)
		}
	}
}

func TestJournal_NestedSnapshotsAreRestoredIndependently(t *testing.T) {
	journal := NewJournal(NewMemory(nil))
	addr := evm.Address{1}

	set := func(value byte) {
		t.Helper()
		if err := journal.SetStorage(addr, evm.Key{1}, evm.Word{value}); err != nil {
			t.Fatal(err)
		}
	}
	check := func(want byte) {
		t.Helper()
		got, err := journal.GetStorage(addr, evm.Key{1})
		if err != nil {
			t.Fatal(err)
		}
		if got != (evm.Word{want}) {
			t.Errorf("unexpected slot value, wanted %v, got %v", evm.Word{want}, got)
		}
	}

	set(1)
	outer := journal.CreateSnapshot()
	set(2)
	inner := journal.CreateSnapshot()
	set(3)

	if err := journal.RestoreSnapshot(inner); err != nil {
		t.Fatal(err)
	}
	check(2)
	if err := journal.RestoreSnapshot(outer); err != nil {
		t.Fatal(err)
	}
	check(1)
}

func TestJournal_CommittedStorageIsValueBeforeFirstWrite(t *testing.T) {
	journal := NewJournal(NewMemory(Accounts{{1}: {Storage: Storage{{1}: {7}}}}))

	for _, value := range []evm.Word{{8}, {9}} {
		if err := journal.SetStorage(evm.Address{1}, evm.Key{1}, value); err != nil {
			t.Fatal(err)
		}
	}

	committed, err := journal.GetCommittedStorage(evm.Address{1}, evm.Key{1})
	if err != nil {
		t.Fatal(err)
	}
	if want := (evm.Word{7}); committed != want {
		t.Errorf("unexpected committed value, wanted %v, got %v", want, committed)
	}
	current, err := journal.GetStorage(evm.Address{1}, evm.Key{1})
	if err != nil {
		t.Fatal(err)
	}
	if want := (evm.Word{9}); current != want {
		t.Errorf("unexpected current value, wanted %v, got %v", want, current)
	}
}

func TestJournal_LogsAreDiscardedOnRollback(t *testing.T) {
	journal := NewJournal(NewMemory(nil))
	journal.EmitLog(evm.Log{Address: evm.Address{1}})
	snapshot := journal.CreateSnapshot()
	journal.EmitLog(evm.Log{Address: evm.Address{2}})
	journal.EmitLog(evm.Log{Address: evm.Address{3}})
	if want, got := 3, len(journal.GetLogs()); want != got {
		t.Fatalf("unexpected number of logs, wanted %d, got %d", want, got)
	}

	if err := journal.RestoreSnapshot(snapshot); err != nil {
		t.Fatal(err)
	}
	logs := journal.GetLogs()
	if len(logs) != 1 || logs[0].Address != (evm.Address{1}) {
		t.Errorf("unexpected logs after rollback: %v", logs)
	}
}

func TestJournal_EmittedLogsAreCopied(t *testing.T) {
	journal := NewJournal(NewMemory(nil))
	data := []byte{1, 2, 3}
	journal.EmitLog(evm.Log{Data: data})
	data[0] = 42
	if want, got := []byte{1, 2, 3}, journal.GetLogs()[0].Data; !slices.Equal(want, []byte(got)) {
		t.Errorf("log data was modified, wanted %x, got %x", want, got)
	}
}

func TestJournal_AccessListsAreRolledBack(t *testing.T) {
	journal := NewJournal(NewMemory(nil))
	if got := journal.AccessAccount(evm.Address{1}); got != evm.ColdAccess {
		t.Errorf("first access should be cold, got %v", got)
	}
	if got := journal.AccessAccount(evm.Address{1}); got != evm.WarmAccess {
		t.Errorf("second access should be warm, got %v", got)
	}

	snapshot := journal.CreateSnapshot()
	if got := journal.AccessStorage(evm.Address{1}, evm.Key{1}); got != evm.ColdAccess {
		t.Errorf("first slot access should be cold, got %v", got)
	}
	if got := journal.AccessAccount(evm.Address{2}); got != evm.ColdAccess {
		t.Errorf("first access should be cold, got %v", got)
	}
	addressPresent, slotPresent := journal.IsSlotInAccessList(evm.Address{1}, evm.Key{1})
	if !addressPresent || !slotPresent {
		t.Errorf("address and slot should be in the access list, got %t and %t", addressPresent, slotPresent)
	}

	if err := journal.RestoreSnapshot(snapshot); err != nil {
		t.Fatal(err)
	}
	if !journal.IsAddressInAccessList(evm.Address{1}) {
		t.Errorf("address accessed before the snapshot should remain warm")
	}
	if journal.IsAddressInAccessList(evm.Address{2}) {
		t.Errorf("address accessed after the snapshot should be cold again")
	}
	if _, slotPresent = journal.IsSlotInAccessList(evm.Address{1}, evm.Key{1}); slotPresent {
		t.Errorf("slot accessed after the snapshot should be cold again")
	}
}

func TestJournal_RemoveAccountCanBeUndone(t *testing.T) {
	initial := Accounts{{1}: {Balance: evm.NewValue(3), Nonce: 4, Code: evm.Code{5}, Storage: Storage{{1}: {6}}}}
	for name, factory := range worldStateFactories {
		t.Run(name, func(t *testing.T) {
			journal := NewJournal(factory(t, initial))

			snapshot := journal.CreateSnapshot()
			if err := journal.RemoveAccount(evm.Address{1}); err != nil {
				t.Fatal(err)
			}
			exists, err := journal.AccountExists(evm.Address{1})
			if err != nil || exists {
				t.Fatalf("account should be removed, exists %t, err %v", exists, err)
			}

			if err := journal.RestoreSnapshot(snapshot); err != nil {
				t.Fatal(err)
			}
			nonce, err := journal.GetNonce(evm.Address{1})
			if err != nil || nonce != 4 {
				t.Errorf("unexpected nonce after rollback, wanted 4, got %d, err %v", nonce, err)
			}
			value, err := journal.GetStorage(evm.Address{1}, evm.Key{1})
			if err != nil || value != (evm.Word{6}) {
				t.Errorf("unexpected slot after rollback, wanted %v, got %v, err %v", evm.Word{6}, value, err)
			}
		})
	}
}

func TestJournal_SelfDestructMovesBalanceAndMarksAccount(t *testing.T) {
	backend := NewMemory(Accounts{
		{1}: {Balance: evm.NewValue(10)},
		{2}: {Balance: evm.NewValue(5)},
	})
	journal := NewJournal(backend)

	snapshot := journal.CreateSnapshot()
	first, err := journal.SelfDestruct(evm.Address{1}, evm.Address{2})
	if err != nil || !first {
		t.Fatalf("first self-destruct should be reported, got %t, err %v", first, err)
	}
	second, err := journal.SelfDestruct(evm.Address{1}, evm.Address{2})
	if err != nil || second {
		t.Fatalf("second self-destruct should not be reported, got %t, err %v", second, err)
	}

	if balance, _ := journal.GetBalance(evm.Address{2}); balance != evm.NewValue(15) {
		t.Errorf("beneficiary should receive the balance, got %v", balance)
	}
	if balance, _ := journal.GetBalance(evm.Address{1}); !balance.IsZero() {
		t.Errorf("destructed account should have no balance, got %v", balance)
	}
	if want, got := []evm.Address{{1}}, journal.SelfDestructed(); !slices.Equal(want, got) {
		t.Errorf("unexpected destructed accounts, wanted %v, got %v", want, got)
	}

	if err := journal.RestoreSnapshot(snapshot); err != nil {
		t.Fatal(err)
	}
	if journal.HasSelfDestructed(evm.Address{1}) {
		t.Errorf("destruction mark should be rolled back")
	}
	if balance, _ := journal.GetBalance(evm.Address{1}); balance != evm.NewValue(10) {
		t.Errorf("balance should be restored, got %v", balance)
	}
}

func TestJournal_BackendErrorsAreReportedAsStateErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := evm.NewMockWorldState(ctrl)
	injected := errors.New("injected")

	backend.EXPECT().GetBalance(evm.Address{1}).Return(evm.Value{}, injected)
	backend.EXPECT().AccountExists(evm.Address{2}).Return(true, nil)
	backend.EXPECT().GetNonce(evm.Address{2}).Return(uint64(0), nil).Times(2)
	backend.EXPECT().SetNonce(evm.Address{2}, uint64(1)).Return(injected)

	journal := NewJournal(backend)
	var stateErr *evm.StateError

	_, err := journal.GetBalance(evm.Address{1})
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected a state error, got %v", err)
	}
	if want, got := (evm.Address{1}), stateErr.Address; want != got {
		t.Errorf("unexpected address in error, wanted %v, got %v", want, got)
	}

	err = evm.Account(journal, evm.Address{2}).IncrementNonce()
	if !errors.As(err, &stateErr) || !errors.Is(err, injected) {
		t.Errorf("expected a state error wrapping the backend error, got %v", err)
	}
}

// unreliableState is a world state whose writes can be made to fail.
type unreliableState struct {
	*Memory
	failBalance bool
	failStorage bool
}

var errDiskFull = errors.New("disk full")

func (s *unreliableState) SetBalance(addr evm.Address, value evm.Value) error {
	if s.failBalance {
		return errDiskFull
	}
	return s.Memory.SetBalance(addr, value)
}

func (s *unreliableState) SetStorage(addr evm.Address, key evm.Key, value evm.Word) error {
	if s.failStorage {
		return errDiskFull
	}
	return s.Memory.SetStorage(addr, key, value)
}

func TestJournal_FailedWritesAreNotRecorded(t *testing.T) {
	initial := Accounts{{1}: {Balance: evm.NewValue(10)}}
	backend := &unreliableState{Memory: NewMemory(initial), failStorage: true}
	journal := NewJournal(backend)

	if err := journal.SetBalance(evm.Address{1}, evm.NewValue(7)); err != nil {
		t.Fatal(err)
	}
	if err := journal.SetStorage(evm.Address{1}, evm.Key{1}, evm.Word{1}); !errors.Is(err, errDiskFull) {
		t.Fatalf("expected the write to fail, got %v", err)
	}

	if err := journal.RestoreSnapshot(0); err != nil {
		t.Fatalf("rollback should not replay the failed write: %v", err)
	}
	if !initial.Equal(backend.Accounts()) {
		t.Errorf("unexpected state after rollback: %v", initial.Diff(backend.Accounts()))
	}
}

func TestJournal_RollbackContinuesAfterFailedUndo(t *testing.T) {
	initial := Accounts{{1}: {Balance: evm.NewValue(10), Nonce: 1, Storage: Storage{{1}: {1}}}}
	backend := &unreliableState{Memory: NewMemory(initial)}
	journal := NewJournal(backend)

	if err := journal.SetNonce(evm.Address{1}, 2); err != nil {
		t.Fatal(err)
	}
	if err := journal.SetBalance(evm.Address{1}, evm.NewValue(7)); err != nil {
		t.Fatal(err)
	}
	if err := journal.SetStorage(evm.Address{1}, evm.Key{1}, evm.Word{2}); err != nil {
		t.Fatal(err)
	}

	backend.failBalance = true
	err := journal.RestoreSnapshot(0)
	var stateErr *evm.StateError
	if !errors.As(err, &stateErr) || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected the failed undo to be reported, got %v", err)
	}

	if nonce, _ := backend.GetNonce(evm.Address{1}); nonce != 1 {
		t.Errorf("nonce should be restored despite the failure, got %d", nonce)
	}
	if value, _ := backend.GetStorage(evm.Address{1}, evm.Key{1}); value != (evm.Word{1}) {
		t.Errorf("storage should be restored despite the failure, got %v", value)
	}
	if snapshot := journal.CreateSnapshot(); snapshot != 0 {
		t.Errorf("all undo entries should be consumed, %d left", snapshot)
	}
}
