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
	"encoding/json"
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

func TestScheduleFor_StaticGasOfSelectedInstructions(t *testing.T) {
	tests := map[Revision]map[vm.OpCode]Gas{
		R07_Istanbul: {
			vm.ADD: 3, vm.MUL: 5, vm.EXP: 10, vm.SHA3: 30, vm.SLOAD: 800,
			vm.BALANCE: 700, vm.CALL: 700, vm.JUMPDEST: 1, vm.LOG2: 1125,
			vm.CREATE: 32000, vm.SSTORE: 0, vm.STOP: 0, vm.PUSH0: 2,
		},
		R09_Berlin: {
			vm.SLOAD: 100, vm.BALANCE: 100, vm.CALL: 100, vm.EXTCODEHASH: 100,
			vm.SELFDESTRUCT: 5000,
		},
	}
	for revision, prices := range tests {
		schedule, err := ScheduleFor(revision)
		if err != nil {
			t.Fatalf("failed to get schedule for %v: %v", revision, err)
		}
		for op, want := range prices {
			if got := schedule.StaticGas[op]; want != got {
				t.Errorf("%v/%v: wanted %d, got %d", revision, op, want, got)
			}
		}
	}
}

func TestScheduleFor_RevisionSpecificParameters(t *testing.T) {
	istanbul := MustScheduleFor(R07_Istanbul)
	berlin := MustScheduleFor(R09_Berlin)
	london := MustScheduleFor(R10_London)
	shanghai := MustScheduleFor(R12_Shanghai)

	if istanbul.AccessLists || !berlin.AccessLists {
		t.Errorf("access lists should be enabled starting with Berlin")
	}
	if want, got := Gas(2900), berlin.SstoreResetGas; want != got {
		t.Errorf("unexpected Berlin reset gas, wanted %d, got %d", want, got)
	}
	if want, got := Gas(15000), berlin.SstoreClearsRefund; want != got {
		t.Errorf("unexpected Berlin clear refund, wanted %d, got %d", want, got)
	}
	if want, got := Gas(4800), london.SstoreClearsRefund; want != got {
		t.Errorf("unexpected London clear refund, wanted %d, got %d", want, got)
	}
	if london.SelfdestructRefund != 0 {
		t.Errorf("self-destruct refunds should be removed in London")
	}
	if london.MaxInitCodeSize != 0 || shanghai.MaxInitCodeSize != 49152 {
		t.Errorf("init code limit should be introduced in Shanghai")
	}
}

func TestScheduleFor_UnknownRevision(t *testing.T) {
	if _, err := ScheduleFor(Revision(42)); err == nil {
		t.Errorf("expected an error for an unknown revision")
	}
}

func TestRefundPolicies(t *testing.T) {
	tests := map[string]struct {
		policy  RefundPolicy
		used    Gas
		refund  Gas
		granted Gas
	}{
		"none":              {NoRefunds{}, 100, 50, 0},
		"eip2200 below cap": {EIP2200Refunds, 100, 20, 20},
		"eip2200 capped":    {EIP2200Refunds, 100, 80, 50},
		"eip3529 below cap": {EIP3529Refunds, 100, 10, 10},
		"eip3529 capped":    {EIP3529Refunds, 100, 80, 20},
		"negative counter":  {EIP3529Refunds, 100, -10, 0},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := test.policy.Refund(test.used, test.refund); test.granted != got {
				t.Errorf("wanted %d, got %d", test.granted, got)
			}
		})
	}
	if RefundPolicyFor(R09_Berlin) != EIP2200Refunds || RefundPolicyFor(R10_London) != EIP3529Refunds {
		t.Errorf("unexpected refund policy selection")
	}
}

func TestRevision_JSONAndParsing(t *testing.T) {
	for r := R07_Istanbul; r <= LatestRevision; r++ {
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("failed to marshal %v: %v", r, err)
		}
		var restored Revision
		if err := json.Unmarshal(data, &restored); err != nil {
			t.Fatalf("failed to unmarshal %s: %v", data, err)
		}
		if restored != r {
			t.Errorf("round trip failed, wanted %v, got %v", r, restored)
		}
	}
	if r, err := ParseRevision("shanghai"); err != nil || r != R12_Shanghai {
		t.Errorf("failed to parse lower case revision name: %v, %v", r, err)
	}
	if _, err := ParseRevision("Frontier"); err == nil {
		t.Errorf("expected an error for an unsupported revision")
	}
	if _, err := json.Marshal(Revision(42)); err == nil {
		t.Errorf("expected an error when marshaling an unknown revision")
	}
}

func TestExitReason_TextRoundTrip(t *testing.T) {
	for _, reason := range []ExitReason{Returned, Reverted, Threw, Halted} {
		text, err := reason.MarshalText()
		if err != nil {
			t.Fatalf("failed to marshal %v: %v", reason, err)
		}
		var restored ExitReason
		if err := restored.UnmarshalText(text); err != nil {
			t.Fatalf("failed to unmarshal %s: %v", text, err)
		}
		if restored != reason {
			t.Errorf("round trip failed, wanted %v, got %v", reason, restored)
		}
	}
	if want, got := "ExitReason(9)", ExitReason(9).String(); want != got {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}

func TestGetStorageStatus(t *testing.T) {
	zero, x, y, z := Word{}, Word{1}, Word{2}, Word{3}
	tests := []struct {
		original, current, new Word
		want                   StorageStatus
	}{
		{zero, zero, zero, StorageAssigned},
		{x, y, y, StorageAssigned},
		{zero, zero, z, StorageAdded},
		{x, x, zero, StorageDeleted},
		{x, x, z, StorageModified},
		{x, zero, z, StorageDeletedAdded},
		{x, y, zero, StorageModifiedDeleted},
		{x, zero, x, StorageDeletedRestored},
		{zero, y, zero, StorageAddedDeleted},
		{x, y, x, StorageModifiedRestored},
		{x, y, z, StorageAssigned},
		{zero, y, z, StorageAssigned},
	}
	for _, test := range tests {
		if got := GetStorageStatus(test.original, test.current, test.new); test.want != got {
			t.Errorf("%v -> %v -> %v: wanted %v, got %v", test.original, test.current, test.new, test.want, got)
		}
	}
}
