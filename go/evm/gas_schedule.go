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

	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

// GasSchedule collects all gas prices used by the interpreter and the
// processor. Schedules are plain data; custom schedules may be derived from
// the presets returned by ScheduleFor.
type GasSchedule struct {
	// StaticGas is charged before an instruction is executed.
	StaticGas [256]Gas

	MemoryGas    Gas // < linear coefficient of memory expansion, per word
	QuadCoeffDiv Gas // < divisor of the quadratic memory expansion term
	CopyGas      Gas // < per word copied by *COPY instructions
	Keccak256Gas Gas // < per word hashed by SHA3 and CREATE2
	ExpByteGas   Gas // < per byte of the exponent of EXP
	LogGas       Gas
	LogTopicGas  Gas
	LogDataGas   Gas

	// AccessLists enables EIP-2929 cold/warm pricing.
	AccessLists           bool
	WarmStorageReadCost   Gas
	ColdAccountAccessCost Gas
	ColdSloadCost         Gas

	SloadGas           Gas // < SSTORE no-op and dirty-write cost
	SstoreSetGas       Gas
	SstoreResetGas     Gas
	SstoreSentryGas    Gas
	SstoreClearsRefund Gas

	CallValueTransferGas Gas
	CallNewAccountGas    Gas
	CallStipend          Gas

	CreateDataGas   Gas // < per byte of deployed code
	InitCodeWordGas Gas // < per word of init code, EIP-3860
	MaxCodeSize     int
	MaxInitCodeSize int // < zero disables the limit

	SelfdestructNewAccountGas Gas
	SelfdestructRefund        Gas
}

// ScheduleFor returns the gas schedule of the given revision.
func ScheduleFor(revision Revision) (*GasSchedule, error) {
	if revision < R07_Istanbul || revision > LatestRevision {
		return nil, fmt.Errorf("unsupported revision: %v", revision)
	}
	s := &GasSchedule{
		MemoryGas:    3,
		QuadCoeffDiv: 512,
		CopyGas:      3,
		Keccak256Gas: 6,
		ExpByteGas:   50,
		LogGas:       375,
		LogTopicGas:  375,
		LogDataGas:   8,

		SloadGas:           800,
		SstoreSetGas:       20000,
		SstoreResetGas:     5000,
		SstoreSentryGas:    2300,
		SstoreClearsRefund: 15000,

		CallValueTransferGas: 9000,
		CallNewAccountGas:    25000,
		CallStipend:          2300,

		CreateDataGas: 200,
		MaxCodeSize:   24576,

		SelfdestructNewAccountGas: 25000,
		SelfdestructRefund:        24000,
	}
	for i := range s.StaticGas {
		s.StaticGas[i] = istanbulStaticGas(vm.OpCode(i))
	}

	if revision >= R09_Berlin {
		s.AccessLists = true
		s.WarmStorageReadCost = 100
		s.ColdAccountAccessCost = 2600
		s.ColdSloadCost = 2100
		s.SloadGas = s.WarmStorageReadCost
		s.SstoreResetGas = 5000 - s.ColdSloadCost
		for _, op := range []vm.OpCode{
			vm.BALANCE, vm.EXTCODESIZE, vm.EXTCODECOPY, vm.EXTCODEHASH, vm.SLOAD,
			vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL,
		} {
			s.StaticGas[op] = s.WarmStorageReadCost
		}
	}
	if revision >= R10_London {
		// EIP-3529
		s.SstoreClearsRefund = s.SstoreResetGas + 1900
		s.SelfdestructRefund = 0
	}
	if revision >= R12_Shanghai {
		s.InitCodeWordGas = 2
		s.MaxInitCodeSize = 2 * s.MaxCodeSize
	}
	return s, nil
}

// MustScheduleFor is like ScheduleFor but panics on unsupported revisions.
func MustScheduleFor(revision Revision) *GasSchedule {
	s, err := ScheduleFor(revision)
	if err != nil {
		panic(err)
	}
	return s
}

func istanbulStaticGas(op vm.OpCode) Gas {
	switch {
	case vm.PUSH1 <= op && op <= vm.PUSH32,
		vm.DUP1 <= op && op <= vm.DUP16,
		vm.SWAP1 <= op && op <= vm.SWAP16,
		vm.LT <= op && op <= vm.SAR:
		return 3
	case vm.COINBASE <= op && op <= vm.CHAINID:
		return 2
	case vm.LOG0 <= op && op <= vm.LOG4:
		return 375 * Gas(op-vm.LOG0+1)
	}
	switch op {
	case vm.ADDRESS, vm.ORIGIN, vm.CALLER, vm.CALLVALUE, vm.CALLDATASIZE,
		vm.CODESIZE, vm.GASPRICE, vm.RETURNDATASIZE, vm.POP, vm.PC, vm.MSIZE,
		vm.GAS, vm.BASEFEE, vm.PUSH0:
		return 2
	case vm.ADD, vm.SUB, vm.CALLDATALOAD, vm.CALLDATACOPY, vm.CODECOPY,
		vm.RETURNDATACOPY, vm.MLOAD, vm.MSTORE, vm.MSTORE8:
		return 3
	case vm.MUL, vm.DIV, vm.SDIV, vm.MOD, vm.SMOD, vm.SIGNEXTEND, vm.SELFBALANCE:
		return 5
	case vm.ADDMOD, vm.MULMOD, vm.JUMP:
		return 8
	case vm.EXP, vm.JUMPI:
		return 10
	case vm.BLOCKHASH:
		return 20
	case vm.SHA3:
		return 30
	case vm.BALANCE, vm.EXTCODESIZE, vm.EXTCODECOPY, vm.EXTCODEHASH,
		vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL:
		return 700
	case vm.SLOAD:
		return 800
	case vm.JUMPDEST:
		return 1
	case vm.SELFDESTRUCT:
		return 5000
	case vm.CREATE, vm.CREATE2:
		return 32000
	}
	// STOP, RETURN, REVERT, INVALID, SSTORE and undefined instructions.
	return 0
}

// RefundPolicy decides which part of the refund counter accumulated by a
// successful transaction is credited back.
type RefundPolicy interface {
	Refund(gasUsed, refund Gas) Gas
}

// NoRefunds grants no refunds at all.
type NoRefunds struct{}

func (NoRefunds) Refund(Gas, Gas) Gas {
	return 0
}

// CappedRefunds grants the accumulated refund up to gasUsed/Quotient.
type CappedRefunds struct {
	Quotient Gas
}

func (p CappedRefunds) Refund(gasUsed, refund Gas) Gas {
	if refund <= 0 {
		return 0
	}
	return min(refund, gasUsed/p.Quotient)
}

var (
	// EIP2200Refunds caps refunds at half of the used gas.
	EIP2200Refunds RefundPolicy = CappedRefunds{Quotient: 2}
	// EIP3529Refunds caps refunds at a fifth of the used gas.
	EIP3529Refunds RefundPolicy = CappedRefunds{Quotient: 5}
)

// RefundPolicyFor returns the refund policy in effect for the given revision.
func RefundPolicyFor(revision Revision) RefundPolicy {
	if revision >= R10_London {
		return EIP3529Refunds
	}
	return EIP2200Refunds
}
