// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stackvm

import (
	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

// stackUsage describes the stack requirements of an instruction. An
// instruction can be executed if the stack holds at least minSize and at most
// maxSize elements.
type stackUsage struct {
	minSize int
	maxSize int
	delta   int
}

var stackLimits = func() (res [256]stackUsage) {
	for i := range res {
		res[i] = computeStackUsage(vm.OpCode(i))
	}
	return
}()

func makeUsage(pops, pushes int) stackUsage {
	delta := pushes - pops
	maxSize := MaxStackSize
	if delta > 0 {
		maxSize -= delta
	}
	return stackUsage{minSize: pops, maxSize: maxSize, delta: delta}
}

// computeStackUsage computes the stack usage of the given opcode. Undefined
// opcodes have no requirements; they fail before the stack is checked.
func computeStackUsage(op vm.OpCode) stackUsage {
	switch {
	case vm.PUSH0 <= op && op <= vm.PUSH32:
		return makeUsage(0, 1)
	case vm.DUP1 <= op && op <= vm.DUP16:
		n := int(op-vm.DUP1) + 1
		return makeUsage(n, n+1)
	case vm.SWAP1 <= op && op <= vm.SWAP16:
		n := int(op-vm.SWAP1) + 1
		return makeUsage(n+1, n+1)
	case vm.LOG0 <= op && op <= vm.LOG4:
		n := int(op - vm.LOG0)
		return makeUsage(n+2, 0)
	}

	switch op {
	case vm.STOP, vm.JUMPDEST, vm.INVALID:
		return makeUsage(0, 0)
	case vm.ADDRESS, vm.ORIGIN, vm.CALLER, vm.CALLVALUE, vm.CALLDATASIZE,
		vm.CODESIZE, vm.GASPRICE, vm.RETURNDATASIZE, vm.COINBASE, vm.TIMESTAMP,
		vm.NUMBER, vm.PREVRANDAO, vm.GASLIMIT, vm.CHAINID, vm.SELFBALANCE,
		vm.BASEFEE, vm.PC, vm.MSIZE, vm.GAS:
		return makeUsage(0, 1)
	case vm.ISZERO, vm.NOT, vm.BALANCE, vm.CALLDATALOAD, vm.EXTCODESIZE,
		vm.EXTCODEHASH, vm.BLOCKHASH, vm.MLOAD, vm.SLOAD:
		return makeUsage(1, 1)
	case vm.POP, vm.JUMP, vm.SELFDESTRUCT:
		return makeUsage(1, 0)
	case vm.ADD, vm.MUL, vm.SUB, vm.DIV, vm.SDIV, vm.MOD, vm.SMOD, vm.EXP,
		vm.SIGNEXTEND, vm.LT, vm.GT, vm.SLT, vm.SGT, vm.EQ, vm.AND, vm.OR,
		vm.XOR, vm.BYTE, vm.SHL, vm.SHR, vm.SAR, vm.SHA3:
		return makeUsage(2, 1)
	case vm.MSTORE, vm.MSTORE8, vm.SSTORE, vm.JUMPI, vm.RETURN, vm.REVERT:
		return makeUsage(2, 0)
	case vm.ADDMOD, vm.MULMOD:
		return makeUsage(3, 1)
	case vm.CALLDATACOPY, vm.CODECOPY, vm.RETURNDATACOPY:
		return makeUsage(3, 0)
	case vm.EXTCODECOPY:
		return makeUsage(4, 0)
	case vm.CREATE:
		return makeUsage(3, 1)
	case vm.CREATE2:
		return makeUsage(4, 1)
	case vm.CALL, vm.CALLCODE:
		return makeUsage(7, 1)
	case vm.DELEGATECALL, vm.STATICCALL:
		return makeUsage(6, 1)
	}
	return makeUsage(0, 0)
}

// checkStack verifies the stack requirements of the given instruction.
func checkStack(op vm.OpCode, stack *Stack) error {
	limits := &stackLimits[op]
	if stack.len() < limits.minSize {
		return evm.ErrStackUnderflow
	}
	if stack.len() > limits.maxSize {
		return evm.ErrStackOverflow
	}
	return nil
}
