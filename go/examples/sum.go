// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"fmt"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
	"github.com/Fantom-foundation/evmcore/go/processor/floria"
	"github.com/Fantom-foundation/evmcore/go/state"
	"github.com/holiman/uint256"
)

// GetSumExample provides a loop computing the sum 1 + 2 + ... + x.
func GetSumExample() Example {
	code := []byte{
		// Parse the input parameter and initialize the accumulator.
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),
		byte(vm.PUSH1), 0,

		// Loop header, the stack is [x, sum].
		byte(vm.JUMPDEST),
		byte(vm.DUP2),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 22,
		byte(vm.JUMPI),

		// sum += x
		byte(vm.DUP2),
		byte(vm.ADD),

		// x -= 1
		byte(vm.SWAP1),
		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),
		byte(vm.SWAP1),

		byte(vm.PUSH1), 5,
		byte(vm.JUMP),

		// Return the sum.
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}

	return exampleSpec{
		Name:      "sum",
		Code:      code,
		reference: sumRef,
		gas: func(x int) evm.Gas {
			return 45 + 52*evm.Gas(uint32(x))
		},
	}.build()
}

func sumRef(x int) int {
	n := uint64(uint32(x))
	return int(uint32(n * (n + 1) / 2))
}

// NewAdditionCode creates a contract adding the two given constants and
// returning the 32-byte result.
func NewAdditionCode(a, b *uint256.Int) evm.Code {
	code := make(evm.Code, 0, 2*33+8)
	for _, operand := range []*uint256.Int{a, b} {
		word := operand.Bytes32()
		code = append(code, byte(vm.PUSH32))
		code = append(code, word[:]...)
	}
	return append(code,
		byte(vm.ADD),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	)
}

// Addition is the outcome of RunAddition.
type Addition struct {
	Contract evm.Address
	Code     evm.Code
	Sum      *uint256.Int
	Result   evm.Result
}

// RunAddition deploys a contract adding a and b at the address of the
// sender's first creation and calls it with the given gas budget.
func RunAddition(processor *floria.Processor, sender evm.Address, a, b *uint256.Int, gas evm.Gas, tracer evm.Tracer) (Addition, error) {
	contract := evm.CreateAddress(sender, 0)
	code := NewAdditionCode(a, b)

	ws := state.NewMemory(nil)
	if err := ws.CreateAccount(contract, evm.Value{}, code); err != nil {
		return Addition{}, err
	}

	tx := evm.Transaction{Sender: sender, Logs: evm.NullLogSink{}}
	result, err := processor.Run(tx, sender, evm.Account(ws, contract), nil, gas, tracer)
	if err != nil {
		return Addition{}, err
	}
	res := Addition{Contract: contract, Code: code, Result: result}
	if result.Reason != evm.Returned {
		return res, fmt.Errorf("unexpected exit reason: %v", result.Reason)
	}
	res.Sum = new(uint256.Int).SetBytes(result.Output)
	return res, nil
}
