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
	"math"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
	"github.com/holiman/uint256"
)

// GetArithmeticExample provides a loop folding r = (3*r + i*i) mod (2^31-1)
// over i = x, x-1, ..., 1.
func GetArithmeticExample() Example {
	code := []byte{
		// Initialize the accumulator and parse the input parameter.
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),

		// Loop header, the stack is [r, i].
		byte(vm.JUMPDEST),
		byte(vm.DUP1),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 35,
		byte(vm.JUMPI),

		// s = i*i + 3*r
		byte(vm.DUP1),
		byte(vm.DUP1),
		byte(vm.MUL),
		byte(vm.DUP3),
		byte(vm.PUSH1), 3,
		byte(vm.MUL),
		byte(vm.ADD),

		// r = s mod 2^31-1
		byte(vm.PUSH4), 0x7F, 0xFF, 0xFF, 0xFF,
		byte(vm.SWAP1),
		byte(vm.MOD),
		byte(vm.SWAP2),
		byte(vm.POP),

		// i -= 1
		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),

		byte(vm.PUSH1), 5,
		byte(vm.JUMP),

		// Return the accumulator.
		byte(vm.JUMPDEST),
		byte(vm.POP),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}

	return exampleSpec{
		Name:      "arithmetic",
		Code:      code,
		reference: arithmetic,
		gas: func(x int) evm.Gas {
			return 47 + 81*evm.Gas(uint32(x))
		},
	}.build()
}

func arithmetic(x int) int {
	modulus := uint256.NewInt(math.MaxInt32)
	three := uint256.NewInt(3)
	result := new(uint256.Int)
	for i := uint64(uint32(x)); i > 0; i-- {
		square := uint256.NewInt(i)
		square.Mul(square, square)
		result.Mul(result, three)
		result.Add(result, square)
		result.Mod(result, modulus)
	}
	return int(result.Uint64())
}
