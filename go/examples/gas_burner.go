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
	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

// GetGasBurnerExample provides a contract spinning until at least x units of
// gas have been consumed since its start, as observed through GAS. It
// returns x.
func GetGasBurnerExample() Example {
	code := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),
		byte(vm.GAS),

		// Loop, the stack is [x, start].
		byte(vm.JUMPDEST),
		byte(vm.GAS),
		byte(vm.DUP2),
		byte(vm.SUB),
		byte(vm.DUP3),
		byte(vm.SWAP1),
		byte(vm.LT),
		byte(vm.PUSH1), 4,
		byte(vm.JUMPI),

		byte(vm.POP),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}

	return exampleSpec{
		Name:      "gas_burner",
		Code:      code,
		reference: burnGas,
		gas:       burnedGas,
	}.build()
}

func burnGas(x int) int {
	return int(uint32(x))
}

// burnedGas is the gas consumed by the burner for the given target. The
// k-th loop iteration observes 3+31*(k-1) units of gas consumed.
func burnedGas(x int) evm.Gas {
	target := evm.Gas(uint32(x))
	iterations := evm.Gas(1)
	if target > 3 {
		iterations += (target - 3 + 30) / 31
	}
	return 25 + 31*iterations
}
