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

import "github.com/Fantom-foundation/evmcore/go/evm/vm"

// GetStorageExample provides a contract keeping a running counter in storage.
// The counter is incremented x times by a nested call of the contract to
// itself; a final call that reverts attempts a further increment that must
// not become visible. The counter is returned.
func GetStorageExample() Example {
	code := []byte{
		// A call with empty input increments the counter and reverts.
		byte(vm.CALLDATASIZE),
		byte(vm.PUSH1), 22,
		byte(vm.JUMPI),
		byte(vm.PUSH1), 0,
		byte(vm.SLOAD),
		byte(vm.PUSH1), 1,
		byte(vm.ADD),
		byte(vm.PUSH1), 0,
		byte(vm.SSTORE),
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.REVERT),
		byte(vm.INVALID),
		byte(vm.INVALID),
		byte(vm.INVALID),
		byte(vm.INVALID),

		// Parse the input parameter, the stack is [x].
		byte(vm.JUMPDEST), // 22
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),

		// Loop header.
		byte(vm.JUMPDEST), // 26
		byte(vm.DUP1),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 48,
		byte(vm.JUMPI),

		// counter += 1
		byte(vm.PUSH1), 0,
		byte(vm.SLOAD),
		byte(vm.PUSH1), 1,
		byte(vm.ADD),
		byte(vm.PUSH1), 0,
		byte(vm.SSTORE),

		// x -= 1
		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),
		byte(vm.PUSH1), 26,
		byte(vm.JUMP),

		// Call self with empty input, the call reverts.
		byte(vm.JUMPDEST), // 48
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0,
		byte(vm.ADDRESS),
		byte(vm.GAS),
		byte(vm.CALL),
		byte(vm.POP),

		// Return the counter.
		byte(vm.PUSH1), 0,
		byte(vm.SLOAD),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}

	return exampleSpec{
		Name:      "storage",
		Code:      code,
		reference: storageRef,
	}.build()
}

func storageRef(x int) int {
	return int(uint32(x))
}
