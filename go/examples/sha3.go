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
	"encoding/binary"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
	"golang.org/x/crypto/sha3"
)

// GetSha3Example provides a loop re-hashing the first memory word x times.
// The chain starts from the zero word and the final word is returned.
func GetSha3Example() Example {
	code := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),

		// Loop header, the stack is [x].
		byte(vm.JUMPDEST),
		byte(vm.DUP1),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 24,
		byte(vm.JUMPI),

		// memory[0:32] = keccak256(memory[0:32])
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.SHA3),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),

		// x -= 1
		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),

		byte(vm.PUSH1), 3,
		byte(vm.JUMP),

		// Return the last hash.
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}

	return exampleSpec{
		Name:      "sha3",
		Code:      code,
		reference: sha3Ref,
		// The first memory word is paid for exactly once: by the first
		// SHA3 or, for x = 0, by the final RETURN.
		gas: func(x int) evm.Gas {
			return 36 + 88*evm.Gas(uint32(x))
		},
	}.build()
}

func sha3Ref(x int) int {
	var hash evm.Hash
	hasher := sha3.NewLegacyKeccak256()
	for i := uint32(0); i < uint32(x); i++ {
		hasher.Reset()
		hasher.Write(hash[:])
		hasher.Sum(hash[:0])
	}
	return int(binary.BigEndian.Uint32(hash[28:]))
}
