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

// loadArgument pushes the 32-byte argument following the function selector.
var loadArgument = []byte{
	byte(vm.PUSH1), 4,
	byte(vm.CALLDATALOAD),
}

// returnTop returns the top of the stack as a 32-byte word.
var returnTop = []byte{
	byte(vm.PUSH1), 0,
	byte(vm.MSTORE),
	byte(vm.PUSH1), 32,
	byte(vm.PUSH1), 0,
	byte(vm.RETURN),
}

const (
	loadArgumentGas = 6
	returnTopGas    = 15 // including the expansion to one memory word
)

// GetStaticOverheadExample provides the cheapest contract echoing its
// argument. Its gas usage is the fixed cost of any example call.
func GetStaticOverheadExample() Example {
	code := append(append([]byte{}, loadArgument...), returnTop...)
	return exampleSpec{
		Name:      "static_overhead",
		Code:      code,
		reference: echo,
		gas: func(int) evm.Gas {
			return loadArgumentGas + returnTopGas
		},
	}.build()
}

func echo(x int) int {
	return int(uint32(x))
}
