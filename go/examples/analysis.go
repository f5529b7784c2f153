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

// jumpOverGas is the cost of PUSH2, JUMP and the target JUMPDEST.
const jumpOverGas = 3 + 8 + 1

// NewAnalysisCode creates a contract of the maximum deployable size echoing
// its argument. The space between the prologue and the epilogue is filled
// with repetitions of the given filler, which is jumped over. Running the
// contract costs the same gas for any filler; only the jump-destination
// analysis of the code sees it.
func NewAnalysisCode(filler []byte) evm.Code {
	maxSize := evm.MustScheduleFor(evm.R07_Istanbul).MaxCodeSize

	prologue := append(append([]byte{}, loadArgument...), byte(vm.PUSH2), 0, 0, byte(vm.JUMP))
	epilogue := append([]byte{byte(vm.JUMPDEST)}, returnTop...)

	code := make(evm.Code, 0, maxSize)
	code = append(code, prologue...)
	for len(code)+len(filler)+len(epilogue) <= maxSize {
		code = append(code, filler...)
	}
	target := len(code)
	code[len(loadArgument)+1] = byte(target >> 8)
	code[len(loadArgument)+2] = byte(target)
	return append(code, epilogue...)
}

// GetAnalysisExamples provides one example per filler of NewAnalysisCode.
func GetAnalysisExamples() []Example {
	fillers := []struct {
		name   string
		filler []byte
	}{
		{"jumpdest", []byte{byte(vm.JUMPDEST)}},
		{"stop", []byte{byte(vm.STOP)}},
		{"push1", []byte{byte(vm.PUSH1), 0}},
		{"push32", append([]byte{byte(vm.PUSH32)}, make([]byte, 32)...)},
	}
	res := make([]Example, 0, len(fillers))
	for _, f := range fillers {
		res = append(res, exampleSpec{
			Name:      f.name,
			Code:      NewAnalysisCode(f.filler),
			reference: echo,
			gas: func(int) evm.Gas {
				return loadArgumentGas + jumpOverGas + returnTopGas
			},
		}.build())
	}
	return res
}
