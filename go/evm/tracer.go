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

import "github.com/Fantom-foundation/evmcore/go/evm/vm"

//go:generate mockgen -source tracer.go -destination tracer_mock.go -package evm

// Tracer observes an execution. Implementations must not retain the slices
// passed to them beyond the duration of a call.
type Tracer interface {
	OnEnter(depth int, kind CallKind, caller, recipient Address, input Data, gas Gas, value Value)
	OnStep(StepInfo)
	OnExit(depth int, output Data, gasUsed Gas, reason ExitReason, err error)
}

// StepInfo is a snapshot of a frame taken before an instruction is executed.
type StepInfo struct {
	Depth      int
	Pc         uint64
	Op         vm.OpCode
	Gas        Gas
	Stack      []Word // < bottom to top
	MemorySize uint64
}
