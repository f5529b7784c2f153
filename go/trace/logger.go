// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trace

import (
	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/ethereum/go-ethereum/log"
)

// Logger is a tracer forwarding every event to a log.Logger. Steps are logged
// at trace level with the operation, the available gas and the top of the
// stack; frame boundaries at debug level.
type Logger struct {
	log log.Logger
}

// NewLogger creates a tracer writing to the given logger. If nil, the root
// logger is used.
func NewLogger(logger log.Logger) *Logger {
	if logger == nil {
		logger = log.Root()
	}
	return &Logger{log: logger}
}

func (l *Logger) OnEnter(depth int, kind evm.CallKind, caller, recipient evm.Address, input evm.Data, gas evm.Gas, value evm.Value) {
	l.log.Debug("enter", "depth", depth, "kind", kind, "caller", caller, "recipient", recipient, "gas", gas, "value", value)
}

func (l *Logger) OnStep(info evm.StepInfo) {
	top := "-empty-"
	if n := len(info.Stack); n > 0 {
		top = info.Stack[n-1].ToUint256().Dec()
	}
	l.log.Trace("step", "depth", info.Depth, "pc", info.Pc, "op", info.Op, "gas", info.Gas, "top", top)
}

func (l *Logger) OnExit(depth int, output evm.Data, gasUsed evm.Gas, reason evm.ExitReason, err error) {
	if err != nil {
		l.log.Debug("exit", "depth", depth, "reason", reason, "gasUsed", gasUsed, "err", err)
		return
	}
	l.log.Debug("exit", "depth", depth, "reason", reason, "gasUsed", gasUsed, "output", len(output))
}
