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
	"errors"
	"fmt"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

// Status is the execution state of a frame.
type Status byte

const (
	StatusRunning        Status = iota
	StatusSuspended             // < waiting for the outcome of a call or create
	StatusStopped               // < STOP or end of code
	StatusReturned              // < RETURN
	StatusReverted              // < REVERT
	StatusSelfDestructed        // < SELFDESTRUCT
	StatusFailed                // < a fault, see Frame.Err
	StatusHalted                // < step limit exceeded
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusStopped:
		return "stopped"
	case StatusReturned:
		return "returned"
	case StatusReverted:
		return "reverted"
	case StatusSelfDestructed:
		return "self-destructed"
	case StatusFailed:
		return "failed"
	case StatusHalted:
		return "halted"
	}
	return fmt.Sprintf("Status(%d)", s)
}

// ExitReason maps a terminal status to the reason reported to callers.
func (s Status) ExitReason() evm.ExitReason {
	switch s {
	case StatusStopped, StatusReturned, StatusSelfDestructed:
		return evm.Returned
	case StatusReverted:
		return evm.Reverted
	case StatusHalted:
		return evm.Halted
	}
	return evm.Threw
}

// Params are the inputs of a single frame.
type Params struct {
	Kind        evm.CallKind
	Depth       int
	Static      bool
	Caller      evm.Address
	Recipient   evm.Address // < the account whose storage and balance is used
	CodeAddress evm.Address // < the account the code was loaded from
	Value       evm.Value
	Input       evm.Data
	Code        evm.Code
	CodeHash    *evm.Hash // < nil for init code
	Gas         evm.Gas
}

// Environment is shared by all frames of a transaction.
type Environment struct {
	Context  evm.TransactionContext
	Tx       *evm.Transaction
	Schedule *evm.GasSchedule
	Revision evm.Revision
	Analyzer *Analyzer
	Tracer   evm.Tracer // < may be nil
	MaxSteps int64      // < zero for no limit

	steps int64
}

// Steps returns the number of instructions executed in this environment.
func (e *Environment) Steps() int64 {
	return e.steps
}

// CallRequest is issued by a suspended frame executing a call or create
// instruction. The gas has already been deducted from the issuing frame.
type CallRequest struct {
	Kind        evm.CallKind
	Caller      evm.Address
	Recipient   evm.Address // < unused for creates
	CodeAddress evm.Address // < unused for creates
	Value       evm.Value
	Transfer    bool // < whether Value moves from Caller to Recipient
	Input       evm.Data
	Gas         evm.Gas
	Static      bool
	Salt        evm.Hash // < CREATE2 only

	outOffset uint64
	outSize   uint64
}

// CallOutcome is the result of a call or create handed back to the frame
// that issued the request.
type CallOutcome struct {
	Success        bool
	Output         evm.Data // < becomes the return data of the issuing frame
	GasLeft        evm.Gas
	GasRefund      evm.Gas
	CreatedAddress evm.Address
}

// Frame is the execution context of a single call or create. Frames never
// call each other directly: a frame reaching a call instruction suspends and
// hands a CallRequest to its driver, which later resumes it.
type Frame struct {
	params   Params
	env      *Environment
	analysis *Analysis

	pc         uint64
	jumped     bool
	gas        GasMeter
	refund     evm.Gas
	stack      *Stack
	memory     *Memory
	returnData evm.Data
	output     evm.Data

	status  Status
	err     error
	pending *CallRequest
}

func NewFrame(env *Environment, params Params) *Frame {
	return &Frame{
		params:   params,
		env:      env,
		analysis: env.Analyzer.Analyze(params.Code, params.CodeHash),
		gas:      NewGasMeter(params.Gas),
		stack:    NewStack(),
		memory:   NewMemory(env.Schedule),
		status:   StatusRunning,
	}
}

// Release hands pooled resources back. The frame's stack must not be used
// afterwards.
func (f *Frame) Release() {
	if f.stack != nil {
		ReturnStack(f.stack)
		f.stack = nil
	}
}

func (f *Frame) Params() Params            { return f.params }
func (f *Frame) Status() Status            { return f.status }
func (f *Frame) Err() error                { return f.err }
func (f *Frame) Output() evm.Data          { return f.output }
func (f *Frame) GasLeft() evm.Gas          { return f.gas.Remaining() }
func (f *Frame) Refund() evm.Gas           { return f.refund }
func (f *Frame) Pc() uint64                { return f.pc }
func (f *Frame) Stack() *Stack             { return f.stack }
func (f *Frame) Memory() *Memory           { return f.memory }
func (f *Frame) ReturnData() evm.Data      { return f.returnData }
func (f *Frame) PendingCall() *CallRequest { return f.pending }

// Run executes instructions until the frame terminates or suspends. Faults
// raised by the code end the frame with StatusFailed and consume all its
// gas; they are not reported as errors. An error is only returned if the
// world state failed, in which case the whole transaction has to be
// aborted.
func (f *Frame) Run() (Status, error) {
	if f.status != StatusRunning {
		return f.status, fmt.Errorf("frame cannot be run in status %v", f.status)
	}
	for f.status == StatusRunning {
		if err := f.step(); err != nil {
			f.fail(err)
			var stateErr *evm.StateError
			if errors.As(err, &stateErr) {
				return f.status, err
			}
		}
	}
	return f.status, nil
}

// Resume continues a suspended frame with the outcome of its pending call.
// The frame is left in StatusRunning and has to be run again.
func (f *Frame) Resume(outcome CallOutcome) error {
	if f.status != StatusSuspended || f.pending == nil {
		return fmt.Errorf("frame cannot be resumed in status %v", f.status)
	}
	req := f.pending
	f.pending = nil

	result := f.stack.pushUndefined()
	switch {
	case req.Kind.IsCreate() && outcome.Success:
		result.SetBytes20(outcome.CreatedAddress[:])
	case outcome.Success:
		result.SetOne()
	default:
		result.Clear()
	}
	if !req.Kind.IsCreate() {
		n := min(req.outSize, uint64(len(outcome.Output)))
		copy(f.memory.store[req.outOffset:req.outOffset+n], outcome.Output)
	}
	f.returnData = outcome.Output
	f.gas.Return(outcome.GasLeft)
	if outcome.Success {
		f.refund += outcome.GasRefund
	}
	f.status = StatusRunning
	f.pc++
	return nil
}

func (f *Frame) fail(err error) {
	f.status = StatusFailed
	f.err = err
	f.output = nil
	f.pending = nil
	f.gas.Exhaust()
}

func (f *Frame) suspend(req *CallRequest) {
	f.pending = req
	f.status = StatusSuspended
}

func (f *Frame) step() error {
	env := f.env
	if env.MaxSteps > 0 && env.steps >= env.MaxSteps {
		f.status = StatusHalted
		f.gas.Exhaust()
		return nil
	}

	code := f.params.Code
	if f.pc >= uint64(len(code)) {
		f.status = StatusStopped
		return nil
	}

	op := vm.OpCode(code[f.pc])
	if !isDefined(op, env.Revision) {
		return evm.ErrInvalidOpcode
	}
	if err := checkStack(op, f.stack); err != nil {
		return err
	}
	if f.params.Static && isStateModifying(op, f.stack) {
		return evm.ErrStaticViolation
	}

	if env.Tracer != nil {
		env.Tracer.OnStep(evm.StepInfo{
			Depth:      f.params.Depth,
			Pc:         f.pc,
			Op:         op,
			Gas:        f.gas.Remaining(),
			Stack:      f.stack.words(),
			MemorySize: f.memory.Len(),
		})
	}
	env.steps++

	if err := f.gas.Charge(env.Schedule.StaticGas[op]); err != nil {
		return err
	}
	if err := f.execute(op); err != nil {
		return err
	}

	if f.jumped {
		f.jumped = false
	} else if f.status == StatusRunning {
		f.pc++
	}
	return nil
}

// isDefined reports whether the instruction is available in the given
// revision.
func isDefined(op vm.OpCode, revision evm.Revision) bool {
	switch op {
	case vm.BASEFEE:
		return revision >= evm.R10_London
	case vm.PUSH0:
		return revision >= evm.R12_Shanghai
	}
	return vm.IsValid(op)
}

// isStateModifying reports whether the instruction would modify the world
// state given the current stack. The stack requirements of the instruction
// must have been checked.
func isStateModifying(op vm.OpCode, stack *Stack) bool {
	switch op {
	case vm.SSTORE, vm.LOG0, vm.LOG1, vm.LOG2, vm.LOG3, vm.LOG4,
		vm.CREATE, vm.CREATE2, vm.SELFDESTRUCT:
		return true
	case vm.CALL:
		return !stack.peekN(2).IsZero()
	}
	return false
}
