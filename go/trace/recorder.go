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
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

// Step is a single executed instruction.
type Step struct {
	Pc         uint64
	Op         vm.OpCode
	Gas        evm.Gas // < gas available before the instruction
	GasCost    evm.Gas // < gas consumed by the instruction, nested calls included
	Depth      int
	Stack      []evm.Word // < bottom to top
	MemorySize uint64
	Err        error // < the fault raised by the instruction, if any
}

// Frame describes a call or create frame observed by a Recorder.
type Frame struct {
	Depth     int
	Kind      evm.CallKind
	Caller    evm.Address
	Recipient evm.Address
	Gas       evm.Gas
	Value     evm.Value
	GasUsed   evm.Gas
	Output    evm.Data
	Reason    evm.ExitReason
	Err       error
}

// Recorder is a tracer collecting all steps and frames of an execution in
// the order they occur. A recorder traces a single run at a time.
type Recorder struct {
	steps  []Step
	frames []Frame

	open    []int // < indices into frames of frames not yet exited
	pending []int // < per open frame, the index of its last step or -1
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnEnter(depth int, kind evm.CallKind, caller, recipient evm.Address, input evm.Data, gas evm.Gas, value evm.Value) {
	r.frames = append(r.frames, Frame{
		Depth:     depth,
		Kind:      kind,
		Caller:    caller,
		Recipient: recipient,
		Gas:       gas,
		Value:     value,
	})
	r.open = append(r.open, len(r.frames)-1)
	r.pending = append(r.pending, -1)
}

func (r *Recorder) OnStep(info evm.StepInfo) {
	if n := len(r.pending); n > 0 {
		if last := r.pending[n-1]; last >= 0 {
			r.steps[last].GasCost = r.steps[last].Gas - info.Gas
		}
		r.pending[n-1] = len(r.steps)
	}
	r.steps = append(r.steps, Step{
		Pc:         info.Pc,
		Op:         info.Op,
		Gas:        info.Gas,
		Depth:      info.Depth,
		Stack:      slices.Clone(info.Stack),
		MemorySize: info.MemorySize,
	})
}

func (r *Recorder) OnExit(depth int, output evm.Data, gasUsed evm.Gas, reason evm.ExitReason, err error) {
	n := len(r.open)
	if n == 0 {
		return
	}
	frame := &r.frames[r.open[n-1]]
	frame.GasUsed = gasUsed
	frame.Output = slices.Clone(output)
	frame.Reason = reason
	frame.Err = err

	if last := r.pending[n-1]; last >= 0 {
		step := &r.steps[last]
		step.GasCost = max(step.Gas-(frame.Gas-gasUsed), 0)
		step.Err = err
	}
	r.open = r.open[:n-1]
	r.pending = r.pending[:n-1]
}

// Steps returns the recorded steps.
func (r *Recorder) Steps() []Step {
	return r.steps
}

// Frames returns the recorded frames in the order they were entered.
func (r *Recorder) Frames() []Frame {
	return r.frames
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.steps = r.steps[:0]
	r.frames = r.frames[:0]
	r.open = r.open[:0]
	r.pending = r.pending[:0]
}

type stepJSON struct {
	Pc         uint64   `json:"pc"`
	Op         string   `json:"op"`
	Gas        evm.Gas  `json:"gas"`
	GasCost    evm.Gas  `json:"gasCost"`
	Depth      int      `json:"depth"`
	Stack      []string `json:"stack"`
	MemorySize uint64   `json:"memSize"`
	Err        string   `json:"error,omitempty"`
}

func (s Step) MarshalJSON() ([]byte, error) {
	stack := make([]string, len(s.Stack))
	for i, word := range s.Stack {
		stack[i] = word.ToUint256().Hex()
	}
	res := stepJSON{
		Pc:         s.Pc,
		Op:         s.Op.String(),
		Gas:        s.Gas,
		GasCost:    s.GasCost,
		Depth:      s.Depth,
		Stack:      stack,
		MemorySize: s.MemorySize,
	}
	if s.Err != nil {
		res.Err = s.Err.Error()
	}
	return json.Marshal(res)
}

// WriteJSON writes the recorded steps as JSON lines, one step per line.
func (r *Recorder) WriteJSON(out io.Writer) error {
	encoder := json.NewEncoder(out)
	for i, step := range r.steps {
		if err := encoder.Encode(step); err != nil {
			return fmt.Errorf("failed to write step %d: %w", i, err)
		}
	}
	return nil
}
