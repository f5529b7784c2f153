// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"errors"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/interpreter/stackvm"
	"github.com/ethereum/go-ethereum/log"
)

// runContext holds the state of a single transaction run.
type runContext struct {
	config  *Config
	context evm.TransactionContext
	env     *stackvm.Environment
	logger  log.Logger
}

// activeFrame is an entry of the explicit frame stack.
type activeFrame struct {
	frame    *stackvm.Frame
	snapshot evm.Snapshot
	created  *evm.Address // < the new account if this frame runs init code
}

// frameOutcome is the folded result of a terminated frame.
type frameOutcome struct {
	stackvm.CallOutcome
	reason evm.ExitReason
	err    error // < the fault of a frame that threw
}

// run executes the given root call and all nested calls and creates it
// triggers. Nested frames are kept on an explicit stack; the Go stack does
// not grow with the call depth.
func (r *runContext) run(root *stackvm.CallRequest) (result frameOutcome, err error) {
	rootSnapshot := r.context.CreateSnapshot()
	var stack []*activeFrame
	defer func() {
		for _, cur := range stack {
			cur.frame.Release()
		}
		if err != nil {
			if restoreErr := r.context.RestoreSnapshot(rootSnapshot); restoreErr != nil {
				err = errors.Join(err, restoreErr)
			}
		}
	}()

	first, failed, err := r.enter(root, 0)
	if err != nil {
		return frameOutcome{}, err
	}
	if first == nil {
		return *failed, nil
	}
	stack = append(stack, first)

	for {
		top := stack[len(stack)-1]
		status, err := top.frame.Run()
		if err != nil {
			return frameOutcome{}, err
		}

		if status == stackvm.StatusSuspended {
			next, failed, err := r.enter(top.frame.PendingCall(), top.frame.Params().Depth+1)
			if err != nil {
				return frameOutcome{}, err
			}
			if next == nil {
				if err := top.frame.Resume(failed.CallOutcome); err != nil {
					return frameOutcome{}, err
				}
				continue
			}
			stack = append(stack, next)
			continue
		}

		if status == stackvm.StatusHalted {
			haltsCounter.Inc(1)
			r.logger.Warn("execution halted by step limit", "steps", r.env.Steps(), "depth", top.frame.Params().Depth)
			if err := r.context.RestoreSnapshot(rootSnapshot); err != nil {
				return frameOutcome{}, err
			}
			r.halt(stack)
			return frameOutcome{reason: evm.Halted}, nil
		}

		outcome, err := r.leave(top)
		if err != nil {
			return frameOutcome{}, err
		}
		stack = stack[:len(stack)-1]
		top.frame.Release()

		if len(stack) == 0 {
			return outcome, nil
		}
		if err := stack[len(stack)-1].frame.Resume(outcome.CallOutcome); err != nil {
			return frameOutcome{}, err
		}
	}
}

// halt closes all open frames, innermost first, after the step limit was
// reached. All of them consume their entire gas.
func (r *runContext) halt(stack []*activeFrame) {
	for i := len(stack) - 1; i >= 0; i-- {
		params := stack[i].frame.Params()
		if tracer := r.env.Tracer; tracer != nil {
			tracer.OnExit(params.Depth, nil, params.Gas, evm.Halted, nil)
		}
		stack[i].frame.Release()
	}
}
