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
)

// enter prepares the frame serving the given request. If the request fails
// before any code is run, no frame is created and the outcome to be handed
// back to the issuing frame is returned instead.
func (r *runContext) enter(req *stackvm.CallRequest, depth int) (*activeFrame, *frameOutcome, error) {
	// Failures before the child starts return the forwarded gas.
	if depth > r.config.MaxCallDepth {
		return nil, r.reject(req, depth, req.Recipient, req.Gas, evm.ErrDepthExceeded), nil
	}
	if req.Transfer && !req.Value.IsZero() {
		balance, err := r.context.GetBalance(req.Caller)
		if err != nil {
			return nil, nil, err
		}
		if balance.Cmp(req.Value) < 0 {
			return nil, r.reject(req, depth, req.Recipient, req.Gas, evm.ErrInsufficientBalance), nil
		}
	}

	if req.Kind.IsCreate() {
		return r.enterCreate(req, depth)
	}

	snapshot := r.context.CreateSnapshot()
	if req.Transfer {
		if err := transferValue(r.context, req.Value, req.Caller, req.Recipient); err != nil {
			return nil, nil, err
		}
	}

	code, err := r.context.GetCode(req.CodeAddress)
	if err != nil {
		return nil, nil, err
	}
	codeHash, err := r.context.GetCodeHash(req.CodeAddress)
	if err != nil {
		return nil, nil, err
	}

	return r.newFrame(stackvm.Params{
		Kind:        req.Kind,
		Depth:       depth,
		Static:      req.Static,
		Caller:      req.Caller,
		Recipient:   req.Recipient,
		CodeAddress: req.CodeAddress,
		Value:       req.Value,
		Input:       req.Input,
		Code:        code,
		CodeHash:    &codeHash,
		Gas:         req.Gas,
	}, snapshot, nil), nil, nil
}

func (r *runContext) enterCreate(req *stackvm.CallRequest, depth int) (*activeFrame, *frameOutcome, error) {
	nonce, err := r.context.GetNonce(req.Caller)
	if err != nil {
		return nil, nil, err
	}
	if nonce+1 < nonce {
		return nil, r.reject(req, depth, evm.Address{}, req.Gas, evm.ErrNonceOverflow), nil
	}
	if err := r.context.SetNonce(req.Caller, nonce+1); err != nil {
		return nil, nil, err
	}

	var created evm.Address
	if req.Kind == evm.Create2 {
		created = evm.CreateAddress2(req.Caller, req.Salt, evm.Keccak256(req.Input))
	} else {
		created = evm.CreateAddress(req.Caller, nonce)
	}
	if r.config.Schedule.AccessLists {
		r.context.AccessAccount(created)
	}

	collision, err := hasCollision(r.context, created)
	if err != nil {
		return nil, nil, err
	}
	if collision {
		// A collision consumes all forwarded gas.
		return nil, r.reject(req, depth, created, 0, evm.ErrAddressCollision), nil
	}

	snapshot := r.context.CreateSnapshot()
	balance, err := r.context.GetBalance(created)
	if err != nil {
		return nil, nil, err
	}
	if err := r.context.CreateAccount(created, balance, nil); err != nil {
		return nil, nil, err
	}
	if err := r.context.SetNonce(created, 1); err != nil {
		return nil, nil, err
	}
	if err := transferValue(r.context, req.Value, req.Caller, created); err != nil {
		return nil, nil, err
	}

	return r.newFrame(stackvm.Params{
		Kind:        req.Kind,
		Depth:       depth,
		Static:      req.Static,
		Caller:      req.Caller,
		Recipient:   created,
		CodeAddress: created,
		Value:       req.Value,
		Code:        evm.Code(req.Input),
		Gas:         req.Gas,
	}, snapshot, &created), nil, nil
}

// reject reports a request failing before its frame is started and returns
// the outcome handed back to the issuing frame. Observers see the request as
// a frame that threw without executing any code.
func (r *runContext) reject(req *stackvm.CallRequest, depth int, recipient evm.Address, gasLeft evm.Gas, fault evm.ConstError) *frameOutcome {
	faultsCounter.Inc(1)
	r.logger.Debug("call rejected", "depth", depth, "kind", req.Kind, "recipient", recipient, "err", fault)
	if tracer := r.env.Tracer; tracer != nil {
		tracer.OnEnter(depth, req.Kind, req.Caller, recipient, req.Input, req.Gas, req.Value)
		tracer.OnExit(depth, nil, req.Gas-gasLeft, evm.Threw, fault)
	}
	return &frameOutcome{
		CallOutcome: stackvm.CallOutcome{GasLeft: gasLeft},
		reason:      evm.Threw,
		err:         fault,
	}
}

func (r *runContext) newFrame(params stackvm.Params, snapshot evm.Snapshot, created *evm.Address) *activeFrame {
	framesCounter.Inc(1)
	r.logger.Trace("entering frame", "depth", params.Depth, "kind", params.Kind, "recipient", params.Recipient, "gas", params.Gas)
	if tracer := r.env.Tracer; tracer != nil {
		input := params.Input
		if params.Kind.IsCreate() {
			input = evm.Data(params.Code)
		}
		tracer.OnEnter(params.Depth, params.Kind, params.Caller, params.Recipient, input, params.Gas, params.Value)
	}
	return &activeFrame{
		frame:    stackvm.NewFrame(r.env, params),
		snapshot: snapshot,
		created:  created,
	}
}

// leave folds the result of a terminated frame into the outcome handed back
// to its parent. State changes of frames that did not complete normally are
// rolled back.
func (r *runContext) leave(cur *activeFrame) (frameOutcome, error) {
	frame := cur.frame
	params := frame.Params()

	var res frameOutcome
	res.reason = frame.Status().ExitReason()
	switch res.reason {
	case evm.Returned:
		res.CallOutcome = stackvm.CallOutcome{
			Success:   true,
			Output:    frame.Output(),
			GasLeft:   frame.GasLeft(),
			GasRefund: frame.Refund(),
		}
		if cur.created != nil {
			if err := r.deployCode(*cur.created, &res.CallOutcome); err != nil {
				var fault evm.ConstError
				if !errors.As(err, &fault) {
					return frameOutcome{}, err
				}
				res = frameOutcome{reason: evm.Threw, err: fault}
			}
		}
	case evm.Reverted:
		res.CallOutcome = stackvm.CallOutcome{
			Output:  frame.Output(),
			GasLeft: frame.GasLeft(),
		}
	default:
		res.err = frame.Err()
	}

	if res.reason != evm.Returned {
		if err := r.context.RestoreSnapshot(cur.snapshot); err != nil {
			return frameOutcome{}, err
		}
		if res.reason == evm.Reverted {
			revertsCounter.Inc(1)
		} else {
			faultsCounter.Inc(1)
		}
	}

	gasUsed := params.Gas - res.GasLeft
	r.logger.Trace("leaving frame", "depth", params.Depth, "reason", res.reason, "gasUsed", gasUsed, "err", res.err)
	if tracer := r.env.Tracer; tracer != nil {
		tracer.OnExit(params.Depth, res.Output, gasUsed, res.reason, res.err)
	}
	return res, nil
}

// deployCode stores the code returned by init code in the created account.
// Code that cannot be deployed is reported by a fault of type
// evm.ConstError; any other error is a failure of the world state.
func (r *runContext) deployCode(addr evm.Address, outcome *stackvm.CallOutcome) error {
	schedule := r.config.Schedule
	code := outcome.Output
	if len(code) > schedule.MaxCodeSize {
		return evm.ErrMaxCodeSizeExceeded
	}
	if len(code) > 0 && code[0] == 0xEF {
		return evm.ErrInvalidCode
	}
	deposit := schedule.CreateDataGas * evm.Gas(len(code))
	if outcome.GasLeft < deposit {
		return evm.ErrCodeStoreOutOfGas
	}
	if err := r.context.SetCode(addr, evm.Code(code)); err != nil {
		return err
	}
	outcome.GasLeft -= deposit
	outcome.Output = nil
	outcome.CreatedAddress = addr
	return nil
}

// hasCollision reports whether an account exists at the given address that
// cannot be replaced by a newly created contract.
func hasCollision(state evm.WorldState, addr evm.Address) (bool, error) {
	nonce, err := state.GetNonce(addr)
	if err != nil || nonce != 0 {
		return nonce != 0, err
	}
	code, err := state.GetCode(addr)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

func transferValue(state evm.WorldState, value evm.Value, sender, recipient evm.Address) error {
	if value.IsZero() || sender == recipient {
		return nil
	}
	senderBalance, err := state.GetBalance(sender)
	if err != nil {
		return err
	}
	receiverBalance, err := state.GetBalance(recipient)
	if err != nil {
		return err
	}
	if err := state.SetBalance(sender, evm.Sub(senderBalance, value)); err != nil {
		return err
	}
	return state.SetBalance(recipient, evm.Add(receiverBalance, value))
}
