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

import "fmt"

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// Faults raised while executing byte code. All of them terminate the frame
// they occur in with exit reason Threw.
const (
	ErrOutOfGas              = ConstError("out of gas")
	ErrGasUintOverflow       = ConstError("gas uint64 overflow")
	ErrStackUnderflow        = ConstError("stack underflow")
	ErrStackOverflow         = ConstError("stack overflow")
	ErrInvalidOpcode         = ConstError("invalid opcode")
	ErrInvalidJump           = ConstError("invalid jump destination")
	ErrStaticViolation       = ConstError("state modification in static call")
	ErrInsufficientBalance   = ConstError("insufficient balance for transfer")
	ErrDepthExceeded         = ConstError("max call depth exceeded")
	ErrAddressCollision      = ConstError("contract address collision")
	ErrMaxCodeSizeExceeded   = ConstError("max code size exceeded")
	ErrInvalidCode           = ConstError("invalid code: must not begin with 0xef")
	ErrInitCodeTooLarge      = ConstError("init code size exceeds limit")
	ErrReturnDataOutOfBounds = ConstError("return data out of bounds")
	ErrCodeStoreOutOfGas     = ConstError("contract creation code storage out of gas")
	ErrNonceOverflow         = ConstError("nonce uint64 overflow")
)

// StateError reports a failure of the world state backend. Such failures are
// not part of the execution semantics; they abort the whole run instead of
// being reported as a failed frame.
type StateError struct {
	Op      string
	Address Address
	Err     error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("world state %s for %v failed: %v", e.Op, e.Address, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps err into a StateError unless it is nil or already is one.
func WrapStateError(op string, addr Address, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*StateError); ok {
		return err
	}
	return &StateError{Op: op, Address: addr, Err: err}
}
