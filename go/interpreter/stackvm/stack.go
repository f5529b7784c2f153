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
	"fmt"
	"strings"
	"sync"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/holiman/uint256"
)

// MaxStackSize is the maximum number of words on the operand stack.
const MaxStackSize = 1024

// Stack is the 1024-element 256-bit word-wide stack used by the VM.
// It is a fixed-size stack to prevent memory reallocation during execution.
// Boundaries are not checked by the element accessors; the interpreter
// validates the stack requirements of every instruction before executing it.
// The checked variants Push, Pop, Dup and Swap are provided for users outside
// of the dispatch loop.
//
// Each stack consumes 1024 * 32 bytes = 32KB of memory. To avoid this overhead
// for every frame, stacks are pooled. Use NewStack() to obtain an empty stack
// and ReturnStack(s) to hand it back once the frame is done.
type Stack struct {
	data         [MaxStackSize]uint256.Int
	stackPointer int
}

// push adds a copy of the given value to the top of the stack.
func (s *Stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined adds an element with an undefined value to the top of the
// stack and returns a pointer to it for in-place modification.
func (s *Stack) pushUndefined() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

// pop removes the top element from the stack and returns a pointer to it. The
// obtained pointer is only valid until the next push operation.
func (s *Stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

// peek returns a pointer to the top element of the stack without removing it.
func (s *Stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// peekN returns a pointer to the n-th element from the top of the stack. The
// top element is at index 0.
func (s *Stack) peekN(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}

func (s *Stack) len() int {
	return s.stackPointer
}

// swap exchanges the top element with the n-th element from the top.
func (s *Stack) swap(n int) {
	s.data[s.len()-n-1], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n-1]
}

// dup duplicates the n-th element from the top and pushes it to the top of the
// stack. dup(0) duplicates the top element.
func (s *Stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n-1]
	s.stackPointer++
}

// Len returns the number of elements on the stack.
func (s *Stack) Len() int {
	return s.len()
}

// Push adds a value to the stack or fails with ErrStackOverflow.
func (s *Stack) Push(value *uint256.Int) error {
	if s.len() >= MaxStackSize {
		return evm.ErrStackOverflow
	}
	s.push(value)
	return nil
}

// Pop removes the top element or fails with ErrStackUnderflow.
func (s *Stack) Pop() (uint256.Int, error) {
	if s.len() == 0 {
		return uint256.Int{}, evm.ErrStackUnderflow
	}
	return *s.pop(), nil
}

// Peek returns the n-th element from the top without removing it.
func (s *Stack) Peek(n int) (uint256.Int, error) {
	if n < 0 || n >= s.len() {
		return uint256.Int{}, evm.ErrStackUnderflow
	}
	return *s.peekN(n), nil
}

// Dup duplicates the n-th element from the top, with n starting at 0.
func (s *Stack) Dup(n int) error {
	if n < 0 || n >= s.len() {
		return evm.ErrStackUnderflow
	}
	if s.len() >= MaxStackSize {
		return evm.ErrStackOverflow
	}
	s.dup(n)
	return nil
}

// Swap exchanges the top element with the n-th element from the top, with
// n starting at 1.
func (s *Stack) Swap(n int) error {
	if n < 1 || n >= s.len() {
		return evm.ErrStackUnderflow
	}
	s.swap(n)
	return nil
}

// words returns a copy of the stack content from bottom to top.
func (s *Stack) words() []evm.Word {
	res := make([]evm.Word, s.len())
	for i := range res {
		res[i] = s.data[i].Bytes32()
	}
	return res
}

func (s *Stack) String() string {
	b := strings.Builder{}
	for i := 0; i < s.len(); i++ {
		b.WriteString(fmt.Sprintf("    [%4d] 0x%064x\n", s.len()-i-1, s.peekN(i).Bytes32()))
	}
	return b.String()
}

// ------------------ Stack Pool ------------------

var stackPool = sync.Pool{
	New: func() interface{} {
		return &Stack{}
	},
}

// NewStack returns an empty stack from a reuse pool. This function is
// thread-safe.
func NewStack() *Stack {
	return stackPool.Get().(*Stack)
}

// ReturnStack returns the stack to the reuse pool. A stack may only be
// returned once. This function is thread-safe.
func ReturnStack(s *Stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}
