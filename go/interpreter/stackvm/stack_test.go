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
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/holiman/uint256"
)

func TestStack_PushFailsBeyondLimit(t *testing.T) {
	stack := NewStack()
	defer ReturnStack(stack)

	for i := 0; i < MaxStackSize; i++ {
		if err := stack.Push(uint256.NewInt(uint64(i))); err != nil {
			t.Fatalf("failed to push element %d: %v", i, err)
		}
	}
	if err := stack.Push(uint256.NewInt(0)); !errors.Is(err, evm.ErrStackOverflow) {
		t.Errorf("unexpected error, wanted %v, got %v", evm.ErrStackOverflow, err)
	}
	if want, got := MaxStackSize, stack.Len(); want != got {
		t.Errorf("unexpected stack size, wanted %d, got %d", want, got)
	}
}

func TestStack_AccessOnEmptyStackFails(t *testing.T) {
	tests := map[string]func(*Stack) error{
		"pop": func(s *Stack) error {
			_, err := s.Pop()
			return err
		},
		"peek": func(s *Stack) error {
			_, err := s.Peek(0)
			return err
		},
		"dup": func(s *Stack) error {
			return s.Dup(0)
		},
		"swap": func(s *Stack) error {
			return s.Swap(1)
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			stack := NewStack()
			defer ReturnStack(stack)
			if err := test(stack); !errors.Is(err, evm.ErrStackUnderflow) {
				t.Errorf("unexpected error, wanted %v, got %v", evm.ErrStackUnderflow, err)
			}
		})
	}
}

func TestStack_DupAndSwap(t *testing.T) {
	stack := NewStack()
	defer ReturnStack(stack)
	for i := uint64(1); i <= 3; i++ {
		if err := stack.Push(uint256.NewInt(i)); err != nil {
			t.Fatal(err)
		}
	}

	// 1 2 3 -> 1 2 3 2
	if err := stack.Dup(1); err != nil {
		t.Fatal(err)
	}
	// 1 2 3 2 -> 2 2 3 1
	if err := stack.Swap(3); err != nil {
		t.Fatal(err)
	}

	want := []uint64{1, 3, 2, 2}
	for i, w := range want {
		got, err := stack.Peek(i)
		if err != nil {
			t.Fatal(err)
		}
		if got.Uint64() != w {
			t.Errorf("unexpected element at position %d, wanted %d, got %d", i, w, got.Uint64())
		}
	}
	if err := stack.Swap(4); !errors.Is(err, evm.ErrStackUnderflow) {
		t.Errorf("swap beyond the stack size should fail, got %v", err)
	}
}

func TestStack_ReturnedStacksAreEmpty(t *testing.T) {
	stack := NewStack()
	stack.push(uint256.NewInt(1))
	ReturnStack(stack)

	stack = NewStack()
	defer ReturnStack(stack)
	if stack.Len() != 0 {
		t.Errorf("stack obtained from pool is not empty: %d", stack.Len())
	}
}

func TestStack_WordsAreListedFromBottomToTop(t *testing.T) {
	stack := NewStack()
	defer ReturnStack(stack)
	stack.push(uint256.NewInt(1))
	stack.push(uint256.NewInt(2))

	words := stack.words()
	if len(words) != 2 || words[0][31] != 1 || words[1][31] != 2 {
		t.Errorf("unexpected stack content: %v", words)
	}
}

func TestStackLimits_CoverStackEffects(t *testing.T) {
	tests := map[string]struct {
		usage    stackUsage
		min, max int
	}{
		"ADD":   {stackLimits[0x01], 2, MaxStackSize},
		"PUSH1": {stackLimits[0x60], 0, MaxStackSize - 1},
		"DUP16": {stackLimits[0x8F], 16, MaxStackSize - 1},
		"SWAP1": {stackLimits[0x90], 2, MaxStackSize},
		"LOG4":  {stackLimits[0xA4], 6, MaxStackSize},
		"CALL":  {stackLimits[0xF1], 7, MaxStackSize},
		"STOP":  {stackLimits[0x00], 0, MaxStackSize},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if test.usage.minSize != test.min || test.usage.maxSize != test.max {
				t.Errorf("unexpected limits, wanted [%d,%d], got [%d,%d]",
					test.min, test.max, test.usage.minSize, test.usage.maxSize)
			}
		})
	}
}
