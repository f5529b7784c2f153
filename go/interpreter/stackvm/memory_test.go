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
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/holiman/uint256"
)

func newTestMemory() *Memory {
	return NewMemory(evm.MustScheduleFor(evm.R07_Istanbul))
}

func TestMemory_ExpansionCosts(t *testing.T) {
	tests := map[string]struct {
		size uint64
		cost evm.Gas
	}{
		"empty":            {0, 0},
		"single byte":      {1, 3},
		"single word":      {32, 3},
		"two words":        {33, 6},
		"1024 words":       {1024 * 32, 1024*3 + 1024*1024/512},
		"maximum size":     {maxMemoryExpansionSize, evm.Gas(0xFFFFFFFF*3 + 0xFFFFFFFF*0xFFFFFFFF/512)},
		"beyond maximum":   {maxMemoryExpansionSize + 1, math.MaxInt64},
		"overflowing size": {math.MaxUint64, math.MaxInt64},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := newTestMemory()
			if want, got := test.cost, m.expansionCosts(test.size); want != got {
				t.Errorf("unexpected costs, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestMemory_ExpansionOnlyChargesDelta(t *testing.T) {
	m := newTestMemory()
	gas := NewGasMeter(1000)

	if err := m.expand(0, 32, &gas); err != nil {
		t.Fatal(err)
	}
	if want, got := evm.Gas(997), gas.Remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
	if err := m.expand(0, 64, &gas); err != nil {
		t.Fatal(err)
	}
	if want, got := evm.Gas(994), gas.Remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
	if err := m.expand(10, 20, &gas); err != nil {
		t.Fatal(err)
	}
	if want, got := evm.Gas(994), gas.Remaining(); want != got {
		t.Errorf("access within memory should be free, remaining %d", got)
	}
	if want, got := uint64(64), m.Len(); want != got {
		t.Errorf("unexpected memory size, wanted %d, got %d", want, got)
	}
}

func TestMemory_ExpansionFailsOnOverflowAndLackOfGas(t *testing.T) {
	m := newTestMemory()
	gas := NewGasMeter(5)

	if err := m.expand(math.MaxUint64, 2, &gas); !errors.Is(err, evm.ErrGasUintOverflow) {
		t.Errorf("unexpected error, wanted %v, got %v", evm.ErrGasUintOverflow, err)
	}
	if err := m.expand(0, 64, &gas); !errors.Is(err, evm.ErrOutOfGas) {
		t.Errorf("unexpected error, wanted %v, got %v", evm.ErrOutOfGas, err)
	}
	if m.Len() != 0 || gas.Remaining() != 5 {
		t.Errorf("failed expansion should have no effect, size %d, gas %d", m.Len(), gas.Remaining())
	}
	if err := m.expand(math.MaxUint64, 0, &gas); err != nil {
		t.Errorf("empty ranges should never fail, got %v", err)
	}
}

func TestMemory_WordsAndBytesAreStoredBigEndian(t *testing.T) {
	m := newTestMemory()
	gas := NewGasMeter(100)

	if err := m.setWord(0, uint256.NewInt(0x0102), &gas); err != nil {
		t.Fatal(err)
	}
	if err := m.setByte(32, 0xFF, &gas); err != nil {
		t.Fatal(err)
	}
	want := make([]byte, 64)
	want[30], want[31], want[32] = 0x01, 0x02, 0xFF
	if got := m.Data(); !bytes.Equal(want, got) {
		t.Errorf("unexpected memory content, wanted %x, got %x", want, got)
	}

	var word uint256.Int
	if err := m.readWord(1, &word, &gas); err != nil {
		t.Fatal(err)
	}
	if want := uint256.NewInt(0x0102FF); !word.Eq(want) {
		t.Errorf("unexpected word, wanted %v, got %v", want, &word)
	}
}

func TestMemory_SetPadsWithZeros(t *testing.T) {
	m := newTestMemory()
	gas := NewGasMeter(100)
	if err := m.set(0, 4, []byte{9, 9, 9, 9}, &gas); err != nil {
		t.Fatal(err)
	}
	if err := m.set(1, 3, []byte{1, 2}, &gas); err != nil {
		t.Fatal(err)
	}

	data, err := m.slice(0, 5, &gas)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{9, 1, 2, 0, 0}; !bytes.Equal(want, data) {
		t.Errorf("unexpected data, wanted %x, got %x", want, data)
	}
}

func TestToRange_RejectsUnaddressableRanges(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	tests := map[string]struct {
		offset, size *uint256.Int
		err          error
	}{
		"small":          {uint256.NewInt(1), uint256.NewInt(2), nil},
		"empty":          {huge, uint256.NewInt(0), nil},
		"huge offset":    {huge, uint256.NewInt(1), evm.ErrOutOfGas},
		"huge size":      {uint256.NewInt(1), huge, evm.ErrOutOfGas},
		"max uint64 end": {uint256.NewInt(math.MaxUint64), uint256.NewInt(1), nil},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := toRange(test.offset, test.size)
			if !errors.Is(err, test.err) {
				t.Errorf("unexpected error, wanted %v, got %v", test.err, err)
			}
		})
	}
}
