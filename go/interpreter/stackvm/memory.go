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
	"math"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/holiman/uint256"
)

// Memory is the byte-addressed, word-aligned scratch memory of a frame. It is
// grown on demand and charges the expansion costs of the configured gas
// schedule.
type Memory struct {
	store        []byte
	currentCost  evm.Gas
	memoryGas    evm.Gas
	quadCoeffDiv evm.Gas
}

func NewMemory(schedule *evm.GasSchedule) *Memory {
	return &Memory{
		memoryGas:    schedule.MemoryGas,
		quadCoeffDiv: schedule.QuadCoeffDiv,
	}
}

const (
	// maxMemoryExpansionSize is the largest memory size for which expansion
	// costs are computed. Larger sizes are unaffordable with any gas budget
	// representable in an int64.
	maxMemoryExpansionSize = 0x1FFFFFFFE0
)

func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := evm.SizeInWords(size) * 32
	if size != 0 && fullWordsSize < size {
		return math.MaxUint64
	}
	return fullWordsSize
}

// expansionCosts returns the gas to be charged for growing the memory to the
// given size. The result is zero if the memory is already large enough.
func (m *Memory) expansionCosts(size uint64) evm.Gas {
	if m.Len() >= size {
		return 0
	}
	size = toValidMemorySize(size)
	if size > maxMemoryExpansionSize {
		return evm.Gas(math.MaxInt64)
	}
	words := evm.SizeInWords(size)
	divisor := uint64(max(m.quadCoeffDiv, 1))
	return evm.Gas(words*words/divisor+uint64(m.memoryGas)*words) - m.currentCost
}

// expand grows the memory to cover the range [offset, offset+size) and
// charges the costs on the given meter. Empty ranges never cause an
// expansion, independently of the offset.
func (m *Memory) expand(offset, size uint64, gas *GasMeter) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset {
		return evm.ErrGasUintOverflow
	}
	if m.Len() >= needed {
		return nil
	}
	fee := m.expansionCosts(needed)
	if err := gas.Charge(fee); err != nil {
		return err
	}
	needed = toValidMemorySize(needed)
	m.currentCost += fee
	m.store = append(m.store, make([]byte, needed-m.Len())...)
	return nil
}

// Len returns the current size of the memory in bytes. It is always a
// multiple of 32.
func (m *Memory) Len() uint64 {
	return uint64(len(m.store))
}

// Data returns a copy of the memory content.
func (m *Memory) Data() []byte {
	return append([]byte(nil), m.store...)
}

func (m *Memory) setByte(offset uint64, value byte, gas *GasMeter) error {
	if err := m.expand(offset, 1, gas); err != nil {
		return err
	}
	m.store[offset] = value
	return nil
}

func (m *Memory) setWord(offset uint64, value *uint256.Int, gas *GasMeter) error {
	if err := m.expand(offset, 32, gas); err != nil {
		return err
	}
	value.WriteToSlice(m.store[offset : offset+32])
	return nil
}

func (m *Memory) readWord(offset uint64, target *uint256.Int, gas *GasMeter) error {
	data, err := m.slice(offset, 32, gas)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

// set writes the given data to the memory, padding with zeros if the data is
// shorter than size. The memory is expanded as needed.
func (m *Memory) set(offset, size uint64, data []byte, gas *GasMeter) error {
	target, err := m.slice(offset, size, gas)
	if err != nil {
		return err
	}
	n := copy(target, data)
	clear(target[n:])
	return nil
}

// slice obtains a view on size bytes of the memory starting at offset. The
// returned slice is backed by the memory and is invalidated by any subsequent
// expansion.
func (m *Memory) slice(offset, size uint64, gas *GasMeter) ([]byte, error) {
	if err := m.expand(offset, size, gas); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return m.store[offset : offset+size], nil
}

// toRange converts an offset/size pair taken from the stack into a memory
// range. Empty ranges are valid for any offset. Ranges not addressable with
// 64 bits can never be paid for.
func toRange(offset, size *uint256.Int) (uint64, uint64, error) {
	if size.IsZero() {
		return 0, 0, nil
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return 0, 0, evm.ErrOutOfGas
	}
	return offset.Uint64(), size.Uint64(), nil
}
