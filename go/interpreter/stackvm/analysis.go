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
	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	analysisCacheHitCounter  = metrics.NewRegisteredCounter("evm/analysis/cache/hit", nil)
	analysisCacheMissCounter = metrics.NewRegisteredCounter("evm/analysis/cache/miss", nil)
)

// bitvec is a bit vector which maps bytes in a program.
// An unset bit means the byte is an opcode, a set bit means
// it's data (i.e. argument of PUSHxx).
type bitvec []byte

func (bits bitvec) set1(pos uint64) {
	bits[pos/8] |= 1 << (pos % 8)
}

func (bits bitvec) setN(flag uint16, pos uint64) {
	a := flag << (pos % 8)
	bits[pos/8] |= byte(a)
	if b := byte(a >> 8); b != 0 {
		bits[pos/8+1] = b
	}
}

func (bits bitvec) set8(pos uint64) {
	a := byte(0xFF << (pos % 8))
	bits[pos/8] |= a
	bits[pos/8+1] = ^a
}

func (bits bitvec) set16(pos uint64) {
	a := byte(0xFF << (pos % 8))
	bits[pos/8] |= a
	bits[pos/8+1] = 0xFF
	bits[pos/8+2] = ^a
}

// codeSegment checks if the position is in a code segment.
func (bits *bitvec) codeSegment(pos uint64) bool {
	return (((*bits)[pos/8] >> (pos % 8)) & 1) == 0
}

const (
	set2BitsMask = uint16(0b11)
	set3BitsMask = uint16(0b111)
	set4BitsMask = uint16(0b1111)
	set5BitsMask = uint16(0b1_1111)
	set6BitsMask = uint16(0b11_1111)
	set7BitsMask = uint16(0b111_1111)
)

// codeBitmap collects data locations in code.
func codeBitmap(code []byte) bitvec {
	// The bitmap is 4 bytes longer than necessary, in case the code
	// ends with a PUSH32, the algorithm will set bits on the
	// bitvector outside the bounds of the actual code.
	bits := make(bitvec, len(code)/8+1+4)
	for pc := uint64(0); pc < uint64(len(code)); {
		op := vm.OpCode(code[pc])
		pc++
		if !op.IsPush() {
			continue
		}
		numbits := op.Width() - 1
		if numbits >= 8 {
			for ; numbits >= 16; numbits -= 16 {
				bits.set16(pc)
				pc += 16
			}
			for ; numbits >= 8; numbits -= 8 {
				bits.set8(pc)
				pc += 8
			}
		}
		switch numbits {
		case 1:
			bits.set1(pc)
			pc += 1
		case 2:
			bits.setN(set2BitsMask, pc)
			pc += 2
		case 3:
			bits.setN(set3BitsMask, pc)
			pc += 3
		case 4:
			bits.setN(set4BitsMask, pc)
			pc += 4
		case 5:
			bits.setN(set5BitsMask, pc)
			pc += 5
		case 6:
			bits.setN(set6BitsMask, pc)
			pc += 6
		case 7:
			bits.setN(set7BitsMask, pc)
			pc += 7
		}
	}
	return bits
}

// Analysis is the result of the jump-destination analysis of a program.
type Analysis struct {
	code evm.Code
	bits bitvec
}

// IsJumpDest reports whether the given position is a JUMPDEST instruction
// and not part of the immediate data of a PUSH.
func (a *Analysis) IsJumpDest(pos uint64) bool {
	if pos >= uint64(len(a.code)) || vm.OpCode(a.code[pos]) != vm.JUMPDEST {
		return false
	}
	return a.bits.codeSegment(pos)
}

// Analyzer performs jump-destination analyses of programs. Results for
// programs with a known code hash are retained in an LRU cache. Analyzers are
// safe for concurrent use.
type Analyzer struct {
	cache *lru.Cache[evm.Hash, *Analysis]
}

// NewAnalyzer creates an analyzer caching up to cacheSize results. A size of
// zero or less disables caching.
func NewAnalyzer(cacheSize int) *Analyzer {
	res := &Analyzer{}
	if cacheSize > 0 {
		cache, err := lru.New[evm.Hash, *Analysis](cacheSize)
		if err != nil {
			panic("failed to create analysis cache: " + err.Error())
		}
		res.cache = cache
	}
	return res
}

// Analyze returns the analysis of the given code. The hash is used as the
// cache key and must be the keccak256 hash of the code if present. Init code
// has no hash and is never cached.
func (a *Analyzer) Analyze(code evm.Code, hash *evm.Hash) *Analysis {
	if a == nil || a.cache == nil || hash == nil {
		return analyze(code)
	}
	if res, found := a.cache.Get(*hash); found {
		analysisCacheHitCounter.Inc(1)
		return res
	}
	analysisCacheMissCounter.Inc(1)
	res := analyze(code)
	a.cache.Add(*hash, res)
	return res
}

func analyze(code evm.Code) *Analysis {
	return &Analysis{code: code, bits: codeBitmap(code)}
}
