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
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
)

// Statistics aggregates the frequencies of instructions and of sequences of
// up to four instructions over any number of runs. It is safe for concurrent
// use; each run needs its own tracer obtained from NewTracer.
type Statistics struct {
	mutex sync.Mutex
	stats *statistics
}

func NewStatistics() *Statistics {
	return &Statistics{stats: newStatistics()}
}

// NewTracer returns a tracer for a single run. The counts of the run are
// added to the aggregate when the root frame exits.
func (s *Statistics) NewTracer() evm.Tracer {
	return &statsCollector{target: s, stats: newStatistics()}
}

// Steps returns the total number of instructions counted so far.
func (s *Statistics) Steps() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats.count
}

// Count returns how often the given instruction was executed.
func (s *Statistics) Count(op vm.OpCode) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats.singleCount[uint64(op)]
}

// Summary renders the most frequent instructions and sequences.
func (s *Statistics) Summary() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats.print()
}

func (s *Statistics) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats = newStatistics()
}

func (s *Statistics) insert(src *statistics) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.insert(src)
}

type statistics struct {
	count       uint64
	singleCount map[uint64]uint64
	pairCount   map[uint64]uint64
	tripleCount map[uint64]uint64
	quadCount   map[uint64]uint64
}

func newStatistics() *statistics {
	return &statistics{
		singleCount: map[uint64]uint64{},
		pairCount:   map[uint64]uint64{},
		tripleCount: map[uint64]uint64{},
		quadCount:   map[uint64]uint64{},
	}
}

func (s *statistics) insert(src *statistics) {
	s.count += src.count
	for k, v := range src.singleCount {
		s.singleCount[k] += v
	}
	for k, v := range src.pairCount {
		s.pairCount[k] += v
	}
	for k, v := range src.tripleCount {
		s.tripleCount[k] += v
	}
	for k, v := range src.quadCount {
		s.quadCount[k] += v
	}
}

func (s *statistics) print() string {
	type entry struct {
		value uint64
		count uint64
	}

	getTopN := func(data map[uint64]uint64, n int) []entry {
		list := make([]entry, 0, len(data))
		for k, c := range data {
			list = append(list, entry{k, c})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].count == list[j].count {
				return list[i].value < list[j].value
			}
			return list[i].count > list[j].count
		})
		if len(list) < n {
			return list
		}
		return list[0:n]
	}

	percent := func(count uint64) float32 {
		if s.count == 0 {
			return 0
		}
		return float32(count*100) / float32(s.count)
	}

	builder := strings.Builder{}
	write := func(format string, args ...any) {
		builder.WriteString(fmt.Sprintf(format, args...))
	}

	write("\n----- Statistics ------\n")
	write("\nSteps: %d\n", s.count)
	write("\nSingles:\n")
	for _, e := range getTopN(s.singleCount, 5) {
		write("\t%-16v: %d (%.2f%%)\n", vm.OpCode(e.value), e.count, percent(e.count))
	}
	write("\nPairs:\n")
	for _, e := range getTopN(s.pairCount, 5) {
		write("\t%-16v%-16v: %d (%.2f%%)\n", vm.OpCode(e.value>>16), vm.OpCode(e.value), e.count, percent(e.count))
	}
	write("\nTriples:\n")
	for _, e := range getTopN(s.tripleCount, 5) {
		write("\t%-16v%-16v%-16v: %d (%.2f%%)\n", vm.OpCode(e.value>>32), vm.OpCode(e.value>>16), vm.OpCode(e.value), e.count, percent(e.count))
	}
	write("\nQuads:\n")
	for _, e := range getTopN(s.quadCount, 5) {
		write("\t%-16v%-16v%-16v%-16v: %d (%.2f%%)\n", vm.OpCode(e.value>>48), vm.OpCode(e.value>>32), vm.OpCode(e.value>>16), vm.OpCode(e.value), e.count, percent(e.count))
	}
	write("\n")

	return builder.String()
}

// statsCollector counts the instructions of a single run. Sequences are
// tracked across frame boundaries in execution order.
type statsCollector struct {
	target *Statistics
	stats  *statistics

	last       uint64
	secondLast uint64
	thirdLast  uint64
}

func (s *statsCollector) OnEnter(int, evm.CallKind, evm.Address, evm.Address, evm.Data, evm.Gas, evm.Value) {
}

func (s *statsCollector) OnStep(info evm.StepInfo) {
	s.nextOp(info.Op)
}

func (s *statsCollector) OnExit(depth int, _ evm.Data, _ evm.Gas, _ evm.ExitReason, _ error) {
	if depth != 0 {
		return
	}
	s.target.insert(s.stats)
	s.stats = newStatistics()
	s.last, s.secondLast, s.thirdLast = 0, 0, 0
}

func (s *statsCollector) nextOp(op vm.OpCode) {
	cur := uint64(op)
	s.stats.count++
	s.stats.singleCount[cur]++
	if s.stats.count == 1 {
		s.last, s.secondLast, s.thirdLast = cur, s.last, s.secondLast
		return
	}
	s.stats.pairCount[s.last<<16|cur]++
	if s.stats.count == 2 {
		s.last, s.secondLast, s.thirdLast = cur, s.last, s.secondLast
		return
	}
	s.stats.tripleCount[s.secondLast<<32|s.last<<16|cur]++
	if s.stats.count == 3 {
		s.last, s.secondLast, s.thirdLast = cur, s.last, s.secondLast
		return
	}
	s.stats.quadCount[s.thirdLast<<48|s.secondLast<<32|s.last<<16|cur]++
	s.last, s.secondLast, s.thirdLast = cur, s.last, s.secondLast
}
