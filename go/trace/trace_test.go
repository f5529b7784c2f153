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
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
	"github.com/Fantom-foundation/evmcore/go/processor/floria"
	"github.com/Fantom-foundation/evmcore/go/state"
	"github.com/ethereum/go-ethereum/log"
)

var (
	callerAddress = evm.Address{0xCA}
	calleeAddress = evm.Address{0xCE}
	otherAddress  = evm.Address{0x07}
)

func run(t *testing.T, accounts state.Accounts, gas evm.Gas, tracer evm.Tracer) evm.Result {
	t.Helper()
	processor, err := floria.NewProcessor(floria.Config{Revision: evm.R07_Istanbul})
	if err != nil {
		t.Errorf("failed to create processor: %v", err)
		return evm.Result{}
	}
	ws := state.NewMemory(accounts)
	result, err := processor.Run(evm.Transaction{}, callerAddress, evm.Account(ws, calleeAddress), nil, gas, tracer)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	return result
}

var addCode = evm.Code{byte(vm.PUSH1), 1, byte(vm.PUSH1), 2, byte(vm.ADD), byte(vm.STOP)}

func TestRecorder_RecordsStepsWithGasCosts(t *testing.T) {
	recorder := NewRecorder()
	run(t, state.Accounts{calleeAddress: {Code: addCode}}, 100, recorder)

	want := []struct {
		pc      uint64
		op      vm.OpCode
		gas     evm.Gas
		gasCost evm.Gas
		stack   int
	}{
		{0, vm.PUSH1, 100, 3, 0},
		{2, vm.PUSH1, 97, 3, 1},
		{4, vm.ADD, 94, 3, 2},
		{5, vm.STOP, 91, 0, 1},
	}
	steps := recorder.Steps()
	if len(steps) != len(want) {
		t.Fatalf("unexpected number of steps, wanted %d, got %d", len(want), len(steps))
	}
	for i, step := range steps {
		if step.Pc != want[i].pc || step.Op != want[i].op || step.Gas != want[i].gas || step.GasCost != want[i].gasCost {
			t.Errorf("unexpected step %d: %+v", i, step)
		}
		if len(step.Stack) != want[i].stack {
			t.Errorf("unexpected stack size in step %d, wanted %d, got %d", i, want[i].stack, len(step.Stack))
		}
		if step.Err != nil {
			t.Errorf("unexpected error in step %d: %v", i, step.Err)
		}
	}
	if got := steps[2].Stack; got[0] != (evm.Word{31: 1}) || got[1] != (evm.Word{31: 2}) {
		t.Errorf("unexpected stack before ADD: %v", got)
	}

	frames := recorder.Frames()
	if len(frames) != 1 {
		t.Fatalf("unexpected number of frames: %d", len(frames))
	}
	if frames[0].Reason != evm.Returned || frames[0].GasUsed != 9 || frames[0].Recipient != calleeAddress {
		t.Errorf("unexpected frame: %+v", frames[0])
	}
}

func TestRecorder_FaultsAreAttributedToTheirStep(t *testing.T) {
	recorder := NewRecorder()
	code := evm.Code{byte(vm.PUSH1), 1, byte(vm.JUMP)}
	result := run(t, state.Accounts{calleeAddress: {Code: code}}, 100, recorder)
	if result.Reason != evm.Threw {
		t.Fatalf("unexpected result: %v", result.Reason)
	}

	steps := recorder.Steps()
	if len(steps) != 2 {
		t.Fatalf("unexpected number of steps: %d", len(steps))
	}
	last := steps[1]
	if !errors.Is(last.Err, evm.ErrInvalidJump) {
		t.Errorf("unexpected error of last step: %v", last.Err)
	}
	if last.GasCost != 97 {
		t.Errorf("a fault must consume all remaining gas, got cost %d", last.GasCost)
	}
	if frame := recorder.Frames()[0]; frame.Reason != evm.Threw || frame.GasUsed != 100 {
		t.Errorf("unexpected frame: %+v", frame)
	}
}

func TestRecorder_TracksNestedFrames(t *testing.T) {
	outer := evm.Code{
		byte(vm.PUSH1), 0, byte(vm.PUSH1), 0, byte(vm.PUSH1), 0, byte(vm.PUSH1), 0, byte(vm.PUSH1), 0,
		byte(vm.PUSH20),
	}
	outer = append(outer, otherAddress[:]...)
	outer = append(outer, byte(vm.GAS), byte(vm.CALL), byte(vm.STOP))
	inner := evm.Code{byte(vm.PUSH1), 0, byte(vm.PUSH1), 0, byte(vm.REVERT)}

	recorder := NewRecorder()
	run(t, state.Accounts{calleeAddress: {Code: outer}, otherAddress: {Code: inner}}, 100_000, recorder)

	frames := recorder.Frames()
	if len(frames) != 2 {
		t.Fatalf("unexpected number of frames: %d", len(frames))
	}
	if frames[0].Depth != 0 || frames[0].Reason != evm.Returned {
		t.Errorf("unexpected outer frame: %+v", frames[0])
	}
	if frames[1].Depth != 1 || frames[1].Reason != evm.Reverted || frames[1].GasUsed != 6 || frames[1].Caller != calleeAddress {
		t.Errorf("unexpected inner frame: %+v", frames[1])
	}

	depths := []int{}
	for _, step := range recorder.Steps() {
		depths = append(depths, step.Depth)
	}
	want := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 0}
	if len(depths) != len(want) {
		t.Fatalf("unexpected step depths: %v", depths)
	}
	for i := range want {
		if depths[i] != want[i] {
			t.Fatalf("unexpected step depths, wanted %v, got %v", want, depths)
		}
	}

	// the cost of the CALL covers the nested frame
	call := recorder.Steps()[7]
	if call.Op != vm.CALL || call.GasCost <= 700 {
		t.Errorf("unexpected call step: %+v", call)
	}
}

func TestRecorder_TracingDoesNotAffectTheResult(t *testing.T) {
	accounts := state.Accounts{calleeAddress: {Code: addCode}}
	plain := run(t, accounts, 100, nil)
	traced := run(t, accounts, 100, NewRecorder())
	if plain.Reason != traced.Reason || plain.GasUsed != traced.GasUsed || !bytes.Equal(plain.Output, traced.Output) {
		t.Errorf("tracing changed the result: %+v vs %+v", plain, traced)
	}
}

func TestRecorder_WritesJSONLines(t *testing.T) {
	recorder := NewRecorder()
	run(t, state.Accounts{calleeAddress: {Code: addCode}}, 100, recorder)

	var buffer bytes.Buffer
	if err := recorder.WriteJSON(&buffer); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected number of lines: %d", len(lines))
	}

	var step map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &step); err != nil {
		t.Fatalf("invalid JSON line %q: %v", lines[2], err)
	}
	if step["op"] != "ADD" || step["gas"] != float64(94) || step["gasCost"] != float64(3) {
		t.Errorf("unexpected step: %v", step)
	}
	if stack, ok := step["stack"].([]any); !ok || len(stack) != 2 || stack[1] != "0x2" {
		t.Errorf("unexpected stack: %v", step["stack"])
	}
	if _, found := step["error"]; found {
		t.Errorf("unexpected error field in %v", step)
	}

	recorder.Reset()
	if len(recorder.Steps()) != 0 || len(recorder.Frames()) != 0 {
		t.Errorf("reset did not discard the recording")
	}
}

func TestLogger_LogsStepsAndFrames(t *testing.T) {
	var buffer bytes.Buffer
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(&buffer, log.LevelTrace, false))
	run(t, state.Accounts{calleeAddress: {Code: addCode}}, 100, NewLogger(logger))

	out := buffer.String()
	for _, want := range []string{"enter", "op=PUSH1", "op=ADD", "top=2", "top=-empty-", "exit", "reason=returned"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output does not contain %q:\n%s", want, out)
		}
	}
}

func TestLogger_StepsAreNotLoggedAboveTraceLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(&buffer, log.LevelDebug, false))
	run(t, state.Accounts{calleeAddress: {Code: addCode}}, 100, NewLogger(logger))

	out := buffer.String()
	if strings.Contains(out, "op=") {
		t.Errorf("steps should not be logged at debug level:\n%s", out)
	}
	if !strings.Contains(out, "exit") {
		t.Errorf("frames should be logged at debug level:\n%s", out)
	}
}

func TestStatistics_AggregatesConcurrentRuns(t *testing.T) {
	stats := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(t, state.Accounts{calleeAddress: {Code: addCode}}, 100, stats.NewTracer())
		}()
	}
	wg.Wait()

	if got := stats.Steps(); got != 16 {
		t.Errorf("unexpected number of steps: %d", got)
	}
	if got := stats.Count(vm.PUSH1); got != 8 {
		t.Errorf("unexpected PUSH1 count: %d", got)
	}
	if got := stats.Count(vm.ADD); got != 4 {
		t.Errorf("unexpected ADD count: %d", got)
	}

	summary := stats.Summary()
	for _, want := range []string{"Steps: 16", "PUSH1", "ADD", "STOP"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary does not contain %q:\n%s", want, summary)
		}
	}

	stats.Reset()
	if stats.Steps() != 0 {
		t.Errorf("reset did not clear the statistics")
	}
}

func TestStatistics_EmptySummaryCanBePrinted(t *testing.T) {
	if summary := NewStatistics().Summary(); !strings.Contains(summary, "Steps: 0") {
		t.Errorf("unexpected summary: %s", summary)
	}
}
