// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/state"
)

const (
	testSender = "0x000000000000000000000000000000000000c0de"
	// PUSH1 1, PUSH1 2, ADD, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0, RETURN
	addCode = "600160020160005260206000f3"
	// increments slot 0 and returns the new value
	counterCode = "6000546001018060005560005260206000f3"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"evmrun", "--verbosity", "0"}, args...))
	return out.String(), err
}

func parseResult(t *testing.T, out string) runResultJSON {
	t.Helper()
	var res runResultJSON
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}
	return res
}

func TestSum_PrintsSumOfArguments(t *testing.T) {
	tests := map[string]struct {
		a, b, want string
	}{
		"small":      {"0x1", "0x2", "0x1 + 0x2 = 0x3"},
		"no prefix":  {"ff", "01", "0xff + 0x1 = 0x100"},
		"wraparound": {"0x" + strings.Repeat("f", 64), "0x1", " = 0x0"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := runApp(t, "sum", "--sender", testSender, test.a, test.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, test.want) {
				t.Errorf("unexpected output, wanted %q, got %q", test.want, out)
			}
		})
	}
}

func TestSum_VerboseOutputNamesTheContract(t *testing.T) {
	out, err := runApp(t, "sum", "-v", "--sender", testSender, "0x1", "0x2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sender evm.Address
	if err := sender.UnmarshalText([]byte(testSender)); err != nil {
		t.Fatal(err)
	}
	contract := evm.CreateAddress(sender, 0)
	for _, want := range []string{
		"Calculating 0x1 + 0x2",
		"Address " + contract.ChecksumHex() + " contains the following bytecode",
		"returned a result of 32 bytes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestSum_ReportsInvalidArguments(t *testing.T) {
	tests := map[string][]string{
		"missing argument": {"sum", "0x1"},
		"invalid hex":      {"sum", "0xzz", "0x1"},
		"too large":        {"sum", "0x1" + strings.Repeat("0", 64), "0x1"},
		"no gas":           {"sum", "--gas", "0", "0x1", "0x2"},
		"unknown revision": {"sum", "--revision", "frontier", "0x1", "0x2"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := runApp(t, args...); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestRun_PrintsResultAsJSON(t *testing.T) {
	for _, revision := range []string{"istanbul", "shanghai"} {
		out, err := runApp(t, "run", "--revision", revision, "--code", addCode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res := parseResult(t, out)
		if res.Reason != evm.Returned || res.GasUsed != 24 || len(res.Output) != 32 || res.Output[31] != 3 {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.State != nil {
			t.Errorf("state should only be dumped on request")
		}
	}
}

func TestRun_ReportsFaults(t *testing.T) {
	out, err := runApp(t, "run", "--code", "fe", "--gas", "50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := parseResult(t, out)
	if res.Reason != evm.Threw || res.GasUsed != 50 || res.Error == "" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRun_LoadsAndDumpsState(t *testing.T) {
	dir := t.TempDir()
	callee := evm.Address{0x42}
	accounts := state.Accounts{
		callee: {Code: evm.Code{0x60, 0x07, 0x60, 0x01, 0x55}, Balance: evm.NewValue(5)},
	}
	data, err := json.Marshal(accounts)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "run", "--state", path, "--callee", callee.String(), "--dump")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := parseResult(t, out)
	if res.Reason != evm.Returned {
		t.Fatalf("unexpected result: %+v", res)
	}
	account, found := res.State[callee]
	if !found {
		t.Fatalf("callee missing in dumped state: %v", res.State)
	}
	if got := account.Storage[evm.Key{31: 1}]; got != (evm.Word{31: 7}) {
		t.Errorf("unexpected storage value: %v", got)
	}
	if account.Balance != evm.NewValue(5) {
		t.Errorf("unexpected balance: %v", account.Balance)
	}
}

func TestRun_PersistsStateInDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db")

	out, err := runApp(t, "run", "--db", db, "--code", counterCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := parseResult(t, out); res.Output[31] != 1 {
		t.Fatalf("unexpected first result: %+v", res)
	}

	out, err = runApp(t, "run", "--db", db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := parseResult(t, out); res.Output[31] != 2 {
		t.Fatalf("unexpected second result: %+v", res)
	}
}

func TestRun_WritesTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	if _, err := runApp(t, "run", "--code", addCode, "--trace", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 8 {
		t.Errorf("unexpected number of trace lines: %d", len(lines))
	}
	if !strings.Contains(lines[0], `"op":"PUSH1"`) {
		t.Errorf("unexpected first trace line: %s", lines[0])
	}
}

func TestRun_RejectsConflictingCodeSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.hex")
	if err := os.WriteFile(path, []byte(addCode+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := runApp(t, "run", "--code", addCode, "--code-file", path); err == nil {
		t.Errorf("expected an error")
	}
	out, err := runApp(t, "run", "--code-file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := parseResult(t, out); res.Reason != evm.Returned {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExamples_RunsSelectedExamples(t *testing.T) {
	out, err := runApp(t, "examples", "--filter", "^(sum|sha3)$", "--arg", "5", "--jobs", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"sum(5) = 15", "sha3(5) =", "All 2 examples"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	if _, err := runApp(t, "examples", "--filter", "^none$"); err == nil {
		t.Errorf("expected an error for an empty selection")
	}
}

func TestBench_ReportsThroughputAndStatistics(t *testing.T) {
	out, err := runApp(t, "bench", "--filter", "^sum$", "--rounds", "3", "--arg", "10", "--stats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"sum", "3 runs", "runs/s", "Statistics", "JUMPDEST"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestApp_RejectsInvalidVerbosity(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	if err := app.Run([]string{"evmrun", "--verbosity", "9", "examples"}); err == nil {
		t.Errorf("expected an error")
	}
}
