// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"context"
	"fmt"
	"math"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/processor/floria"
	"github.com/Fantom-foundation/evmcore/go/state"
	"golang.org/x/sync/errgroup"
)

var (
	senderAddress  = evm.Address{0x5E, 0x4D}
	exampleAddress = evm.CreateAddress(senderAddress, 0)
)

// Example is an executable description of a contract and an entry point with a (int)->int signature.
type Example struct {
	exampleSpec
	codeHash evm.Hash // the hash of the code
}

// exampleSpec specifies a contract and an entry point with a (int)->int signature.
type exampleSpec struct {
	Name      string
	Code      evm.Code          // some contract code
	reference func(int) int     // a reference function computing the same function
	gas       func(int) evm.Gas // the exact gas consumed for an argument, if known
}

func (s exampleSpec) build() Example {
	return Example{
		exampleSpec: s,
		codeHash:    evm.Keccak256(s.Code),
	}
}

// CodeHash returns the Keccak256 hash of the example's code.
func (e *Example) CodeHash() evm.Hash {
	return e.codeHash
}

type Result struct {
	Result  int
	UsedGas evm.Gas
}

// RunOn runs this example on the given processor, using the given argument.
func (e *Example) RunOn(processor *floria.Processor, argument int) (Result, error) {
	return e.RunWithTracer(processor, argument, nil)
}

// RunWithTracer is like RunOn but reports the execution to the given tracer.
// Each run uses a fresh world state holding only the example contract.
func (e *Example) RunWithTracer(processor *floria.Processor, argument int, tracer evm.Tracer) (Result, error) {
	const initialGas = math.MaxInt64

	ws := state.NewMemory(state.Accounts{exampleAddress: {Code: e.Code}})
	tx := evm.Transaction{Sender: senderAddress, Logs: evm.NullLogSink{}}
	res, err := processor.Run(tx, senderAddress, evm.Account(ws, exampleAddress), encodeArgument(argument), initialGas, tracer)
	if err != nil {
		return Result{}, err
	}
	if res.Reason != evm.Returned {
		return Result{}, fmt.Errorf("example %s did not return but %v: %v", e.Name, res.Reason, res.Err)
	}

	result, err := decodeOutput(res.Output)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result:  result,
		UsedGas: res.GasUsed,
	}, nil
}

// RunReference runs the reference function of this example to produce the expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

// ExpectedGas returns the gas a run with the given argument consumes. The
// second result is false if the example has no gas model.
func (e *Example) ExpectedGas(argument int) (evm.Gas, bool) {
	if e.gas == nil {
		return 0, false
	}
	return e.gas(argument), true
}

// Check runs the example and compares the result and, if the example has a
// gas model, the consumed gas with its reference.
func (e *Example) Check(processor *floria.Processor, argument int) (Result, error) {
	got, err := e.RunOn(processor, argument)
	if err != nil {
		return Result{}, err
	}
	if want := e.RunReference(argument); got.Result != want {
		return got, fmt.Errorf("example %s(%d) produced %d, wanted %d", e.Name, argument, got.Result, want)
	}
	if want, ok := e.ExpectedGas(argument); ok && got.UsedGas != want {
		return got, fmt.Errorf("example %s(%d) used %d gas, wanted %d", e.Name, argument, got.UsedGas, want)
	}
	return got, nil
}

// GetAllExamples returns every example of this package.
func GetAllExamples() []Example {
	res := []Example{
		GetSumExample(),
		GetArithmeticExample(),
		GetSha3Example(),
		GetStorageExample(),
		GetGasBurnerExample(),
		GetStaticOverheadExample(),
	}
	return append(res, GetAnalysisExamples()...)
}

// CheckAll runs Check for all given examples with at most jobs examples in
// parallel. Results are reported in the order of the examples. A jobs value
// of zero or less means no limit.
func CheckAll(ctx context.Context, processor *floria.Processor, examples []Example, argument int, jobs int) ([]Result, error) {
	results := make([]Result, len(examples))
	group, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		group.SetLimit(jobs)
	}
	for i := range examples {
		i := i
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := examples[i].Check(processor, argument)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// encodeArgument produces call data of an empty 4-byte function selector
// followed by the argument as a 32-byte big-endian word.
func encodeArgument(arg int) []byte {
	data := make([]byte, 4+32)
	data[4+28] = byte(arg >> 24)
	data[5+28] = byte(arg >> 16)
	data[6+28] = byte(arg >> 8)
	data[7+28] = byte(arg)
	return data
}

func decodeOutput(output []byte) (int, error) {
	if len(output) != 32 {
		return 0, fmt.Errorf("unexpected length of output; wanted 32, got %d", len(output))
	}
	return (int(output[28]) << 24) | (int(output[29]) << 16) | (int(output[30]) << 8) | (int(output[31]) << 0), nil
}
