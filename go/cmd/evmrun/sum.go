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
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/examples"
	"github.com/Fantom-foundation/evmcore/go/trace"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
	"pgregory.net/rand"
)

var SumCmd = AddCommonFlags(cli.Command{
	Action:    doSum,
	Name:      "sum",
	Usage:     "Deploys a contract adding two 256-bit values and runs it",
	ArgsUsage: "<hex_a> <hex_b>",
	Flags: []cli.Flag{
		GasFlag,
		TraceFlag,
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "print the deployed contract and the executing accounts",
		},
		&cli.StringFlag{
			Name:  "sender",
			Usage: "the address sending the transaction, random if not set",
		},
	},
})

func doSum(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected two arguments, got %d", context.Args().Len())
	}
	a, err := parseUint256(context.Args().Get(0))
	if err != nil {
		return err
	}
	b, err := parseUint256(context.Args().Get(1))
	if err != nil {
		return err
	}
	sender, err := fetchSender(context)
	if err != nil {
		return err
	}
	processor, err := FetchProcessor(context)
	if err != nil {
		return err
	}

	out := context.App.Writer
	verbose := context.Bool("verbose")
	if verbose {
		fmt.Fprintf(out, "Calculating %s + %s\n", a.Hex(), b.Hex())
	}

	traceOut, closeTrace, err := TraceFlag.Open(context)
	if err != nil {
		return err
	}
	defer closeTrace()
	var tracer evm.Tracer
	var recorder *trace.Recorder
	if traceOut != nil {
		recorder = trace.NewRecorder()
		tracer = recorder
	}

	res, err := examples.RunAddition(processor, sender, a, b, GasFlag.Fetch(context), tracer)
	if verbose {
		fmt.Fprintf(out, "Address %s contains the following bytecode:\n %x\n", res.Contract.ChecksumHex(), []byte(res.Code))
		fmt.Fprintf(out, "Executing a transaction from %s to %s\n", sender.ChecksumHex(), res.Contract.ChecksumHex())
	}
	if recorder != nil {
		if err := recorder.WriteJSON(traceOut); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(out, "Execution completed, and returned a result of %d bytes\n", len(res.Result.Output))
	}
	fmt.Fprintf(out, "%s + %s = %s\n", a.Hex(), b.Hex(), res.Sum.Hex())
	return nil
}

// parseUint256 parses a hexadecimal value with optional 0x prefix and
// leading zeros.
func parseUint256(s string) (*uint256.Int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	value, ok := new(big.Int).SetString(digits, 16)
	if !ok || digits == "" {
		return nil, fmt.Errorf("invalid hex value: %q", s)
	}
	res, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("value exceeds 256 bits: %q", s)
	}
	return res, nil
}

func fetchSender(context *cli.Context) (evm.Address, error) {
	var sender evm.Address
	if s := context.String("sender"); s != "" {
		err := sender.UnmarshalText([]byte(s))
		return sender, err
	}
	var buffer [24]byte
	rnd := rand.New()
	for i := 0; i < len(buffer); i += 8 {
		binary.BigEndian.PutUint64(buffer[i:], rnd.Uint64())
	}
	copy(sender[:], buffer[:])
	return sender, nil
}
