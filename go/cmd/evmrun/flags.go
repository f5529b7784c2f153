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
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/processor/floria"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

type revisionFlagType struct {
	cli.StringFlag
}

var RevisionFlag = &revisionFlagType{
	cli.StringFlag{
		Name:    "revision",
		Aliases: []string{"r"},
		Usage:   "the revision to execute with (istanbul, berlin, london, shanghai)",
		Value:   evm.LatestRevision.String(),
	},
}

type gasFlagType struct {
	cli.Int64Flag
}

var GasFlag = &gasFlagType{
	cli.Int64Flag{
		Name:    "gas",
		Aliases: []string{"g"},
		Usage:   "the gas budget of the transaction",
		Value:   10_000_000,
	},
}

func (f *gasFlagType) Fetch(context *cli.Context) evm.Gas {
	return evm.Gas(context.Int64(f.Name))
}

type maxStepsFlagType struct {
	cli.Int64Flag
}

var MaxStepsFlag = &maxStepsFlagType{
	cli.Int64Flag{
		Name:  "max-steps",
		Usage: "halts the execution after the given number of instructions, 0 means no limit",
	},
}

// FetchProcessor creates the processor selected by the revision and step
// limit flags.
func FetchProcessor(context *cli.Context) (*floria.Processor, error) {
	return floria.NewProcessorByName(context.String(RevisionFlag.Name), floria.Config{
		MaxSteps: context.Int64(MaxStepsFlag.Name),
	})
}

type traceFlagType struct {
	cli.StringFlag
}

var TraceFlag = &traceFlagType{
	cli.StringFlag{
		Name:      "trace",
		Usage:     "write a JSON-lines trace of all executed instructions to the given file, - for stdout",
		TakesFile: true,
	},
}

// Open returns the writer selected by the flag or nil if tracing is disabled.
// The returned close function must be called once the trace is written.
func (f *traceFlagType) Open(context *cli.Context) (io.Writer, func() error, error) {
	switch path := context.String(f.Name); path {
	case "":
		return nil, func() error { return nil }, nil
	case "-":
		return context.App.Writer, func() error { return nil }, nil
	default:
		file, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("could not create trace file: %w", err)
		}
		return file, file.Close, nil
	}
}

type jobsFlagType struct {
	cli.IntFlag
}

var JobsFlag = &jobsFlagType{
	cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "number of jobs run simultaneously",
		Value:   runtime.NumCPU(),
	},
}

func (f *jobsFlagType) Fetch(context *cli.Context) int {
	if jobs := context.Int(f.Name); jobs > 0 {
		return jobs
	}
	return runtime.NumCPU()
}

var VerbosityFlag = &cli.IntFlag{
	Name:  "verbosity",
	Usage: "log level: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
	Value: 3,
}

// setupLogging installs a terminal log handler writing to the app's error
// writer at the selected verbosity.
func setupLogging(context *cli.Context) error {
	verbosity := context.Int(VerbosityFlag.Name)
	if verbosity < 0 || verbosity > 5 {
		return fmt.Errorf("invalid verbosity: %d", verbosity)
	}
	level := log.FromLegacyLevel(verbosity)
	if verbosity == 0 {
		level = log.LevelCrit + 1
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(context.App.ErrWriter, level, false)))
	return nil
}

var cpuProfileFlag = &cli.StringFlag{
	Name:      "cpuprofile",
	Usage:     "store CPU profile in the provided filename",
	TakesFile: true,
}

// AddCommonFlags adds the flags shared by all execution commands and wraps
// the command's action with CPU profiling.
func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, RevisionFlag, MaxStepsFlag, cpuProfileFlag)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {
		if cpuprofileFilename := ctx.String(cpuProfileFlag.Name); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return action(ctx)
	}
	return command
}
