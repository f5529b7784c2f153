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
	"sync/atomic"
	"time"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/trace"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var BenchCmd = AddCommonFlags(cli.Command{
	Action: doBench,
	Name:   "bench",
	Usage:  "Measures the throughput of the processor on the example contracts",
	Flags: []cli.Flag{
		filterFlag,
		JobsFlag,
		&cli.IntFlag{
			Name:  "rounds",
			Usage: "number of times every example is run",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "arg",
			Usage: "the argument passed to every example",
			Value: 100,
		},
		&cli.BoolFlag{
			Name:  "stats",
			Usage: "collect and print instruction statistics",
		},
	},
})

func doBench(context *cli.Context) error {
	selected, err := fetchExamples(context)
	if err != nil {
		return err
	}
	processor, err := FetchProcessor(context)
	if err != nil {
		return err
	}
	rounds := context.Int("rounds")
	if rounds <= 0 {
		return fmt.Errorf("invalid number of rounds: %d", rounds)
	}
	arg := context.Int("arg")

	var stats *trace.Statistics
	if context.Bool("stats") {
		stats = trace.NewStatistics()
	}

	out := context.App.Writer
	for _, example := range selected {
		example := example
		var gasUsed atomic.Int64

		group, ctx := errgroup.WithContext(context.Context)
		group.SetLimit(JobsFlag.Fetch(context))
		start := time.Now()
		for i := 0; i < rounds; i++ {
			group.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				var tracer evm.Tracer
				if stats != nil {
					tracer = stats.NewTracer()
				}
				res, err := example.RunWithTracer(processor, arg, tracer)
				if err != nil {
					return err
				}
				if want := example.RunReference(arg); res.Result != want {
					return fmt.Errorf("example %s(%d) produced %d, wanted %d", example.Name, arg, res.Result, want)
				}
				gasUsed.Add(int64(res.UsedGas))
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		elapsed := time.Since(start)

		seconds := elapsed.Seconds()
		fmt.Fprintf(out, "%-16s %d runs in %v, %s runs/s, %s gas/s\n",
			example.Name, rounds, elapsed.Round(time.Microsecond),
			unitconv.FormatPrefix(float64(rounds)/seconds, unitconv.SI, 1),
			unitconv.FormatPrefix(float64(gasUsed.Load())/seconds, unitconv.SI, 1),
		)
	}

	if stats != nil {
		fmt.Fprint(out, stats.Summary())
	}
	return nil
}
