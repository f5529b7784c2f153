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
	"regexp"

	"github.com/Fantom-foundation/evmcore/go/examples"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
)

var filterFlag = &cli.StringFlag{
	Name:    "filter",
	Aliases: []string{"f"},
	Usage:   "run only examples which name matches the given regex",
	Value:   ".*",
}

var ExamplesCmd = AddCommonFlags(cli.Command{
	Action: doExamples,
	Name:   "examples",
	Usage:  "Runs the example contracts and compares them with their reference results",
	Flags: []cli.Flag{
		filterFlag,
		JobsFlag,
		&cli.IntFlag{
			Name:  "arg",
			Usage: "the argument passed to every example",
			Value: 10,
		},
	},
})

func fetchExamples(context *cli.Context) ([]examples.Example, error) {
	filter, err := regexp.Compile(context.String(filterFlag.Name))
	if err != nil {
		return nil, err
	}
	var res []examples.Example
	for _, example := range examples.GetAllExamples() {
		if filter.MatchString(example.Name) {
			res = append(res, example)
		}
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("no example matches %v", filter)
	}
	return res, nil
}

func doExamples(context *cli.Context) error {
	selected, err := fetchExamples(context)
	if err != nil {
		return err
	}
	processor, err := FetchProcessor(context)
	if err != nil {
		return err
	}
	arg := context.Int("arg")

	results, err := examples.CheckAll(context.Context, processor, selected, arg, JobsFlag.Fetch(context))
	if err != nil {
		return err
	}

	out := context.App.Writer
	for i, res := range results {
		fmt.Fprintf(out, "%-16s %s(%d) = %d, gas %s\n",
			selected[i].Name, selected[i].Name, arg, res.Result,
			unitconv.FormatPrefix(float64(res.UsedGas), unitconv.SI, 1),
		)
	}
	fmt.Fprintf(out, "All %d examples produced their reference results\n", len(results))
	return nil
}
