// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"fmt"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/interpreter/stackvm"
	"github.com/Fantom-foundation/evmcore/go/state"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

const (
	// DefaultMaxCallDepth is the maximum depth of nested calls and creates.
	// The root frame has depth zero.
	DefaultMaxCallDepth = 1024
	// DefaultAnalysisCacheSize is the number of jump-destination analyses
	// retained by a processor.
	DefaultAnalysisCacheSize = 1 << 12
)

var (
	framesCounter  = metrics.NewRegisteredCounter("evm/frames", nil)
	stepsCounter   = metrics.NewRegisteredCounter("evm/steps", nil)
	revertsCounter = metrics.NewRegisteredCounter("evm/reverts", nil)
	faultsCounter  = metrics.NewRegisteredCounter("evm/faults", nil)
	haltsCounter   = metrics.NewRegisteredCounter("evm/halts", nil)
)

// Config configures a Processor. Zero values are replaced by the defaults
// of the selected revision.
type Config struct {
	Revision     evm.Revision
	MaxCallDepth int
	// MaxSteps limits the number of instructions executed by a single
	// transaction. Zero means no limit.
	MaxSteps int64
	Schedule *evm.GasSchedule
	Refunds  evm.RefundPolicy
	// AnalysisCacheSize is the capacity of the jump-destination cache. A
	// negative value disables caching.
	AnalysisCacheSize int
	Logger            log.Logger
}

func (c Config) withDefaults() (Config, error) {
	if c.Schedule == nil {
		schedule, err := evm.ScheduleFor(c.Revision)
		if err != nil {
			return c, err
		}
		c.Schedule = schedule
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.MaxSteps < 0 {
		return c, fmt.Errorf("invalid step limit: %d", c.MaxSteps)
	}
	if c.Refunds == nil {
		c.Refunds = evm.RefundPolicyFor(c.Revision)
	}
	if c.AnalysisCacheSize == 0 {
		c.AnalysisCacheSize = DefaultAnalysisCacheSize
	}
	if c.Logger == nil {
		c.Logger = log.Root()
	}
	return c, nil
}

// Processor executes transactions on a world state. Processors are stateless
// apart from the analysis cache and may be used concurrently.
type Processor struct {
	config   Config
	analyzer *stackvm.Analyzer
}

// NewProcessor creates a processor for the given configuration.
func NewProcessor(config Config) (*Processor, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Processor{
		config:   config,
		analyzer: stackvm.NewAnalyzer(config.AnalysisCacheSize),
	}, nil
}

// Config returns the effective configuration of the processor.
func (p *Processor) Config() Config {
	return p.config
}

// Run executes a call of the callee's code by the caller with the given
// input and gas budget. The callee's world state is modified in place; all
// modifications are undone if the call reverts, throws or halts.
//
// The returned error is only non-nil if the world state failed. In that case
// the state is restored on a best-effort basis and the result is empty.
func (p *Processor) Run(
	tx evm.Transaction,
	caller evm.Address,
	callee evm.AccountState,
	input evm.Data,
	gas evm.Gas,
	tracer evm.Tracer,
) (evm.Result, error) {
	if callee.State == nil {
		return evm.Result{}, fmt.Errorf("no world state provided for callee %v", callee.Address)
	}
	if tx.Origin == (evm.Address{}) {
		tx.Origin = tx.Sender
	}
	gas = max(gas, 0)

	journal := state.NewJournal(callee.State)
	r := &runContext{
		config:  &p.config,
		context: journal,
		logger:  p.config.Logger,
		env: &stackvm.Environment{
			Context:  journal,
			Tx:       &tx,
			Schedule: p.config.Schedule,
			Revision: p.config.Revision,
			Analyzer: p.analyzer,
			Tracer:   tracer,
			MaxSteps: p.config.MaxSteps,
		},
	}
	defer func() { stepsCounter.Inc(r.env.Steps()) }()

	balance, err := journal.GetBalance(caller)
	if err != nil {
		return evm.Result{}, err
	}
	if balance.Cmp(tx.Value) < 0 {
		faultsCounter.Inc(1)
		return evm.Result{
			Reason:  evm.Threw,
			GasUsed: gas,
			Err:     evm.ErrInsufficientBalance,
		}, nil
	}

	if p.config.Schedule.AccessLists {
		journal.AccessAccount(tx.Origin)
		journal.AccessAccount(caller)
		journal.AccessAccount(callee.Address)
	}

	outcome, err := r.run(&stackvm.CallRequest{
		Kind:        evm.Call,
		Caller:      caller,
		Recipient:   callee.Address,
		CodeAddress: callee.Address,
		Value:       tx.Value,
		Transfer:    true,
		Input:       input,
		Gas:         gas,
	})
	if err != nil {
		p.config.Logger.Error("transaction aborted by world state failure", "callee", callee.Address, "err", err)
		return evm.Result{}, err
	}

	switch outcome.reason {
	case evm.Returned:
		return r.finalize(gas, outcome, tx.LogSink())
	case evm.Reverted:
		return evm.Result{
			Reason:  evm.Reverted,
			Output:  outcome.Output,
			GasUsed: gas - outcome.GasLeft,
			GasLeft: outcome.GasLeft,
		}, nil
	case evm.Halted:
		return evm.Result{
			Reason:  evm.Halted,
			GasUsed: gas,
		}, nil
	}
	return evm.Result{
		Reason:  evm.Threw,
		GasUsed: gas,
		Err:     outcome.err,
	}, nil
}

// finalize completes a successful transaction: refunds are granted, destructed
// accounts are removed and logs are published.
func (r *runContext) finalize(gas evm.Gas, outcome frameOutcome, sink evm.LogSink) (evm.Result, error) {
	gasUsed := gas - outcome.GasLeft
	refund := r.config.Refunds.Refund(gasUsed, outcome.GasRefund)

	for _, addr := range r.context.SelfDestructed() {
		if err := r.context.RemoveAccount(addr); err != nil {
			return evm.Result{}, err
		}
	}

	logs := r.context.GetLogs()
	for _, l := range logs {
		sink.HandleLog(l)
	}

	return evm.Result{
		Reason:    evm.Returned,
		Output:    outcome.Output,
		GasUsed:   gasUsed - refund,
		GasLeft:   outcome.GasLeft + refund,
		GasRefund: refund,
		Logs:      logs,
	}, nil
}
