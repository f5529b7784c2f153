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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/state"
	"github.com/Fantom-foundation/evmcore/go/trace"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var RunCmd = AddCommonFlags(cli.Command{
	Action: doRun,
	Name:   "run",
	Usage:  "Runs a single transaction and prints its result as JSON",
	Flags: []cli.Flag{
		GasFlag,
		TraceFlag,
		&cli.StringFlag{
			Name:  "code",
			Usage: "hex encoded code to be deployed at the callee before running",
		},
		&cli.StringFlag{
			Name:      "code-file",
			Usage:     "file containing hex encoded code, alternative to --code",
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "hex encoded input of the call",
		},
		&cli.StringFlag{
			Name:  "sender",
			Usage: "the address sending the transaction",
			Value: "0x000000000000000000000000000000000000c0de",
		},
		&cli.StringFlag{
			Name:  "callee",
			Usage: "the address of the called contract, derived from the sender if not set",
		},
		&cli.StringFlag{
			Name:  "value",
			Usage: "hex encoded value transferred by the transaction",
			Value: "0x0",
		},
		&cli.StringFlag{
			Name:      "state",
			Usage:     "JSON file with the accounts of the initial world state",
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:      "db",
			Usage:     "directory of a LevelDB database holding the world state across runs",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:  "dump",
			Usage: "print the resulting world state",
		},
	},
})

type runResultJSON struct {
	Reason    evm.ExitReason `json:"reason"`
	Output    hexutil.Bytes  `json:"output"`
	GasUsed   evm.Gas        `json:"gasUsed"`
	GasLeft   evm.Gas        `json:"gasLeft"`
	GasRefund evm.Gas        `json:"gasRefund"`
	Logs      []evm.Log      `json:"logs"`
	Error     string         `json:"error,omitempty"`
	State     state.Accounts `json:"state,omitempty"`
}

// worldState is a world state the run command can import into and export from.
type worldState interface {
	evm.WorldState
	Import(state.Accounts) error
	Export() (state.Accounts, error)
}

// memoryState adapts state.Memory to the worldState interface.
type memoryState struct {
	*state.Memory
}

func (s memoryState) Import(accounts state.Accounts) error {
	for addr, account := range accounts {
		if err := s.CreateAccount(addr, account.Balance, account.Code); err != nil {
			return err
		}
		if err := s.SetNonce(addr, account.Nonce); err != nil {
			return err
		}
		for key, value := range account.Storage {
			if err := s.SetStorage(addr, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s memoryState) Export() (state.Accounts, error) {
	return s.Accounts(), nil
}

func openWorldState(context *cli.Context) (worldState, func() error, error) {
	path := context.String("db")
	if path == "" {
		return memoryState{state.NewMemory(nil)}, func() error { return nil }, nil
	}
	db, err := leveldb.New(path, 16, 16, "evmrun/db/", false)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open database: %w", err)
	}
	log.Debug("opened world state database", "path", path)
	return state.NewKVStore(db), db.Close, nil
}

func loadAccounts(path string) (state.Accounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var accounts state.Accounts
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("invalid state file %s: %w", path, err)
	}
	return accounts, nil
}

func fetchCode(context *cli.Context) (evm.Code, bool, error) {
	code := context.String("code")
	if path := context.String("code-file"); path != "" {
		if code != "" {
			return nil, false, errors.New("--code and --code-file are mutually exclusive")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, err
		}
		code = strings.TrimSpace(string(data))
	}
	if code == "" {
		return nil, false, nil
	}
	decoded, err := decodeHex(code)
	return evm.Code(decoded), true, err
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

func doRun(context *cli.Context) (err error) {
	var sender, callee evm.Address
	if err := sender.UnmarshalText([]byte(context.String("sender"))); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	callee = evm.CreateAddress(sender, 0)
	if s := context.String("callee"); s != "" {
		if err := callee.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("invalid callee: %w", err)
		}
	}
	var value evm.Value
	if err := value.UnmarshalText([]byte(context.String("value"))); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	var input []byte
	if s := context.String("input"); s != "" {
		if input, err = decodeHex(s); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}
	code, hasCode, err := fetchCode(context)
	if err != nil {
		return fmt.Errorf("invalid code: %w", err)
	}
	processor, err := FetchProcessor(context)
	if err != nil {
		return err
	}

	ws, closeState, err := openWorldState(context)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeState())
	}()
	if path := context.String("state"); path != "" {
		accounts, err := loadAccounts(path)
		if err != nil {
			return err
		}
		if err := ws.Import(accounts); err != nil {
			return err
		}
	}
	if hasCode {
		if err := ws.SetCode(callee, code); err != nil {
			return err
		}
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

	tx := evm.Transaction{Sender: sender, Value: value}
	res, err := processor.Run(tx, sender, evm.Account(ws, callee), input, GasFlag.Fetch(context), tracer)
	if err != nil {
		return err
	}
	if recorder != nil {
		if err := recorder.WriteJSON(traceOut); err != nil {
			return err
		}
	}

	out := runResultJSON{
		Reason:    res.Reason,
		Output:    hexutil.Bytes(res.Output),
		GasUsed:   res.GasUsed,
		GasLeft:   res.GasLeft,
		GasRefund: res.GasRefund,
		Logs:      res.Logs,
	}
	if out.Logs == nil {
		out.Logs = []evm.Log{}
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if context.Bool("dump") {
		accounts, err := ws.Export()
		if err != nil {
			return err
		}
		out.State = accounts
	}

	encoder := json.NewEncoder(context.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
