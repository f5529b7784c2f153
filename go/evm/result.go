// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package evm

import (
	"fmt"
	"strings"
)

// ExitReason summarizes how the execution of a frame or transaction ended.
type ExitReason byte

const (
	// Returned is a normal completion through STOP, RETURN, SELFDESTRUCT or
	// by running past the end of the code.
	Returned ExitReason = iota
	// Reverted is an explicit REVERT; state changes are undone.
	Reverted
	// Threw is any fault raised by the executed code; state changes are
	// undone and all gas is consumed.
	Threw
	// Halted is a termination forced by the host, e.g. a step limit.
	Halted
)

func (r ExitReason) String() string {
	switch r {
	case Returned:
		return "returned"
	case Reverted:
		return "reverted"
	case Threw:
		return "threw"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("ExitReason(%d)", r)
}

func (r ExitReason) MarshalText() ([]byte, error) {
	if r > Halted {
		return nil, fmt.Errorf("invalid exit reason: %d", r)
	}
	return []byte(r.String()), nil
}

func (r *ExitReason) UnmarshalText(data []byte) error {
	for _, candidate := range []ExitReason{Returned, Reverted, Threw, Halted} {
		if strings.EqualFold(candidate.String(), string(data)) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown exit reason: %q", data)
}

// Result is the outcome of a transaction.
type Result struct {
	Reason    ExitReason
	Output    Data
	GasUsed   Gas
	GasLeft   Gas
	GasRefund Gas
	Logs      []Log

	// Err names the fault that caused a Threw result, if any.
	Err error
}

// Success reports whether the execution completed normally.
func (r Result) Success() bool {
	return r.Reason == Returned
}
