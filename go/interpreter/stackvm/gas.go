// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stackvm

import (
	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/holiman/uint256"
)

// GasMeter tracks the gas remaining in a frame.
type GasMeter struct {
	remaining evm.Gas
}

func NewGasMeter(gas evm.Gas) GasMeter {
	return GasMeter{remaining: max(gas, 0)}
}

func (g *GasMeter) Remaining() evm.Gas {
	return g.remaining
}

// Charge consumes the given amount of gas. If less gas is available, or the
// amount is negative due to an overflow, the meter is left untouched and
// ErrOutOfGas is returned.
func (g *GasMeter) Charge(amount evm.Gas) error {
	if amount < 0 || g.remaining < amount {
		return evm.ErrOutOfGas
	}
	g.remaining -= amount
	return nil
}

// Return credits gas not used by a child frame.
func (g *GasMeter) Return(amount evm.Gas) {
	if amount > 0 {
		g.remaining += amount
	}
}

// Exhaust consumes all remaining gas.
func (g *GasMeter) Exhaust() {
	g.remaining = 0
}

// callGas computes the gas forwarded to a child frame following EIP-150: at
// most all but one 64th of the gas available after charging the base costs.
func callGas(available, base evm.Gas, requested *uint256.Int) evm.Gas {
	available = available - base
	if available < 0 {
		return 0
	}
	gas := available - available/64
	if !requested.IsUint64() || requested.Uint64() > uint64(gas) {
		return gas
	}
	return evm.Gas(requested.Uint64())
}

// sstoreGas computes the costs of an SSTORE and updates the frame's refund
// counter. The rules are those of EIP-2200, with the EIP-2929 cold access
// surcharge if access lists are enabled. EIP-3529 only changes the clearing
// refund, which is a parameter of the schedule.
//
//  0. If *gasleft* is less than or equal to 2300, fail the current call.
//  1. If current value equals new value (this is a no-op), SLOAD_GAS is deducted.
//  2. If current value does not equal new value:
//     2.1. If original value equals current value (this storage slot has not been changed by the current execution context):
//     2.1.1. If original value is 0, SSTORE_SET_GAS (20K) gas is deducted.
//     2.1.2. Otherwise, SSTORE_RESET_GAS gas is deducted. If new value is 0, add SSTORE_CLEARS_SCHEDULE to refund counter.
//     2.2. If original value does not equal current value (this storage slot is dirty), SLOAD_GAS gas is deducted. Apply both of the following clauses:
//     2.2.1. If original value is not 0:
//     2.2.1.1. If current value is 0 (also means that new value is not 0), subtract SSTORE_CLEARS_SCHEDULE gas from refund counter.
//     2.2.1.2. If new value is 0 (also means that current value is not 0), add SSTORE_CLEARS_SCHEDULE gas to refund counter.
//     2.2.2. If original value equals new value (this storage slot is reset):
//     2.2.2.1. If original value is 0, add SSTORE_SET_GAS - SLOAD_GAS to refund counter.
//     2.2.2.2. Otherwise, add SSTORE_RESET_GAS - SLOAD_GAS gas to refund counter.
func (f *Frame) sstoreGas(key evm.Key, value evm.Word) (evm.Gas, error) {
	s := f.env.Schedule
	if f.gas.Remaining() <= s.SstoreSentryGas {
		return 0, evm.ErrOutOfGas
	}

	ctx := f.env.Context
	addr := f.params.Recipient
	cost := evm.Gas(0)
	if s.AccessLists && ctx.AccessStorage(addr, key) == evm.ColdAccess {
		cost = s.ColdSloadCost
	}

	current, err := ctx.GetStorage(addr, key)
	if err != nil {
		return 0, err
	}
	if current == value { // noop (1)
		return cost + s.SloadGas, nil
	}
	original, err := ctx.GetCommittedStorage(addr, key)
	if err != nil {
		return 0, err
	}

	zero := evm.Word{}
	if original == current {
		if original == zero { // create slot (2.1.1)
			return cost + s.SstoreSetGas, nil
		}
		if value == zero { // delete slot (2.1.2b)
			f.refund += s.SstoreClearsRefund
		}
		return cost + s.SstoreResetGas, nil // write existing slot (2.1.2)
	}
	if original != zero {
		if current == zero { // recreate slot (2.2.1.1)
			f.refund -= s.SstoreClearsRefund
		} else if value == zero { // delete slot (2.2.1.2)
			f.refund += s.SstoreClearsRefund
		}
	}
	if original == value {
		if original == zero { // reset to original inexistent slot (2.2.2.1)
			f.refund += s.SstoreSetGas - s.SloadGas
		} else { // reset to original existing slot (2.2.2.2)
			f.refund += s.SstoreResetGas - s.SloadGas
		}
	}
	return cost + s.SloadGas, nil // dirty update (2.2)
}

// accountAccessGas returns the EIP-2929 surcharge for accessing a cold
// account and marks the account as warm.
func (f *Frame) accountAccessGas(addr evm.Address) evm.Gas {
	s := f.env.Schedule
	if !s.AccessLists {
		return 0
	}
	if f.env.Context.AccessAccount(addr) == evm.ColdAccess {
		return s.ColdAccountAccessCost - s.WarmStorageReadCost
	}
	return 0
}
