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
	"bytes"
	"math"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"github.com/Fantom-foundation/evmcore/go/evm/vm"
	"github.com/holiman/uint256"
)

// execute runs the given instruction. Stack requirements and static gas have
// been checked and charged by the caller.
func (f *Frame) execute(op vm.OpCode) error {
	s := f.stack
	switch {
	case vm.PUSH1 <= op && op <= vm.PUSH32:
		opPush(f, op.Width()-1)
		return nil
	case vm.DUP1 <= op && op <= vm.DUP16:
		s.dup(int(op - vm.DUP1))
		return nil
	case vm.SWAP1 <= op && op <= vm.SWAP16:
		s.swap(int(op-vm.SWAP1) + 1)
		return nil
	case vm.LOG0 <= op && op <= vm.LOG4:
		return opLog(f, int(op-vm.LOG0))
	}

	switch op {
	case vm.STOP:
		f.status = StatusStopped
	case vm.ADD:
		x, y := s.pop(), s.peek()
		y.Add(x, y)
	case vm.MUL:
		x, y := s.pop(), s.peek()
		y.Mul(x, y)
	case vm.SUB:
		x, y := s.pop(), s.peek()
		y.Sub(x, y)
	case vm.DIV:
		x, y := s.pop(), s.peek()
		y.Div(x, y)
	case vm.SDIV:
		x, y := s.pop(), s.peek()
		y.SDiv(x, y)
	case vm.MOD:
		x, y := s.pop(), s.peek()
		y.Mod(x, y)
	case vm.SMOD:
		x, y := s.pop(), s.peek()
		y.SMod(x, y)
	case vm.ADDMOD:
		x, y, m := s.pop(), s.pop(), s.peek()
		m.AddMod(x, y, m)
	case vm.MULMOD:
		x, y, m := s.pop(), s.pop(), s.peek()
		m.MulMod(x, y, m)
	case vm.EXP:
		return opExp(f)
	case vm.SIGNEXTEND:
		back, num := s.pop(), s.peek()
		num.ExtendSign(num, back)
	case vm.LT:
		x, y := s.pop(), s.peek()
		setBool(y, x.Lt(y))
	case vm.GT:
		x, y := s.pop(), s.peek()
		setBool(y, x.Gt(y))
	case vm.SLT:
		x, y := s.pop(), s.peek()
		setBool(y, x.Slt(y))
	case vm.SGT:
		x, y := s.pop(), s.peek()
		setBool(y, x.Sgt(y))
	case vm.EQ:
		x, y := s.pop(), s.peek()
		setBool(y, x.Eq(y))
	case vm.ISZERO:
		x := s.peek()
		setBool(x, x.IsZero())
	case vm.AND:
		x, y := s.pop(), s.peek()
		y.And(x, y)
	case vm.OR:
		x, y := s.pop(), s.peek()
		y.Or(x, y)
	case vm.XOR:
		x, y := s.pop(), s.peek()
		y.Xor(x, y)
	case vm.NOT:
		x := s.peek()
		x.Not(x)
	case vm.BYTE:
		th, val := s.pop(), s.peek()
		val.Byte(th)
	case vm.SHL:
		shift, value := s.pop(), s.peek()
		if shift.LtUint64(256) {
			value.Lsh(value, uint(shift.Uint64()))
		} else {
			value.Clear()
		}
	case vm.SHR:
		shift, value := s.pop(), s.peek()
		if shift.LtUint64(256) {
			value.Rsh(value, uint(shift.Uint64()))
		} else {
			value.Clear()
		}
	case vm.SAR:
		shift, value := s.pop(), s.peek()
		if shift.GtUint64(255) {
			if value.Sign() >= 0 {
				value.Clear()
			} else {
				value.SetAllOne()
			}
		} else {
			value.SRsh(value, uint(shift.Uint64()))
		}
	case vm.SHA3:
		return opSha3(f)

	case vm.ADDRESS:
		pushAddress(s, f.params.Recipient)
	case vm.BALANCE:
		return opBalance(f)
	case vm.ORIGIN:
		pushAddress(s, f.env.Tx.Origin)
	case vm.CALLER:
		pushAddress(s, f.params.Caller)
	case vm.CALLVALUE:
		s.pushUndefined().SetBytes32(f.params.Value[:])
	case vm.CALLDATALOAD:
		x := s.peek()
		x.SetBytes32(getData(f.params.Input, x, 32))
	case vm.CALLDATASIZE:
		s.pushUndefined().SetUint64(uint64(len(f.params.Input)))
	case vm.CALLDATACOPY:
		return opCopy(f, f.params.Input)
	case vm.CODESIZE:
		s.pushUndefined().SetUint64(uint64(len(f.params.Code)))
	case vm.CODECOPY:
		return opCopy(f, f.params.Code)
	case vm.GASPRICE:
		s.pushUndefined().SetBytes32(f.env.Tx.GasPrice[:])
	case vm.EXTCODESIZE:
		return opExtCodeSize(f)
	case vm.EXTCODECOPY:
		return opExtCodeCopy(f)
	case vm.RETURNDATASIZE:
		s.pushUndefined().SetUint64(uint64(len(f.returnData)))
	case vm.RETURNDATACOPY:
		return opReturnDataCopy(f)
	case vm.EXTCODEHASH:
		return opExtCodeHash(f)

	case vm.BLOCKHASH:
		opBlockHash(f)
	case vm.COINBASE:
		pushAddress(s, f.env.Tx.Block.Coinbase)
	case vm.TIMESTAMP:
		s.pushUndefined().SetUint64(uint64(f.env.Tx.Block.Timestamp))
	case vm.NUMBER:
		s.pushUndefined().SetUint64(uint64(f.env.Tx.Block.BlockNumber))
	case vm.PREVRANDAO:
		s.pushUndefined().SetBytes32(f.env.Tx.Block.PrevRandao[:])
	case vm.GASLIMIT:
		s.pushUndefined().SetUint64(uint64(f.env.Tx.Block.GasLimit))
	case vm.CHAINID:
		s.pushUndefined().SetBytes32(f.env.Tx.Block.ChainID[:])
	case vm.SELFBALANCE:
		balance, err := f.env.Context.GetBalance(f.params.Recipient)
		if err != nil {
			return err
		}
		s.pushUndefined().SetBytes32(balance[:])
	case vm.BASEFEE:
		s.pushUndefined().SetBytes32(f.env.Tx.Block.BaseFee[:])

	case vm.POP:
		s.pop()
	case vm.MLOAD:
		offset := s.peek()
		if !offset.IsUint64() {
			return evm.ErrOutOfGas
		}
		return f.memory.readWord(offset.Uint64(), offset, &f.gas)
	case vm.MSTORE:
		offset, value := s.pop(), s.pop()
		if !offset.IsUint64() {
			return evm.ErrOutOfGas
		}
		return f.memory.setWord(offset.Uint64(), value, &f.gas)
	case vm.MSTORE8:
		offset, value := s.pop(), s.pop()
		if !offset.IsUint64() {
			return evm.ErrOutOfGas
		}
		return f.memory.setByte(offset.Uint64(), byte(value.Uint64()), &f.gas)
	case vm.SLOAD:
		return opSload(f)
	case vm.SSTORE:
		return opSstore(f)
	case vm.JUMP:
		return f.jumpTo(s.pop())
	case vm.JUMPI:
		dest, cond := s.pop(), s.pop()
		if !cond.IsZero() {
			return f.jumpTo(dest)
		}
	case vm.PC:
		s.pushUndefined().SetUint64(f.pc)
	case vm.MSIZE:
		s.pushUndefined().SetUint64(f.memory.Len())
	case vm.GAS:
		s.pushUndefined().SetUint64(uint64(f.gas.Remaining()))
	case vm.JUMPDEST:
		// nothing
	case vm.PUSH0:
		s.pushUndefined().Clear()

	case vm.CREATE:
		return opCreate(f, evm.Create)
	case vm.CREATE2:
		return opCreate(f, evm.Create2)
	case vm.CALL:
		return opCall(f, evm.Call)
	case vm.CALLCODE:
		return opCall(f, evm.CallCode)
	case vm.DELEGATECALL:
		return opCall(f, evm.DelegateCall)
	case vm.STATICCALL:
		return opCall(f, evm.StaticCall)
	case vm.RETURN:
		return opEnd(f, StatusReturned)
	case vm.REVERT:
		return opEnd(f, StatusReverted)
	case vm.SELFDESTRUCT:
		return opSelfDestruct(f)
	default:
		return evm.ErrInvalidOpcode
	}
	return nil
}

func setBool(z *uint256.Int, value bool) {
	if value {
		z.SetOne()
	} else {
		z.Clear()
	}
}

func pushAddress(s *Stack, addr evm.Address) {
	s.pushUndefined().SetBytes20(addr[:])
}

func toAddress(value *uint256.Int) evm.Address {
	return evm.Address(value.Bytes20())
}

// wordGas computes perWord * the number of words needed for size bytes,
// saturating at the largest gas value.
func wordGas(perWord evm.Gas, size uint64) evm.Gas {
	words := evm.SizeInWords(size)
	if perWord <= 0 || words == 0 {
		return 0
	}
	if words > uint64(math.MaxInt64/perWord) {
		return evm.Gas(math.MaxInt64)
	}
	return evm.Gas(words) * perWord
}

// getData returns size bytes of data starting at the given offset. Bytes
// beyond the end of the data are zero.
func getData(data []byte, offset *uint256.Int, size uint64) []byte {
	res := make([]byte, size)
	if !offset.IsUint64() || offset.Uint64() >= uint64(len(data)) {
		return res
	}
	copy(res, data[offset.Uint64():])
	return res
}

func opPush(f *Frame, n int) {
	code := f.params.Code
	start := min(f.pc+1, uint64(len(code)))
	end := min(start+uint64(n), uint64(len(code)))

	// Immediate data cut off by the end of the code is padded with zeros
	// on the right.
	var buffer [32]byte
	copy(buffer[32-n:], code[start:end])
	f.stack.pushUndefined().SetBytes32(buffer[:])
	f.pc += uint64(n)
}

func opExp(f *Frame) error {
	base, exponent := f.stack.pop(), f.stack.peek()
	if err := f.gas.Charge(f.env.Schedule.ExpByteGas * evm.Gas(exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSha3(f *Frame) error {
	offset, size := f.stack.pop(), f.stack.peek()
	start, length, err := toRange(offset, size)
	if err != nil {
		return err
	}
	if err := f.gas.Charge(wordGas(f.env.Schedule.Keccak256Gas, length)); err != nil {
		return err
	}
	data, err := f.memory.slice(start, length, &f.gas)
	if err != nil {
		return err
	}
	hash := keccak256(data)
	size.SetBytes32(hash[:])
	return nil
}

func opBalance(f *Frame) error {
	slot := f.stack.peek()
	addr := toAddress(slot)
	if err := f.gas.Charge(f.accountAccessGas(addr)); err != nil {
		return err
	}
	balance, err := f.env.Context.GetBalance(addr)
	if err != nil {
		return err
	}
	slot.SetBytes32(balance[:])
	return nil
}

// opCopy implements the *COPY instructions copying from a fixed data source
// into memory.
func opCopy(f *Frame, source []byte) error {
	memOffset, dataOffset, size := f.stack.pop(), f.stack.pop(), f.stack.pop()
	start, length, err := toRange(memOffset, size)
	if err != nil {
		return err
	}
	if err := f.gas.Charge(wordGas(f.env.Schedule.CopyGas, length)); err != nil {
		return err
	}
	target, err := f.memory.slice(start, length, &f.gas)
	if err != nil {
		return err
	}
	n := 0
	if dataOffset.IsUint64() && dataOffset.Uint64() < uint64(len(source)) {
		n = copy(target, source[dataOffset.Uint64():])
	}
	clear(target[n:])
	return nil
}

func opExtCodeSize(f *Frame) error {
	slot := f.stack.peek()
	addr := toAddress(slot)
	if err := f.gas.Charge(f.accountAccessGas(addr)); err != nil {
		return err
	}
	code, err := f.env.Context.GetCode(addr)
	if err != nil {
		return err
	}
	slot.SetUint64(uint64(len(code)))
	return nil
}

func opExtCodeCopy(f *Frame) error {
	addr := toAddress(f.stack.pop())
	if err := f.gas.Charge(f.accountAccessGas(addr)); err != nil {
		return err
	}
	code, err := f.env.Context.GetCode(addr)
	if err != nil {
		return err
	}
	return opCopy(f, code)
}

func opExtCodeHash(f *Frame) error {
	slot := f.stack.peek()
	addr := toAddress(slot)
	if err := f.gas.Charge(f.accountAccessGas(addr)); err != nil {
		return err
	}
	empty, err := isEmpty(f.env.Context, addr)
	if err != nil {
		return err
	}
	if empty {
		slot.Clear()
		return nil
	}
	hash, err := f.env.Context.GetCodeHash(addr)
	if err != nil {
		return err
	}
	slot.SetBytes32(hash[:])
	return nil
}

func opReturnDataCopy(f *Frame) error {
	memOffset, dataOffset, size := f.stack.pop(), f.stack.pop(), f.stack.pop()
	if !dataOffset.IsUint64() || !size.IsUint64() {
		return evm.ErrReturnDataOutOfBounds
	}
	end := dataOffset.Uint64() + size.Uint64()
	if end < dataOffset.Uint64() || end > uint64(len(f.returnData)) {
		return evm.ErrReturnDataOutOfBounds
	}
	start, length, err := toRange(memOffset, size)
	if err != nil {
		return err
	}
	if err := f.gas.Charge(wordGas(f.env.Schedule.CopyGas, length)); err != nil {
		return err
	}
	return f.memory.set(start, length, f.returnData[dataOffset.Uint64():end], &f.gas)
}

func opBlockHash(f *Frame) {
	slot := f.stack.peek()
	current := f.env.Tx.Block.BlockNumber
	if !slot.IsUint64() || current <= 0 {
		slot.Clear()
		return
	}
	number := slot.Uint64()
	if number >= uint64(current) || number+256 < uint64(current) {
		slot.Clear()
		return
	}
	hash := f.env.Tx.Block.GetBlockHash(int64(number))
	slot.SetBytes32(hash[:])
}

func opSload(f *Frame) error {
	slot := f.stack.peek()
	key := evm.Key(slot.Bytes32())
	schedule := f.env.Schedule
	ctx := f.env.Context
	if schedule.AccessLists && ctx.AccessStorage(f.params.Recipient, key) == evm.ColdAccess {
		if err := f.gas.Charge(schedule.ColdSloadCost - schedule.WarmStorageReadCost); err != nil {
			return err
		}
	}
	value, err := ctx.GetStorage(f.params.Recipient, key)
	if err != nil {
		return err
	}
	slot.SetBytes32(value[:])
	return nil
}

func opSstore(f *Frame) error {
	key := evm.Key(f.stack.pop().Bytes32())
	value := evm.Word(f.stack.pop().Bytes32())
	cost, err := f.sstoreGas(key, value)
	if err != nil {
		return err
	}
	if err := f.gas.Charge(cost); err != nil {
		return err
	}
	return f.env.Context.SetStorage(f.params.Recipient, key, value)
}

func (f *Frame) jumpTo(dest *uint256.Int) error {
	if !dest.IsUint64() || !f.analysis.IsJumpDest(dest.Uint64()) {
		return evm.ErrInvalidJump
	}
	f.pc = dest.Uint64()
	f.jumped = true
	return nil
}

func opLog(f *Frame, numTopics int) error {
	offset, size := f.stack.pop(), f.stack.pop()
	topics := make([]evm.Hash, numTopics)
	for i := range topics {
		topics[i] = f.stack.pop().Bytes32()
	}
	start, length, err := toRange(offset, size)
	if err != nil {
		return err
	}
	if length > uint64(math.MaxInt64)/uint64(max(f.env.Schedule.LogDataGas, 1)) {
		return evm.ErrOutOfGas
	}
	if err := f.gas.Charge(f.env.Schedule.LogDataGas * evm.Gas(length)); err != nil {
		return err
	}
	data, err := f.memory.slice(start, length, &f.gas)
	if err != nil {
		return err
	}
	f.env.Context.EmitLog(evm.Log{
		Address: f.params.Recipient,
		Topics:  topics,
		Data:    bytes.Clone(data),
	})
	return nil
}

func opCreate(f *Frame, kind evm.CallKind) error {
	s := f.stack
	value := evm.Value(s.pop().Bytes32())
	offset, size := s.pop(), s.pop()
	var salt evm.Hash
	if kind == evm.Create2 {
		salt = s.pop().Bytes32()
	}

	start, length, err := toRange(offset, size)
	if err != nil {
		return err
	}
	schedule := f.env.Schedule
	if schedule.MaxInitCodeSize > 0 && length > uint64(schedule.MaxInitCodeSize) {
		return evm.ErrInitCodeTooLarge
	}
	if err := f.gas.Charge(wordGas(schedule.InitCodeWordGas, length)); err != nil {
		return err
	}
	if kind == evm.Create2 {
		if err := f.gas.Charge(wordGas(schedule.Keccak256Gas, length)); err != nil {
			return err
		}
	}
	input, err := f.memory.slice(start, length, &f.gas)
	if err != nil {
		return err
	}

	gas := f.gas.Remaining() - f.gas.Remaining()/64
	if err := f.gas.Charge(gas); err != nil {
		return err
	}

	f.returnData = nil
	f.suspend(&CallRequest{
		Kind:     kind,
		Caller:   f.params.Recipient,
		Value:    value,
		Transfer: true,
		Input:    bytes.Clone(input),
		Gas:      gas,
		Salt:     salt,
	})
	return nil
}

func opCall(f *Frame, kind evm.CallKind) error {
	s := f.stack
	requestedGas := *s.pop()
	target := toAddress(s.pop())
	var value evm.Value
	if kind == evm.Call || kind == evm.CallCode {
		value = s.pop().Bytes32()
	}
	inOffset, inSize, outOffset, outSize := s.pop(), s.pop(), s.pop(), s.pop()

	inStart, inLength, err := toRange(inOffset, inSize)
	if err != nil {
		return err
	}
	outStart, outLength, err := toRange(outOffset, outSize)
	if err != nil {
		return err
	}
	if err := f.memory.expand(inStart, inLength, &f.gas); err != nil {
		return err
	}
	if err := f.memory.expand(outStart, outLength, &f.gas); err != nil {
		return err
	}
	if err := f.gas.Charge(f.accountAccessGas(target)); err != nil {
		return err
	}

	schedule := f.env.Schedule
	if !value.IsZero() {
		if err := f.gas.Charge(schedule.CallValueTransferGas); err != nil {
			return err
		}
		if kind == evm.Call {
			empty, err := isEmpty(f.env.Context, target)
			if err != nil {
				return err
			}
			if empty {
				if err := f.gas.Charge(schedule.CallNewAccountGas); err != nil {
					return err
				}
			}
		}
	}

	gas := callGas(f.gas.Remaining(), 0, &requestedGas)
	if err := f.gas.Charge(gas); err != nil {
		return err
	}
	if !value.IsZero() {
		gas += schedule.CallStipend
	}

	input, err := f.memory.slice(inStart, inLength, &f.gas)
	if err != nil {
		return err
	}

	req := &CallRequest{
		Kind:        kind,
		Caller:      f.params.Recipient,
		Recipient:   target,
		CodeAddress: target,
		Value:       value,
		Transfer:    kind == evm.Call || kind == evm.CallCode,
		Input:       bytes.Clone(input),
		Gas:         gas,
		Static:      f.params.Static || kind == evm.StaticCall,
		outOffset:   outStart,
		outSize:     outLength,
	}
	switch kind {
	case evm.CallCode:
		req.Recipient = f.params.Recipient
	case evm.DelegateCall:
		req.Caller = f.params.Caller
		req.Recipient = f.params.Recipient
		req.Value = f.params.Value
	}

	f.returnData = nil
	f.suspend(req)
	return nil
}

func opEnd(f *Frame, status Status) error {
	offset, size := f.stack.pop(), f.stack.pop()
	start, length, err := toRange(offset, size)
	if err != nil {
		return err
	}
	data, err := f.memory.slice(start, length, &f.gas)
	if err != nil {
		return err
	}
	f.output = bytes.Clone(data)
	f.status = status
	return nil
}

func opSelfDestruct(f *Frame) error {
	beneficiary := toAddress(f.stack.pop())
	schedule := f.env.Schedule
	ctx := f.env.Context

	cost := evm.Gas(0)
	if schedule.AccessLists && ctx.AccessAccount(beneficiary) == evm.ColdAccess {
		cost += schedule.ColdAccountAccessCost
	}
	balance, err := ctx.GetBalance(f.params.Recipient)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		empty, err := isEmpty(ctx, beneficiary)
		if err != nil {
			return err
		}
		if empty {
			cost += schedule.SelfdestructNewAccountGas
		}
	}
	if err := f.gas.Charge(cost); err != nil {
		return err
	}

	first, err := ctx.SelfDestruct(f.params.Recipient, beneficiary)
	if err != nil {
		return err
	}
	if first {
		f.refund += schedule.SelfdestructRefund
	}
	f.status = StatusSelfDestructed
	return nil
}

// isEmpty reports whether the account does not exist or has no balance,
// nonce and code.
func isEmpty(state evm.WorldState, addr evm.Address) (bool, error) {
	exists, err := state.AccountExists(addr)
	if err != nil || !exists {
		return !exists, err
	}
	balance, err := state.GetBalance(addr)
	if err != nil || !balance.IsZero() {
		return false, err
	}
	nonce, err := state.GetNonce(addr)
	if err != nil || nonce != 0 {
		return false, err
	}
	code, err := state.GetCode(addr)
	if err != nil {
		return false, err
	}
	return len(code) == 0, nil
}
