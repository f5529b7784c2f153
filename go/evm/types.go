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
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Address represents the 160-bit (20 bytes) address of an account.
type Address [20]byte

// Key represents the 256-bit (32 bytes) key of a storage slot.
type Key [32]byte

// Word represents an arbitrary 256-bit (32 byte) word in the VM.
type Word [32]byte

// Value represents an amount of chain currency.
type Value [32]byte

// Hash represents the 256-bit (32 bytes) hash of a code, a block, a topic
// or similar sequence of cryptographic summary information.
type Hash [32]byte

// Code represents the byte-code of a contract.
type Code []byte

// Data represents the input or output of a call.
type Data []byte

// Gas represents an amount of gas. It is signed so that over-spending can be
// detected by a simple comparison against zero.
type Gas int64

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// ChecksumHex returns the mixed-case checksum encoding of the address as
// defined by EIP-55.
func (a Address) ChecksumHex() string {
	return common.Address(a).Hex()
}

func (a Address) MarshalText() ([]byte, error) {
	return bytesToText(a[:])
}

func (a *Address) UnmarshalText(data []byte) error {
	return textToBytes(a[:], data)
}

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

func (k Key) MarshalText() ([]byte, error) {
	return bytesToText(k[:])
}

func (k *Key) UnmarshalText(data []byte) error {
	return textToBytes(k[:], data)
}

func (w Word) String() string {
	return fmt.Sprintf("0x%x", w[:])
}

func (w Word) MarshalText() ([]byte, error) {
	return bytesToText(w[:])
}

func (w *Word) UnmarshalText(data []byte) error {
	return textToBytes(w[:], data)
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return bytesToText(h[:])
}

func (h *Hash) UnmarshalText(data []byte) error {
	return textToBytes(h[:], data)
}

// WordFromBytes interprets the given big-endian bytes as a word. Missing
// high-order bytes are treated as zero. If more than 32 bytes are given,
// only the 32 least significant bytes are retained.
func WordFromBytes(data []byte) (res Word) {
	if len(data) > len(res) {
		data = data[len(data)-len(res):]
	}
	copy(res[len(res)-len(data):], data)
	return res
}

// WordFromUint256 converts a *uint256.Int into its 32-byte big-endian form.
func WordFromUint256(value *uint256.Int) Word {
	if value == nil {
		return Word{}
	}
	return value.Bytes32()
}

// ToUint256 interprets the word as an unsigned 256-bit integer.
func (w Word) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(w[:])
}

func (v Value) ToBig() *big.Int {
	return new(big.Int).SetBytes(v[:])
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(v[:])
}

func (v Value) String() string {
	return v.ToUint256().String()
}

func (v Value) Cmp(o Value) int {
	return bytes.Compare(v[:], o[:])
}

func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) MarshalText() ([]byte, error) {
	return []byte(hexutil.EncodeBig(v.ToBig())), nil
}

func (v *Value) UnmarshalText(data []byte) error {
	b, err := hexutil.DecodeBig(string(data))
	if err != nil {
		return err
	}
	if b.BitLen() > 256 {
		return fmt.Errorf("value exceeds 256 bits: %s", data)
	}
	b.FillBytes(v[:])
	return nil
}

// NewValue creates a new Value instance from up to 4 uint64 arguments. The
// arguments are given in the order from most significant to least significant
// by padding leading zeros as needed. No argument results in a value of zero.
func NewValue(args ...uint64) (result Value) {
	if len(args) > 4 {
		panic("too many arguments")
	}
	offset := 4 - len(args)
	for i := 0; i < len(args); i++ {
		start := (offset * 8) + i*8
		binary.BigEndian.PutUint64(result[start:start+8], args[i])
	}
	return
}

// ValueFromUint256 converts a *uint256.Int to a Value.
// If the input is nil, it returns 0.
func ValueFromUint256(value *uint256.Int) (result Value) {
	if value == nil {
		return result
	}
	return value.Bytes32()
}

// Add returns a+b, wrapping around at 2^256.
func Add(a, b Value) Value {
	return ValueFromUint256(new(uint256.Int).Add(a.ToUint256(), b.ToUint256()))
}

// Sub returns a-b, wrapping around at 2^256.
func Sub(a, b Value) Value {
	return ValueFromUint256(new(uint256.Int).Sub(a.ToUint256(), b.ToUint256()))
}

func bytesToText(data []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", data)), nil
}

func textToBytes(trg []byte, data []byte) error {
	s := string(data)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("invalid format, does not start with 0x: %v", s)
	}
	decoded, err := hexutil.Decode(s)
	if err != nil {
		return err
	}
	if want, got := len(trg), len(decoded); want != got {
		return fmt.Errorf("invalid format, wanted %d bytes, got %d", want, got)
	}
	copy(trg, decoded)
	return nil
}

// CallKind distinguishes the different ways a frame can be entered.
type CallKind int

const (
	Call CallKind = iota
	DelegateCall
	StaticCall
	CallCode
	Create
	Create2
)

func (k CallKind) String() string {
	switch k {
	case Call:
		return "call"
	case StaticCall:
		return "static_call"
	case DelegateCall:
		return "delegate_call"
	case CallCode:
		return "call_code"
	case Create:
		return "create"
	case Create2:
		return "create2"
	default:
		return "unknown"
	}
}

// IsCreate reports whether the call kind creates a new contract.
func (k CallKind) IsCreate() bool {
	return k == Create || k == Create2
}

func (k CallKind) MarshalJSON() ([]byte, error) {
	switch k {
	case Call, StaticCall, DelegateCall, CallCode, Create, Create2:
		return json.Marshal(k.String())
	}
	return nil, fmt.Errorf("invalid call kind: %d", int(k))
}

func (k *CallKind) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err != nil {
		return err
	}
	switch strings.ToLower(kind) {
	case "call":
		*k = Call
	case "static_call":
		*k = StaticCall
	case "delegate_call":
		*k = DelegateCall
	case "call_code":
		*k = CallCode
	case "create":
		*k = Create
	case "create2":
		*k = Create2
	default:
		return fmt.Errorf("unknown call kind: %s", kind)
	}
	return nil
}

// SizeInWords returns the number of words required to store the given size,
// checking that size+31 does not overflow uint64.
func SizeInWords(size uint64) uint64 {
	if size > ^uint64(0)-31 {
		return ^uint64(0)/32 + 1
	}
	return (size + 31) / 32
}
