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

import "testing"

func parseAddress(t *testing.T, s string) Address {
	t.Helper()
	var addr Address
	if err := addr.UnmarshalText([]byte(s)); err != nil {
		t.Fatalf("invalid address %q: %v", s, err)
	}
	return addr
}

func TestCreateAddress_KnownValues(t *testing.T) {
	sender := parseAddress(t, "0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	tests := map[uint64]string{
		0: "0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d",
		1: "0x343c43a37d37dff08ae8c4a11544c718abb4fcf8",
		2: "0xf778b86fa74e846c4f0a1fbd1335fe81c00a0c91",
	}
	for nonce, want := range tests {
		if got := CreateAddress(sender, nonce); got != parseAddress(t, want) {
			t.Errorf("nonce %d: wanted %s, got %v", nonce, want, got)
		}
	}
}

func TestCreateAddress_IsDeterministic(t *testing.T) {
	sender := Address{1, 2, 3}
	if CreateAddress(sender, 7) != CreateAddress(sender, 7) {
		t.Errorf("same sender and nonce produced different addresses")
	}
	if CreateAddress(sender, 7) == CreateAddress(sender, 8) {
		t.Errorf("different nonces produced the same address")
	}
	if CreateAddress(sender, 7) == CreateAddress(Address{4}, 7) {
		t.Errorf("different senders produced the same address")
	}
}

func TestCreateAddress2_KnownValue(t *testing.T) {
	// First example of EIP-1014.
	got := CreateAddress2(Address{}, Hash{}, Keccak256([]byte{0x00}))
	if want := parseAddress(t, "0x4d1a2e2bb4f88f0250f26ffff098b0b30b26bf38"); want != got {
		t.Errorf("unexpected address, wanted %v, got %v", want, got)
	}
}

func TestCreateAddress2_DependsOnSaltAndCode(t *testing.T) {
	sender := Address{1}
	base := CreateAddress2(sender, Hash{1}, Keccak256([]byte{1}))
	if base != CreateAddress2(sender, Hash{1}, Keccak256([]byte{1})) {
		t.Errorf("address derivation is not deterministic")
	}
	if base == CreateAddress2(sender, Hash{2}, Keccak256([]byte{1})) {
		t.Errorf("salt does not affect address")
	}
	if base == CreateAddress2(sender, Hash{1}, Keccak256([]byte{2})) {
		t.Errorf("init code does not affect address")
	}
}

func TestEmptyCodeHash(t *testing.T) {
	want := parseHash(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if EmptyCodeHash != want {
		t.Errorf("unexpected empty code hash, wanted %v, got %v", want, EmptyCodeHash)
	}
}

func parseHash(t *testing.T, s string) Hash {
	t.Helper()
	var hash Hash
	if err := hash.UnmarshalText([]byte(s)); err != nil {
		t.Fatalf("invalid hash %q: %v", s, err)
	}
	return hash
}
