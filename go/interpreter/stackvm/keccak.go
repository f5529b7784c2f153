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
	"sync"

	"github.com/Fantom-foundation/evmcore/go/evm"
	"golang.org/x/crypto/sha3"
)

type keccakHasher interface {
	Write([]byte) (int, error)
	Read([]byte) (int, error)
	Reset()
}

var keccakHasherPool = sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}

// keccak256 hashes the given data using a pooled hasher.
func keccak256(data []byte) evm.Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	defer keccakHasherPool.Put(hasher)
	hasher.Reset()
	hasher.Write(data)
	var res evm.Hash
	hasher.Read(res[:])
	return res
}
