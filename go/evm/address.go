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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CreateAddress derives the address of a contract created by the given
// sender while the sender's nonce had the given value.
func CreateAddress(sender Address, nonce uint64) Address {
	return Address(crypto.CreateAddress(common.Address(sender), nonce))
}

// CreateAddress2 derives the address of a contract created with a salt from
// the sender, the salt and the hash of the init code.
func CreateAddress2(sender Address, salt Hash, initCodeHash Hash) Address {
	return Address(crypto.CreateAddress2(common.Address(sender), salt, initCodeHash[:]))
}
