// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import "errors"

// KeyPair is a single X25519 key pair. PrivateKey never leaves the owning
// process; only PublicKey is ever placed on the wire, in a proposal, or
// logged. There is no key-storage or rotation policy here -- a pairing
// does not persist keys beyond its own lifetime.
type KeyPair struct {
	PublicKey  []byte `json:"publicKey"`
	PrivateKey []byte `json:"-"`
}

// Common errors surfaced by the crypto primitives.
var (
	ErrInvalidPublicKey  = errors.New("crypto: invalid public key")
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")
	ErrLowOrderPoint     = errors.New("crypto: low-order or identity point")
)
