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

package relay

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/sage-x-project/pairing/crypto/keys"
)

// sealEnvelope applies the encryption keys attached to a publish call. A
// single key is the settled topic's symmetric sharedKey; two keys are the
// pending topic's (ownPrivateKey, peerPublicKey) pair encrypted ECIES-style.
func sealEnvelope(encryptKeys [][]byte, plaintext []byte) ([]byte, error) {
	switch len(encryptKeys) {
	case 0:
		return plaintext, nil
	case 1:
		return sealSymmetric(encryptKeys[0], plaintext)
	case 2:
		return keys.EncryptWithPeer(encryptKeys[0], encryptKeys[1], plaintext)
	default:
		return nil, fmt.Errorf("relay: unsupported encrypt key count %d", len(encryptKeys))
	}
}

// openEnvelope reverses sealEnvelope using the decrypt keys attached to a
// subscribe call.
func openEnvelope(decryptKeys [][]byte, ciphertext []byte) ([]byte, error) {
	switch len(decryptKeys) {
	case 0:
		return ciphertext, nil
	case 1:
		return openSymmetric(decryptKeys[0], ciphertext)
	case 2:
		return keys.DecryptWithPeer(decryptKeys[0], decryptKeys[1], ciphertext)
	default:
		return nil, fmt.Errorf("relay: unsupported decrypt key count %d", len(decryptKeys))
	}
}

func deriveSymmetricKey(sharedKey []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, sharedKey, nil, []byte("pairing-relay-envelope"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("relay: derive symmetric key: %w", err)
	}
	return key, nil
}

func sealSymmetric(sharedKey, plaintext []byte) ([]byte, error) {
	key, err := deriveSymmetricKey(sharedKey)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("relay: generate nonce: %w", err)
	}
	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

func openSymmetric(sharedKey, ciphertext []byte) ([]byte, error) {
	key, err := deriveSymmetricKey(sharedKey)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("relay: ciphertext too short")
	}
	nonce, ct := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}
