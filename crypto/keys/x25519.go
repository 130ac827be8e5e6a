// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package keys implements the X25519 ECDH key-pair primitives that the
// pairing controller treats as an external collaborator: GenerateKeyPair,
// DeriveSharedKey, and the nonce-prefixed AEAD envelope used to encrypt
// messages explicitly (pending topic) rather than via a settled shared key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	sagecrypto "github.com/sage-x-project/pairing/crypto"
)

// GenerateKeyPair generates a fresh X25519 key pair.
func GenerateKeyPair() (sagecrypto.KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return sagecrypto.KeyPair{}, fmt.Errorf("generate ecdh key: %w", err)
	}
	return sagecrypto.KeyPair{
		PublicKey:  priv.PublicKey().Bytes(),
		PrivateKey: priv.Bytes(),
	}, nil
}

// DeriveSharedKey performs the ECDH exchange between our private key and the
// peer's public key, returning the raw 32-byte shared secret. Callers derive
// the settled topic from this value themselves (topic = sha256(sharedKey));
// DeriveSharedKey does not hash its output.
func DeriveSharedKey(privateKey, peerPublicKey []byte) ([]byte, error) {
	priv, err := ecdh.X25519().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidPrivateKey, err)
	}
	peerPub, err := ecdh.X25519().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sagecrypto.ErrInvalidPublicKey, err)
	}
	shared, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}
	var zero [32]byte
	if subtle.ConstantTimeCompare(shared, zero[:]) == 1 {
		return nil, sagecrypto.ErrLowOrderPoint
	}
	return shared, nil
}

// SHA256Topic hex-encodes sha256(material) -- used both for the settled
// topic (material = sharedKey) and for fresh proposal topics (material =
// GenerateRandomBytes32()).
func SHA256Topic(material []byte) string {
	sum := sha256.Sum256(material)
	return hex.EncodeToString(sum[:])
}

// GenerateRandomBytes32 returns 32 cryptographically random bytes, used to
// allocate a fresh proposal topic.
func GenerateRandomBytes32() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return b, nil
}

// EncryptWithPeer performs ECIES-like encryption: derive a shared key with
// recipientPub using our own private key, then seal plaintext under
// AES-256-GCM. Output is nonce||ciphertext. This is how the pending store
// encrypts the responder's `pairing_respond` payload for the proposer's
// public key when no settled shared key exists yet.
func EncryptWithPeer(privateKey, recipientPub, plaintext []byte) ([]byte, error) {
	key, err := DeriveSharedKey(privateKey, recipientPub)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

// DecryptWithPeer reverses EncryptWithPeer.
func DecryptWithPeer(privateKey, senderPub, packet []byte) ([]byte, error) {
	key, err := DeriveSharedKey(privateKey, senderPub)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(packet) < aead.NonceSize() {
		return nil, fmt.Errorf("packet too short")
	}
	nonce, ct := packet[:aead.NonceSize()], packet[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
