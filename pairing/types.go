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

// Package pairing implements the protocol state machine that establishes,
// maintains, updates, and tears down a long-lived end-to-end-encrypted
// pairing between two peers that communicate through an untrusted relay.
package pairing

import (
	"time"

	sagecrypto "github.com/sage-x-project/pairing/crypto"
)

// Reserved JSON-RPC methods carried by the pairing wire protocol. These
// bypass a settled pairing's permission whitelist.
const (
	MethodRespond = "pairing_respond"
	MethodPayload = "pairing_payload"
	MethodUpdate  = "pairing_update"
	MethodDelete  = "pairing_delete"
)

var reservedMethods = map[string]struct{}{
	MethodRespond: {},
	MethodPayload: {},
	MethodUpdate:  {},
	MethodDelete:  {},
}

// IsReservedMethod reports whether method is a pairing-protocol method
// exempt from the permission whitelist.
func IsReservedMethod(method string) bool {
	_, ok := reservedMethods[method]
	return ok
}

// Stable deletion reason strings. Handler exceptions propagate as
// free-form messages alongside these.
const (
	ReasonSettled      = "settled"
	ReasonAcknowledged = "acknowledged"
	ReasonNotApproved  = "not_approved"
)

// DefaultProtocol names the relay protocol a proposal uses when the caller
// does not specify one.
const DefaultProtocol = "pairing"

// DefaultTTL is the proposal lifetime applied when the caller does not
// specify one.
const DefaultTTL = 5 * time.Minute

// DefaultReplayTTL bounds how long the router remembers a routed request id
// for duplicate suppression -- comfortably past any relay's redelivery
// window.
const DefaultReplayTTL = 10 * time.Minute

// DefaultAckTimeout bounds a best-effort background acknowledgement wait
// (Update's pairing_update) that must not inherit a caller's request-scoped
// context, which may be canceled the instant the caller's own call returns.
const DefaultAckTimeout = 10 * time.Second

// KeyPair is a side's own X25519 key pair.
type KeyPair = sagecrypto.KeyPair

// Peer describes the other side of a pairing: its public key and whatever
// metadata it has published about itself.
type Peer struct {
	PublicKey []byte         `json:"publicKey"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RelayDescriptor names the relay transport a pairing is reachable through.
// Params are opaque to the controller and forwarded to the relay client
// verbatim.
type RelayDescriptor struct {
	Protocol string            `json:"protocol"`
	Params   map[string]string `json:"params,omitempty"`
}

// Permissions is the set of JSON-RPC methods a settled pairing's peer may
// invoke via pairing_payload. A fresh proposal's permissions are seeded by
// Controller.InitialPermissions (default: {"session_propose"}), a
// configuration constant rather than a literal scattered through the
// router -- the initial method set is a cross-layer coupling to whatever
// session-negotiation protocol runs on top of the pairing.
type Permissions struct {
	Methods map[string]struct{} `json:"methods"`
}

// NewPermissions builds a Permissions set from method names.
func NewPermissions(methods ...string) Permissions {
	p := Permissions{Methods: make(map[string]struct{}, len(methods))}
	for _, m := range methods {
		p.Methods[m] = struct{}{}
	}
	return p
}

// Allows reports whether method may be invoked under p, independent of the
// reserved-method bypass.
func (p Permissions) Allows(method string) bool {
	_, ok := p.Methods[method]
	return ok
}

// MarshalJSON renders Permissions as {"jsonrpc":{"methods":[...]}}.
func (p Permissions) MarshalJSON() ([]byte, error) {
	methods := make([]string, 0, len(p.Methods))
	for m := range p.Methods {
		methods = append(methods, m)
	}
	return marshalPermissions(methods)
}

// UnmarshalJSON parses {"jsonrpc":{"methods":[...]}}.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	methods, err := unmarshalPermissions(data)
	if err != nil {
		return err
	}
	p.Methods = make(map[string]struct{}, len(methods))
	for _, m := range methods {
		p.Methods[m] = struct{}{}
	}
	return nil
}

// Signal is the out-of-band channel by which a proposal reaches its
// responder; the core only emits/consumes the URI as an opaque string.
type Signal struct {
	Method string       `json:"method"`
	Params SignalParams `json:"params"`
}

// SignalParams carries the proposal's shareable URI.
type SignalParams struct {
	URI string `json:"uri"`
}

// Proposal is the message a proposer builds and, via its Signal, shares
// with the intended responder. SymKey is a fresh random key carried inside
// the signal URI (never published to the relay itself) that both sides use
// to encrypt/decrypt pairing_respond on the pending topic -- a pairing has
// no settled shared key yet, and the responder's public key is unknown to
// the proposer until the response arrives, so the pending topic cannot use
// ECDH the way the settled topic does.
type Proposal struct {
	Topic       string          `json:"topic"`
	Relay       RelayDescriptor `json:"relay"`
	Proposer    Peer            `json:"proposer"`
	Signal      Signal          `json:"signal"`
	Permissions Permissions     `json:"permissions"`
	TTL         time.Duration   `json:"ttl"`
	SymKey      []byte          `json:"-"`
}

// Outcome is the tagged result of a pairing attempt.
type Outcome struct {
	Success   bool            `json:"success"`
	Topic     string          `json:"topic,omitempty"`
	Relay     RelayDescriptor `json:"relay,omitempty"`
	Responder Peer            `json:"responder,omitempty"`
	Expiry    time.Time       `json:"expiry,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// PendingStatus is the state of a pending record.
type PendingStatus string

const (
	StatusProposed  PendingStatus = "proposed"
	StatusResponded PendingStatus = "responded"
)

// PendingRecord is the pending store's record for a proposal topic. Outcome
// is non-nil only once Status is StatusResponded.
type PendingRecord struct {
	Status   PendingStatus   `json:"status"`
	Topic    string          `json:"topic"`
	Relay    RelayDescriptor `json:"relay"`
	Self     KeyPair         `json:"self"`
	Proposal Proposal        `json:"proposal"`
	Outcome  *Outcome        `json:"outcome,omitempty"`
}

// IsResponded reports whether the handshake reached a verdict.
func (p PendingRecord) IsResponded() bool {
	return p.Status == StatusResponded
}

// IsFailed reports whether a responded record's outcome was a failure.
func (p PendingRecord) IsFailed() bool {
	return p.Status == StatusResponded && p.Outcome != nil && !p.Outcome.Success
}

// EncryptKeysForReply returns the key material a reply on this pending topic
// must be sealed with -- the one-time symmetric key carried in the signal
// URI, since a pending topic has no ECDH shared key to fall back on yet.
func (p PendingRecord) EncryptKeysForReply() [][]byte {
	return [][]byte{p.Proposal.SymKey}
}

// SettledRecord is the settled store's record for a settled topic --
// a live pairing.
type SettledRecord struct {
	Topic       string          `json:"topic"`
	Relay       RelayDescriptor `json:"relay"`
	SharedKey   []byte          `json:"-"`
	Self        KeyPair         `json:"self"`
	Peer        Peer            `json:"peer"`
	Permissions Permissions     `json:"permissions"`
	Expiry      time.Time       `json:"expiry"`
}

// EncryptKeysForReply returns the key material a reply on this settled
// topic must be sealed with. ECDH is symmetric, so the same derived
// sharedKey both sides attached as DecryptKeys at settlement also serves
// as the EncryptKeys for anything they publish back.
func (s SettledRecord) EncryptKeysForReply() [][]byte {
	return [][]byte{s.SharedKey}
}
