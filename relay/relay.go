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

// Package relay defines the Client contract the pairing controller treats as
// an external collaborator: publish a payload to a topic, and receive
// inbound payloads pushed back on topics it has subscribed to. The package
// ships two implementations -- an in-memory relay for tests and same-process
// round trips, and a websocket client for talking to a real relay server.
package relay

import (
	"context"
	"time"
)

// PublishOptions configures a single publish call.
type PublishOptions struct {
	// RelayProtocol names the relay transport the descriptor requested;
	// forwarded verbatim, not interpreted by the client.
	RelayProtocol string
	RelayParams   map[string]string

	// EncryptKeys, when set, are applied by the relay-side encryption
	// boundary before the payload leaves the process (pending topic).
	// DecryptKeys configure inbound decryption for a later Subscribe on
	// the same topic (settled topic).
	EncryptKeys [][]byte
	DecryptKeys [][]byte

	TTL time.Duration
}

// InboundMessage is a payload pushed back to a subscriber on a topic.
type InboundMessage struct {
	Topic   string
	Payload []byte
}

// Client is the relay collaborator. Implementations MUST preserve publish
// order on a single topic as observed by Subscribe on that same topic.
type Client interface {
	Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error
	Subscribe(ctx context.Context, topic string, decryptKeys [][]byte) (<-chan InboundMessage, error)
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
