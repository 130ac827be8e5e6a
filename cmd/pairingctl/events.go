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

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/sage-x-project/pairing/pairing"
)

// printingEvents prints every lifecycle event to stdout, for interactive use
// of propose/respond/serve.
type printingEvents struct{}

func (printingEvents) Proposed(r pairing.PendingRecord) {
	fmt.Printf("[proposed] topic=%s\n", r.Topic)
}

func (printingEvents) Responded(r pairing.PendingRecord) {
	if r.IsFailed() {
		fmt.Printf("[responded] topic=%s outcome=failure reason=%s\n", r.Topic, r.Outcome.Reason)
		return
	}
	fmt.Printf("[responded] topic=%s outcome=success settled=%s\n", r.Topic, r.Outcome.Topic)
}

func (printingEvents) Settled(r pairing.SettledRecord) {
	fmt.Printf("[settled] topic=%s peer=%s\n", r.Topic, hex.EncodeToString(r.Peer.PublicKey))
}

func (printingEvents) Updated(r pairing.SettledRecord) {
	fmt.Printf("[updated] topic=%s metadata=%v\n", r.Topic, r.Peer.Metadata)
}

func (printingEvents) Deleted(topic string, reason string) {
	fmt.Printf("[deleted] topic=%s reason=%s\n", topic, reason)
}

func (printingEvents) Payload(topic string, payload []byte) {
	fmt.Printf("[payload] topic=%s bytes=%d: %s\n", topic, len(payload), string(payload))
}
