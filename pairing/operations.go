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

package pairing

import (
	"context"

	"github.com/sage-x-project/pairing/internal/logger"
	"github.com/sage-x-project/pairing/internal/metrics"
)

// Update announces new local metadata to the peer on topic. It returns the
// settled record as it stood before the peer's acknowledgement -- an
// intentionally optimistic return, since the acknowledgement carries no
// information the caller needs back (the local record itself never changes
// as a result of publishing our own metadata). The publish to the peer
// happens in the background against its own detached, bounded context --
// not ctx, which the caller is free to cancel the instant Update returns --
// and a failure there is logged, not surfaced, matching the best-effort
// delivery the rest of the reserved methods use for anything that isn't the
// initial handshake.
func (c *Controller) Update(ctx context.Context, topic string, metadata map[string]any) (SettledRecord, error) {
	record, err := c.settled.Get(topic)
	if err != nil {
		return SettledRecord{}, err
	}

	params := updateParams{}
	params.Peer.Metadata = metadata

	go func() {
		ackCtx, cancel := context.WithTimeout(context.Background(), DefaultAckTimeout)
		defer cancel()
		if _, err := c.request(ackCtx, topic, record.EncryptKeysForReply(), MethodUpdate, params); err != nil {
			c.log.Warn("pairing: update not acknowledged", logger.String("topic", topic), logger.Error(err))
		}
	}()

	return record, nil
}

// Delete tears down the settled pairing at topic and tells the peer why.
// The peer-side teardown this triggers (handleDeleteRequest) never
// republishes, so a single Delete call produces exactly one pairing_delete
// on the wire regardless of which side calls it.
func (c *Controller) Delete(ctx context.Context, topic string, reason string) error {
	record, err := c.settled.Get(topic)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = ReasonSettled
	}

	_, reqErr := c.request(ctx, topic, record.EncryptKeysForReply(), MethodDelete, deleteParams{Reason: reason})
	if reqErr != nil {
		c.log.Warn("pairing: delete not acknowledged", logger.String("topic", topic), logger.Error(reqErr))
	}

	metrics.PairingsDeleted.WithLabelValues(reason).Inc()
	c.stopSubscription(topic)
	return c.settled.Delete(topic, reason)
}

// Send publishes an application payload to the peer over topic's settled
// pairing under the reserved pairing_payload method. payload is wrapped as
// pairing_payload's "payload" field: if it is itself an encoded JSON-RPC
// request (built with jsonrpc.NewRequest), the peer's router checks its
// inner method against the settled permission whitelist before delivering
// it to Events.Payload; any other payload shape bypasses that check and is
// delivered verbatim.
func (c *Controller) Send(ctx context.Context, topic string, payload []byte) error {
	record, err := c.settled.Get(topic)
	if err != nil {
		return err
	}
	_, err = c.request(ctx, topic, record.EncryptKeysForReply(), MethodPayload, payloadParams{Payload: payload})
	return err
}
