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
	"github.com/sage-x-project/pairing/crypto/keys"
	"github.com/sage-x-project/pairing/internal/metrics"
)

// settleFromOutcome derives the settled topic from a successful
// pairing_respond outcome and installs the settled record. It is keyed
// through settleGroup so that a redelivered response can never settle the
// same pairing twice.
func (c *Controller) settleFromOutcome(pending PendingRecord, outcome Outcome) (SettledRecord, error) {
	sharedKey, err := keys.DeriveSharedKey(pending.Self.PrivateKey, outcome.Responder.PublicKey)
	if err != nil {
		metrics.PairingsSettled.WithLabelValues("failure").Inc()
		return SettledRecord{}, NewError(KindSettlementFailure, "derive shared key", err)
	}
	topic := keys.SHA256Topic(sharedKey)

	result, err, _ := c.settleGroup.Do(topic, func() (any, error) {
		record := SettledRecord{
			Topic:       topic,
			Relay:       pending.Relay,
			SharedKey:   sharedKey,
			Self:        pending.Self,
			Peer:        outcome.Responder,
			Permissions: pending.Proposal.Permissions,
			Expiry:      outcome.Expiry,
		}
		if err := c.settled.Set(topic, record, SetOptions{
			Relay:       record.Relay,
			DecryptKeys: [][]byte{sharedKey},
		}); err != nil {
			return SettledRecord{}, NewError(KindSettlementFailure, "install settled record", err)
		}
		if err := c.listen(topic, kindSettled, [][]byte{sharedKey}); err != nil {
			return SettledRecord{}, NewError(KindSettlementFailure, "subscribe settled topic", err)
		}
		return record, nil
	})
	if err != nil {
		metrics.PairingsSettled.WithLabelValues("failure").Inc()
		return SettledRecord{}, err
	}

	metrics.PairingsSettled.WithLabelValues("success").Inc()
	return result.(SettledRecord), nil
}
