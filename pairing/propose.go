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
	"time"

	"github.com/sage-x-project/pairing/crypto/keys"
	"github.com/sage-x-project/pairing/internal/metrics"
	"github.com/sage-x-project/pairing/uri"
)

// CreateOptions overrides a proposal's defaults. A zero value uses the
// controller's configured relay descriptor, TTL, and initial permissions.
type CreateOptions struct {
	Relay       RelayDescriptor
	TTL         time.Duration
	Permissions []string
}

// Create allocates a fresh proposal topic and keypair, builds its
// shareable signal URI, and starts listening for the responder's
// pairing_respond. It returns as soon as the proposal is advertisable;
// call Await on the returned Proposal's topic to block for the eventual
// verdict.
func (c *Controller) Create(ctx context.Context, opts CreateOptions) (Proposal, error) {
	topicBytes, err := keys.GenerateRandomBytes32()
	if err != nil {
		return Proposal{}, NewError(KindSettlementFailure, "allocate proposal topic", err)
	}
	topic := keys.SHA256Topic(topicBytes)

	self, err := keys.GenerateKeyPair()
	if err != nil {
		return Proposal{}, NewError(KindSettlementFailure, "generate proposal keypair", err)
	}

	symKey, err := keys.GenerateRandomBytes32()
	if err != nil {
		return Proposal{}, NewError(KindSettlementFailure, "generate pending sym key", err)
	}

	relayDesc := opts.Relay
	if relayDesc.Protocol == "" {
		relayDesc = RelayDescriptor{Protocol: c.protocol}
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = c.proposalTTL
	}
	methods := opts.Permissions
	if len(methods) == 0 {
		methods = c.initialPermissions
	}

	rawURI, err := uri.Format(uri.Params{
		Protocol:      c.protocol,
		Version:       2,
		Topic:         topic,
		PublicKey:     self.PublicKey,
		SymKey:        symKey,
		RelayProtocol: relayDesc.Protocol,
		RelayParams:   relayDesc.Params,
	})
	if err != nil {
		return Proposal{}, NewError(KindSettlementFailure, "format proposal uri", err)
	}

	proposal := Proposal{
		Topic:       topic,
		Relay:       relayDesc,
		Proposer:    Peer{PublicKey: self.PublicKey},
		Signal:      Signal{Method: "uri", Params: SignalParams{URI: rawURI}},
		Permissions: NewPermissions(methods...),
		TTL:         ttl,
		SymKey:      symKey,
	}

	record := PendingRecord{
		Status:   StatusProposed,
		Topic:    topic,
		Relay:    relayDesc,
		Self:     self,
		Proposal: proposal,
	}

	c.registerResolver(topic)
	if err := c.pending.Set(topic, record, SetOptions{Relay: relayDesc, DecryptKeys: [][]byte{symKey}}); err != nil {
		return Proposal{}, err
	}
	if err := c.listen(topic, kindPending, [][]byte{symKey}); err != nil {
		return Proposal{}, err
	}

	metrics.PairingsProposed.Inc()
	return proposal, nil
}

// Await blocks for a proposal's pairing_respond verdict, returning the
// settled record on success. It resolves exactly once per proposal, on the
// first response the router observes for topic -- a later redelivery of
// the same pairing_respond never re-resolves it.
func (c *Controller) Await(ctx context.Context, topic string) (SettledRecord, error) {
	c.resolversMu.Lock()
	ch, ok := c.resolvers[topic]
	c.resolversMu.Unlock()
	if !ok {
		return SettledRecord{}, NewError(KindNotFound, "no pending proposal for topic", nil)
	}

	select {
	case result := <-ch:
		c.forgetResolver(topic)
		return result.settled, result.err
	case <-ctx.Done():
		return SettledRecord{}, NewError(KindRemoteFailure, "timed out awaiting response", ctx.Err())
	}
}

// ProposalFromSignalURI reconstructs the Proposal a responder needs to pass
// to Respond from a signal URI read out-of-band (e.g. scanned from a QR
// code). The URI carries no permissions, so Permissions is left empty here;
// Respond falls back to its own configured initial set in that case.
func ProposalFromSignalURI(raw string) (Proposal, error) {
	p, err := uri.Parse(raw)
	if err != nil {
		return Proposal{}, NewError(KindSettlementFailure, "parse signal uri", err)
	}
	return Proposal{
		Topic:    p.Topic,
		Relay:    RelayDescriptor{Protocol: p.RelayProtocol, Params: p.RelayParams},
		Proposer: Peer{PublicKey: p.PublicKey},
		Signal:   Signal{Method: "uri", Params: SignalParams{URI: raw}},
		TTL:      DefaultTTL,
		SymKey:   p.SymKey,
	}, nil
}

// RespondOptions is the verdict a responder reaches on a received proposal.
type RespondOptions struct {
	Proposal Proposal
	Approved bool
	// Reason is carried when Approved is false.
	Reason string
}

// Respond answers a proposal the responder learned out-of-band (e.g. by
// scanning its URI): on approval it settles the pairing symmetrically with
// the proposer and publishes the outcome on the pending topic; on
// rejection it publishes a failure outcome and settles nothing.
func (c *Controller) Respond(ctx context.Context, opts RespondOptions) (SettledRecord, error) {
	proposal := opts.Proposal
	if len(proposal.Permissions.Methods) == 0 {
		// The signal URI carries no permissions -- both sides are expected
		// to agree on the initial method set out of band, so a proposal
		// reconstructed purely from its URI falls back to this
		// controller's own configured default.
		proposal.Permissions = NewPermissions(c.initialPermissions...)
	}

	// The responder needs to receive the proposer's ack to pairing_respond,
	// which arrives on the same pending topic it is about to publish to.
	// This subscription is torn down once that ack lands (or fails to);
	// unlike the proposer's own pending topic, the responder keeps no
	// PendingRecord for it, so routePending silently drops the echo of this
	// very request that the responder's own subscription now also receives.
	if err := c.listen(proposal.Topic, kindPending, [][]byte{proposal.SymKey}); err != nil {
		return SettledRecord{}, NewError(KindSettlementFailure, "subscribe pending topic", err)
	}
	defer c.stopSubscription(proposal.Topic)

	if !opts.Approved {
		outcome := Outcome{Success: false, Reason: opts.Reason}
		if outcome.Reason == "" {
			outcome.Reason = ReasonNotApproved
		}
		_, err := c.request(ctx, proposal.Topic, [][]byte{proposal.SymKey}, MethodRespond, outcome)
		if err != nil {
			return SettledRecord{}, err
		}
		return SettledRecord{}, NewError(KindRemoteFailure, outcome.Reason, nil)
	}

	self, err := keys.GenerateKeyPair()
	if err != nil {
		return SettledRecord{}, NewError(KindSettlementFailure, "generate responder keypair", err)
	}
	sharedKey, err := keys.DeriveSharedKey(self.PrivateKey, proposal.Proposer.PublicKey)
	if err != nil {
		return SettledRecord{}, NewError(KindSettlementFailure, "derive shared key", err)
	}
	settledTopic := keys.SHA256Topic(sharedKey)

	outcome := Outcome{
		Success:   true,
		Topic:     settledTopic,
		Relay:     proposal.Relay,
		Responder: Peer{PublicKey: self.PublicKey},
		Expiry:    time.Now().Add(proposal.TTL),
	}

	record := SettledRecord{
		Topic:       settledTopic,
		Relay:       proposal.Relay,
		SharedKey:   sharedKey,
		Self:        self,
		Peer:        proposal.Proposer,
		Permissions: proposal.Permissions,
		Expiry:      outcome.Expiry,
	}
	if err := c.settled.Set(settledTopic, record, SetOptions{
		Relay:       record.Relay,
		DecryptKeys: [][]byte{sharedKey},
	}); err != nil {
		return SettledRecord{}, NewError(KindSettlementFailure, "install settled record", err)
	}
	if err := c.listen(settledTopic, kindSettled, [][]byte{sharedKey}); err != nil {
		return SettledRecord{}, NewError(KindSettlementFailure, "subscribe settled topic", err)
	}

	if _, err := c.request(ctx, proposal.Topic, [][]byte{proposal.SymKey}, MethodRespond, outcome); err != nil {
		metrics.PairingsSettled.WithLabelValues("failure").Inc()
		c.settled.Delete(settledTopic, err.Error())
		c.stopSubscription(settledTopic)
		return SettledRecord{}, err
	}

	metrics.PairingsSettled.WithLabelValues("success").Inc()
	return record, nil
}
