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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/pairing/jsonrpc"
	"github.com/sage-x-project/pairing/relay"
)

func newControllerPair(t *testing.T) (*Controller, *Controller) {
	t.Helper()
	bus := relay.NewBus()

	proposer, err := New(Config{Relay: relay.NewMemoryClient(bus)})
	require.NoError(t, err)
	responder, err := New(Config{Relay: relay.NewMemoryClient(bus)})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = proposer.Close()
		_ = responder.Close()
	})
	return proposer, responder
}

func TestHappyPathSettlement(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proposal, err := proposer.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, proposal.Topic)
	assert.NotEmpty(t, proposal.Signal.Params.URI)

	responderSettled, err := responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: true})
	require.NoError(t, err)
	assert.NotEmpty(t, responderSettled.Topic)

	proposerSettled, err := proposer.Await(ctx, proposal.Topic)
	require.NoError(t, err)

	assert.Equal(t, responderSettled.Topic, proposerSettled.Topic, "both sides must derive the same settled topic")
	assert.Equal(t, 1, proposer.Length())
	assert.Equal(t, 1, responder.Length())
	assert.Equal(t, 0, len(proposer.PendingEntries()), "pending record must be removed once settled")
}

func TestRejectedProposal(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proposal, err := proposer.Create(ctx, CreateOptions{})
	require.NoError(t, err)

	_, err = responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: false, Reason: ReasonNotApproved})
	require.Error(t, err)

	_, err = proposer.Await(ctx, proposal.Topic)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.Equal(t, 0, proposer.Length())
	assert.Equal(t, 0, len(proposer.PendingEntries()))
}

func TestUnauthorizedInnerRequestIsRejected(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proposal, err := proposer.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	_, err = responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: true})
	require.NoError(t, err)
	settled, err := proposer.Await(ctx, proposal.Topic)
	require.NoError(t, err)

	var payloadSeen bool
	responder.settled.Subscribe(Handlers[SettledRecord]{
		OnPayload: func(_ string, _ []byte) { payloadSeen = true },
	})

	_, inner, err := jsonrpc.NewRequest("not_whitelisted_method", map[string]string{})
	require.NoError(t, err)

	err = proposer.Send(ctx, settled.Topic, inner)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAcknowledgement))
	assert.Contains(t, err.Error(), "Unauthorized JSON-RPC Method Requested")
	assert.False(t, payloadSeen)
}

func TestPermittedInnerRequestIsDispatched(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proposal, err := proposer.Create(ctx, CreateOptions{Permissions: []string{"session_propose"}})
	require.NoError(t, err)
	_, err = responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: true})
	require.NoError(t, err)
	settled, err := proposer.Await(ctx, proposal.Topic)
	require.NoError(t, err)

	var received []byte
	responder.settled.Subscribe(Handlers[SettledRecord]{
		OnPayload: func(_ string, payload []byte) { received = payload },
	})

	_, inner, err := jsonrpc.NewRequest("session_propose", map[string]string{"k": "v"})
	require.NoError(t, err)

	require.NoError(t, proposer.Send(ctx, settled.Topic, inner))

	require.Eventually(t, func() bool {
		return received != nil
	}, time.Second, 10*time.Millisecond)
}

func TestMetadataUpdate(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proposal, err := proposer.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	_, err = responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: true})
	require.NoError(t, err)
	settled, err := proposer.Await(ctx, proposal.Topic)
	require.NoError(t, err)

	var updated SettledRecord
	pre, err := proposer.Update(ctx, settled.Topic, map[string]any{"name": "device-a"})
	require.NoError(t, err)
	assert.Nil(t, pre.Peer.Metadata, "Update must return the pre-ack snapshot, unaffected by the metadata it is announcing")

	require.Eventually(t, func() bool {
		r, err := responder.Get(settled.Topic)
		if err != nil {
			return false
		}
		updated = r
		return updated.Peer.Metadata != nil
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "device-a", updated.Peer.Metadata["name"])
}

func TestDeleteDoesNotEcho(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	proposal, err := proposer.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	_, err = responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: true})
	require.NoError(t, err)
	settled, err := proposer.Await(ctx, proposal.Topic)
	require.NoError(t, err)

	require.NoError(t, proposer.Delete(ctx, settled.Topic, "user_disconnected"))

	require.Eventually(t, func() bool {
		return responder.Length() == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, proposer.Length())
}

func TestSendDeliversPayload(t *testing.T) {
	proposer, responder := newControllerPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var received []byte

	proposal, err := proposer.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	_, err = responder.Respond(ctx, RespondOptions{Proposal: proposal, Approved: true})
	require.NoError(t, err)
	settled, err := proposer.Await(ctx, proposal.Topic)
	require.NoError(t, err)

	responder.settled.Subscribe(Handlers[SettledRecord]{
		OnPayload: func(_ string, payload []byte) { received = payload },
	})

	require.NoError(t, proposer.Send(ctx, settled.Topic, []byte("hello peer")))

	require.Eventually(t, func() bool {
		return received != nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte("hello peer"), received)
}
