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

	"github.com/sage-x-project/pairing/internal/logger"
	"github.com/sage-x-project/pairing/internal/metrics"
	"github.com/sage-x-project/pairing/jsonrpc"
	"github.com/sage-x-project/pairing/relay"
)

// topicKind distinguishes a pending (handshake) topic from a settled
// (live pairing) topic, since the two speak different method sets.
type topicKind int

const (
	kindPending topicKind = iota
	kindSettled
)

// listen subscribes to topic and starts routing every inbound request and
// response arriving on it until the controller stops tracking it.
func (c *Controller) listen(topic string, kind topicKind, decryptKeys [][]byte) error {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.relay.Subscribe(ctx, topic, decryptKeys)
	if err != nil {
		cancel()
		return err
	}
	c.trackSubscription(topic, func() {
		cancel()
		_ = c.relay.Unsubscribe(context.Background(), topic)
	})
	go c.dispatchLoop(topic, kind, ch)
	return nil
}

func (c *Controller) dispatchLoop(topic string, kind topicKind, ch <-chan relay.InboundMessage) {
	for msg := range ch {
		env, err := jsonrpc.Decode(msg.Payload)
		if err != nil {
			c.log.Warn("pairing: dropping malformed envelope", logger.String("topic", topic), logger.Error(err))
			continue
		}

		if env.IsResponse() {
			c.deliverResponse(env)
			continue
		}
		if !env.IsRequest() {
			continue
		}
		if c.replay.seen(topic, env.ID) {
			continue
		}

		switch kind {
		case kindPending:
			c.routePending(topic, env)
		case kindSettled:
			c.routeSettled(topic, env)
		}
	}
}

// routePending handles inbound requests on a proposal's pending topic. The
// only request a proposer expects there is the responder's pairing_respond.
// A responder also ends up subscribed to this topic while it awaits that
// same request's ack (see Respond), so it sees its own pairing_respond
// echoed straight back by the relay; c.pending.Get finding no record for
// topic on that side is what tells routePending to drop it rather than
// reply -- only the side that actually holds the pending record routes it.
func (c *Controller) routePending(topic string, env *jsonrpc.Envelope) {
	record, err := c.pending.Get(topic)
	if err != nil {
		return
	}
	encryptKeys := record.EncryptKeysForReply()

	if env.Method != MethodRespond {
		c.replyError(topic, encryptKeys, env.ID, jsonrpc.CodeMethodNotFound, "method not allowed on pending topic")
		return
	}
	metrics.RouterDispatched.WithLabelValues(env.Method).Inc()

	var outcome Outcome
	if err := jsonrpc.DecodeParams(env, &outcome); err != nil {
		c.replyError(topic, encryptKeys, env.ID, jsonrpc.CodeInvalidParams, "malformed pairing_respond params")
		return
	}

	if err := c.pending.Update(topic, func(r *PendingRecord) error {
		r.Status = StatusResponded
		r.Outcome = &outcome
		return nil
	}); err != nil {
		c.replyError(topic, encryptKeys, env.ID, jsonrpc.CodeInternal, "failed to record response")
		return
	}

	c.replySuccess(topic, encryptKeys, env.ID, map[string]bool{"ack": true})

	if !outcome.Success {
		c.pending.Delete(topic, ReasonNotApproved)
		c.stopSubscription(topic)
		c.resolve(topic, pendingResult{err: NewError(KindRemoteFailure, outcome.Reason, nil)})
		return
	}

	settled, err := c.settleFromOutcome(record, outcome)
	if err != nil {
		c.log.Error("pairing: settlement failed", logger.String("topic", topic), logger.Error(err))
		c.pending.Delete(topic, err.Error())
		c.stopSubscription(topic)
		c.resolve(topic, pendingResult{err: err})
		return
	}

	c.pending.Delete(topic, ReasonSettled)
	c.stopSubscription(topic)
	c.resolve(topic, pendingResult{settled: settled})
}

// routeSettled handles inbound requests on a live pairing's settled topic.
// Only the reserved pairing_payload/pairing_update/pairing_delete methods
// are valid top-level requests there; anything else is an unknown method.
// The permission whitelist gates pairing_payload's unwrapped inner request,
// not the top-level method -- see handlePayloadRequest.
func (c *Controller) routeSettled(topic string, env *jsonrpc.Envelope) {
	record, err := c.settled.Get(topic)
	if err != nil {
		return
	}

	switch env.Method {
	case MethodPayload:
		c.handlePayloadRequest(topic, record, env)

	case MethodUpdate:
		c.handleUpdateRequest(topic, record, env)

	case MethodDelete:
		c.handleDeleteRequest(topic, record, env)

	default:
		c.replyError(topic, record.EncryptKeysForReply(), env.ID, jsonrpc.CodeMethodNotFound, "Unknown JSON-RPC Method Requested: "+env.Method)
	}
}

// payloadParams is pairing_payload's params shape: an application payload,
// wrapped so that a payload which is itself an encoded JSON-RPC request can
// be unwrapped and permission-checked by its inner method before delivery.
type payloadParams struct {
	Payload []byte `json:"payload"`
}

// handlePayloadRequest unwraps a pairing_payload request. If the wrapped
// payload is itself a JSON-RPC request, its method -- not pairing_payload
// itself -- is checked against the settled pairing's permission whitelist;
// anything else is delivered to Events.Payload verbatim with no method to
// check.
func (c *Controller) handlePayloadRequest(topic string, record SettledRecord, env *jsonrpc.Envelope) {
	var params payloadParams
	if err := jsonrpc.DecodeParams(env, &params); err != nil {
		c.replyError(topic, record.EncryptKeysForReply(), env.ID, jsonrpc.CodeInvalidParams, "malformed pairing_payload params")
		return
	}

	if inner, err := jsonrpc.Decode(params.Payload); err == nil && inner.IsRequest() {
		if !record.Permissions.Allows(inner.Method) {
			metrics.RouterRejected.WithLabelValues(inner.Method).Inc()
			c.replyError(topic, record.EncryptKeysForReply(), env.ID, jsonrpc.CodeUnauthorized, "Unauthorized JSON-RPC Method Requested: "+inner.Method)
			return
		}
		metrics.RouterDispatched.WithLabelValues(inner.Method).Inc()
	} else {
		metrics.RouterDispatched.WithLabelValues(MethodPayload).Inc()
	}

	c.settled.Notify(topic, params.Payload)
	c.replySuccess(topic, record.EncryptKeysForReply(), env.ID, map[string]bool{"ack": true})
}

type updateParams struct {
	Peer struct {
		Metadata map[string]any `json:"metadata"`
	} `json:"peer"`
}

func (c *Controller) handleUpdateRequest(topic string, record SettledRecord, env *jsonrpc.Envelope) {
	var params updateParams
	if err := jsonrpc.DecodeParams(env, &params); err != nil || params.Peer.Metadata == nil {
		c.replyError(topic, record.EncryptKeysForReply(), env.ID, jsonrpc.CodeInvalidParams, "update must set peer.metadata")
		return
	}

	err := c.settled.Update(topic, func(r *SettledRecord) error {
		r.Peer.Metadata = params.Peer.Metadata
		return nil
	})
	if err != nil {
		c.replyError(topic, record.EncryptKeysForReply(), env.ID, jsonrpc.CodeInternal, "update rejected")
		return
	}

	metrics.PairingsUpdated.Inc()
	c.replySuccess(topic, record.EncryptKeysForReply(), env.ID, map[string]bool{"ack": true})
}

type deleteParams struct {
	Reason string `json:"reason"`
}

// handleDeleteRequest tears down a settled pairing on the receiving side of
// a peer-initiated pairing_delete. It never republishes a pairing_delete of
// its own: only Controller.Delete, the locally-initiated path, publishes --
// keeping publish and react on two separate code paths is what stops a
// remote deletion from echoing back to the peer that just sent it.
func (c *Controller) handleDeleteRequest(topic string, record SettledRecord, env *jsonrpc.Envelope) {
	var params deleteParams
	reason := ReasonSettled
	if err := jsonrpc.DecodeParams(env, &params); err == nil && params.Reason != "" {
		reason = params.Reason
	}

	c.replySuccess(topic, record.EncryptKeysForReply(), env.ID, map[string]bool{"ack": true})
	metrics.PairingsDeleted.WithLabelValues(reason).Inc()
	c.settled.Delete(topic, reason)
	c.stopSubscription(topic)
}

func (c *Controller) replySuccess(topic string, encryptKeys [][]byte, id jsonrpc.ID, result any) {
	payload, err := jsonrpc.NewResult(id, result)
	if err != nil {
		return
	}
	_ = c.publish(context.Background(), topic, payload, relay.PublishOptions{EncryptKeys: encryptKeys})
}

func (c *Controller) replyError(topic string, encryptKeys [][]byte, id jsonrpc.ID, code int, message string) {
	payload, err := jsonrpc.NewError(id, code, message)
	if err != nil {
		return
	}
	_ = c.publish(context.Background(), topic, payload, relay.PublishOptions{EncryptKeys: encryptKeys})
}

// publish wraps a relay publish call with the latency/failure metrics,
// classifying topic as pending or settled by which store currently holds it.
func (c *Controller) publish(ctx context.Context, topic string, payload []byte, opts relay.PublishOptions) error {
	kind := "settled"
	if _, err := c.pending.Get(topic); err == nil {
		kind = "pending"
	}

	start := time.Now()
	err := c.relay.Publish(ctx, topic, payload, opts)
	metrics.PublishDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PublishFailures.WithLabelValues(kind).Inc()
	}
	return err
}

func (c *Controller) registerWaiter(id jsonrpc.ID) chan *jsonrpc.Envelope {
	ch := make(chan *jsonrpc.Envelope, 1)
	c.waitersMu.Lock()
	c.waiters[id] = ch
	c.waitersMu.Unlock()
	return ch
}

func (c *Controller) forgetWaiter(id jsonrpc.ID) {
	c.waitersMu.Lock()
	delete(c.waiters, id)
	c.waitersMu.Unlock()
}

func (c *Controller) deliverResponse(env *jsonrpc.Envelope) bool {
	c.waitersMu.Lock()
	ch, ok := c.waiters[env.ID]
	if ok {
		delete(c.waiters, env.ID)
	}
	c.waitersMu.Unlock()
	if !ok {
		return false
	}
	ch <- env
	return true
}

// request publishes method/params to topic and blocks for the peer's
// JSON-RPC response or ctx's deadline, whichever comes first -- the
// remote-ack handshake every reserved pairing method relies on.
func (c *Controller) request(ctx context.Context, topic string, encryptKeys [][]byte, method string, params any) (*jsonrpc.Envelope, error) {
	req, payload, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}

	waiter := c.registerWaiter(req.ID)
	defer c.forgetWaiter(req.ID)

	if err := c.publish(ctx, topic, payload, relay.PublishOptions{EncryptKeys: encryptKeys}); err != nil {
		return nil, NewError(KindRemoteFailure, "publish failed", err)
	}

	select {
	case resp := <-waiter:
		if resp.Error != nil {
			return resp, NewError(KindAcknowledgement, resp.Error.Message, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, NewError(KindRemoteFailure, "timed out waiting for acknowledgement", ctx.Err())
	}
}
