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
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sage-x-project/pairing/internal/logger"
	"github.com/sage-x-project/pairing/internal/metrics"
	"github.com/sage-x-project/pairing/jsonrpc"
	"github.com/sage-x-project/pairing/relay"
)

// Config carries the knobs a Controller is constructed with. Zero-value
// fields are replaced by defaults in New, the same nil-means-default
// convention the handshake server and session manager use.
type Config struct {
	// Relay is the transport the controller publishes to and subscribes
	// on. Required.
	Relay relay.Client

	// Protocol names the relay protocol a fresh proposal's RelayDescriptor
	// carries. Defaults to DefaultProtocol.
	Protocol string

	// ProposalTTL is the lifetime of a fresh proposal. Defaults to
	// DefaultTTL.
	ProposalTTL time.Duration

	// InitialPermissions seeds a fresh proposal's settled permission
	// whitelist. Defaults to {"session_propose"} -- deliberately a
	// configuration value rather than a literal baked into propose(), so a
	// deployment running a different session-negotiation method on top of
	// pairing can swap it without forking the controller.
	InitialPermissions []string

	Events Events
	Logger logger.Logger
}

// Controller drives the pairing protocol state machine for one local
// identity: it owns the pending and settled stores, the router that
// dispatches inbound relay traffic into them, and the relay subscriptions
// that keep both in sync with the wire.
type Controller struct {
	relay   relay.Client
	pending Store[PendingRecord]
	settled Store[SettledRecord]

	protocol           string
	proposalTTL        time.Duration
	initialPermissions []string

	events Events
	log    logger.Logger

	mu            sync.Mutex
	subscriptions map[string]context.CancelFunc

	waitersMu sync.Mutex
	waiters   map[jsonrpc.ID]chan *jsonrpc.Envelope

	// settleGroup collapses concurrent settle() calls for the same
	// derived topic into one, so a redelivered pairing_respond can never
	// produce two settled records or double-fire the Settled event.
	settleGroup singleflight.Group

	// resolvers fulfills Await for a pending topic's eventual verdict.
	// routePending resolves it exactly once, the first time a pending
	// record's status moves to StatusResponded -- never on any later
	// redelivery of the same pairing_respond.
	resolversMu sync.Mutex
	resolvers   map[string]chan pendingResult

	// replay suppresses a relay-redelivered request from being routed
	// twice.
	replay *replayGuard
}

type pendingResult struct {
	settled SettledRecord
	err     error
}

// New constructs a Controller ready to Create/Respond pairings. It holds no
// subscriptions until a caller proposes or responds.
func New(cfg Config) (*Controller, error) {
	if cfg.Relay == nil {
		return nil, fmt.Errorf("pairing: relay client required")
	}

	c := &Controller{
		relay:              cfg.Relay,
		pending:            NewMemStore[PendingRecord](),
		settled:            NewMemStore[SettledRecord](),
		protocol:           cfg.Protocol,
		proposalTTL:        cfg.ProposalTTL,
		initialPermissions: cfg.InitialPermissions,
		events:             cfg.Events,
		log:                cfg.Logger,
		subscriptions:      make(map[string]context.CancelFunc),
		waiters:            make(map[jsonrpc.ID]chan *jsonrpc.Envelope),
		resolvers:          make(map[string]chan pendingResult),
		replay:             newReplayGuard(DefaultReplayTTL),
	}
	if c.protocol == "" {
		c.protocol = DefaultProtocol
	}
	if c.proposalTTL == 0 {
		c.proposalTTL = DefaultTTL
	}
	if len(c.initialPermissions) == 0 {
		c.initialPermissions = []string{"session_propose"}
	}
	if c.events == nil {
		c.events = NoopEvents{}
	}
	if c.log == nil {
		c.log = logger.NewDefaultLogger()
	}

	c.pending.Subscribe(Handlers[PendingRecord]{
		OnCreated: func(_ string, r PendingRecord) { c.events.Proposed(r) },
		OnUpdated: func(_ string, r PendingRecord) {
			if r.IsResponded() {
				c.events.Responded(r)
			}
		},
	})
	c.settled.Subscribe(Handlers[SettledRecord]{
		OnCreated: func(_ string, r SettledRecord) {
			metrics.ActivePairings.Set(float64(c.settled.Length()))
			c.events.Settled(r)
		},
		OnUpdated: func(_ string, r SettledRecord) { c.events.Updated(r) },
		OnDeleted: func(topic string, _ SettledRecord, reason string) {
			metrics.ActivePairings.Set(float64(c.settled.Length()))
			c.events.Deleted(topic, reason)
		},
		OnPayload: func(topic string, payload []byte) { c.events.Payload(topic, payload) },
	})

	return c, nil
}

// Get returns the settled record for topic.
func (c *Controller) Get(topic string) (SettledRecord, error) {
	return c.settled.Get(topic)
}

// Entries returns every currently settled pairing.
func (c *Controller) Entries() []SettledRecord {
	return c.settled.Entries()
}

// Length returns the number of currently settled pairings.
func (c *Controller) Length() int {
	return c.settled.Length()
}

// PendingEntries returns every pending (not yet settled) proposal this
// controller originated or is responding to.
func (c *Controller) PendingEntries() []PendingRecord {
	return c.pending.Entries()
}

// Close tears down every live subscription the controller holds. It does
// not delete any pending or settled record.
func (c *Controller) Close() error {
	c.mu.Lock()
	subs := c.subscriptions
	c.subscriptions = make(map[string]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
	c.replay.close()
	_ = c.pending.Close()
	_ = c.settled.Close()
	return nil
}

func (c *Controller) trackSubscription(topic string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.subscriptions[topic]; ok {
		existing()
	}
	c.subscriptions[topic] = cancel
}

func (c *Controller) registerResolver(topic string) chan pendingResult {
	ch := make(chan pendingResult, 1)
	c.resolversMu.Lock()
	c.resolvers[topic] = ch
	c.resolversMu.Unlock()
	return ch
}

// forgetResolver drops topic's resolver channel. Called by Await itself once
// it has actually consumed a result -- not by resolve, which must leave the
// map entry in place for Await to find even when the router resolves a
// proposal before Await is ever called (routePending's ack publish and its
// own resolve() both run synchronously on the router's goroutine, well
// ahead of the multi-hop relay round trip the other side needs before it
// even starts waiting).
func (c *Controller) forgetResolver(topic string) {
	c.resolversMu.Lock()
	delete(c.resolvers, topic)
	c.resolversMu.Unlock()
}

// resolve fulfills topic's Await exactly once; a second call (e.g. a
// duplicate pairing_respond delivery) finds the channel already holding its
// one buffered slot and is a silent no-op.
func (c *Controller) resolve(topic string, result pendingResult) {
	c.resolversMu.Lock()
	ch, ok := c.resolvers[topic]
	c.resolversMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- result:
	default:
	}
}

func (c *Controller) stopSubscription(topic string) {
	c.mu.Lock()
	cancel, ok := c.subscriptions[topic]
	if ok {
		delete(c.subscriptions, topic)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
	c.replay.forget(topic)
}
