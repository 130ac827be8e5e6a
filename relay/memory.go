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

package relay

import (
	"context"
	"fmt"
	"sync"
)

// Bus is an in-process topic fan-out shared by MemoryClient instances. Two
// pairing controllers that each hold a MemoryClient backed by the same Bus
// can complete a full handshake without a network.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*mailbox]struct{}
}

// NewBus creates an empty, ready-to-use bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*mailbox]struct{})}
}

func (b *Bus) subscribe(topic string) *mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := newMailbox()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*mailbox]struct{})
		b.subs[topic] = set
	}
	set[m] = struct{}{}
	return m
}

func (b *Bus) unsubscribe(topic string, m *mailbox) {
	b.mu.Lock()
	if set, ok := b.subs[topic]; ok {
		delete(set, m)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
	b.mu.Unlock()
	m.close()
}

func (b *Bus) publish(topic string, payload []byte) {
	b.mu.Lock()
	set := b.subs[topic]
	recipients := make([]*mailbox, 0, len(set))
	for m := range set {
		recipients = append(recipients, m)
	}
	b.mu.Unlock()

	for _, m := range recipients {
		m.enqueue(InboundMessage{Topic: topic, Payload: payload})
	}
}

// mailbox delivers messages to a single subscriber in enqueue order via a
// dedicated pump goroutine, so a slow consumer never reorders delivery the
// way two racing goroutines writing the same channel would.
type mailbox struct {
	out    chan InboundMessage
	mu     sync.Mutex
	queue  []InboundMessage
	notify chan struct{}
	done   chan struct{}
}

func newMailbox() *mailbox {
	m := &mailbox{
		out:    make(chan InboundMessage, 16),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.pump()
	return m
}

func (m *mailbox) enqueue(msg InboundMessage) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// pump is the sole writer to m.out, so it alone closes it on exit --
// closing it anywhere else would race pump's own send in the select below.
// That in turn lets every reader of m.out (MemoryClient.Subscribe's raw
// channel, or its decrypt-wrapper goroutine) exit via range-close instead
// of blocking forever once close() stops it.
func (m *mailbox) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
				continue
			case <-m.done:
				return
			}
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- next:
		case <-m.done:
			return
		}
	}
}

func (m *mailbox) close() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// MemoryClient is a relay.Client backed by a Bus. It applies the envelope
// encryption described by PublishOptions/Subscribe's decryptKeys itself, the
// same division of labor a real relay server and its crypto layer would
// have.
type MemoryClient struct {
	bus *Bus

	mu   sync.Mutex
	subs map[string]*mailbox
}

// NewMemoryClient returns a relay.Client that publishes to and subscribes
// from bus.
func NewMemoryClient(bus *Bus) *MemoryClient {
	return &MemoryClient{bus: bus, subs: make(map[string]*mailbox)}
}

func (c *MemoryClient) Publish(_ context.Context, topic string, payload []byte, opts PublishOptions) error {
	sealed, err := sealEnvelope(opts.EncryptKeys, payload)
	if err != nil {
		return fmt.Errorf("relay: seal: %w", err)
	}
	c.bus.publish(topic, sealed)
	return nil
}

func (c *MemoryClient) Subscribe(_ context.Context, topic string, decryptKeys [][]byte) (<-chan InboundMessage, error) {
	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay: already subscribed to %s", topic)
	}
	m := c.bus.subscribe(topic)
	c.subs[topic] = m
	c.mu.Unlock()

	if len(decryptKeys) == 0 {
		return m.out, nil
	}

	// Wrap the mailbox's raw channel with one that decrypts each message,
	// so callers never see ciphertext.
	out := make(chan InboundMessage, 16)
	go func() {
		defer close(out)
		for msg := range m.out {
			plain, err := openEnvelope(decryptKeys, msg.Payload)
			if err != nil {
				continue
			}
			out <- InboundMessage{Topic: msg.Topic, Payload: plain}
		}
	}()
	return out, nil
}

func (c *MemoryClient) Unsubscribe(_ context.Context, topic string) error {
	c.mu.Lock()
	m, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	c.bus.unsubscribe(topic, m)
	return nil
}

func (c *MemoryClient) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*mailbox)
	c.mu.Unlock()

	for topic, m := range subs {
		c.bus.unsubscribe(topic, m)
	}
	return nil
}
